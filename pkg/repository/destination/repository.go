package destination

import (
	"context"

	"github.com/amirasaad/chipload/pkg/domain/destination"
	"github.com/google/uuid"
)

// Repository defines the interface for payment destination access.
type Repository interface {
	Create(ctx context.Context, d *destination.Destination) error
	Get(ctx context.Context, id uuid.UUID) (*destination.Destination, error)
	Update(ctx context.Context, d *destination.Destination) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns destinations; activeOnly filters inactive ones.
	List(ctx context.Context, activeOnly bool) ([]*destination.Destination, error)
}
