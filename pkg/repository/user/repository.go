package user

import (
	"context"

	"github.com/amirasaad/chipload/pkg/domain/user"
	"github.com/amirasaad/chipload/pkg/money"
	"github.com/google/uuid"
)

// Repository defines the interface for user data access operations.
type Repository interface {
	// Create inserts a new user.
	Create(ctx context.Context, u *user.User) error

	// Get retrieves a user by id. Returns user.ErrUserNotFound when absent.
	Get(ctx context.Context, id uuid.UUID) (*user.User, error)

	// GetByUsername retrieves a user by username.
	GetByUsername(ctx context.Context, username string) (*user.User, error)

	// List retrieves users with pagination support.
	List(ctx context.Context, page, pageSize int) ([]*user.User, error)

	// ListManaged retrieves the players owned by a manager.
	ListManaged(ctx context.Context, managerID uuid.UUID) ([]*user.User, error)

	// UpdateManager sets or clears the manager of a user.
	UpdateManager(ctx context.Context, id uuid.UUID, managerID *uuid.UUID) error

	// DetachManaged clears the manager of every player owned by managerID.
	DetachManaged(ctx context.Context, managerID uuid.UUID) error

	// UpdateGateway stores the sealed payment gateway credentials of an agent.
	UpdateGateway(ctx context.Context, id uuid.UUID, sealedToken string, enabled bool) error

	// AddBalance increments the balance of a user.
	AddBalance(ctx context.Context, id uuid.UUID, amount money.Amount) error

	// SubtractBalanceIfSufficient decrements the balance only when it covers
	// amount. It reports false when the guard did not match.
	SubtractBalanceIfSufficient(ctx context.Context, id uuid.UUID, amount money.Amount) (bool, error)

	// Delete deletes a user by its ID.
	Delete(ctx context.Context, id uuid.UUID) error
}
