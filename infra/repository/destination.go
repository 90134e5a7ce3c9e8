package repository

import (
	"context"
	"time"

	"github.com/amirasaad/chipload/pkg/domain/destination"
	repo "github.com/amirasaad/chipload/pkg/repository/destination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type destinationRepository struct {
	db *gorm.DB
}

// NewDestinationRepository creates a new payment destination repository.
func NewDestinationRepository(db *gorm.DB) repo.Repository {
	return &destinationRepository{db: db}
}

func (r *destinationRepository) Create(ctx context.Context, d *destination.Destination) error {
	m := mapDestinationToModel(d)
	return WrapError(func() error {
		return r.db.WithContext(ctx).Create(&m).Error
	})
}

func (r *destinationRepository) Get(ctx context.Context, id uuid.UUID) (*destination.Destination, error) {
	var m Destination
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFoundAs(err, destination.ErrDestinationNotFound)
	}
	return mapDestinationToDomain(&m), nil
}

func (r *destinationRepository) Update(ctx context.Context, d *destination.Destination) error {
	d.UpdatedAt = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&Destination{}).
		Where("id = ?", d.ID).
		Updates(map[string]any{
			"bank_name":  d.BankName,
			"alias":      d.Alias,
			"cbu":        d.CBU,
			"active":     d.Active,
			"updated_at": d.UpdatedAt,
		})
	if res.Error != nil {
		return MapGormErrorToDomain(res.Error)
	}
	if res.RowsAffected == 0 {
		return destination.ErrDestinationNotFound
	}
	return nil
}

func (r *destinationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&Destination{}, "id = ?", id)
	if res.Error != nil {
		return MapGormErrorToDomain(res.Error)
	}
	if res.RowsAffected == 0 {
		return destination.ErrDestinationNotFound
	}
	return nil
}

func (r *destinationRepository) List(ctx context.Context, activeOnly bool) ([]*destination.Destination, error) {
	q := r.db.WithContext(ctx).Order("bank_name")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var rows []Destination
	if err := q.Find(&rows).Error; err != nil {
		return nil, MapGormErrorToDomain(err)
	}
	result := make([]*destination.Destination, 0, len(rows))
	for i := range rows {
		result = append(result, mapDestinationToDomain(&rows[i]))
	}
	return result, nil
}

func mapDestinationToModel(d *destination.Destination) Destination {
	return Destination{
		ID:        d.ID,
		BankName:  d.BankName,
		Alias:     d.Alias,
		CBU:       d.CBU,
		Active:    d.Active,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func mapDestinationToDomain(m *Destination) *destination.Destination {
	return &destination.Destination{
		ID:        m.ID,
		BankName:  m.BankName,
		Alias:     m.Alias,
		CBU:       m.CBU,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
