// Package destination manages the accounts players are told to transfer to.
package destination

import (
	"context"
	"log/slog"

	"github.com/amirasaad/chipload/pkg/config"
	"github.com/amirasaad/chipload/pkg/domain"
	"github.com/amirasaad/chipload/pkg/domain/destination"
	"github.com/amirasaad/chipload/pkg/domain/user"
	"github.com/amirasaad/chipload/pkg/repository"
	"github.com/google/uuid"
)

// Service provides admin CRUD over payment destinations.
type Service struct {
	uow    repository.UnitOfWork
	logger *slog.Logger
}

func New(deps config.Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{uow: deps.Uow, logger: logger.With("service", "destination")}
}

// Input carries the editable fields of a destination.
type Input struct {
	BankName string
	Alias    string
	CBU      string
	Active   bool
}

func (s *Service) Create(ctx context.Context, actor user.Actor, in Input) (*destination.Destination, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	d, err := destination.New(in.BankName, in.Alias, in.CBU, in.Active)
	if err != nil {
		return nil, err
	}
	if err := s.uow.DestinationRepository().Create(ctx, d); err != nil {
		return nil, err
	}
	s.logger.Info("destination created", "id", d.ID, "bank", d.BankName)
	return d, nil
}

// Update replaces every editable field of a destination.
func (s *Service) Update(ctx context.Context, actor user.Actor, id uuid.UUID, in Input) (*destination.Destination, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	var d *destination.Destination
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		repo := uow.DestinationRepository()
		current, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		updated, err := destination.New(in.BankName, in.Alias, in.CBU, in.Active)
		if err != nil {
			return err
		}
		updated.ID, updated.CreatedAt = current.ID, current.CreatedAt
		d = updated
		return repo.Update(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("destination updated", "id", d.ID, "active", d.Active)
	return d, nil
}

func (s *Service) Delete(ctx context.Context, actor user.Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	if err := s.uow.DestinationRepository().Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("destination deleted", "id", id)
	return nil
}

// List returns every destination, including inactive ones. Admin only.
func (s *Service) List(ctx context.Context, actor user.Actor) ([]*destination.Destination, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return s.uow.DestinationRepository().List(ctx, false)
}

// ListActive returns the destinations shown to players.
func (s *Service) ListActive(ctx context.Context) ([]*destination.Destination, error) {
	return s.uow.DestinationRepository().List(ctx, true)
}
