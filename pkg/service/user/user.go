// Package user provides business logic for user management operations.
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/amirasaad/chipload/pkg/config"
	"github.com/amirasaad/chipload/pkg/domain"
	"github.com/amirasaad/chipload/pkg/domain/user"
	"github.com/amirasaad/chipload/pkg/repository"
	"github.com/amirasaad/chipload/pkg/secret"
	"github.com/google/uuid"
)

const listLimit = 500

var (
	// ErrNotManager is returned when a manager id points at a player.
	ErrNotManager = fmt.Errorf("%w: manager must be an agent or admin", domain.ErrValidation)
	// ErrMissingGatewayToken is returned when enabling verification without credentials.
	ErrMissingGatewayToken = fmt.Errorf("%w: access token is required", domain.ErrValidation)
)

// RoutingPolicy picks the manager of a newly registered player.
type RoutingPolicy interface {
	ManagerFor(ctx context.Context, uow repository.UnitOfWork) (*uuid.UUID, error)
}

// DefaultManager assigns every new player to one configured manager. A nil
// id leaves players unassigned.
type DefaultManager struct {
	ID *uuid.UUID
}

// ManagerFor returns the configured manager when it still exists and may own players.
func (p DefaultManager) ManagerFor(ctx context.Context, uow repository.UnitOfWork) (*uuid.UUID, error) {
	if p.ID == nil {
		return nil, nil
	}
	m, err := uow.UserRepository().Get(ctx, *p.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !m.Role.CanManage() {
		return nil, nil
	}
	return &m.ID, nil
}

// Service provides business logic for user operations.
type Service struct {
	uow     repository.UnitOfWork
	sealer  *secret.Sealer
	routing RoutingPolicy
	logger  *slog.Logger
}

// New creates a Service. routing may be nil, in which case players start unassigned.
func New(deps config.Deps, routing RoutingPolicy) *Service {
	if routing == nil {
		routing = DefaultManager{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{uow: deps.Uow, sealer: deps.Sealer, routing: routing, logger: logger}
}

// RegisterCommand describes a new account.
type RegisterCommand struct {
	Username string
	Role     user.Role
}

// Register creates a user. Anyone may register a player; only admins create
// agents and admins. Players are routed to a manager by the policy.
func (s *Service) Register(ctx context.Context, actor *user.Actor, cmd RegisterCommand) (*user.User, error) {
	log := s.logger.With("handler", "Register", "username", cmd.Username)
	role := cmd.Role
	if role == "" {
		role = user.RolePlayer
	}
	role, err := user.ParseRole(string(role))
	if err != nil {
		return nil, err
	}
	if role != user.RolePlayer && (actor == nil || !actor.IsAdmin()) {
		return nil, domain.ErrForbidden
	}

	var u *user.User
	err = s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		var managerID *uuid.UUID
		if role == user.RolePlayer {
			managerID, err = s.routing.ManagerFor(ctx, uow)
			if err != nil {
				return err
			}
		}
		u, err = user.New(cmd.Username, role, managerID)
		if err != nil {
			return err
		}
		return uow.UserRepository().Create(ctx, u)
	})
	if err != nil {
		log.Warn("registration failed", "error", err)
		return nil, err
	}
	log.Info("user registered", "user_id", u.ID, "role", u.Role, "manager_id", u.ManagerID)
	return u, nil
}

// Get returns a user visible to actor: themselves, a managed player, or anyone for admins.
func (s *Service) Get(ctx context.Context, actor user.Actor, id uuid.UUID) (*user.User, error) {
	u, err := s.uow.UserRepository().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.ID != u.ID && !actor.IsAdmin() && (u.ManagerID == nil || *u.ManagerID != actor.ID) {
		return nil, domain.ErrForbidden
	}
	return u, nil
}

// ListPlayers returns the players managed by an agent, or every player for admins.
func (s *Service) ListPlayers(ctx context.Context, actor user.Actor) ([]*user.User, error) {
	repo := s.uow.UserRepository()
	switch actor.Role {
	case user.RoleAgent:
		return repo.ListManaged(ctx, actor.ID)
	case user.RoleAdmin:
		all, err := repo.List(ctx, 1, listLimit)
		if err != nil {
			return nil, err
		}
		players := make([]*user.User, 0, len(all))
		for _, u := range all {
			if u.Role == user.RolePlayer {
				players = append(players, u)
			}
		}
		return players, nil
	}
	return nil, domain.ErrForbidden
}

// AssignManager moves a player under managerID, or unassigns it when nil.
func (s *Service) AssignManager(ctx context.Context, actor user.Actor, playerID uuid.UUID, managerID *uuid.UUID) error {
	if !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		repo := uow.UserRepository()
		player, err := repo.Get(ctx, playerID)
		if err != nil {
			return err
		}
		if player.Role != user.RolePlayer {
			return fmt.Errorf("%w: only players can be assigned", domain.ErrValidation)
		}
		if managerID != nil {
			m, err := repo.Get(ctx, *managerID)
			if err != nil {
				return err
			}
			if !m.Role.CanManage() {
				return ErrNotManager
			}
		}
		return repo.UpdateManager(ctx, playerID, managerID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("manager assigned", "player_id", playerID, "manager_id", managerID, "by", actor.ID)
	return nil
}

// ConfigureGateway stores the agent's payment gateway credentials. An empty
// token keeps the stored one, so verification can be toggled on its own.
func (s *Service) ConfigureGateway(ctx context.Context, actor user.Actor, accessToken string, enabled bool) error {
	if actor.Role != user.RoleAgent {
		return domain.ErrForbidden
	}
	accessToken = strings.TrimSpace(accessToken)
	return s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		repo := uow.UserRepository()
		agent, err := repo.Get(ctx, actor.ID)
		if err != nil {
			return err
		}
		sealed := agent.GatewayAccessToken
		if accessToken != "" {
			if sealed, err = s.sealer.Seal(accessToken); err != nil {
				return err
			}
		}
		if enabled && sealed == "" {
			return ErrMissingGatewayToken
		}
		if err := repo.UpdateGateway(ctx, agent.ID, sealed, enabled); err != nil {
			return err
		}
		s.logger.Info("gateway configured", "agent_id", agent.ID, "enabled", enabled, "token_rotated", accessToken != "")
		return nil
	})
}

// Delete removes a user together with their transactions. Players they
// managed become unassigned and transactions assigned to them lose their agent.
func (s *Service) Delete(ctx context.Context, actor user.Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	if actor.ID == id {
		return fmt.Errorf("%w: admins cannot delete themselves", domain.ErrValidation)
	}
	err := s.uow.Do(ctx, func(uow repository.UnitOfWork) error {
		if _, err := uow.UserRepository().Get(ctx, id); err != nil {
			return err
		}
		if err := uow.TransactionRepository().DeleteByUser(ctx, id); err != nil {
			return err
		}
		if err := uow.UserRepository().DetachManaged(ctx, id); err != nil {
			return err
		}
		return uow.UserRepository().Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("user deleted", "user_id", id, "by", actor.ID)
	return nil
}
