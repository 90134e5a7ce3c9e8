// Package app wires the services of the chip ledger around a set of
// infrastructure dependencies.
package app

import (
	"log/slog"

	"github.com/amirasaad/chipload/pkg/config"
	"github.com/amirasaad/chipload/pkg/domain/events"
	"github.com/amirasaad/chipload/pkg/handler"
	"github.com/amirasaad/chipload/pkg/service/auth"
	"github.com/amirasaad/chipload/pkg/service/destination"
	"github.com/amirasaad/chipload/pkg/service/ledger"
	"github.com/amirasaad/chipload/pkg/service/matcher"
	"github.com/amirasaad/chipload/pkg/service/user"
)

type App struct {
	Deps               config.Deps
	Config             *config.App
	AuthService        *auth.Service
	UserService        *user.Service
	LedgerService      *ledger.Service
	MatcherService     *matcher.Service
	DestinationService *destination.Service
	Sweeper            *matcher.Sweeper
}

// New builds every service. It fails only on invalid routing configuration.
func New(deps config.Deps) (*App, error) {
	cfg := deps.Config
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	managerID, err := cfg.Routing.ManagerID()
	if err != nil {
		return nil, err
	}

	a := &App{Deps: deps, Config: cfg}
	a.setupEventBus()

	var issuer ledger.SurchargeIssuer
	if deps.Reservations != nil {
		issuer = matcher.NewIssuer(deps.Reservations, matcher.IssuerConfig{
			TTL:         cfg.Matcher.SurchargeTTL,
			MaxAttempts: cfg.Matcher.SurchargeAttempts,
		}, deps.Metrics, deps.Logger)
	}

	a.AuthService = auth.New(deps.Uow, cfg.Auth.Jwt, deps.Logger)
	a.UserService = user.New(deps, user.DefaultManager{ID: managerID})
	a.LedgerService = ledger.NewService(deps, issuer)
	a.MatcherService = matcher.NewService(deps, a.LedgerService, matcher.OptionsFromConfig(cfg.Matcher))
	a.DestinationService = destination.New(deps)
	if cfg.Matcher.SweepEnabled {
		a.Sweeper = matcher.NewSweeper(
			a.MatcherService,
			deps.Uow,
			cfg.Matcher.SweepSchedule,
			cfg.Matcher.MaxAge,
			deps.Metrics,
			deps.Logger,
		)
	}
	return a, nil
}

// setupEventBus registers the audit trail on both ledger events.
func (a *App) setupEventBus() {
	bus := a.Deps.EventBus
	if bus == nil {
		return
	}
	tracker := handler.NewIdempotencyTracker()
	audit := handler.WithIdempotency(
		handler.Audit(a.Deps.Logger),
		tracker,
		handler.TransactionKey,
		"audit",
		a.Deps.Logger,
	)
	bus.Register(events.EventTypeTransactionCreated, audit)
	bus.Register(events.EventTypeTransactionSettled, audit)
}
