package config

import (
	"log/slog"

	"github.com/amirasaad/chipload/pkg/eventbus"
	"github.com/amirasaad/chipload/pkg/metrics"
	"github.com/amirasaad/chipload/pkg/provider/paymentfeed"
	"github.com/amirasaad/chipload/pkg/repository"
	"github.com/amirasaad/chipload/pkg/reservation"
	"github.com/amirasaad/chipload/pkg/secret"
)

// Deps holds all infrastructure dependencies for building the app and services.
type Deps struct {
	Uow          repository.UnitOfWork
	EventBus     eventbus.Bus
	PaymentFeed  paymentfeed.Feed
	// Reservations backs surcharge allocation.
	Reservations reservation.Store
	Sealer       *secret.Sealer
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
	Config       *App
}
