package initializer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/amirasaad/chipload/infra"
	infra_eventbus "github.com/amirasaad/chipload/infra/eventbus"
	"github.com/amirasaad/chipload/infra/provider/mercadopago"
	"github.com/amirasaad/chipload/infra/provider/mockfeed"
	"github.com/amirasaad/chipload/infra/provider/stripefeed"
	infra_repository "github.com/amirasaad/chipload/infra/repository"
	infra_reservation "github.com/amirasaad/chipload/infra/reservation"
	"github.com/amirasaad/chipload/pkg/config"
	"github.com/amirasaad/chipload/pkg/eventbus"
	"github.com/amirasaad/chipload/pkg/metrics"
	"github.com/amirasaad/chipload/pkg/provider/paymentfeed"
	"github.com/amirasaad/chipload/pkg/reservation"
	"github.com/amirasaad/chipload/pkg/secret"
)

// InitializeDependencies initializes all the application dependencies.
// The returned cleanup closes every connection that was opened.
func InitializeDependencies(cfg *config.App) (
	deps config.Deps,
	cleanup func(),
	err error,
) {
	logger := SetupLogger(cfg.Log)
	deps.Logger = logger
	deps.Config = cfg

	var closers []io.Closer
	cleanup = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if cerr := closers[i].Close(); cerr != nil {
				logger.Warn("Failed to close dependency", "error", cerr)
			}
		}
	}
	defer func() {
		if err != nil {
			cleanup()
		}
	}()

	// Initialize database
	db, err := infra.NewDBConnection(cfg.DB, cfg.Env)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		return deps, cleanup, err
	}
	if sqlDB, derr := db.DB(); derr == nil {
		closers = append(closers, sqlDB)
	}
	if cfg.DB.Migrate {
		if err = infra.RunMigrations(db); err != nil {
			return deps, cleanup, fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("Database migrations applied")
	}

	// Initialize unit of work
	deps.Uow = infra_repository.NewUoW(db)

	// Initialize event bus
	bus, err := initEventBus(cfg, logger)
	if err != nil {
		return deps, cleanup, err
	}
	if c, ok := bus.(io.Closer); ok {
		closers = append(closers, c)
	}
	deps.EventBus = bus

	store, err := initReservations(cfg, logger)
	if err != nil {
		return deps, cleanup, err
	}
	if c, ok := store.(io.Closer); ok {
		closers = append(closers, c)
	}
	deps.Reservations = store

	deps.PaymentFeed, err = initPaymentFeed(cfg, logger)
	if err != nil {
		return deps, cleanup, err
	}

	deps.Sealer, err = secret.NewSealerFromBase64(cfg.Secrets.GatewayTokenKey)
	if err != nil {
		return deps, cleanup, fmt.Errorf("failed to initialize gateway token sealer: %w", err)
	}
	if !deps.Sealer.Enabled() {
		logger.Warn("SECRETS_GATEWAY_TOKEN_KEY is not set, gateway tokens are stored in clear")
	}

	deps.Metrics = metrics.New()
	return deps, cleanup, nil
}

// initEventBus selects the bus driver. Misconfiguration is an error, while an
// unreachable broker falls back to the in-process bus so the API stays up.
func initEventBus(cfg *config.App, logger *slog.Logger) (eventbus.Bus, error) {
	driver := ""
	if cfg.EventBus != nil {
		driver = cfg.EventBus.Driver
	}

	switch driver {
	case "", "memory":
		return infra_eventbus.NewWithMemory(logger), nil
	case "redis":
		if cfg.Redis == nil || cfg.Redis.URL == "" {
			return nil, errors.New("event bus driver redis requires REDIS_URL")
		}
		bus, err := infra_eventbus.NewWithRedis(cfg.Redis, groupID(cfg), logger)
		if err != nil {
			logger.Warn("Redis event bus unavailable, falling back to memory", "error", err)
			return infra_eventbus.NewWithMemory(logger), nil
		}
		logger.Info("Event bus initialized", "driver", "redis")
		return bus, nil
	case "kafka":
		if cfg.Kafka == nil || len(cfg.Kafka.Brokers) == 0 {
			return nil, errors.New("event bus driver kafka requires KAFKA_BROKERS")
		}
		bus, err := infra_eventbus.NewWithKafka(cfg.Kafka, logger)
		if err != nil {
			logger.Warn("Kafka event bus unavailable, falling back to memory", "error", err)
			return infra_eventbus.NewWithMemory(logger), nil
		}
		logger.Info("Event bus initialized", "driver", "kafka")
		return bus, nil
	default:
		return nil, fmt.Errorf("unsupported event bus driver %q", driver)
	}
}

func groupID(cfg *config.App) string {
	if cfg.Kafka != nil && cfg.Kafka.GroupID != "" {
		return cfg.Kafka.GroupID
	}
	return "chipload"
}

func initReservations(cfg *config.App, logger *slog.Logger) (reservation.Store, error) {
	driver := ""
	if cfg.Reservation != nil {
		driver = cfg.Reservation.Driver
	}

	switch driver {
	case "", "memory":
		return infra_reservation.NewMemoryStore(), nil
	case "redis":
		if cfg.Redis == nil || cfg.Redis.URL == "" {
			return nil, errors.New("reservation driver redis requires REDIS_URL")
		}
		store, err := infra_reservation.NewRedisStoreFromURL(cfg.Redis.URL, cfg.Redis.KeyPrefix, logger)
		if err != nil {
			// Surcharges stay unique within this replica only.
			logger.Warn("Redis reservation store unavailable, falling back to memory", "error", err)
			return infra_reservation.NewMemoryStore(), nil
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported reservation driver %q", driver)
	}
}

func initPaymentFeed(cfg *config.App, logger *slog.Logger) (paymentfeed.Feed, error) {
	switch cfg.PaymentFeed.Provider {
	case "", "mercadopago":
		return mercadopago.New(cfg.PaymentFeed, logger), nil
	case "stripe":
		return stripefeed.New(cfg.PaymentFeed, logger), nil
	case "mock":
		logger.Warn("Using mock payment feed, no real payments will be matched")
		return mockfeed.New(), nil
	default:
		return nil, fmt.Errorf("unsupported payment feed provider %q", cfg.PaymentFeed.Provider)
	}
}
