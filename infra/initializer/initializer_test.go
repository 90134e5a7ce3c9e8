package initializer

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	infra_eventbus "github.com/amirasaad/chipload/infra/eventbus"
	"github.com/amirasaad/chipload/infra/provider/mercadopago"
	"github.com/amirasaad/chipload/infra/provider/mockfeed"
	"github.com/amirasaad/chipload/infra/provider/stripefeed"
	infra_reservation "github.com/amirasaad/chipload/infra/reservation"
	"github.com/amirasaad/chipload/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitEventBus_DefaultsToMemoryWhenNoExplicitDriver(t *testing.T) {
	cfg := &config.App{
		Redis:    &config.Redis{URL: "redis://localhost:6379/0"},
		EventBus: &config.EventBus{Driver: ""},
	}

	bus, err := initEventBus(cfg, discard())
	require.NoError(t, err)
	require.IsType(t, &infra_eventbus.MemoryEventBus{}, bus)
}

func TestInitEventBus_ExplicitRedisRequiresURL(t *testing.T) {
	cfg := &config.App{
		Redis:    &config.Redis{URL: ""},
		EventBus: &config.EventBus{Driver: "redis"},
	}

	_, err := initEventBus(cfg, discard())
	require.Error(t, err)
}

func TestInitEventBus_RedisConnectionErrorFallsBackToMemory(t *testing.T) {
	cfg := &config.App{
		Redis:    &config.Redis{URL: "redis://127.0.0.1:1"},
		EventBus: &config.EventBus{Driver: "redis"},
	}

	bus, err := initEventBus(cfg, discard())
	require.NoError(t, err)
	require.IsType(t, &infra_eventbus.MemoryEventBus{}, bus)
}

func TestInitEventBus_ExplicitKafkaRequiresBrokers(t *testing.T) {
	cfg := &config.App{
		Kafka:    &config.Kafka{},
		EventBus: &config.EventBus{Driver: "kafka"},
	}

	_, err := initEventBus(cfg, discard())
	require.Error(t, err)
}

func TestInitEventBus_KafkaConnectionErrorFallsBackToMemory(t *testing.T) {
	cfg := &config.App{
		Kafka:    &config.Kafka{Brokers: []string{"127.0.0.1:1"}},
		EventBus: &config.EventBus{Driver: "kafka"},
	}

	bus, err := initEventBus(cfg, discard())
	require.NoError(t, err)
	require.IsType(t, &infra_eventbus.MemoryEventBus{}, bus)
}

func TestInitEventBus_UnsupportedDriverErrors(t *testing.T) {
	cfg := &config.App{
		EventBus: &config.EventBus{Driver: "nope"},
	}

	_, err := initEventBus(cfg, discard())
	require.Error(t, err)
}

func TestInitReservations(t *testing.T) {
	store, err := initReservations(&config.App{Reservation: &config.Reservation{Driver: "memory"}}, discard())
	require.NoError(t, err)
	assert.IsType(t, &infra_reservation.MemoryStore{}, store)

	_, err = initReservations(&config.App{
		Redis:       &config.Redis{},
		Reservation: &config.Reservation{Driver: "redis"},
	}, discard())
	assert.Error(t, err)

	store, err = initReservations(&config.App{
		Redis:       &config.Redis{URL: "redis://127.0.0.1:1"},
		Reservation: &config.Reservation{Driver: "redis"},
	}, discard())
	require.NoError(t, err)
	assert.IsType(t, &infra_reservation.MemoryStore{}, store)

	_, err = initReservations(&config.App{Reservation: &config.Reservation{Driver: "etcd"}}, discard())
	assert.Error(t, err)
}

func TestInitPaymentFeed(t *testing.T) {
	cases := map[string]any{
		"mercadopago": &mercadopago.Feed{},
		"stripe":      &stripefeed.Feed{},
		"mock":        &mockfeed.Feed{},
	}
	for provider, want := range cases {
		t.Run(provider, func(t *testing.T) {
			feed, err := initPaymentFeed(&config.App{PaymentFeed: &config.PaymentFeed{Provider: provider}}, discard())
			require.NoError(t, err)
			assert.IsType(t, want, feed)
		})
	}

	_, err := initPaymentFeed(&config.App{PaymentFeed: &config.PaymentFeed{Provider: "paypal"}}, discard())
	assert.Error(t, err)
}

func TestSetupLogger_Formats(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(&buf, &config.Log{Format: "json", Prefix: "[chipload]"})
	logger.Info("settled", "transaction_id", "abc")
	assert.Contains(t, buf.String(), `"transaction_id":"abc"`)

	buf.Reset()
	logger = setupLogger(&buf, &config.Log{Format: "unknown"})
	logger.Info("settled")
	assert.Contains(t, buf.String(), "settled")
}

func TestInitializeDependencies_RequiresDatabase(t *testing.T) {
	cfg := &config.App{
		Log: &config.Log{Format: "text"},
		DB:  &config.DB{},
	}
	_, cleanup, err := InitializeDependencies(cfg)
	require.Error(t, err)
	require.NotNil(t, cleanup)
	cleanup()
}
