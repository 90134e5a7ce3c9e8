package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/amirasaad/chipload/pkg/config"
	"github.com/amirasaad/chipload/pkg/domain/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func setupRedisBus(t *testing.T) *RedisEventBus {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	bus, err := NewWithRedis(&config.Redis{
		URL:         url,
		KeyPrefix:   "test:",
		DialTimeout: 5 * time.Second,
	}, "test-group", nil)
	require.NoError(t, err)
	bus.block = 200 * time.Millisecond
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

func TestRedisBusHandlerReceivesEvent(t *testing.T) {
	bus := setupRedisBus(t)

	received := make(chan *events.TransactionSettled, 1)
	bus.Register(events.EventTypeTransactionSettled, func(_ context.Context, e events.Event) error {
		received <- e.(*events.TransactionSettled)
		return nil
	})

	id := uuid.New()
	require.NoError(t, bus.Emit(context.Background(), events.TransactionSettled{
		TransactionID: id,
		Decision:      "COMPLETED",
		Amount:        500037,
		Source:        events.SourceMatcher,
		PaymentID:     "mp-1",
	}))

	select {
	case got := <-received:
		assert.Equal(t, id, got.TransactionID)
		assert.EqualValues(t, 500037, got.Amount)
		assert.Equal(t, "mp-1", got.PaymentID)
	case <-time.After(10 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestRedisBusFailedHandlerGoesToDLQ(t *testing.T) {
	bus := setupRedisBus(t)

	done := make(chan struct{}, 1)
	bus.Register(events.EventTypeTransactionCreated, func(context.Context, events.Event) error {
		done <- struct{}{}
		return assert.AnError
	})
	require.NoError(t, bus.Emit(context.Background(), events.TransactionCreated{TransactionID: uuid.New()}))

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("event not delivered")
	}
	assert.Eventually(t, func() bool {
		n, err := bus.client.XLen(context.Background(), bus.dlq(events.EventTypeTransactionCreated)).Result()
		return err == nil && n == 1
	}, 5*time.Second, 50*time.Millisecond)
}
