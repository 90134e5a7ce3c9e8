package handler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/amirasaad/chipload/pkg/domain/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithIdempotency(t *testing.T) {
	ctx := context.Background()
	evt := events.TransactionSettled{TransactionID: uuid.New(), Decision: "COMPLETED"}

	t.Run("duplicates are skipped", func(t *testing.T) {
		var calls atomic.Int32
		wrapped := WithIdempotency(func(context.Context, events.Event) error {
			calls.Add(1)
			return nil
		}, NewIdempotencyTracker(), TransactionKey, "test", nil)

		require.NoError(t, wrapped(ctx, evt))
		require.NoError(t, wrapped(ctx, &evt))
		assert.EqualValues(t, 1, calls.Load())
	})

	t.Run("failures are retried", func(t *testing.T) {
		var calls atomic.Int32
		wrapped := WithIdempotency(func(context.Context, events.Event) error {
			if calls.Add(1) == 1 {
				return errors.New("transient")
			}
			return nil
		}, NewIdempotencyTracker(), TransactionKey, "test", nil)

		assert.Error(t, wrapped(ctx, evt))
		require.NoError(t, wrapped(ctx, evt))
		require.NoError(t, wrapped(ctx, evt))
		assert.EqualValues(t, 2, calls.Load())
	})

	t.Run("concurrent deliveries run once", func(t *testing.T) {
		var calls atomic.Int32
		wrapped := WithIdempotency(func(context.Context, events.Event) error {
			calls.Add(1)
			return nil
		}, NewIdempotencyTracker(), TransactionKey, "test", nil)

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, wrapped(ctx, evt))
			}()
		}
		wg.Wait()
		assert.EqualValues(t, 1, calls.Load())
	})

	t.Run("events without key always run", func(t *testing.T) {
		var calls atomic.Int32
		wrapped := WithIdempotency(func(context.Context, events.Event) error {
			calls.Add(1)
			return nil
		}, NewIdempotencyTracker(), func(events.Event) string { return "" }, "test", nil)

		require.NoError(t, wrapped(ctx, evt))
		require.NoError(t, wrapped(ctx, evt))
		assert.EqualValues(t, 2, calls.Load())
	})
}

func TestTransactionKey(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, "Transaction.Created:"+id.String(), TransactionKey(&events.TransactionCreated{TransactionID: id}))
	assert.Equal(t, "Transaction.Settled:"+id.String(), TransactionKey(events.TransactionSettled{TransactionID: id}))
	assert.NotEqual(t,
		TransactionKey(events.TransactionCreated{TransactionID: id}),
		TransactionKey(events.TransactionSettled{TransactionID: id}),
	)
}

func TestAudit(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := Audit(logger)

	require.NoError(t, h(context.Background(), &events.TransactionSettled{
		TransactionID: uuid.New(),
		Decision:      "COMPLETED",
		Amount:        500000,
		Source:        events.SourceMatcher,
		PaymentID:     "mp-77",
	}))
	out := buf.String()
	assert.Contains(t, out, `"msg":"transaction settled"`)
	assert.Contains(t, out, `"amount":"5000.00"`)
	assert.Contains(t, out, `"payment_id":"mp-77"`)
	assert.Contains(t, out, `"component":"audit"`)
}
