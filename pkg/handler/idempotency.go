// Package handler holds the event handlers registered on the bus.
package handler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/amirasaad/chipload/pkg/domain/events"
	"github.com/amirasaad/chipload/pkg/eventbus"
	"golang.org/x/sync/singleflight"
)

// KeyExtractor extracts an idempotency key from an event.
type KeyExtractor func(events.Event) string

// IdempotencyTracker tracks processed events by key.
type IdempotencyTracker struct {
	processed sync.Map
	inflight  singleflight.Group
}

func NewIdempotencyTracker() *IdempotencyTracker {
	return &IdempotencyTracker{}
}

// Seen reports whether key was processed successfully.
func (t *IdempotencyTracker) Seen(key string) bool {
	_, ok := t.processed.Load(key)
	return ok
}

// WithIdempotency wraps a handler so each key is handled successfully at most
// once. Redis and Kafka deliver at least once; this absorbs the duplicates.
func WithIdempotency(
	handler eventbus.HandlerFunc,
	tracker *IdempotencyTracker,
	keyExtractor KeyExtractor,
	handlerName string,
	logger *slog.Logger,
) eventbus.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, e events.Event) error {
		key := keyExtractor(e)
		if key == "" {
			return handler(ctx, e)
		}
		if tracker.Seen(key) {
			logger.Debug("event already processed", "handler", handlerName, "event_type", e.Type(), "key", key)
			return nil
		}

		// Concurrent deliveries of one key share the outcome of a single attempt.
		_, err, _ := tracker.inflight.Do(key, func() (any, error) {
			if tracker.Seen(key) {
				return nil, nil
			}
			if err := handler(ctx, e); err != nil {
				return nil, err
			}
			tracker.processed.Store(key, struct{}{})
			return nil, nil
		})
		return err
	}
}

// TransactionKey keys transaction events by type and transaction id.
func TransactionKey(e events.Event) string {
	switch evt := e.(type) {
	case events.TransactionCreated:
		return evt.Type() + ":" + evt.TransactionID.String()
	case *events.TransactionCreated:
		return evt.Type() + ":" + evt.TransactionID.String()
	case events.TransactionSettled:
		return evt.Type() + ":" + evt.TransactionID.String()
	case *events.TransactionSettled:
		return evt.Type() + ":" + evt.TransactionID.String()
	}
	return ""
}
