package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/amirasaad/chipload/pkg/domain/events"
	"github.com/amirasaad/chipload/pkg/eventbus"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func encode(event events.Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	b, err := json.Marshal(envelope{Type: event.Type(), Payload: data})
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return b, nil
}

// decode turns a wire envelope back into a typed event.
func decode(raw []byte, factories map[string]func() events.Event) (events.Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("envelope without type")
	}
	constructor, ok := factories[env.Type]
	if !ok {
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
	evt := constructor()
	if err := json.Unmarshal(env.Payload, evt); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
	}
	return evt, nil
}

// dispatch runs every handler and reports whether all of them succeeded.
func dispatch(
	ctx context.Context,
	logger *slog.Logger,
	evt events.Event,
	handlers []eventbus.HandlerFunc,
) bool {
	ok := true
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					ok = false
					logger.Error("handler panic recovered", "panic", r, "event_type", evt.Type())
				}
			}()
			if err := h(ctx, evt); err != nil {
				ok = false
				logger.Error("handler error", "error", err, "event_type", evt.Type())
			}
		}()
	}
	return ok
}

// channelName derives a transport-level name such as "chipload.transaction.created".
func channelName(prefix string, eventType events.EventType) string {
	return prefix + strings.ToLower(string(eventType))
}
