// Command bus_smoketest emits a settlement event through a broker-backed
// event bus and waits for it to come back, to check a local Kafka or Redis.
//
// Usage: go run ./scripts/bus_smoketest -driver kafka
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	infraeventbus "github.com/amirasaad/chipload/infra/eventbus"
	"github.com/amirasaad/chipload/pkg/config"
	"github.com/amirasaad/chipload/pkg/domain/events"
	"github.com/amirasaad/chipload/pkg/eventbus"
	"github.com/amirasaad/chipload/pkg/money"
	"github.com/google/uuid"
)

type closingBus interface {
	eventbus.Bus
	io.Closer
}

func main() {
	driver := flag.String("driver", "kafka", "kafka or redis")
	timeout := flag.Duration("timeout", 30*time.Second, "how long to wait for delivery")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	if err := runSmokeTest(*driver, *timeout, logger); err != nil {
		logger.Error("smoke test failed", "driver", *driver, "error", err)
		os.Exit(1)
	}
	logger.Info("smoke test passed", "driver", *driver)
}

func runSmokeTest(driver string, timeout time.Duration, logger *slog.Logger) error {
	group := "chipload-smoke-" + uuid.NewString()[:8]
	var (
		bus closingBus
		err error
	)
	switch driver {
	case "kafka":
		brokers := strings.TrimSpace(os.Getenv("BROKERS"))
		if brokers == "" {
			brokers = "localhost:9092"
		}
		bus, err = infraeventbus.NewWithKafka(&config.Kafka{
			Brokers:     strings.Split(brokers, ","),
			TopicPrefix: "chipload.smoke.",
			GroupID:     group,
		}, logger)
	case "redis":
		url := strings.TrimSpace(os.Getenv("REDIS_URL"))
		if url == "" {
			url = "redis://localhost:6379/0"
		}
		bus, err = infraeventbus.NewWithRedis(&config.Redis{
			URL:         url,
			KeyPrefix:   "chipload:smoke:",
			DialTimeout: 5 * time.Second,
		}, group, logger)
	default:
		return fmt.Errorf("unknown driver %q", driver)
	}
	if err != nil {
		return err
	}
	defer func() { _ = bus.Close() }()

	sent := events.TransactionSettled{
		TransactionID: uuid.New(),
		UserID:        uuid.New(),
		Kind:          "DEPOSIT",
		Decision:      "COMPLETED",
		Amount:        money.New(5000, 37),
		Source:        events.SourceMatcher,
		PaymentID:     "smoke-" + time.Now().Format(time.RFC3339Nano),
		OccurredAt:    time.Now().UTC(),
	}

	received := make(chan events.TransactionSettled, 1)
	bus.Register(events.EventTypeTransactionSettled, func(_ context.Context, e events.Event) error {
		var got events.TransactionSettled
		switch evt := e.(type) {
		case *events.TransactionSettled:
			got = *evt
		case events.TransactionSettled:
			got = evt
		default:
			return fmt.Errorf("unexpected event %T", e)
		}
		if got.TransactionID == sent.TransactionID {
			select {
			case received <- got:
			default:
			}
		}
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := bus.Emit(ctx, sent); err != nil {
		return err
	}
	logger.Info("emitted", "transaction_id", sent.TransactionID)

	select {
	case got := <-received:
		if got.Amount != sent.Amount || got.PaymentID != sent.PaymentID {
			return fmt.Errorf("payload mismatch: sent %+v, got %+v", sent, got)
		}
		logger.Info("consumed", "transaction_id", got.TransactionID, "amount", got.Amount)
		return nil
	case <-ctx.Done():
		return errors.New("event was not delivered before the timeout")
	}
}
