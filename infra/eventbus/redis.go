package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/amirasaad/chipload/pkg/config"
	"github.com/amirasaad/chipload/pkg/domain/events"
	"github.com/amirasaad/chipload/pkg/eventbus"
	"github.com/redis/go-redis/v9"
)

// RedisEventBus publishes events to one Redis stream per event type and
// consumes them through a consumer group.
type RedisEventBus struct {
	client    *redis.Client
	prefix    string
	group     string
	consumer  string
	block     time.Duration
	factories map[string]func() events.Event
	logger    *slog.Logger

	mu       sync.RWMutex
	handlers map[events.EventType][]eventbus.HandlerFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWithRedis connects to Redis using cfg and returns a ready bus.
func NewWithRedis(cfg *config.Redis, group string, logger *slog.Logger) (*RedisEventBus, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, fmt.Errorf("redis event bus: url is required")
	}
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis event bus: invalid URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opt.PoolSize = cfg.PoolSize
	}
	opt.DialTimeout = cfg.DialTimeout
	opt.ReadTimeout = cfg.ReadTimeout
	opt.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis event bus: connection failed: %w", err)
	}
	return newRedisBus(client, cfg.KeyPrefix, group, logger), nil
}

func newRedisBus(client *redis.Client, prefix, group string, logger *slog.Logger) *RedisEventBus {
	if logger == nil {
		logger = slog.Default()
	}
	if group == "" {
		group = "chipload"
	}
	host, _ := os.Hostname()
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisEventBus{
		client:    client,
		prefix:    prefix,
		group:     group,
		consumer:  fmt.Sprintf("%s-%d", host, os.Getpid()),
		block:     2 * time.Second,
		factories: events.Factories(),
		logger:    logger.With("bus", "redis"),
		handlers:  make(map[events.EventType][]eventbus.HandlerFunc),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (b *RedisEventBus) stream(eventType events.EventType) string {
	return channelName(b.prefix+"events:", eventType)
}

func (b *RedisEventBus) dlq(eventType events.EventType) string {
	return channelName(b.prefix+"dlq:", eventType)
}

// Emit appends the event to its stream.
func (b *RedisEventBus) Emit(ctx context.Context, event events.Event) error {
	raw, err := encode(event)
	if err != nil {
		return fmt.Errorf("redis event bus: %w", err)
	}
	stream := b.stream(events.EventType(event.Type()))
	if err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{"event": string(raw)},
	}).Err(); err != nil {
		b.logger.Error("failed to emit event", "error", err, "type", event.Type())
		return fmt.Errorf("redis event bus: emit failed: %w", err)
	}
	b.logger.Debug("event emitted", "type", event.Type(), "stream", stream)
	return nil
}

// Register adds a handler. The first handler for a type starts its consumer.
func (b *RedisEventBus) Register(eventType events.EventType, handler eventbus.HandlerFunc) {
	b.mu.Lock()
	first := len(b.handlers[eventType]) == 0
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.mu.Unlock()
	if !first {
		return
	}

	stream := b.stream(eventType)
	err := b.client.XGroupCreateMkStream(b.ctx, stream, b.group, "0").Err()
	if err != nil && !isBusyGroup(err) {
		b.logger.Error("failed to create consumer group", "error", err, "stream", stream)
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.consume(eventType, stream)
	}()
	b.logger.Info("handler registered", "event_type", eventType, "stream", stream, "group", b.group)
}

func (b *RedisEventBus) consume(eventType events.EventType, stream string) {
	for {
		res, err := b.client.XReadGroup(b.ctx, &redis.XReadGroupArgs{
			Group:    b.group,
			Consumer: b.consumer,
			Streams:  []string{stream, ">"},
			Count:    10,
			Block:    b.block,
		}).Result()
		if err != nil {
			if b.ctx.Err() != nil {
				return
			}
			if !errors.Is(err, redis.Nil) {
				b.logger.Error("error reading from stream", "error", err, "stream", stream)
				time.Sleep(time.Second)
			}
			continue
		}
		for _, s := range res {
			for _, msg := range s.Messages {
				b.handle(eventType, stream, msg)
			}
		}
	}
}

func (b *RedisEventBus) handle(eventType events.EventType, stream string, msg redis.XMessage) {
	raw, _ := msg.Values["event"].(string)
	evt, err := decode([]byte(raw), b.factories)
	if err != nil {
		b.logger.Error("dropping undecodable message", "error", err, "stream", stream, "id", msg.ID)
		b.pushToDLQ(eventType, msg.Values)
	} else {
		b.mu.RLock()
		handlers := append([]eventbus.HandlerFunc(nil), b.handlers[eventType]...)
		b.mu.RUnlock()
		if !dispatch(b.ctx, b.logger, evt, handlers) {
			b.pushToDLQ(eventType, msg.Values)
		}
	}
	if err := b.client.XAck(b.ctx, stream, b.group, msg.ID).Err(); err != nil {
		b.logger.Error("failed to acknowledge message", "error", err, "id", msg.ID)
	}
}

func (b *RedisEventBus) pushToDLQ(eventType events.EventType, values map[string]any) {
	dlq := b.dlq(eventType)
	if err := b.client.XAdd(b.ctx, &redis.XAddArgs{Stream: dlq, Values: values}).Err(); err != nil {
		b.logger.Error("failed to push to DLQ", "error", err, "stream", dlq)
		return
	}
	b.logger.Warn("event pushed to DLQ", "stream", dlq)
}

// Close stops consumers and closes the client.
func (b *RedisEventBus) Close() error {
	b.cancel()
	b.wg.Wait()
	return b.client.Close()
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

var _ eventbus.Bus = (*RedisEventBus)(nil)
