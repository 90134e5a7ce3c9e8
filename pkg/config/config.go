package config

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DB struct {
	Url     string `envconfig:"URL"`
	Migrate bool   `envconfig:"MIGRATE" default:"true"`
}

type Jwt struct {
	Secret string        `envconfig:"SECRET" required:"true"`
	Expiry time.Duration `envconfig:"EXPIRY" default:"24h"`
}

type Auth struct {
	Jwt *Jwt `envconfig:"JWT"`
}

type Redis struct {
	URL          string        `envconfig:"URL" default:"redis://localhost:6379/0"`
	KeyPrefix    string        `envconfig:"KEY_PREFIX" default:"chipload:"`
	PoolSize     int           `envconfig:"POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
}

type Kafka struct {
	Brokers     []string `envconfig:"BROKERS" default:"localhost:9092"`
	TopicPrefix string   `envconfig:"TOPIC_PREFIX" default:"chipload."`
	GroupID     string   `envconfig:"GROUP_ID" default:"chipload"`
}

type RateLimit struct {
	MaxRequests int           `envconfig:"MAX_REQUESTS" default:"100"`
	Window      time.Duration `envconfig:"WINDOW" default:"1m"`
}

// Routing selects the manager assigned to self-registered players.
type Routing struct {
	DefaultManagerID string `envconfig:"DEFAULT_MANAGER_ID"`
}

// ManagerID parses DefaultManagerID. An empty value means new players start unassigned.
func (r *Routing) ManagerID() (*uuid.UUID, error) {
	if r == nil || r.DefaultManagerID == "" {
		return nil, nil
	}
	id, err := uuid.Parse(r.DefaultManagerID)
	if err != nil {
		return nil, fmt.Errorf("ROUTING_DEFAULT_MANAGER_ID: %w", err)
	}
	return &id, nil
}

type Matcher struct {
	LookbackSkew      time.Duration   `envconfig:"LOOKBACK_SKEW" default:"5m"`
	Epsilon           decimal.Decimal `envconfig:"EPSILON" default:"0.001"`
	SurchargeTTL      time.Duration   `envconfig:"SURCHARGE_TTL" default:"24h"`
	SurchargeAttempts int             `envconfig:"SURCHARGE_ATTEMPTS" default:"20"`
	SweepEnabled      bool            `envconfig:"SWEEP_ENABLED" default:"true"`
	SweepSchedule     string          `envconfig:"SWEEP_SCHEDULE" default:"@every 30s"`
	MaxAge            time.Duration   `envconfig:"MAX_AGE" default:"24h"`
}

type PaymentFeed struct {
	Provider string        `envconfig:"PROVIDER" default:"mercadopago"`
	BaseURL  string        `envconfig:"BASE_URL"`
	Timeout  time.Duration `envconfig:"TIMEOUT" default:"10s"`
}

type Secrets struct {
	// GatewayTokenKey is a base64 encoded 32 byte key. Empty stores tokens in clear.
	GatewayTokenKey string `envconfig:"GATEWAY_TOKEN_KEY"`
}

type EventBus struct {
	Driver string `envconfig:"DRIVER" default:"memory"`
}

type Reservation struct {
	Driver string `envconfig:"DRIVER" default:"memory"`
}

type Log struct {
	Level      int    `envconfig:"LEVEL" default:"0"`
	Format     string `envconfig:"FORMAT" default:"json"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"2006-01-02 15:04:05"`
	Prefix     string `envconfig:"PREFIX" default:"[chipload]"`
}

type Server struct {
	Scheme string `envconfig:"SCHEME" default:"http"`
	Host   string `envconfig:"HOST" default:"localhost"`
	Port   int    `envconfig:"PORT" default:"3000"`
}

type App struct {
	Env         string       `envconfig:"APP_ENV" default:"development"`
	Server      *Server      `envconfig:"SERVER"`
	Log         *Log         `envconfig:"LOG"`
	DB          *DB          `envconfig:"DATABASE"`
	Auth        *Auth        `envconfig:"AUTH"`
	Redis       *Redis       `envconfig:"REDIS"`
	Kafka       *Kafka       `envconfig:"KAFKA"`
	RateLimit   *RateLimit   `envconfig:"RATE_LIMIT"`
	Routing     *Routing     `envconfig:"ROUTING"`
	Matcher     *Matcher     `envconfig:"MATCHER"`
	PaymentFeed *PaymentFeed `envconfig:"PAYMENT_FEED"`
	Secrets     *Secrets     `envconfig:"SECRETS"`
	EventBus    *EventBus    `envconfig:"EVENTBUS"`
	Reservation *Reservation `envconfig:"RESERVATION"`
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *App) Validate() error {
	switch c.EventBus.Driver {
	case "memory", "redis", "kafka":
	default:
		return fmt.Errorf("EVENTBUS_DRIVER: unsupported driver %q", c.EventBus.Driver)
	}
	switch c.Reservation.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("RESERVATION_DRIVER: unsupported driver %q", c.Reservation.Driver)
	}
	switch c.PaymentFeed.Provider {
	case "mercadopago", "stripe", "mock":
	default:
		return fmt.Errorf("PAYMENT_FEED_PROVIDER: unsupported provider %q", c.PaymentFeed.Provider)
	}
	if c.Matcher.SurchargeAttempts < 1 {
		return fmt.Errorf("MATCHER_SURCHARGE_ATTEMPTS must be positive")
	}
	if _, err := c.Routing.ManagerID(); err != nil {
		return err
	}
	return nil
}
