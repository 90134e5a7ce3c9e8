// Package testutils builds in-memory environments shared by service and
// handler tests.
package testutils

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/amirasaad/chipload/infra"
	infraeventbus "github.com/amirasaad/chipload/infra/eventbus"
	"github.com/amirasaad/chipload/infra/provider/mockfeed"
	infrarepo "github.com/amirasaad/chipload/infra/repository"
	"github.com/amirasaad/chipload/infra/reservation"
	"github.com/amirasaad/chipload/internal/database"
	"github.com/amirasaad/chipload/pkg/config"
	"github.com/amirasaad/chipload/pkg/domain/user"
	"github.com/amirasaad/chipload/pkg/metrics"
	"github.com/amirasaad/chipload/pkg/money"
	"github.com/amirasaad/chipload/pkg/secret"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestJWTSecret signs tokens in handler tests.
const TestJWTSecret = "test-secret"

var sealKey = []byte("0123456789abcdef0123456789abcdef")

// Env is a fully wired set of infrastructure backed by an in-memory database.
type Env struct {
	DB      *gorm.DB
	Uow     *infrarepo.UoW
	Bus     *infraeventbus.MemoryEventBus
	Feed    *mockfeed.Feed
	Store   *reservation.MemoryStore
	Sealer  *secret.Sealer
	Metrics *metrics.Metrics
	Config  *config.App
	Logger  *slog.Logger
}

// NewEnv opens a fresh database and returns an Env around it.
func NewEnv(t testing.TB) *Env {
	t.Helper()
	sealer, err := secret.NewSealer(sealKey)
	require.NoError(t, err)
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	db := database.MustOpen(t)
	return &Env{
		DB:      db,
		Uow:     infrarepo.NewUoW(db),
		Bus:     infraeventbus.NewWithMemory(log),
		Feed:    mockfeed.New(),
		Store:   reservation.NewMemoryStore(),
		Sealer:  sealer,
		Metrics: metrics.New(),
		Config:  TestConfig(),
		Logger:  log,
	}
}

// TestConfig returns the defaults the services expect.
func TestConfig() *config.App {
	return &config.App{
		Env:       "test",
		Server:    &config.Server{Scheme: "http", Host: "localhost", Port: 3000},
		Log:       &config.Log{Format: "text", Prefix: "[chipload]"},
		DB:        &config.DB{},
		Auth:      &config.Auth{Jwt: &config.Jwt{Secret: TestJWTSecret, Expiry: time.Hour}},
		Redis:     &config.Redis{KeyPrefix: "chipload:"},
		Kafka:     &config.Kafka{TopicPrefix: "chipload."},
		RateLimit: &config.RateLimit{MaxRequests: 1000, Window: time.Minute},
		Routing:   &config.Routing{},
		Matcher: &config.Matcher{
			LookbackSkew:      5 * time.Minute,
			Epsilon:           decimal.RequireFromString("0.001"),
			SurchargeTTL:      time.Hour,
			SurchargeAttempts: 20,
			SweepSchedule:     "@every 30s",
			MaxAge:            24 * time.Hour,
		},
		PaymentFeed: &config.PaymentFeed{Provider: "mock", Timeout: time.Second},
		Secrets:     &config.Secrets{},
		EventBus:    &config.EventBus{Driver: "memory"},
		Reservation: &config.Reservation{Driver: "memory"},
	}
}

// Deps returns the dependency bundle services are built from.
func (e *Env) Deps() config.Deps {
	return config.Deps{
		Uow:          e.Uow,
		EventBus:     e.Bus,
		PaymentFeed:  e.Feed,
		Reservations: e.Store,
		Sealer:       e.Sealer,
		Metrics:      e.Metrics,
		Logger:       e.Logger,
		Config:       e.Config,
	}
}

// CreateUser stores a user with the given role and manager.
func (e *Env) CreateUser(t testing.TB, username string, role user.Role, managerID *uuid.UUID) *user.User {
	t.Helper()
	u, err := user.New(username, role, managerID)
	require.NoError(t, err)
	require.NoError(t, e.Uow.UserRepository().Create(context.Background(), u))
	return u
}

// CreateGatewayAgent stores an agent with auto-verification enabled for token.
func (e *Env) CreateGatewayAgent(t testing.TB, username, token string) *user.User {
	t.Helper()
	agent := e.CreateUser(t, username, user.RoleAgent, nil)
	sealed, err := e.Sealer.Seal(token)
	require.NoError(t, err)
	require.NoError(t, e.Uow.UserRepository().UpdateGateway(context.Background(), agent.ID, sealed, true))
	agent.GatewayAccessToken, agent.GatewayEnabled = sealed, true
	return agent
}

// Fund credits a user directly, bypassing the ledger.
func (e *Env) Fund(t testing.TB, id uuid.UUID, amount money.Amount) {
	t.Helper()
	require.NoError(t, e.Uow.UserRepository().AddBalance(context.Background(), id, amount))
}

// Balance reads the stored balance of a user.
func (e *Env) Balance(t testing.TB, id uuid.UUID) money.Amount {
	t.Helper()
	u, err := e.Uow.UserRepository().Get(context.Background(), id)
	require.NoError(t, err)
	return u.Balance
}

// StartPostgres runs a disposable Postgres with the production migrations applied.
func StartPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	container, err := tcpostgres.Run(
		ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("chipload"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, infra.RunMigrations(db))
	return db
}

// MakeRequest runs one request against app. An empty token sends no Authorization header.
func MakeRequest(t testing.TB, app *fiber.App, method, path, body, token string) *http.Response {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}
