package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/amirasaad/chipload/pkg/domain"
	"github.com/amirasaad/chipload/pkg/metrics"
	"github.com/amirasaad/chipload/pkg/money"
	"github.com/amirasaad/chipload/pkg/repository"
	"github.com/amirasaad/chipload/pkg/reservation"
	"github.com/google/uuid"
)

const (
	minSurcharge = 1
	maxSurcharge = 99
)

// ErrFractionalBase is returned when an auto-verified deposit carries cents.
// The surcharge occupies the cents, so the base must be a whole amount.
var ErrFractionalBase = fmt.Errorf("%w: auto-verified deposits must be whole amounts", domain.ErrValidation)

// DeriveExpectedAmount adds a random surcharge of 0.01 to 0.99 to a whole base
// amount. intn returns a value in [0, n); nil uses math/rand/v2.
func DeriveExpectedAmount(base money.Amount, intn func(n int) int) (money.Amount, error) {
	if !base.IsPositive() || base.Cents() != 0 {
		return 0, ErrFractionalBase
	}
	if intn == nil {
		intn = rand.IntN
	}
	cents := minSurcharge + intn(maxSurcharge-minSurcharge+1)
	return base + money.Amount(cents), nil
}

// ReservationStore holds short lived claims on expected amounts.
type ReservationStore = reservation.Store

// IssuerConfig tunes surcharge allocation.
type IssuerConfig struct {
	TTL         time.Duration
	MaxAttempts int
	// Intn overrides the random source, for tests.
	Intn func(n int) int
}

// Issuer allocates expected amounts that are unique per agent and base
// amount among pending deposits.
type Issuer struct {
	store   ReservationStore
	cfg     IssuerConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewIssuer creates an Issuer backed by store.
func NewIssuer(store ReservationStore, cfg IssuerConfig, m *metrics.Metrics, logger *slog.Logger) *Issuer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 20
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Issuer{store: store, cfg: cfg, metrics: m, logger: logger}
}

// Issue draws surcharges until one is neither reserved nor held by a pending
// deposit of the same agent, and reserves it.
func (i *Issuer) Issue(
	ctx context.Context,
	uow repository.UnitOfWork,
	agentID uuid.UUID,
	base money.Amount,
) (money.Amount, error) {
	tried := make(map[money.Amount]struct{}, i.cfg.MaxAttempts)
	for attempt := 0; attempt < i.cfg.MaxAttempts; attempt++ {
		expected, err := DeriveExpectedAmount(base, i.cfg.Intn)
		if err != nil {
			return 0, err
		}
		if _, seen := tried[expected]; seen {
			continue
		}
		tried[expected] = struct{}{}

		taken, err := uow.TransactionRepository().ExistsPendingExpected(ctx, agentID, expected)
		if err != nil {
			return 0, err
		}
		if taken {
			i.metrics.RecordSurchargeCollision()
			continue
		}
		ok, err := i.store.Reserve(ctx, reservationKey(agentID, expected), i.cfg.TTL)
		if err != nil {
			return 0, fmt.Errorf("reserve surcharge: %w", err)
		}
		if !ok {
			i.metrics.RecordSurchargeCollision()
			continue
		}
		return expected, nil
	}
	i.logger.Warn("surcharge space exhausted", "agent_id", agentID, "base", base.String())
	return 0, domain.ErrSurchargeExhausted
}

// Release frees the reservation of a settled or abandoned expected amount.
func (i *Issuer) Release(ctx context.Context, agentID uuid.UUID, expected money.Amount) error {
	return i.store.Release(ctx, reservationKey(agentID, expected))
}

func reservationKey(agentID uuid.UUID, expected money.Amount) string {
	return fmt.Sprintf("surcharge:%s:%s", agentID, expected.String())
}
