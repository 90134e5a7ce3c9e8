package matcher_test

import (
	"context"
	"testing"
	"time"

	"github.com/amirasaad/chipload/infra/reservation"
	"github.com/amirasaad/chipload/pkg/domain"
	"github.com/amirasaad/chipload/pkg/money"
	"github.com/amirasaad/chipload/pkg/service/matcher"
	"github.com/amirasaad/chipload/pkg/testutils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequence returns an intn replaying values, then repeating the last one.
func sequence(values ...int) func(int) int {
	i := 0
	return func(int) int {
		v := values[i]
		if i < len(values)-1 {
			i++
		}
		return v
	}
}

func TestDeriveExpectedAmount(t *testing.T) {
	base := money.New(5000, 0)
	for n := 0; n < 99; n++ {
		got, err := matcher.DeriveExpectedAmount(base, func(int) int { return n })
		require.NoError(t, err)
		assert.Equal(t, base, got.Floor())
		assert.GreaterOrEqual(t, int64(got), int64(base)+1)
		assert.LessOrEqual(t, int64(got), int64(base)+99)
	}

	for i := 0; i < 1000; i++ {
		got, err := matcher.DeriveExpectedAmount(base, nil)
		require.NoError(t, err)
		assert.Equal(t, base, got.Floor())
		assert.True(t, got.Cents() >= 1 && got.Cents() <= 99, "cents out of range: %d", got.Cents())
	}
}

func TestDeriveExpectedAmount_RejectsFractionalBase(t *testing.T) {
	_, err := matcher.DeriveExpectedAmount(money.New(5000, 50), nil)
	assert.ErrorIs(t, err, matcher.ErrFractionalBase)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = matcher.DeriveExpectedAmount(0, nil)
	assert.ErrorIs(t, err, matcher.ErrFractionalBase)
}

func TestIssuer_SkipsReservedValues(t *testing.T) {
	ctx := context.Background()
	env := testutils.NewEnv(t)
	store := reservation.NewMemoryStore()
	agentID := uuid.New()

	issuer := matcher.NewIssuer(store, matcher.IssuerConfig{Intn: sequence(36, 36, 41)}, env.Metrics, nil)
	first, err := issuer.Issue(ctx, env.Uow, agentID, money.New(5000, 0))
	require.NoError(t, err)
	assert.Equal(t, money.New(5000, 37), first)

	issuer = matcher.NewIssuer(store, matcher.IssuerConfig{Intn: sequence(36, 36, 41)}, env.Metrics, nil)
	second, err := issuer.Issue(ctx, env.Uow, agentID, money.New(5000, 0))
	require.NoError(t, err)
	assert.Equal(t, money.New(5000, 42), second)

	// Other agents have their own space.
	other, err := issuer.Issue(ctx, env.Uow, uuid.New(), money.New(5000, 0))
	require.NoError(t, err)
	assert.Equal(t, money.New(5000, 42), other)
}

func TestIssuer_Exhausted(t *testing.T) {
	ctx := context.Background()
	env := testutils.NewEnv(t)
	store := reservation.NewMemoryStore()
	agentID := uuid.New()
	cfg := matcher.IssuerConfig{MaxAttempts: 3, TTL: time.Minute, Intn: func(int) int { return 0 }}

	issuer := matcher.NewIssuer(store, cfg, env.Metrics, nil)
	_, err := issuer.Issue(ctx, env.Uow, agentID, money.New(10, 0))
	require.NoError(t, err)

	_, err = issuer.Issue(ctx, env.Uow, agentID, money.New(10, 0))
	assert.ErrorIs(t, err, domain.ErrSurchargeExhausted)

	require.NoError(t, issuer.Release(ctx, agentID, money.New(10, 1)))
	got, err := issuer.Issue(ctx, env.Uow, agentID, money.New(10, 0))
	require.NoError(t, err)
	assert.Equal(t, money.New(10, 1), got)
}
