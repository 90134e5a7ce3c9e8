package matcher_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amirasaad/chipload/pkg/domain"
	"github.com/amirasaad/chipload/pkg/domain/transaction"
	"github.com/amirasaad/chipload/pkg/money"
	"github.com/amirasaad/chipload/pkg/service/matcher"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeper_RunOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sweeper := matcher.NewSweeper(f.matcher, f.env.Uow, "@every 1h", 24*time.Hour, f.env.Metrics, nil)

	paid := f.deposit(t, 100)
	unpaid := f.deposit(t, 200)
	f.env.Feed.Approve(gatewayToken, "mp-sweep", decimal.RequireFromString("100.37"), time.Now())

	settled, err := sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)
	assert.Equal(t, money.New(100, 0), f.env.Balance(t, f.player.ID))

	stored, err := f.env.Uow.TransactionRepository().Get(ctx, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusCompleted, stored.Status)
	stored, err = f.env.Uow.TransactionRepository().Get(ctx, unpaid.ID)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusPending, stored.Status)

	settled, err = sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, settled)
}

func TestSweeper_FeedErrorsAreCollected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sweeper := matcher.NewSweeper(f.matcher, f.env.Uow, "@every 1h", 24*time.Hour, f.env.Metrics, nil)

	f.deposit(t, 100)
	f.env.Feed.FailNext(errors.New("gateway down"))

	settled, err := sweeper.RunOnce(ctx)
	assert.Zero(t, settled)
	assert.ErrorIs(t, err, domain.ErrExternalFeed)
}

func TestSweeper_Schedule(t *testing.T) {
	f := newFixture(t)

	bad := matcher.NewSweeper(f.matcher, f.env.Uow, "every now and then", time.Hour, nil, nil)
	assert.Error(t, bad.Start())

	good := matcher.NewSweeper(f.matcher, f.env.Uow, "@every 1h", time.Hour, nil, nil)
	require.NoError(t, good.Start())
	good.Stop()
}
