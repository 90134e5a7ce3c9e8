package reservation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	store, err := NewRedisStoreFromURL(url, "test:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ok, err := store.Reserve(ctx, "surcharge:a:5000.37", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Reserve(ctx, "surcharge:a:5000.37", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Release(ctx, "surcharge:a:5000.37"))
	ok, err = store.Reserve(ctx, "surcharge:a:5000.37", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
