// Package reservation defines short lived claims on shared keys.
package reservation

import (
	"context"
	"time"
)

// Store holds claims that expire after a TTL.
type Store interface {
	// Reserve claims key for ttl. It reports false if the key is held.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
