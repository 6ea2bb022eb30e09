package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers client-supplied request keys so that a retried
// request replays the first outcome instead of being applied twice.
type IdempotencyStore interface {
	// Reserve claims key for ttl. It returns false when the key is already
	// reserved or completed.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Complete stores the result reference for a reserved key.
	Complete(ctx context.Context, key, result string, ttl time.Duration) error

	// Lookup returns the stored result. found is true when the key exists;
	// result is empty while the original request is still in flight.
	Lookup(ctx context.Context, key string) (result string, found bool, err error)

	// Release drops a reservation so a failed request can be retried.
	Release(ctx context.Context, key string) error

	// Close releases resources held by the store
	Close() error
}

// IdempotencyConfig holds configuration for request de-duplication
type IdempotencyConfig struct {
	TTL     time.Duration
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
