package dues

import (
	"context"
	"errors"
	"time"

	"github.com/duesledger/backend/internal/domain/shared"
	"github.com/duesledger/backend/internal/infrastructure/telemetry"
)

// DefaultMaxRetries bounds retries after an optimistic lock conflict
const DefaultMaxRetries = 3

const retryBackoff = 15 * time.Millisecond

// retryOnConflict reruns fn while it fails with OPTIMISTIC_LOCK_ERROR, up
// to maxRetries extra attempts. Any other error is returned immediately.
func retryOnConflict(ctx context.Context, maxRetries int, operation string, metrics *telemetry.LedgerMetrics, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !errors.Is(err, shared.ErrOptimisticLock) || attempt >= maxRetries {
			return err
		}
		metrics.RecordLockRetry(ctx, operation)

		timer := time.NewTimer(retryBackoff * time.Duration(attempt+1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
