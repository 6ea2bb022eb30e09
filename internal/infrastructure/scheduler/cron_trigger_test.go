package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/duesledger/backend/internal/domain/dues"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticTenants struct {
	ids []uuid.UUID
	err error
}

func (s staticTenants) FindTenantIDs(context.Context) ([]uuid.UUID, error) { return s.ids, s.err }

func TestNewCronTrigger_RejectsBadSchedule(t *testing.T) {
	_, err := NewCronTrigger(CronTriggerConfig{Schedule: "every month"}, nil, staticTenants{}, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewCronTrigger(CronTriggerConfig{Schedule: "0 1 1 * *"}, nil, staticTenants{}, zap.NewNop())
	assert.NoError(t, err)
}

func TestCronTrigger_TriggerNow(t *testing.T) {
	var mu sync.Mutex
	var seen []Job
	done := make(chan struct{}, 4)
	s := startScheduler(t, testConfig(), funcExecutor(func(_ context.Context, job *Job) error {
		mu.Lock()
		seen = append(seen, *job)
		mu.Unlock()
		done <- struct{}{}
		return nil
	}))

	tenants := []uuid.UUID{uuid.New(), uuid.New()}
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	trigger, err := NewCronTrigger(CronTriggerConfig{Schedule: "0 1 1 * *", Location: kolkata}, s, staticTenants{ids: tenants}, zap.NewNop())
	require.NoError(t, err)
	// 20:00 UTC on Jan 31 is already Feb 1 in Kolkata
	trigger.now = func() time.Time { return time.Date(2025, 1, 31, 20, 0, 0, 0, time.UTC) }

	require.NoError(t, trigger.TriggerNow(context.Background()))
	for range tenants {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("job did not run")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	got := []uuid.UUID{seen[0].TenantID, seen[1].TenantID}
	assert.ElementsMatch(t, tenants, got)
	for _, j := range seen {
		assert.Equal(t, dues.Period{Month: 2, Year: 2025}, j.Period)
	}
}

func TestCronTrigger_TenantLookupError(t *testing.T) {
	s := startScheduler(t, testConfig(), funcExecutor(func(context.Context, *Job) error { return nil }))
	trigger, err := NewCronTrigger(CronTriggerConfig{Schedule: "@monthly"}, s, staticTenants{err: errors.New("db down")}, zap.NewNop())
	require.NoError(t, err)

	assert.ErrorContains(t, trigger.TriggerNow(context.Background()), "db down")
}

func TestCronTrigger_StartStop(t *testing.T) {
	s := startScheduler(t, testConfig(), funcExecutor(func(context.Context, *Job) error { return nil }))
	trigger, err := NewCronTrigger(CronTriggerConfig{Schedule: "0 1 1 * *"}, s, staticTenants{}, zap.NewNop())
	require.NoError(t, err)

	assert.True(t, trigger.NextRun().IsZero())
	require.NoError(t, trigger.Start(context.Background()))
	next := trigger.NextRun()
	assert.Equal(t, 1, next.Day())
	assert.Equal(t, 1, next.Hour())
	assert.True(t, next.After(time.Now()))

	require.NoError(t, trigger.Stop(context.Background()))
	assert.True(t, trigger.NextRun().IsZero())
}
