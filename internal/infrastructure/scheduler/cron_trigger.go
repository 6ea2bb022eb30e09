package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/duesledger/backend/internal/domain/dues"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// TenantProvider lists tenants that have active members
type TenantProvider interface {
	FindTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// CronTriggerConfig holds configuration for the cron trigger
type CronTriggerConfig struct {
	// Schedule is a standard five-field cron spec, e.g. "0 1 1 * *"
	Schedule string
	Location *time.Location
}

// CronTrigger submits monthly generation for every tenant when its cron
// schedule fires. The period is the current month in Location.
type CronTrigger struct {
	config         CronTriggerConfig
	scheduler      *Scheduler
	tenantProvider TenantProvider
	logger         *zap.Logger
	now            func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
}

// NewCronTrigger validates the schedule and creates a trigger
func NewCronTrigger(config CronTriggerConfig, scheduler *Scheduler, tenantProvider TenantProvider, logger *zap.Logger) (*CronTrigger, error) {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if _, err := cron.ParseStandard(config.Schedule); err != nil {
		return nil, fmt.Errorf("%w: schedule %q: %v", ErrInvalidConfig, config.Schedule, err)
	}
	return &CronTrigger{
		config:         config,
		scheduler:      scheduler,
		tenantProvider: tenantProvider,
		logger:         logger,
		now:            time.Now,
	}, nil
}

// Start registers the schedule and starts the cron runner
func (c *CronTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	runner := cron.New(cron.WithLocation(c.config.Location))
	id, err := runner.AddFunc(c.config.Schedule, func() {
		if err := c.TriggerNow(ctx); err != nil {
			c.logger.Error("scheduled monthly generation failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to register cron schedule: %w", err)
	}
	runner.Start()
	c.cron = runner
	c.entryID = id

	c.logger.Info("cron trigger started",
		zap.String("schedule", c.config.Schedule),
		zap.String("location", c.config.Location.String()),
		zap.Time("next_run", runner.Entry(id).Next),
	)
	return nil
}

// Stop halts the runner and waits for an in-progress trigger to return
func (c *CronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	runner := c.cron
	c.cron = nil
	c.mu.Unlock()
	if runner == nil {
		return nil
	}

	select {
	case <-runner.Stop().Done():
		c.logger.Info("cron trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NextRun reports when the schedule fires next. Zero when not started.
func (c *CronTrigger) NextRun() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron == nil {
		return time.Time{}
	}
	return c.cron.Entry(c.entryID).Next
}

// TriggerNow submits generation of the current period for every tenant
func (c *CronTrigger) TriggerNow(ctx context.Context) error {
	period := dues.PeriodOf(c.now().In(c.config.Location))
	tenantIDs, err := c.tenantProvider.FindTenantIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tenants: %w", err)
	}

	c.logger.Info("triggering monthly generation",
		zap.String("period", period.String()),
		zap.Int("tenant_count", len(tenantIDs)),
	)
	return c.scheduler.ScheduleMonthly(tenantIDs, period)
}
