package dues

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/duesledger/backend/internal/domain/dues"
	"github.com/duesledger/backend/internal/domain/shared"
	"github.com/duesledger/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// BulkConfig bounds the fan-out of bulk operations
type BulkConfig struct {
	Concurrency int
	ChunkSize   int
	ErrorCap    int
}

// DefaultBulkConfig returns the default bulk configuration
func DefaultBulkConfig() BulkConfig {
	return BulkConfig{
		Concurrency: 4,
		ChunkSize:   50,
		ErrorCap:    50,
	}
}

// BulkGenerator creates, updates and deletes dues for many owners at once
type BulkGenerator struct {
	txScope        TransactionScope
	dueRepo        dues.DueRecordRepository
	memberRepo     dues.MemberRepository
	eventPublisher shared.EventPublisher
	metrics        *telemetry.LedgerMetrics
	config         BulkConfig
}

// NewBulkGenerator creates a new BulkGenerator
func NewBulkGenerator(txScope TransactionScope, dueRepo dues.DueRecordRepository, memberRepo dues.MemberRepository, config BulkConfig) *BulkGenerator {
	defaults := DefaultBulkConfig()
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = defaults.ChunkSize
	}
	if config.ErrorCap <= 0 {
		config.ErrorCap = defaults.ErrorCap
	}
	return &BulkGenerator{
		txScope:    txScope,
		dueRepo:    dueRepo,
		memberRepo: memberRepo,
		config:     config,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (g *BulkGenerator) SetEventPublisher(publisher shared.EventPublisher) {
	g.eventPublisher = publisher
}

// SetMetrics sets the ledger metrics recorder
func (g *BulkGenerator) SetMetrics(metrics *telemetry.LedgerMetrics) {
	g.metrics = metrics
}

// GenerateMonthlyDues creates a MONTHLY_FEE due for period for every active
// member with a fee, or for every active member when an override amount is
// given. Owners that already have a due for the period are skipped, so the
// run can be repeated safely.
func (g *BulkGenerator) GenerateMonthlyDues(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, req GenerateMonthlyDuesRequest) (*BulkResult, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if !req.Period.IsValid() {
		return nil, shared.NewDomainError(dues.CodeInvalidPeriod, fmt.Sprintf("Invalid period %s", req.Period))
	}
	if req.OverrideAmount != nil && req.OverrideAmount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(dues.CodeInvalidAmount, "Override amount must be positive")
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "bulk", "generate_monthly")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrTenantID, tenantID.String(), "period", req.Period.String())

	var result *BulkResult
	var operationErr error
	start := time.Now()
	telemetry.WithProfilingLabels(ctx, telemetry.LedgerOperationLabels(telemetry.OpGenerateMonthlyDues, tenantID.String()), func(c context.Context) {
		members, err := g.memberRepo.FindActive(c, tenantID)
		if err != nil {
			operationErr = err
			return
		}
		existing, err := g.dueRepo.FindOwnerIDsWithPeriod(c, tenantID, req.Period)
		if err != nil {
			operationErr = err
			return
		}
		has := make(map[uuid.UUID]struct{}, len(existing))
		for _, id := range existing {
			has[id] = struct{}{}
		}

		collector := newBulkCollector(g.config.ErrorCap)
		targets := make([]dues.Member, 0, len(members))
		for _, m := range members {
			if _, ok := has[m.ID]; ok {
				collector.skip()
				continue
			}
			if req.OverrideAmount == nil && !m.HasFee() {
				continue
			}
			targets = append(targets, m)
		}

		operationErr = g.fanOut(c, len(targets), func(c context.Context, i int) {
			m := targets[i]
			amount := m.FeeAmount
			if req.OverrideAmount != nil {
				amount = *req.OverrideAmount
			}
			due, err := dues.NewMonthlyDue(tenantID, m.ID, req.Period, amount)
			if err != nil {
				collector.fail(m.ID, nil, err)
				return
			}
			due.SetCreatedBy(actor.UserID)
			g.create(c, collector, due)
		})
		result = collector.snapshot()
	})

	telemetry.RecordError(span, operationErr)
	if result != nil {
		g.metrics.RecordGeneration(ctx, tenantID, string(dues.DueKindMonthlyFee), result.Created, result.Failed)
		telemetry.SetAttributes(span, "created", result.Created, "skipped", result.Skipped, "failed", result.Failed)
	}
	g.metrics.RecordDuration(ctx, telemetry.OpGenerateMonthlyDues, time.Since(start), operationErr)
	return result, operationErr
}

// GenerateEventDues creates one EVENT due titled req.Title per target
// owner. Owners already in the cohort are skipped.
func (g *BulkGenerator) GenerateEventDues(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, req GenerateEventDuesRequest) (*BulkResult, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	title, err := dues.NormalizeTitle(req.Title)
	if err != nil {
		return nil, err
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(dues.CodeInvalidAmount, "Event amount must be positive")
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "bulk", "generate_event")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrTenantID, tenantID.String(), "title", title)

	var result *BulkResult
	var operationErr error
	telemetry.WithProfilingLabels(ctx, telemetry.LedgerOperationLabels(telemetry.OpGenerateEventDues, tenantID.String()), func(c context.Context) {
		collector := newBulkCollector(g.config.ErrorCap)

		var members []dues.Member
		if len(req.OwnerIDs) == 0 {
			members, operationErr = g.memberRepo.FindActive(c, tenantID)
		} else {
			members, operationErr = g.memberRepo.FindActiveByIDs(c, tenantID, req.OwnerIDs)
			found := make(map[uuid.UUID]struct{}, len(members))
			for _, m := range members {
				found[m.ID] = struct{}{}
			}
			for _, id := range uniqueIDs(req.OwnerIDs) {
				if _, ok := found[id]; !ok {
					collector.fail(id, nil, dues.ErrMemberNotFound)
				}
			}
		}
		if operationErr != nil {
			return
		}

		cohort, err := g.dueRepo.FindByCohort(c, tenantID, title)
		if err != nil {
			operationErr = err
			return
		}
		inCohort := make(map[uuid.UUID]struct{}, len(cohort))
		for _, d := range cohort {
			inCohort[d.OwnerID] = struct{}{}
		}

		targets := make([]dues.Member, 0, len(members))
		for _, m := range members {
			if _, ok := inCohort[m.ID]; ok {
				collector.skip()
				continue
			}
			targets = append(targets, m)
		}

		operationErr = g.fanOut(c, len(targets), func(c context.Context, i int) {
			due, err := dues.NewEventDue(tenantID, targets[i].ID, title, req.Amount)
			if err != nil {
				collector.fail(targets[i].ID, nil, err)
				return
			}
			due.SetCreatedBy(actor.UserID)
			g.create(c, collector, due)
		})
		result = collector.snapshot()
	})

	telemetry.RecordError(span, operationErr)
	if result != nil {
		g.metrics.RecordGeneration(ctx, tenantID, string(dues.DueKindEvent), result.Created, result.Failed)
	}
	return result, operationErr
}

// UpdateEventCohort reprices and/or renames every due of a cohort. Each due
// is updated in its own transaction; a due whose paid amount exceeds the new
// amount fails alone.
func (g *BulkGenerator) UpdateEventCohort(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, req UpdateCohortRequest) (*BulkResult, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if req.Amount == nil && req.NewTitle == nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Nothing to update: provide an amount or a new title")
	}
	if req.Amount != nil && req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(dues.CodeInvalidAmount, "Event amount must be positive")
	}
	if req.NewTitle != nil {
		if _, err := dues.NormalizeTitle(*req.NewTitle); err != nil {
			return nil, err
		}
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "bulk", "update_cohort")
	defer span.End()

	var result *BulkResult
	var operationErr error
	telemetry.WithProfilingLabels(ctx, telemetry.LedgerOperationLabels(telemetry.OpUpdateEventCohort, tenantID.String()), func(c context.Context) {
		cohort, err := g.loadCohort(c, tenantID, req.Title)
		if err != nil {
			operationErr = err
			return
		}
		collector := newBulkCollector(g.config.ErrorCap)
		operationErr = g.fanOut(c, len(cohort), func(c context.Context, i int) {
			id := cohort[i].ID
			var updated *dues.DueRecord
			err := g.txScope.Execute(c, func(repos TransactionalRepositories) error {
				due, err := repos.DueRepo().FindByIDForUpdate(c, tenantID, id)
				if err != nil {
					return err
				}
				if req.Amount != nil {
					if err := due.Reprice(*req.Amount); err != nil {
						return err
					}
				}
				if req.NewTitle != nil {
					if err := due.Rename(*req.NewTitle); err != nil {
						return err
					}
				}
				if err := repos.DueRepo().SaveWithLock(c, due); err != nil {
					return err
				}
				updated = due
				return nil
			})
			if err != nil {
				collector.fail(cohort[i].OwnerID, &id, err)
				return
			}
			collector.update()
			g.publish(c, updated)
		})
		result = collector.snapshot()
	})

	telemetry.RecordError(span, operationErr)
	return result, operationErr
}

// DeleteEventCohort deletes every due of a cohort together with their
// allocations.
func (g *BulkGenerator) DeleteEventCohort(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, title string) (*BulkResult, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "bulk", "delete_cohort")
	defer span.End()

	var result *BulkResult
	var operationErr error
	telemetry.WithProfilingLabels(ctx, telemetry.LedgerOperationLabels(telemetry.OpDeleteEventCohort, tenantID.String()), func(c context.Context) {
		cohort, err := g.loadCohort(c, tenantID, title)
		if err != nil {
			operationErr = err
			return
		}
		collector := newBulkCollector(g.config.ErrorCap)
		operationErr = g.fanOut(c, len(cohort), func(c context.Context, i int) {
			due := cohort[i]
			err := g.txScope.Execute(c, func(repos TransactionalRepositories) error {
				if _, err := repos.DueRepo().FindByIDForUpdate(c, tenantID, due.ID); err != nil {
					return err
				}
				return repos.DueRepo().Delete(c, tenantID, due.ID)
			})
			if err != nil {
				collector.fail(due.OwnerID, &due.ID, err)
				return
			}
			collector.remove()
			if g.eventPublisher != nil {
				_ = g.eventPublisher.Publish(c, dues.NewDueDeletedEvent(&due))
			}
		})
		result = collector.snapshot()
	})

	telemetry.RecordError(span, operationErr)
	return result, operationErr
}

func (g *BulkGenerator) loadCohort(ctx context.Context, tenantID uuid.UUID, title string) ([]dues.DueRecord, error) {
	title, err := dues.NormalizeTitle(title)
	if err != nil {
		return nil, err
	}
	cohort, err := g.dueRepo.FindByCohort(ctx, tenantID, title)
	if err != nil {
		return nil, err
	}
	if len(cohort) == 0 {
		return nil, shared.NewDomainError(dues.CodeDueNotFound, fmt.Sprintf("No event dues titled %q", title))
	}
	return cohort, nil
}

// create inserts one due. A duplicate means another run got there first
// and counts as skipped.
func (g *BulkGenerator) create(ctx context.Context, collector *bulkCollector, due *dues.DueRecord) {
	if err := g.dueRepo.Create(ctx, due); err != nil {
		if errors.Is(err, dues.ErrDuplicateDue) {
			collector.skip()
			return
		}
		collector.fail(due.OwnerID, nil, err)
		return
	}
	collector.create()
	g.publish(ctx, due)
}

func (g *BulkGenerator) publish(ctx context.Context, due *dues.DueRecord) {
	events := due.GetDomainEvents()
	due.ClearDomainEvents()
	if g.eventPublisher == nil || len(events) == 0 {
		return
	}
	_ = g.eventPublisher.Publish(ctx, events...)
}

// fanOut splits n rows into chunks and runs them with bounded concurrency.
// Rows inside a chunk run sequentially. Row failures are recorded by fn;
// only cancellation of ctx fails the whole run.
func (g *BulkGenerator) fanOut(ctx context.Context, n int, fn func(ctx context.Context, i int)) error {
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(g.config.Concurrency)
	for lo := 0; lo < n; lo += g.config.ChunkSize {
		hi := min(lo+g.config.ChunkSize, n)
		group.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				fn(gctx, i)
			}
			return nil
		})
	}
	return group.Wait()
}

type bulkCollector struct {
	mu        sync.Mutex
	maxErrors int
	out       BulkResult
}

func newBulkCollector(errorCap int) *bulkCollector {
	return &bulkCollector{maxErrors: errorCap, out: BulkResult{Errors: make([]BulkError, 0)}}
}

func (c *bulkCollector) create() {
	c.mu.Lock()
	c.out.Created++
	c.mu.Unlock()
}

func (c *bulkCollector) update() {
	c.mu.Lock()
	c.out.Updated++
	c.mu.Unlock()
}

func (c *bulkCollector) remove() {
	c.mu.Lock()
	c.out.Deleted++
	c.mu.Unlock()
}

func (c *bulkCollector) skip() {
	c.mu.Lock()
	c.out.Skipped++
	c.mu.Unlock()
}

func (c *bulkCollector) fail(ownerID uuid.UUID, dueID *uuid.UUID, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out.Failed++
	if len(c.out.Errors) >= c.maxErrors {
		return
	}
	code := dues.CodeStorageError
	var de *shared.DomainError
	if errors.As(err, &de) {
		code = de.Code
	}
	c.out.Errors = append(c.out.Errors, BulkError{
		OwnerID: ownerID,
		DueID:   dueID,
		Code:    code,
		Message: err.Error(),
	})
}

func (c *bulkCollector) snapshot() *BulkResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.out
	out.Errors = append(make([]BulkError, 0, len(c.out.Errors)), c.out.Errors...)
	return &out
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
