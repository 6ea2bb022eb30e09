package dues

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/duesledger/backend/internal/domain/dues"
	"github.com/duesledger/backend/internal/domain/shared"
	"github.com/duesledger/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentService records payments, allocates them to dues and reverses them
type PaymentService struct {
	txScope         TransactionScope
	dueRepo         dues.DueRecordRepository
	transactionRepo dues.TransactionRepository
	eventPublisher  shared.EventPublisher
	metrics         *telemetry.LedgerMetrics
	maxRetries      int
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	txScope TransactionScope,
	dueRepo dues.DueRecordRepository,
	transactionRepo dues.TransactionRepository,
) *PaymentService {
	return &PaymentService{
		txScope:         txScope,
		dueRepo:         dueRepo,
		transactionRepo: transactionRepo,
		maxRetries:      DefaultMaxRetries,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *PaymentService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMetrics sets the ledger metrics recorder
func (s *PaymentService) SetMetrics(metrics *telemetry.LedgerMetrics) {
	s.metrics = metrics
}

// SetMaxRetries sets how often a conflicting write is retried
func (s *PaymentService) SetMaxRetries(n int) {
	if n >= 0 {
		s.maxRetries = n
	}
}

// RecordPayment stores a transaction for the owner and allocates it to
// their dues in one database transaction. Any surplus stays unallocated on
// the transaction.
func (s *PaymentService) RecordPayment(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, req RecordPaymentRequest) (*PaymentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "record")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrOwnerID, req.OwnerID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
		telemetry.SpanAttrMode, string(req.Mode),
	)

	start := time.Now()
	var result *PaymentResponse
	var operationErr error
	telemetry.WithProfilingLabels(ctx, telemetry.LedgerOperationLabels(telemetry.OpRecordPayment, tenantID.String()), func(c context.Context) {
		if err := s.validatePayment(actor, req); err != nil {
			operationErr = err
			return
		}

		var tx *dues.Transaction
		var allocation *dues.AllocationResult
		var touched []*dues.DueRecord
		err := retryOnConflict(c, s.maxRetries, telemetry.OpRecordPayment, s.metrics, func() error {
			return s.txScope.Execute(c, func(repos TransactionalRepositories) error {
				var err error
				tx, err = dues.NewTransaction(tenantID, req.OwnerID, req.Amount, req.Mode, req.Reference, req.Note)
				if err != nil {
					return err
				}
				tx.SetCreatedBy(actor.UserID)

				strategy, err := s.resolveStrategy(c, repos.DueRepo(), tenantID, req)
				if err != nil {
					return err
				}
				allocation, err = dues.ApplyStrategy(tx, strategy)
				if err != nil {
					return err
				}
				tx.MarkRecorded()

				if err := repos.TransactionRepo().Create(c, tx); err != nil {
					return err
				}
				for _, due := range allocation.Touched {
					if err := repos.DueRepo().SaveWithLock(c, due); err != nil {
						return err
					}
				}
				touched = allocation.Touched
				return nil
			})
		})
		if err != nil {
			operationErr = err
			return
		}

		s.publish(c, tx, touched...)
		s.metrics.RecordPayment(c, tenantID, string(tx.Mode), string(allocation.Strategy), tx.Amount, allocation.TotalAllocated)
		telemetry.AddEvent(span, "payment_recorded",
			telemetry.SpanAttrTransactionID, tx.ID.String(),
			telemetry.SpanAttrStrategy, string(allocation.Strategy),
			"unallocated", allocation.RemainingAmount.String(),
		)

		result = &PaymentResponse{
			Transaction:       ToTransactionResponse(tx),
			Strategy:          string(allocation.Strategy),
			DuesFullyPaid:     allocation.DuesFullyPaid,
			DuesPartiallyPaid: allocation.DuesPartiallyPaid,
		}
	})

	telemetry.RecordError(span, operationErr)
	s.metrics.RecordDuration(ctx, telemetry.OpRecordPayment, time.Since(start), operationErr)
	return result, operationErr
}

func (s *PaymentService) validatePayment(actor dues.Actor, req RecordPaymentRequest) error {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError(dues.CodeInvalidAmount, "Payment amount must be positive")
	}
	if err := dues.CheckAmountScale("Payment amount", req.Amount); err != nil {
		return err
	}
	if !req.Mode.IsReceipt() {
		return shared.NewDomainError(dues.CodeInvalidMode, "Payments must use a receipt mode; corrections go through adjustments")
	}
	if err := actor.AuthorizeFor(req.OwnerID); err != nil {
		return err
	}
	if req.TargetDueID == nil && len(req.Allocations) > 0 {
		return dues.ValidateExplicitAllocations(req.Amount, req.Allocations)
	}
	return nil
}

// resolveStrategy locks the dues the payment may touch and picks the
// allocation order. Every referenced due must exist and belong to the owner
// before anything is written.
func (s *PaymentService) resolveStrategy(ctx context.Context, repo dues.DueRecordRepository, tenantID uuid.UUID, req RecordPaymentRequest) (dues.AllocationStrategy, error) {
	switch {
	case req.TargetDueID != nil:
		due, err := repo.FindByIDForUpdate(ctx, tenantID, *req.TargetDueID)
		if err != nil {
			return nil, err
		}
		if due.OwnerID != req.OwnerID {
			return nil, dues.NewDueNotFoundError(due.ID)
		}
		return dues.NewTargetedStrategy(due), nil

	case len(req.Allocations) > 0:
		ids := make([]uuid.UUID, len(req.Allocations))
		for i, line := range req.Allocations {
			ids[i] = line.DueID
		}
		locked, err := repo.FindByIDsForUpdate(ctx, tenantID, ids)
		if err != nil {
			return nil, err
		}
		byID := make(map[uuid.UUID]*dues.DueRecord, len(locked))
		for i := range locked {
			if locked[i].OwnerID != req.OwnerID {
				return nil, dues.NewDueNotFoundError(locked[i].ID)
			}
			byID[locked[i].ID] = &locked[i]
		}
		return dues.NewExplicitStrategy(req.Allocations, byID)

	default:
		monthly := dues.DueKindMonthlyFee
		outstanding, err := repo.FindOutstandingByOwner(ctx, tenantID, req.OwnerID, &monthly, true)
		if err != nil {
			return nil, err
		}
		candidates := make([]*dues.DueRecord, len(outstanding))
		for i := range outstanding {
			candidates[i] = &outstanding[i]
		}
		return dues.NewOldestFirstStrategy(candidates), nil
	}
}

// RecordAdjustment books an administrative correction as an ADJUSTMENT
// transaction allocated entirely to one due. The amount is capped by what
// the due still owes.
func (s *PaymentService) RecordAdjustment(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, req RecordAdjustmentRequest) (*PaymentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "adjust")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrDueID, req.DueID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	var result *PaymentResponse
	var operationErr error
	telemetry.WithProfilingLabels(ctx, telemetry.LedgerOperationLabels(telemetry.OpRecordAdjustment, tenantID.String()), func(c context.Context) {
		if err := actor.RequireAdmin(); err != nil {
			operationErr = err
			return
		}
		if req.Amount.LessThanOrEqual(decimal.Zero) {
			operationErr = shared.NewDomainError(dues.CodeInvalidAmount, "Adjustment amount must be positive")
			return
		}
		if err := dues.CheckAmountScale("Adjustment amount", req.Amount); err != nil {
			operationErr = err
			return
		}

		var tx *dues.Transaction
		var due *dues.DueRecord
		err := retryOnConflict(c, s.maxRetries, telemetry.OpRecordAdjustment, s.metrics, func() error {
			return s.txScope.Execute(c, func(repos TransactionalRepositories) error {
				var err error
				due, err = repos.DueRepo().FindByIDForUpdate(c, tenantID, req.DueID)
				if err != nil {
					return err
				}
				amount := decimal.Min(req.Amount, due.Outstanding())
				if amount.LessThanOrEqual(decimal.Zero) {
					return shared.NewDomainError(dues.CodeAllocationOverflow,
						fmt.Sprintf("Due %s has nothing outstanding", due.ID))
				}
				tx, err = dues.NewTransaction(tenantID, due.OwnerID, amount, dues.PaymentModeAdjustment, "", req.Note)
				if err != nil {
					return err
				}
				tx.SetCreatedBy(actor.UserID)
				if _, err := tx.Allocate(due, amount); err != nil {
					return err
				}
				tx.MarkRecorded()
				if err := repos.TransactionRepo().Create(c, tx); err != nil {
					return err
				}
				return repos.DueRepo().SaveWithLock(c, due)
			})
		})
		if err != nil {
			operationErr = err
			return
		}

		s.publish(c, tx, due)
		s.metrics.RecordPayment(c, tenantID, string(tx.Mode), string(dues.AllocationStrategyTargeted), tx.Amount, tx.AllocatedTotal())

		paid, partial := []uuid.UUID{}, []uuid.UUID{}
		if due.Status() == dues.DueStatusPaid {
			paid = append(paid, due.ID)
		} else {
			partial = append(partial, due.ID)
		}
		result = &PaymentResponse{
			Transaction:       ToTransactionResponse(tx),
			Strategy:          string(dues.AllocationStrategyTargeted),
			DuesFullyPaid:     paid,
			DuesPartiallyPaid: partial,
		}
	})

	telemetry.RecordError(span, operationErr)
	return result, operationErr
}

// RevokeTransaction releases every allocation of a transaction from its
// dues and deletes the transaction. The dues end up exactly as they were
// before the payment.
func (s *PaymentService) RevokeTransaction(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, transactionID uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "revoke")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrTransactionID, transactionID.String(),
	)

	start := time.Now()
	var operationErr error
	telemetry.WithProfilingLabels(ctx, telemetry.LedgerOperationLabels(telemetry.OpRevokeTransaction, tenantID.String()), func(c context.Context) {
		var tx *dues.Transaction
		var released []*dues.DueRecord
		err := retryOnConflict(c, s.maxRetries, telemetry.OpRevokeTransaction, s.metrics, func() error {
			return s.txScope.Execute(c, func(repos TransactionalRepositories) error {
				var err error
				tx, err = repos.TransactionRepo().FindByIDForUpdate(c, tenantID, transactionID)
				if err != nil {
					if errors.Is(err, dues.ErrTransactionMissing) {
						return dues.NewReversalConflictError("Transaction %s does not exist", transactionID)
					}
					return err
				}
				if err := actor.AuthorizeFor(tx.OwnerID); err != nil {
					return err
				}

				locked, err := repos.DueRepo().FindByIDsForUpdate(c, tenantID, tx.DueIDs())
				if err != nil {
					return err
				}
				byID := make(map[uuid.UUID]*dues.DueRecord, len(locked))
				released = make([]*dues.DueRecord, 0, len(locked))
				for i := range locked {
					byID[locked[i].ID] = &locked[i]
					released = append(released, &locked[i])
				}
				if err := tx.Revoke(byID); err != nil {
					return err
				}
				for _, due := range released {
					if err := repos.DueRepo().SaveWithLock(c, due); err != nil {
						return err
					}
				}
				return repos.TransactionRepo().Delete(c, tenantID, tx.ID)
			})
		})
		if err != nil {
			operationErr = err
			return
		}

		s.publish(c, tx, released...)
		s.metrics.RecordRevocation(c, tenantID)
		telemetry.AddEvent(span, "transaction_revoked", "dues_released", len(released))
	})

	telemetry.RecordError(span, operationErr)
	s.metrics.RecordDuration(ctx, telemetry.OpRevokeTransaction, time.Since(start), operationErr)
	return operationErr
}

// GetTransaction returns one transaction with its allocations
func (s *PaymentService) GetTransaction(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, id uuid.UUID) (*TransactionResponse, error) {
	tx, err := s.transactionRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanActFor(tx.OwnerID) {
		return nil, dues.ErrUnauthorized
	}
	resp := ToTransactionResponse(tx)
	return &resp, nil
}

// ListTransactions lists transactions newest first. Callers without
// finance-admin only see their own.
func (s *PaymentService) ListTransactions(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, filter TransactionListFilter) (shared.Paginated[TransactionResponse], error) {
	if filter.OwnerID == nil && !actor.IsFinanceAdmin() {
		self := actor.UserID
		filter.OwnerID = &self
	}
	if filter.OwnerID != nil {
		if err := actor.AuthorizeFor(*filter.OwnerID); err != nil {
			return shared.Paginated[TransactionResponse]{}, err
		}
	}

	domainFilter := dues.TransactionFilter{
		Filter:  pageFilter(filter.Page, filter.PageSize, "timestamp", "desc"),
		OwnerID: filter.OwnerID,
		Mode:    filter.Mode,
		From:    filter.From,
		To:      filter.To,
	}
	items, err := s.transactionRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return shared.Paginated[TransactionResponse]{}, err
	}
	total, err := s.transactionRepo.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return shared.Paginated[TransactionResponse]{}, err
	}

	out := make([]TransactionResponse, len(items))
	for i := range items {
		out[i] = ToTransactionResponse(&items[i])
	}
	return shared.NewPaginated(out, total, domainFilter.Page, domainFilter.PageSize), nil
}

// publish sends the events raised by tx and the dues it touched. Publish
// errors are logged by the bus and never fail a committed write.
func (s *PaymentService) publish(ctx context.Context, tx *dues.Transaction, touched ...*dues.DueRecord) {
	events := collectEvents(tx, touched...)
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
}

func collectEvents(tx *dues.Transaction, touched ...*dues.DueRecord) []shared.DomainEvent {
	var events []shared.DomainEvent
	for _, due := range touched {
		events = append(events, due.GetDomainEvents()...)
		due.ClearDomainEvents()
	}
	if tx != nil {
		events = append(events, tx.GetDomainEvents()...)
		tx.ClearDomainEvents()
	}
	return events
}

func pageFilter(page, pageSize int, orderBy, orderDir string) shared.Filter {
	f := shared.DefaultFilter()
	if page > 0 {
		f.Page = page
	}
	if pageSize > 0 {
		f.PageSize = min(pageSize, 100)
	}
	if orderBy != "" {
		f.OrderBy = orderBy
	}
	if orderDir != "" {
		f.OrderDir = orderDir
	}
	return f
}
