package dues

import (
	"context"
	"time"

	"github.com/duesledger/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// DueRecordFilter defines filtering options for due queries
type DueRecordFilter struct {
	shared.Filter
	OwnerID     *uuid.UUID
	Kind        *DueKind
	Status      *DueStatus
	Year        *int
	Month       *int
	Title       string
	Outstanding bool // only PENDING or PARTIAL
}

// DueRecordRepository defines persistence for due records
type DueRecordRepository interface {
	// FindByIDForTenant finds a due by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*DueRecord, error)

	// FindByIDForUpdate loads a due and holds a row lock until the
	// surrounding transaction ends
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*DueRecord, error)

	// FindByIDsForUpdate locks several dues in id order. Missing ids are
	// simply absent from the result.
	FindByIDsForUpdate(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]DueRecord, error)

	// FindOutstandingByOwner lists an owner's PENDING or PARTIAL dues
	// oldest-period-first. kind nil means both kinds.
	FindOutstandingByOwner(ctx context.Context, tenantID, ownerID uuid.UUID, kind *DueKind, forUpdate bool) ([]DueRecord, error)

	// FindAllForTenant lists dues with filtering and pagination
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter DueRecordFilter) ([]DueRecord, error)

	// CountForTenant counts dues matching the filter
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter DueRecordFilter) (int64, error)

	// FindByCohort lists every EVENT due sharing title
	FindByCohort(ctx context.Context, tenantID uuid.UUID, title string) ([]DueRecord, error)

	// FindOwnerIDsWithPeriod returns the owners that already have a monthly due for period
	FindOwnerIDsWithPeriod(ctx context.Context, tenantID uuid.UUID, period Period) ([]uuid.UUID, error)

	// Create inserts a new due. A second monthly due for the same owner and
	// period fails with DUPLICATE_DUE.
	Create(ctx context.Context, due *DueRecord) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, due *DueRecord) error

	// Delete removes a due and cascades to its allocations
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// TransactionFilter defines filtering options for transaction queries
type TransactionFilter struct {
	shared.Filter
	OwnerID *uuid.UUID
	Mode    *PaymentMode
	From    *time.Time
	To      *time.Time
}

// TransactionRepository defines persistence for transactions and their allocations
type TransactionRepository interface {
	// FindByIDForTenant loads a transaction with its allocations
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Transaction, error)

	// FindByIDForUpdate loads and row-locks a transaction with its allocations
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Transaction, error)

	// FindAllForTenant lists transactions newest first with their allocations
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter TransactionFilter) ([]Transaction, error)

	// CountForTenant counts transactions matching the filter
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter TransactionFilter) (int64, error)

	// FindAllocationsByDue lists allocations that reference a due
	FindAllocationsByDue(ctx context.Context, tenantID, dueID uuid.UUID) ([]Allocation, error)

	// Create inserts the transaction and all of its allocations
	Create(ctx context.Context, tx *Transaction) error

	// Delete removes the allocations and then the transaction
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// MemberFilter defines filtering options for member queries
type MemberFilter struct {
	shared.Filter
	Search     string
	ActiveOnly bool
}

// MemberRepository defines persistence for due owners and their fee config
type MemberRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Member, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter MemberFilter) ([]Member, error)
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter MemberFilter) (int64, error)

	// FindActive lists every active member ordered by id
	FindActive(ctx context.Context, tenantID uuid.UUID) ([]Member, error)

	// FindActiveByIDs returns the active members among ids
	FindActiveByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]Member, error)

	// FindTenantIDs lists tenants that have at least one active member
	FindTenantIDs(ctx context.Context) ([]uuid.UUID, error)

	Save(ctx context.Context, member *Member) error
	SaveWithLock(ctx context.Context, member *Member) error
}

// ReportRepository computes read-only aggregates directly from the ledger tables
type ReportRepository interface {
	OwnerTotals(ctx context.Context, tenantID uuid.UUID, ownerID *uuid.UUID) ([]OwnerTotals, error)

	// OwnerLedger reads an owner's totals and dues from one snapshot
	OwnerLedger(ctx context.Context, tenantID, ownerID uuid.UUID) (*OwnerLedger, error)
	PeriodGrid(ctx context.Context, tenantID uuid.UUID, year int) ([]PeriodCell, error)
	Overview(ctx context.Context, tenantID uuid.UUID, dayStart, dayEnd time.Time) (*Overview, error)
	CohortSummaries(ctx context.Context, tenantID uuid.UUID) ([]CohortSummary, error)
}
