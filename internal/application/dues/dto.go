package dues

import (
	"time"

	"github.com/duesledger/backend/internal/domain/dues"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecordPaymentRequest is the input to RecordPayment. TargetDueID wins over
// Allocations; with neither, the owner's monthly dues are paid oldest first.
type RecordPaymentRequest struct {
	OwnerID     uuid.UUID
	Amount      decimal.Decimal
	Mode        dues.PaymentMode
	Reference   string
	Note        string
	TargetDueID *uuid.UUID
	Allocations []dues.ExplicitAllocation
}

// RecordAdjustmentRequest is an administrative correction against one due
type RecordAdjustmentRequest struct {
	DueID  uuid.UUID
	Amount decimal.Decimal
	Note   string
}

// CreateDueRequest creates a single due by hand
type CreateDueRequest struct {
	OwnerID uuid.UUID
	Kind    dues.DueKind
	Month   int
	Year    int
	Title   string
	Amount  decimal.Decimal
}

// GenerateMonthlyDuesRequest drives a monthly generation run
type GenerateMonthlyDuesRequest struct {
	Period         dues.Period
	OverrideAmount *decimal.Decimal
}

// GenerateEventDuesRequest drives an event cohort generation run.
// An empty OwnerIDs targets every active member.
type GenerateEventDuesRequest struct {
	Title    string
	Amount   decimal.Decimal
	OwnerIDs []uuid.UUID
}

// UpdateCohortRequest changes the amount and/or title of every due in a cohort
type UpdateCohortRequest struct {
	Title    string
	Amount   *decimal.Decimal
	NewTitle *string
}

// CreateMemberRequest registers a due owner
type CreateMemberRequest struct {
	ID        uuid.UUID
	Name      string
	FeeAmount decimal.Decimal
}

// UpdateMemberRequest changes a member's profile
type UpdateMemberRequest struct {
	Name   *string
	Active *bool
}

// DueListFilter represents filter options for the due list
type DueListFilter struct {
	OwnerID     *uuid.UUID
	Kind        *dues.DueKind
	Status      *dues.DueStatus
	Year        *int
	Month       *int
	Title       string
	Outstanding bool
	Page        int
	PageSize    int
	OrderBy     string
	OrderDir    string
}

// TransactionListFilter represents filter options for the transaction list
type TransactionListFilter struct {
	OwnerID  *uuid.UUID
	Mode     *dues.PaymentMode
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// MemberListFilter represents filter options for the member list
type MemberListFilter struct {
	Search     string
	ActiveOnly bool
	Page       int
	PageSize   int
	OrderBy    string
	OrderDir   string
}

// DueResponse represents a due record in API responses
type DueResponse struct {
	ID          uuid.UUID       `json:"id"`
	TenantID    uuid.UUID       `json:"tenant_id"`
	OwnerID     uuid.UUID       `json:"owner_id"`
	Kind        string          `json:"kind"`
	Month       *int            `json:"month,omitempty"`
	Year        *int            `json:"year,omitempty"`
	Title       string          `json:"title,omitempty"`
	Label       string          `json:"label"`
	Amount      decimal.Decimal `json:"amount"`
	PaidAmount  decimal.Decimal `json:"paid_amount"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Status      string          `json:"status"`
	Version     int             `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// AllocationResponse represents one allocation line
type AllocationResponse struct {
	ID              uuid.UUID       `json:"id"`
	DueRecordID     uuid.UUID       `json:"due_record_id"`
	AllocatedAmount decimal.Decimal `json:"allocated_amount"`
	CreatedAt       time.Time       `json:"created_at"`
}

// TransactionResponse represents a transaction with its allocations
type TransactionResponse struct {
	ID                uuid.UUID            `json:"id"`
	TenantID          uuid.UUID            `json:"tenant_id"`
	OwnerID           uuid.UUID            `json:"owner_id"`
	Amount            decimal.Decimal      `json:"amount"`
	Mode              string               `json:"mode"`
	Reference         string               `json:"reference,omitempty"`
	Note              string               `json:"note,omitempty"`
	Timestamp         time.Time            `json:"timestamp"`
	AllocatedAmount   decimal.Decimal      `json:"allocated_amount"`
	UnallocatedAmount decimal.Decimal      `json:"unallocated_amount"`
	Allocations       []AllocationResponse `json:"allocations"`
	CreatedBy         *uuid.UUID           `json:"created_by,omitempty"`
}

// PaymentResponse is the outcome of RecordPayment
type PaymentResponse struct {
	Transaction       TransactionResponse `json:"transaction"`
	Strategy          string              `json:"strategy"`
	DuesFullyPaid     []uuid.UUID         `json:"dues_fully_paid"`
	DuesPartiallyPaid []uuid.UUID         `json:"dues_partially_paid"`
}

// MemberResponse represents a member and their fee config
type MemberResponse struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Active    bool            `json:"active"`
	FeeAmount decimal.Decimal `json:"fee_amount"`
	Version   int             `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// BulkError describes one failed row of a bulk operation
type BulkError struct {
	OwnerID uuid.UUID  `json:"owner_id"`
	DueID   *uuid.UUID `json:"due_id,omitempty"`
	Code    string     `json:"code"`
	Message string     `json:"message"`
}

// BulkResult summarizes a bulk operation. Errors holds at most the
// configured cap while Failed counts every failure.
type BulkResult struct {
	Created int         `json:"created"`
	Updated int         `json:"updated,omitempty"`
	Deleted int         `json:"deleted,omitempty"`
	Skipped int         `json:"skipped"`
	Failed  int         `json:"failed"`
	Errors  []BulkError `json:"errors"`
}

// OwnerStatement is an owner's totals plus every due they hold
type OwnerStatement struct {
	Totals dues.OwnerTotals `json:"totals"`
	Dues   []DueResponse    `json:"dues"`
}

// PeriodGridCell is one owner/month cell of the period grid
type PeriodGridCell struct {
	DueID      uuid.UUID       `json:"due_id"`
	Amount     decimal.Decimal `json:"amount"`
	PaidAmount decimal.Decimal `json:"paid_amount"`
	Status     string          `json:"status"`
}

// PeriodGridRow is one owner across the twelve months of a year.
// Months without a due are absent from Cells.
type PeriodGridRow struct {
	OwnerID uuid.UUID              `json:"owner_id"`
	Cells   map[int]PeriodGridCell `json:"cells"`
}

// PeriodGrid is the owner x month status grid for a year
type PeriodGrid struct {
	Year int             `json:"year"`
	Rows []PeriodGridRow `json:"rows"`
}

// CohortSummaryResponse is an event cohort rollup
type CohortSummaryResponse struct {
	Title       string          `json:"title"`
	DueCount    int64           `json:"due_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	TotalPaid   decimal.Decimal `json:"total_paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// ExportResponse identifies an uploaded ledger archive
type ExportResponse struct {
	Key          string    `json:"key"`
	URL          string    `json:"url"`
	DueCount     int       `json:"due_count"`
	Transactions int       `json:"transaction_count"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ToDueResponse converts a domain due record to a response DTO
func ToDueResponse(d *dues.DueRecord) DueResponse {
	resp := DueResponse{
		ID:          d.ID,
		TenantID:    d.TenantID,
		OwnerID:     d.OwnerID,
		Kind:        string(d.Kind),
		Title:       d.Title,
		Label:       d.Label(),
		Amount:      d.Amount,
		PaidAmount:  d.PaidAmount,
		Outstanding: d.Outstanding(),
		Status:      string(d.Status()),
		Version:     d.Version,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if d.Period != nil {
		month, year := d.Period.Month, d.Period.Year
		resp.Month = &month
		resp.Year = &year
	}
	return resp
}

// ToDueResponses converts a slice of due records
func ToDueResponses(records []dues.DueRecord) []DueResponse {
	out := make([]DueResponse, len(records))
	for i := range records {
		out[i] = ToDueResponse(&records[i])
	}
	return out
}

// ToTransactionResponse converts a domain transaction to a response DTO
func ToTransactionResponse(t *dues.Transaction) TransactionResponse {
	allocations := make([]AllocationResponse, len(t.Allocations))
	for i, a := range t.Allocations {
		allocations[i] = AllocationResponse{
			ID:              a.ID,
			DueRecordID:     a.DueRecordID,
			AllocatedAmount: a.AllocatedAmount,
			CreatedAt:       a.CreatedAt,
		}
	}
	return TransactionResponse{
		ID:                t.ID,
		TenantID:          t.TenantID,
		OwnerID:           t.OwnerID,
		Amount:            t.Amount,
		Mode:              string(t.Mode),
		Reference:         t.Reference,
		Note:              t.Note,
		Timestamp:         t.Timestamp,
		AllocatedAmount:   t.AllocatedTotal(),
		UnallocatedAmount: t.Unallocated(),
		Allocations:       allocations,
		CreatedBy:         t.CreatedBy,
	}
}

// ToMemberResponse converts a domain member to a response DTO
func ToMemberResponse(m *dues.Member) MemberResponse {
	return MemberResponse{
		ID:        m.ID,
		Name:      m.Name,
		Active:    m.Active,
		FeeAmount: m.FeeAmount,
		Version:   m.Version,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
