package dues

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OwnerLedger is an owner's totals together with the dues they were summed from
type OwnerLedger struct {
	Totals OwnerTotals
	Dues   []DueRecord
}

// OwnerTotals aggregates one owner's dues
type OwnerTotals struct {
	OwnerID      uuid.UUID       `json:"owner_id"`
	OwnerName    string          `json:"owner_name"`
	DueCount     int64           `json:"due_count"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	TotalPaid    decimal.Decimal `json:"total_paid"`
	Outstanding  decimal.Decimal `json:"outstanding"`
	PendingCount int64           `json:"pending_count"`
	PartialCount int64           `json:"partial_count"`
	PaidCount    int64           `json:"paid_count"`
}

// PeriodCell is one owner-month entry of the status grid
type PeriodCell struct {
	OwnerID    uuid.UUID       `json:"owner_id"`
	DueID      uuid.UUID       `json:"due_id"`
	Month      int             `json:"month"`
	Year       int             `json:"year"`
	Amount     decimal.Decimal `json:"amount"`
	PaidAmount decimal.Decimal `json:"paid_amount"`
}

// Status derives the cell's status
func (c PeriodCell) Status() DueStatus {
	return DeriveStatus(c.Amount, c.PaidAmount)
}

// Overview holds the organization-wide totals
type Overview struct {
	TotalReceived    decimal.Decimal `json:"total_received"`
	TotalCollected   decimal.Decimal `json:"total_collected"`
	PendingFees      decimal.Decimal `json:"pending_fees"`
	PendingEvents    decimal.Decimal `json:"pending_events"`
	TodayCollections decimal.Decimal `json:"today_collections"`
	MemberCount      int64           `json:"member_count"`
	OutstandingDues  int64           `json:"outstanding_dues"`
}

// CohortSummary aggregates an EVENT cohort
type CohortSummary struct {
	Title       string          `json:"title"`
	DueCount    int64           `json:"due_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	TotalPaid   decimal.Decimal `json:"total_paid"`
}

// Outstanding is the cohort's unpaid remainder
func (c CohortSummary) Outstanding() decimal.Decimal {
	return c.TotalAmount.Sub(c.TotalPaid)
}
