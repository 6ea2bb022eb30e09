package dues

import (
	"fmt"
	"strings"
	"time"

	"github.com/duesledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DueKind distinguishes recurring monthly fees from one-off event dues
type DueKind string

const (
	DueKindMonthlyFee DueKind = "MONTHLY_FEE"
	DueKindEvent      DueKind = "EVENT"
)

// IsValid checks if the kind is a valid DueKind
func (k DueKind) IsValid() bool {
	switch k {
	case DueKindMonthlyFee, DueKindEvent:
		return true
	}
	return false
}

// String returns the string representation of DueKind
func (k DueKind) String() string {
	return string(k)
}

// DueStatus is derived from amount and paid amount; it is never stored
type DueStatus string

const (
	DueStatusPending DueStatus = "PENDING" // nothing paid
	DueStatusPartial DueStatus = "PARTIAL" // 0 < paid < amount
	DueStatusPaid    DueStatus = "PAID"    // paid >= amount
)

// IsValid checks if the status is a valid DueStatus
func (s DueStatus) IsValid() bool {
	switch s {
	case DueStatusPending, DueStatusPartial, DueStatusPaid:
		return true
	}
	return false
}

// String returns the string representation of DueStatus
func (s DueStatus) String() string {
	return string(s)
}

// IsOutstanding returns true for PENDING and PARTIAL
func (s DueStatus) IsOutstanding() bool {
	return s == DueStatusPending || s == DueStatusPartial
}

// DeriveStatus applies the status rule to a balance
func DeriveStatus(amount, paid decimal.Decimal) DueStatus {
	switch {
	case paid.IsZero():
		return DueStatusPending
	case paid.GreaterThanOrEqual(amount):
		return DueStatusPaid
	default:
		return DueStatusPartial
	}
}

const maxTitleLength = 200

// DueRecord is a payable obligation owned by one member. A MONTHLY_FEE due
// is keyed by Period; an EVENT due is keyed by Title and belongs to the
// cohort of all dues sharing that title.
type DueRecord struct {
	shared.TenantAggregateRoot
	OwnerID    uuid.UUID
	Kind       DueKind
	Period     *Period
	Title      string
	Amount     decimal.Decimal
	PaidAmount decimal.Decimal
}

// NewMonthlyDue creates a MONTHLY_FEE due for the period
func NewMonthlyDue(tenantID, ownerID uuid.UUID, period Period, amount decimal.Decimal) (*DueRecord, error) {
	if !period.IsValid() {
		return nil, shared.NewDomainError(CodeInvalidPeriod, fmt.Sprintf("Invalid period %s", period))
	}
	due, err := newDue(tenantID, ownerID, DueKindMonthlyFee, amount)
	if err != nil {
		return nil, err
	}
	p := period
	due.Period = &p
	due.AddDomainEvent(NewDueCreatedEvent(due))
	return due, nil
}

// NewEventDue creates an EVENT due tagged with the cohort title
func NewEventDue(tenantID, ownerID uuid.UUID, title string, amount decimal.Decimal) (*DueRecord, error) {
	title, err := NormalizeTitle(title)
	if err != nil {
		return nil, err
	}
	due, err := newDue(tenantID, ownerID, DueKindEvent, amount)
	if err != nil {
		return nil, err
	}
	due.Title = title
	due.AddDomainEvent(NewDueCreatedEvent(due))
	return due, nil
}

func newDue(tenantID, ownerID uuid.UUID, kind DueKind, amount decimal.Decimal) (*DueRecord, error) {
	if ownerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OWNER", "Owner ID cannot be empty")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(CodeInvalidAmount, "Due amount must be positive")
	}
	if err := CheckAmountScale("Due amount", amount); err != nil {
		return nil, err
	}
	return &DueRecord{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		OwnerID:             ownerID,
		Kind:                kind,
		Amount:              amount,
		PaidAmount:          decimal.Zero,
	}, nil
}

// NormalizeTitle trims an event cohort title and checks its length
func NormalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", shared.NewDomainError(CodeInvalidTitle, "Event title cannot be empty")
	}
	if len(title) > maxTitleLength {
		return "", shared.NewDomainError(CodeInvalidTitle,
			fmt.Sprintf("Event title cannot exceed %d characters", maxTitleLength))
	}
	return title, nil
}

// Status derives PENDING, PARTIAL or PAID from the current balance
func (d *DueRecord) Status() DueStatus {
	return DeriveStatus(d.Amount, d.PaidAmount)
}

// Outstanding returns amount minus paid amount, never below zero
func (d *DueRecord) Outstanding() decimal.Decimal {
	out := d.Amount.Sub(d.PaidAmount)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// IsMonthly returns true for MONTHLY_FEE dues
func (d *DueRecord) IsMonthly() bool {
	return d.Kind == DueKindMonthlyFee
}

// Label is the period for monthly dues and the title for event dues
func (d *DueRecord) Label() string {
	if d.IsMonthly() && d.Period != nil {
		return d.Period.String()
	}
	return d.Title
}

// OlderThan orders dues oldest-period-first. Event dues and ties fall back
// to creation time.
func (d *DueRecord) OlderThan(other *DueRecord) bool {
	if d.Period != nil && other.Period != nil && *d.Period != *other.Period {
		return d.Period.Before(*other.Period)
	}
	if d.Period != nil && other.Period == nil {
		return true
	}
	if d.Period == nil && other.Period != nil {
		return false
	}
	return d.CreatedAt.Before(other.CreatedAt)
}

// Apply adds amount to the paid balance on behalf of transactionID
func (d *DueRecord) Apply(amount decimal.Decimal, transactionID uuid.UUID) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError(CodeInvalidAmount, "Allocated amount must be positive")
	}
	paid := d.PaidAmount.Add(amount)
	if paid.GreaterThan(d.Amount) {
		return shared.NewDomainError(CodeAllocationOverflow,
			fmt.Sprintf("Allocating %s to due %s would exceed its amount %s (paid %s)",
				amount, d.ID, d.Amount, d.PaidAmount))
	}
	previous := d.Status()
	d.PaidAmount = paid
	d.UpdatedAt = time.Now()
	d.AddDomainEvent(NewDuePaymentAppliedEvent(d, transactionID, amount, previous))
	return nil
}

// Release subtracts amount from the paid balance when transactionID is revoked
func (d *DueRecord) Release(amount decimal.Decimal, transactionID uuid.UUID) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError(CodeInvalidAmount, "Released amount must be positive")
	}
	paid := d.PaidAmount.Sub(amount)
	if paid.IsNegative() {
		return shared.NewDomainError(CodeAllocationOverflow,
			fmt.Sprintf("Releasing %s from due %s would leave a negative paid amount (paid %s)",
				amount, d.ID, d.PaidAmount))
	}
	previous := d.Status()
	d.PaidAmount = paid
	d.UpdatedAt = time.Now()
	d.AddDomainEvent(NewDuePaymentReleasedEvent(d, transactionID, amount, previous))
	return nil
}

// Reprice changes the total owed. The new amount may not drop below what is
// already paid.
func (d *DueRecord) Reprice(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError(CodeInvalidAmount, "Due amount must be positive")
	}
	if err := CheckAmountScale("Due amount", amount); err != nil {
		return err
	}
	if amount.LessThan(d.PaidAmount) {
		return shared.NewDomainError(CodeAllocationOverflow,
			fmt.Sprintf("New amount %s is below the paid amount %s of due %s", amount, d.PaidAmount, d.ID))
	}
	if amount.Equal(d.Amount) {
		return nil
	}
	old := d.Amount
	d.Amount = amount
	d.UpdatedAt = time.Now()
	d.AddDomainEvent(NewDueAmountChangedEvent(d, old))
	return nil
}

// Rename moves an event due into another cohort
func (d *DueRecord) Rename(title string) error {
	if d.IsMonthly() {
		return shared.NewDomainError("INVALID_STATE", "Monthly dues have no title")
	}
	title, err := NormalizeTitle(title)
	if err != nil {
		return err
	}
	if title == d.Title {
		return nil
	}
	d.Title = title
	d.UpdatedAt = time.Now()
	return nil
}
