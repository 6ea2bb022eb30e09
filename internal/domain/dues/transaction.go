package dues

import (
	"fmt"
	"time"

	"github.com/duesledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMode is the channel a receipt came through
type PaymentMode string

const (
	PaymentModeCash         PaymentMode = "CASH"
	PaymentModeOnline       PaymentMode = "ONLINE"
	PaymentModeBankTransfer PaymentMode = "BANK_TRANSFER"
	PaymentModeCheque       PaymentMode = "CHEQUE"
	PaymentModeAdjustment   PaymentMode = "ADJUSTMENT" // administrative correction, not money received
)

// IsValid checks if the mode is a valid PaymentMode
func (m PaymentMode) IsValid() bool {
	switch m {
	case PaymentModeCash, PaymentModeOnline, PaymentModeBankTransfer, PaymentModeCheque, PaymentModeAdjustment:
		return true
	}
	return false
}

// String returns the string representation of PaymentMode
func (m PaymentMode) String() string {
	return string(m)
}

// IsReceipt returns false for administrative adjustments
func (m PaymentMode) IsReceipt() bool {
	return m.IsValid() && m != PaymentModeAdjustment
}

const (
	maxReferenceLength = 100
	maxNoteLength      = 500
)

// Allocation links part of a transaction to one due record
type Allocation struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	TransactionID   uuid.UUID
	DueRecordID     uuid.UUID
	AllocatedAmount decimal.Decimal
	CreatedAt       time.Time
}

// Transaction is an immutable payment receipt together with the
// allocations it produced. The sum of allocations never exceeds Amount.
type Transaction struct {
	shared.TenantAggregateRoot
	OwnerID     uuid.UUID
	Amount      decimal.Decimal
	Mode        PaymentMode
	Reference   string
	Note        string
	Timestamp   time.Time
	Allocations []Allocation

	// RecordedAllocated is the total allocated when the transaction was
	// recorded. Allocations later removed with their due leave the live
	// total below it.
	RecordedAllocated decimal.Decimal
}

// NewTransaction validates and creates a transaction with no allocations
func NewTransaction(tenantID, ownerID uuid.UUID, amount decimal.Decimal, mode PaymentMode, reference, note string) (*Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError(CodeInvalidAmount, "Payment amount must be positive")
	}
	if err := CheckAmountScale("Payment amount", amount); err != nil {
		return nil, err
	}
	if ownerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OWNER", "Owner ID cannot be empty")
	}
	if !mode.IsValid() {
		return nil, shared.NewDomainError(CodeInvalidMode, fmt.Sprintf("Unknown payment mode %q", mode))
	}
	if len(reference) > maxReferenceLength {
		return nil, shared.NewDomainError("INVALID_REFERENCE",
			fmt.Sprintf("Reference cannot exceed %d characters", maxReferenceLength))
	}
	if len(note) > maxNoteLength {
		return nil, shared.NewDomainError("INVALID_NOTE",
			fmt.Sprintf("Note cannot exceed %d characters", maxNoteLength))
	}

	t := &Transaction{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		OwnerID:             ownerID,
		Amount:              amount,
		Mode:                mode,
		Reference:           reference,
		Note:                note,
		Allocations:         make([]Allocation, 0),
	}
	t.Timestamp = t.CreatedAt
	return t, nil
}

// AllocatedTotal sums the allocations
func (t *Transaction) AllocatedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, a := range t.Allocations {
		total = total.Add(a.AllocatedAmount)
	}
	return total
}

// Unallocated is the surplus not applied to any due
func (t *Transaction) Unallocated() decimal.Decimal {
	return t.Amount.Sub(t.AllocatedTotal())
}

// Allocate applies up to requested to due, capped by the due's outstanding
// balance and by what is left of this transaction. It returns the amount
// actually applied, which is zero when nothing can be allocated.
func (t *Transaction) Allocate(due *DueRecord, requested decimal.Decimal) (decimal.Decimal, error) {
	if due.OwnerID != t.OwnerID || due.TenantID != t.TenantID {
		return decimal.Zero, NewDueNotFoundError(due.ID)
	}
	toPay := decimal.Min(requested, due.Outstanding(), t.Unallocated())
	if toPay.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, nil
	}
	if err := due.Apply(toPay, t.ID); err != nil {
		return decimal.Zero, err
	}
	t.Allocations = append(t.Allocations, Allocation{
		ID:              uuid.New(),
		TenantID:        t.TenantID,
		TransactionID:   t.ID,
		DueRecordID:     due.ID,
		AllocatedAmount: toPay,
		CreatedAt:       time.Now(),
	})
	t.RecordedAllocated = t.RecordedAllocated.Add(toPay)
	return toPay, nil
}

// MarkRecorded raises the recorded event once allocation is complete
func (t *Transaction) MarkRecorded() {
	t.AddDomainEvent(NewTransactionRecordedEvent(t))
}

// Revoke releases every allocation from the dues it paid. dues must hold
// every referenced record and no allocation may have been dropped with a
// deleted due; either case is a reversal conflict. Dues are
// only mutated when all of them are present.
func (t *Transaction) Revoke(dues map[uuid.UUID]*DueRecord) error {
	if !t.AllocatedTotal().Equal(t.RecordedAllocated) {
		return NewReversalConflictError(
			"Transaction %s lost allocations to a deleted due", t.ID)
	}
	for _, a := range t.Allocations {
		if _, ok := dues[a.DueRecordID]; !ok {
			return NewReversalConflictError(
				"Transaction %s references due %s which no longer exists", t.ID, a.DueRecordID)
		}
	}
	for _, a := range t.Allocations {
		if err := dues[a.DueRecordID].Release(a.AllocatedAmount, t.ID); err != nil {
			return err
		}
	}
	t.AddDomainEvent(NewTransactionRevokedEvent(t))
	return nil
}

// DueIDs lists the distinct dues this transaction allocated to, in allocation order
func (t *Transaction) DueIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(t.Allocations))
	ids := make([]uuid.UUID, 0, len(t.Allocations))
	for _, a := range t.Allocations {
		if _, ok := seen[a.DueRecordID]; ok {
			continue
		}
		seen[a.DueRecordID] = struct{}{}
		ids = append(ids, a.DueRecordID)
	}
	return ids
}
