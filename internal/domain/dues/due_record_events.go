package dues

import (
	"github.com/duesledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type names
const (
	EventTypeDueCreated          = "DueCreated"
	EventTypeDuePaymentApplied   = "DuePaymentApplied"
	EventTypeDuePaymentReleased  = "DuePaymentReleased"
	EventTypeDueAmountChanged    = "DueAmountChanged"
	EventTypeDueDeleted          = "DueDeleted"
	EventTypeTransactionRecorded = "TransactionRecorded"
	EventTypeTransactionRevoked  = "TransactionRevoked"
	aggregateTypeDueRecord       = "DueRecord"
	aggregateTypeTransaction     = "Transaction"
)

// DueCreatedEvent is raised when a due record is created
type DueCreatedEvent struct {
	shared.BaseDomainEvent
	OwnerID uuid.UUID       `json:"owner_id"`
	Kind    DueKind         `json:"kind"`
	Label   string          `json:"label"`
	Amount  decimal.Decimal `json:"amount"`
}

// NewDueCreatedEvent creates a new DueCreatedEvent
func NewDueCreatedEvent(d *DueRecord) *DueCreatedEvent {
	return &DueCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDueCreated, aggregateTypeDueRecord, d.ID, d.TenantID),
		OwnerID:         d.OwnerID,
		Kind:            d.Kind,
		Label:           d.Label(),
		Amount:          d.Amount,
	}
}

// DuePaymentAppliedEvent is raised when part of a transaction is allocated to a due
type DuePaymentAppliedEvent struct {
	shared.BaseDomainEvent
	OwnerID        uuid.UUID       `json:"owner_id"`
	TransactionID  uuid.UUID       `json:"transaction_id"`
	Amount         decimal.Decimal `json:"amount"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	PreviousStatus DueStatus       `json:"previous_status"`
	Status         DueStatus       `json:"status"`
}

// NewDuePaymentAppliedEvent creates a new DuePaymentAppliedEvent
func NewDuePaymentAppliedEvent(d *DueRecord, transactionID uuid.UUID, amount decimal.Decimal, previous DueStatus) *DuePaymentAppliedEvent {
	return &DuePaymentAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDuePaymentApplied, aggregateTypeDueRecord, d.ID, d.TenantID),
		OwnerID:         d.OwnerID,
		TransactionID:   transactionID,
		Amount:          amount,
		PaidAmount:      d.PaidAmount,
		PreviousStatus:  previous,
		Status:          d.Status(),
	}
}

// DuePaymentReleasedEvent is raised when a revoked transaction's allocation is rolled back
type DuePaymentReleasedEvent struct {
	shared.BaseDomainEvent
	OwnerID        uuid.UUID       `json:"owner_id"`
	TransactionID  uuid.UUID       `json:"transaction_id"`
	Amount         decimal.Decimal `json:"amount"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	PreviousStatus DueStatus       `json:"previous_status"`
	Status         DueStatus       `json:"status"`
}

// NewDuePaymentReleasedEvent creates a new DuePaymentReleasedEvent
func NewDuePaymentReleasedEvent(d *DueRecord, transactionID uuid.UUID, amount decimal.Decimal, previous DueStatus) *DuePaymentReleasedEvent {
	return &DuePaymentReleasedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDuePaymentReleased, aggregateTypeDueRecord, d.ID, d.TenantID),
		OwnerID:         d.OwnerID,
		TransactionID:   transactionID,
		Amount:          amount,
		PaidAmount:      d.PaidAmount,
		PreviousStatus:  previous,
		Status:          d.Status(),
	}
}

// DueAmountChangedEvent is raised when a due is repriced
type DueAmountChangedEvent struct {
	shared.BaseDomainEvent
	OwnerID   uuid.UUID       `json:"owner_id"`
	OldAmount decimal.Decimal `json:"old_amount"`
	NewAmount decimal.Decimal `json:"new_amount"`
}

// NewDueAmountChangedEvent creates a new DueAmountChangedEvent
func NewDueAmountChangedEvent(d *DueRecord, old decimal.Decimal) *DueAmountChangedEvent {
	return &DueAmountChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDueAmountChanged, aggregateTypeDueRecord, d.ID, d.TenantID),
		OwnerID:         d.OwnerID,
		OldAmount:       old,
		NewAmount:       d.Amount,
	}
}

// DueDeletedEvent is raised after an administrative delete
type DueDeletedEvent struct {
	shared.BaseDomainEvent
	OwnerID            uuid.UUID       `json:"owner_id"`
	Label              string          `json:"label"`
	RemovedAllocations decimal.Decimal `json:"removed_allocations"`
}

// NewDueDeletedEvent creates a new DueDeletedEvent
func NewDueDeletedEvent(d *DueRecord) *DueDeletedEvent {
	return &DueDeletedEvent{
		BaseDomainEvent:    shared.NewBaseDomainEvent(EventTypeDueDeleted, aggregateTypeDueRecord, d.ID, d.TenantID),
		OwnerID:            d.OwnerID,
		Label:              d.Label(),
		RemovedAllocations: d.PaidAmount,
	}
}

// TransactionRecordedEvent is raised when a receipt and its allocations are committed
type TransactionRecordedEvent struct {
	shared.BaseDomainEvent
	OwnerID     uuid.UUID       `json:"owner_id"`
	Mode        PaymentMode     `json:"mode"`
	Amount      decimal.Decimal `json:"amount"`
	Allocated   decimal.Decimal `json:"allocated"`
	Allocations int             `json:"allocations"`
}

// NewTransactionRecordedEvent creates a new TransactionRecordedEvent
func NewTransactionRecordedEvent(t *Transaction) *TransactionRecordedEvent {
	return &TransactionRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTransactionRecorded, aggregateTypeTransaction, t.ID, t.TenantID),
		OwnerID:         t.OwnerID,
		Mode:            t.Mode,
		Amount:          t.Amount,
		Allocated:       t.AllocatedTotal(),
		Allocations:     len(t.Allocations),
	}
}

// TransactionRevokedEvent is raised when a transaction is reversed and deleted
type TransactionRevokedEvent struct {
	shared.BaseDomainEvent
	OwnerID  uuid.UUID       `json:"owner_id"`
	Amount   decimal.Decimal `json:"amount"`
	Released decimal.Decimal `json:"released"`
}

// NewTransactionRevokedEvent creates a new TransactionRevokedEvent
func NewTransactionRevokedEvent(t *Transaction) *TransactionRevokedEvent {
	return &TransactionRevokedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTransactionRevoked, aggregateTypeTransaction, t.ID, t.TenantID),
		OwnerID:         t.OwnerID,
		Amount:          t.Amount,
		Released:        t.AllocatedTotal(),
	}
}
