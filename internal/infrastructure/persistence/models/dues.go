package models

import (
	"time"

	"github.com/duesledger/backend/internal/domain/dues"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemberModel is the persistence model for the Member aggregate root.
type MemberModel struct {
	TenantAggregateModel
	Name      string          `gorm:"type:varchar(200);not null"`
	Active    bool            `gorm:"not null;default:true;index"`
	FeeAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (MemberModel) TableName() string {
	return "members"
}

// ToDomain converts the persistence model to a domain Member entity.
func (m *MemberModel) ToDomain() *dues.Member {
	member := &dues.Member{
		Name:      m.Name,
		Active:    m.Active,
		FeeAmount: m.FeeAmount,
	}
	m.PopulateTenantAggregateRoot(&member.TenantAggregateRoot)
	return member
}

// FromDomain populates the persistence model from a domain Member entity.
func (m *MemberModel) FromDomain(member *dues.Member) {
	m.FromDomainTenantAggregateRoot(member.TenantAggregateRoot)
	m.Name = member.Name
	m.Active = member.Active
	m.FeeAmount = member.FeeAmount
}

// MemberModelFromDomain creates a new persistence model from a domain Member entity.
func MemberModelFromDomain(member *dues.Member) *MemberModel {
	m := &MemberModel{}
	m.FromDomain(member)
	return m
}

// DueRecordModel is the persistence model for the DueRecord aggregate root.
// Month and Year are NULL for event dues, so the unique period index only
// constrains monthly dues.
type DueRecordModel struct {
	TenantAggregateModel
	OwnerID    uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:idx_due_records_owner_period,priority:1"`
	Kind       string          `gorm:"type:varchar(20);not null;index"`
	Month      *int            `gorm:"uniqueIndex:idx_due_records_owner_period,priority:2"`
	Year       *int            `gorm:"uniqueIndex:idx_due_records_owner_period,priority:3"`
	Title      string          `gorm:"type:varchar(200);not null;default:'';index"`
	Amount     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	PaidAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Status     string          `gorm:"type:varchar(20);not null;index"`
}

// TableName returns the table name for GORM
func (DueRecordModel) TableName() string {
	return "due_records"
}

// ToDomain converts the persistence model to a domain DueRecord entity.
func (m *DueRecordModel) ToDomain() *dues.DueRecord {
	due := &dues.DueRecord{
		OwnerID:    m.OwnerID,
		Kind:       dues.DueKind(m.Kind),
		Title:      m.Title,
		Amount:     m.Amount,
		PaidAmount: m.PaidAmount,
	}
	m.PopulateTenantAggregateRoot(&due.TenantAggregateRoot)
	if m.Month != nil && m.Year != nil {
		due.Period = &dues.Period{Month: *m.Month, Year: *m.Year}
	}
	return due
}

// FromDomain populates the persistence model from a domain DueRecord entity.
func (m *DueRecordModel) FromDomain(due *dues.DueRecord) {
	m.FromDomainTenantAggregateRoot(due.TenantAggregateRoot)
	m.OwnerID = due.OwnerID
	m.Kind = string(due.Kind)
	m.Title = due.Title
	m.Amount = due.Amount
	m.PaidAmount = due.PaidAmount
	m.Status = string(due.Status())
	m.Month, m.Year = nil, nil
	if due.Period != nil {
		month, year := due.Period.Month, due.Period.Year
		m.Month = &month
		m.Year = &year
	}
}

// DueRecordModelFromDomain creates a new persistence model from a domain DueRecord entity.
func DueRecordModelFromDomain(due *dues.DueRecord) *DueRecordModel {
	m := &DueRecordModel{}
	m.FromDomain(due)
	return m
}

// TransactionModel is the persistence model for the Transaction aggregate root.
type TransactionModel struct {
	TenantAggregateModel
	OwnerID           uuid.UUID         `gorm:"type:uuid;not null;index"`
	Amount            decimal.Decimal   `gorm:"type:decimal(18,4);not null"`
	Mode              string            `gorm:"type:varchar(20);not null;index"`
	Reference         string            `gorm:"type:varchar(100);not null;default:''"`
	Note              string            `gorm:"type:varchar(500);not null;default:''"`
	Timestamp         time.Time         `gorm:"not null;index"`
	RecordedAllocated decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	Allocations       []AllocationModel `gorm:"foreignKey:TransactionID;references:ID"`
}

// TableName returns the table name for GORM
func (TransactionModel) TableName() string {
	return "transactions"
}

// ToDomain converts the persistence model to a domain Transaction entity.
func (m *TransactionModel) ToDomain() *dues.Transaction {
	tx := &dues.Transaction{
		OwnerID:           m.OwnerID,
		Amount:            m.Amount,
		Mode:              dues.PaymentMode(m.Mode),
		Reference:         m.Reference,
		Note:              m.Note,
		Timestamp:         m.Timestamp,
		RecordedAllocated: m.RecordedAllocated,
		Allocations:       make([]dues.Allocation, len(m.Allocations)),
	}
	m.PopulateTenantAggregateRoot(&tx.TenantAggregateRoot)
	for i := range m.Allocations {
		tx.Allocations[i] = m.Allocations[i].ToDomain()
	}
	return tx
}

// FromDomain populates the persistence model from a domain Transaction entity.
func (m *TransactionModel) FromDomain(tx *dues.Transaction) {
	m.FromDomainTenantAggregateRoot(tx.TenantAggregateRoot)
	m.OwnerID = tx.OwnerID
	m.Amount = tx.Amount
	m.Mode = string(tx.Mode)
	m.Reference = tx.Reference
	m.Note = tx.Note
	m.Timestamp = tx.Timestamp
	m.RecordedAllocated = tx.RecordedAllocated
	m.Allocations = make([]AllocationModel, len(tx.Allocations))
	for i := range tx.Allocations {
		m.Allocations[i] = AllocationModelFromDomain(tx.Allocations[i])
	}
}

// TransactionModelFromDomain creates a new persistence model from a domain Transaction entity.
func TransactionModelFromDomain(tx *dues.Transaction) *TransactionModel {
	m := &TransactionModel{}
	m.FromDomain(tx)
	return m
}

// AllocationModel is the persistence model for one transaction-to-due link.
type AllocationModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key"`
	TenantID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	TransactionID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	DueRecordID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	AllocatedAmount decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CreatedAt       time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AllocationModel) TableName() string {
	return "allocations"
}

// ToDomain converts the persistence model to a domain Allocation.
func (m *AllocationModel) ToDomain() dues.Allocation {
	return dues.Allocation{
		ID:              m.ID,
		TenantID:        m.TenantID,
		TransactionID:   m.TransactionID,
		DueRecordID:     m.DueRecordID,
		AllocatedAmount: m.AllocatedAmount,
		CreatedAt:       m.CreatedAt,
	}
}

// AllocationModelFromDomain creates a persistence model from a domain Allocation.
func AllocationModelFromDomain(a dues.Allocation) AllocationModel {
	return AllocationModel{
		ID:              a.ID,
		TenantID:        a.TenantID,
		TransactionID:   a.TransactionID,
		DueRecordID:     a.DueRecordID,
		AllocatedAmount: a.AllocatedAmount,
		CreatedAt:       a.CreatedAt,
	}
}

// AllModels lists every model in migration order.
func AllModels() []any {
	return []any{
		&MemberModel{},
		&DueRecordModel{},
		&TransactionModel{},
		&AllocationModel{},
	}
}
