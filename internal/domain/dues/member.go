package dues

import (
	"strings"
	"time"

	"github.com/duesledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Member is an owner of dues. Its FeeAmount is the FeeConfig default used
// by monthly generation; zero means no default.
type Member struct {
	shared.TenantAggregateRoot
	Name      string
	Active    bool
	FeeAmount decimal.Decimal
}

// FeeConfig is the per-owner default monthly amount
type FeeConfig struct {
	OwnerID uuid.UUID       `json:"owner_id"`
	Amount  decimal.Decimal `json:"amount"`
}

// NewMember creates an active member. A nil id is generated; callers pass
// the identity provider's user id so self-service checks line up.
func NewMember(tenantID, id uuid.UUID, name string, feeAmount decimal.Decimal) (*Member, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Member name cannot be empty")
	}
	if len(name) > 200 {
		return nil, shared.NewDomainError("INVALID_NAME", "Member name cannot exceed 200 characters")
	}
	if feeAmount.IsNegative() {
		return nil, shared.NewDomainError(CodeInvalidAmount, "Fee amount cannot be negative")
	}
	if err := CheckAmountScale("Fee amount", feeAmount); err != nil {
		return nil, err
	}
	m := &Member{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		Active:              true,
		FeeAmount:           feeAmount,
	}
	if id != uuid.Nil {
		m.ID = id
	}
	return m, nil
}

// FeeConfig returns the member's default monthly fee
func (m *Member) FeeConfig() FeeConfig {
	return FeeConfig{OwnerID: m.ID, Amount: m.FeeAmount}
}

// SetFeeAmount updates the default monthly fee
func (m *Member) SetFeeAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return shared.NewDomainError(CodeInvalidAmount, "Fee amount cannot be negative")
	}
	if err := CheckAmountScale("Fee amount", amount); err != nil {
		return err
	}
	m.FeeAmount = amount
	m.touch()
	return nil
}

// HasFee reports whether monthly generation has a default for this member
func (m *Member) HasFee() bool {
	return m.FeeAmount.GreaterThan(decimal.Zero)
}

// Rename changes the display name
func (m *Member) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Member name cannot be empty")
	}
	m.Name = name
	m.touch()
	return nil
}

// Deactivate excludes the member from bulk generation
func (m *Member) Deactivate() {
	m.Active = false
	m.touch()
}

// Activate includes the member in bulk generation again
func (m *Member) Activate() {
	m.Active = true
	m.touch()
}

func (m *Member) touch() {
	m.UpdatedAt = time.Now()
}
