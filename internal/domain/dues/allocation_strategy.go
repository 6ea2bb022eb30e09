package dues

import (
	"fmt"
	"sort"

	"github.com/duesledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationStrategyType names the policy that selected a payment's targets
type AllocationStrategyType string

const (
	AllocationStrategyTargeted    AllocationStrategyType = "TARGETED"     // single due chosen by the caller
	AllocationStrategyExplicit    AllocationStrategyType = "EXPLICIT"     // caller-ordered (due, amount) list
	AllocationStrategyOldestFirst AllocationStrategyType = "OLDEST_FIRST" // outstanding monthly fees by period
)

// IsValid checks if the strategy type is valid
func (t AllocationStrategyType) IsValid() bool {
	switch t {
	case AllocationStrategyTargeted, AllocationStrategyExplicit, AllocationStrategyOldestFirst:
		return true
	}
	return false
}

// String returns the string representation
func (t AllocationStrategyType) String() string {
	return string(t)
}

// AllocationTarget is one due to pay, with an optional cap. A zero Limit
// means the due may absorb as much as the transaction has left.
type AllocationTarget struct {
	Due   *DueRecord
	Limit decimal.Decimal
}

// AllocationStrategy yields the ordered targets a payment is applied to
type AllocationStrategy interface {
	Type() AllocationStrategyType
	Targets() []AllocationTarget
}

// ExplicitAllocation is one caller-chosen (due, amount) pair
type ExplicitAllocation struct {
	DueID  uuid.UUID       `json:"due_id"`
	Amount decimal.Decimal `json:"amount"`
}

// ValidateExplicitAllocations checks a caller-supplied list before any
// write: every amount is positive, no due repeats, and the total does not
// exceed the payment.
func ValidateExplicitAllocations(amount decimal.Decimal, lines []ExplicitAllocation) error {
	if len(lines) == 0 {
		return shared.NewDomainError("INVALID_ALLOCATIONS", "Explicit allocations cannot be empty")
	}
	seen := make(map[uuid.UUID]struct{}, len(lines))
	total := decimal.Zero
	for i, l := range lines {
		if l.Amount.LessThanOrEqual(decimal.Zero) {
			return shared.NewDomainError(CodeInvalidAmount,
				fmt.Sprintf("Allocation %d amount must be positive", i+1))
		}
		if err := CheckAmountScale(fmt.Sprintf("Allocation %d amount", i+1), l.Amount); err != nil {
			return err
		}
		if _, dup := seen[l.DueID]; dup {
			return shared.NewDomainError("INVALID_ALLOCATIONS",
				fmt.Sprintf("Due %s appears more than once", l.DueID))
		}
		seen[l.DueID] = struct{}{}
		total = total.Add(l.Amount)
	}
	if total.GreaterThan(amount) {
		return shared.NewDomainError(CodeInvalidAmount,
			fmt.Sprintf("Allocations total %s exceeds payment amount %s", total, amount))
	}
	return nil
}

// TargetedStrategy pays a single due
type TargetedStrategy struct {
	due *DueRecord
}

// NewTargetedStrategy creates a strategy for one due
func NewTargetedStrategy(due *DueRecord) *TargetedStrategy {
	return &TargetedStrategy{due: due}
}

func (s *TargetedStrategy) Type() AllocationStrategyType { return AllocationStrategyTargeted }

func (s *TargetedStrategy) Targets() []AllocationTarget {
	return []AllocationTarget{{Due: s.due}}
}

// ExplicitStrategy pays the caller's list in the given order. The fallback
// ordering is not consulted.
type ExplicitStrategy struct {
	targets []AllocationTarget
}

// NewExplicitStrategy pairs each line with its loaded due. dues must hold
// every line's due.
func NewExplicitStrategy(lines []ExplicitAllocation, dues map[uuid.UUID]*DueRecord) (*ExplicitStrategy, error) {
	targets := make([]AllocationTarget, 0, len(lines))
	for _, l := range lines {
		due, ok := dues[l.DueID]
		if !ok {
			return nil, NewDueNotFoundError(l.DueID)
		}
		targets = append(targets, AllocationTarget{Due: due, Limit: l.Amount})
	}
	return &ExplicitStrategy{targets: targets}, nil
}

func (s *ExplicitStrategy) Type() AllocationStrategyType { return AllocationStrategyExplicit }

func (s *ExplicitStrategy) Targets() []AllocationTarget { return s.targets }

// OldestFirstStrategy pays outstanding monthly fees in ascending period order
type OldestFirstStrategy struct {
	dues []*DueRecord
}

// NewOldestFirstStrategy keeps outstanding MONTHLY_FEE dues and sorts them
// year ascending then month ascending.
func NewOldestFirstStrategy(candidates []*DueRecord) *OldestFirstStrategy {
	dues := make([]*DueRecord, 0, len(candidates))
	for _, d := range candidates {
		if d.IsMonthly() && d.Status().IsOutstanding() {
			dues = append(dues, d)
		}
	}
	sort.SliceStable(dues, func(i, j int) bool {
		return dues[i].OlderThan(dues[j])
	})
	return &OldestFirstStrategy{dues: dues}
}

func (s *OldestFirstStrategy) Type() AllocationStrategyType { return AllocationStrategyOldestFirst }

func (s *OldestFirstStrategy) Targets() []AllocationTarget {
	targets := make([]AllocationTarget, len(s.dues))
	for i, d := range s.dues {
		targets[i] = AllocationTarget{Due: d}
	}
	return targets
}

// AllocationResult summarizes how a transaction was spread across dues
type AllocationResult struct {
	Strategy          AllocationStrategyType
	TotalAllocated    decimal.Decimal
	RemainingAmount   decimal.Decimal
	FullyAllocated    bool
	DuesFullyPaid     []uuid.UUID
	DuesPartiallyPaid []uuid.UUID
	Touched           []*DueRecord
}

// ApplyStrategy walks the strategy's targets and allocates tx against each
// until the transaction is exhausted.
func ApplyStrategy(tx *Transaction, strategy AllocationStrategy) (*AllocationResult, error) {
	result := &AllocationResult{
		Strategy:          strategy.Type(),
		TotalAllocated:    decimal.Zero,
		DuesFullyPaid:     make([]uuid.UUID, 0),
		DuesPartiallyPaid: make([]uuid.UUID, 0),
		Touched:           make([]*DueRecord, 0),
	}

	for _, target := range strategy.Targets() {
		remaining := tx.Unallocated()
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		requested := remaining
		if target.Limit.GreaterThan(decimal.Zero) {
			requested = decimal.Min(requested, target.Limit)
		}
		applied, err := tx.Allocate(target.Due, requested)
		if err != nil {
			return nil, err
		}
		if applied.IsZero() {
			continue
		}
		result.TotalAllocated = result.TotalAllocated.Add(applied)
		result.Touched = append(result.Touched, target.Due)
		if target.Due.Status() == DueStatusPaid {
			result.DuesFullyPaid = append(result.DuesFullyPaid, target.Due.ID)
		} else {
			result.DuesPartiallyPaid = append(result.DuesPartiallyPaid, target.Due.ID)
		}
	}

	result.RemainingAmount = tx.Unallocated()
	result.FullyAllocated = result.RemainingAmount.IsZero()
	return result, nil
}
