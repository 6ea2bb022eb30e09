package dues

import (
	"fmt"

	"github.com/duesledger/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Error codes surfaced by the dues ledger
const (
	CodeInvalidAmount      = "INVALID_AMOUNT"
	CodeDueNotFound        = "DUE_NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeDuplicateDue       = "DUPLICATE_DUE"
	CodeAllocationOverflow = "ALLOCATION_OVERFLOW"
	CodeReversalConflict   = "REVERSAL_CONFLICT"
	CodeStorageError       = "STORAGE_ERROR"
	CodeMemberNotFound     = "MEMBER_NOT_FOUND"
	CodeInvalidPeriod      = "INVALID_PERIOD"
	CodeInvalidTitle       = "INVALID_TITLE"
	CodeInvalidMode        = "INVALID_MODE"
	CodeTransactionMissing = "TRANSACTION_NOT_FOUND"
)

// Sentinels for errors.Is; DomainError compares by code.
var (
	ErrInvalidAmount      = shared.NewDomainError(CodeInvalidAmount, "Amount must be positive")
	ErrDueNotFound        = shared.NewDomainError(CodeDueNotFound, "Due record not found")
	ErrUnauthorized       = shared.NewDomainError(CodeUnauthorized, "Caller lacks the required capability")
	ErrDuplicateDue       = shared.NewDomainError(CodeDuplicateDue, "A monthly due already exists for this owner and period")
	ErrAllocationOverflow = shared.NewDomainError(CodeAllocationOverflow, "Paid amount would leave the range [0, amount]")
	ErrReversalConflict   = shared.NewDomainError(CodeReversalConflict, "Transaction cannot be reversed")
	ErrStorage            = shared.NewDomainError(CodeStorageError, "Storage operation failed")
	ErrMemberNotFound     = shared.NewDomainError(CodeMemberNotFound, "Member not found")
	ErrTransactionMissing = shared.NewDomainError(CodeTransactionMissing, "Transaction not found")
	ErrInvalidMode        = shared.NewDomainError(CodeInvalidMode, "Unknown payment mode")
)

// NewDueNotFoundError reports a due id that does not resolve for the owner
func NewDueNotFoundError(id uuid.UUID) error {
	return shared.NewDomainError(CodeDueNotFound, fmt.Sprintf("Due record %s not found", id))
}

// NewReversalConflictError reports why a transaction cannot be revoked
func NewReversalConflictError(format string, args ...any) error {
	return shared.NewDomainError(CodeReversalConflict, fmt.Sprintf(format, args...))
}

// NewDuplicateDueError reports a second monthly due for the same owner and period
func NewDuplicateDueError(ownerID uuid.UUID, period Period) error {
	return shared.NewDomainError(CodeDuplicateDue,
		fmt.Sprintf("Owner %s already has a monthly due for %s", ownerID, period))
}
