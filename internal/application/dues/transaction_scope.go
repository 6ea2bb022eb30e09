package dues

import (
	"context"

	"github.com/duesledger/backend/internal/domain/dues"
)

// TransactionScope defines an interface for executing operations within a database transaction.
// This abstraction allows the application layer to manage transactions without depending
// on infrastructure details like GORM.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the ledger repositories within a transaction.
// All repositories returned share the same underlying database transaction, so a
// FindByIDForUpdate lock taken through one is held until Execute returns.
type TransactionalRepositories interface {
	// DueRepo returns the due record repository scoped to the current transaction
	DueRepo() dues.DueRecordRepository
	// TransactionRepo returns the transaction ledger repository scoped to the current transaction
	TransactionRepo() dues.TransactionRepository
	// MemberRepo returns the member repository scoped to the current transaction
	MemberRepo() dues.MemberRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use transactions.
// This is useful for testing or when transaction support is not required.
type NoOpTransactionScope struct {
	dueRepo         dues.DueRecordRepository
	transactionRepo dues.TransactionRepository
	memberRepo      dues.MemberRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	dueRepo dues.DueRecordRepository,
	transactionRepo dues.TransactionRepository,
	memberRepo dues.MemberRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		dueRepo:         dueRepo,
		transactionRepo: transactionRepo,
		memberRepo:      memberRepo,
	}
}

// Execute runs the function directly without a transaction.
func (s *NoOpTransactionScope) Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// DueRepo returns the due record repository
func (s *NoOpTransactionScope) DueRepo() dues.DueRecordRepository {
	return s.dueRepo
}

// TransactionRepo returns the transaction repository
func (s *NoOpTransactionScope) TransactionRepo() dues.TransactionRepository {
	return s.transactionRepo
}

// MemberRepo returns the member repository
func (s *NoOpTransactionScope) MemberRepo() dues.MemberRepository {
	return s.memberRepo
}

var (
	_ TransactionScope          = (*NoOpTransactionScope)(nil)
	_ TransactionalRepositories = (*NoOpTransactionScope)(nil)
)
