package persistence

import (
	"context"

	appdues "github.com/duesledger/backend/internal/application/dues"
	"github.com/duesledger/backend/internal/domain/dues"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// Row locks taken through the scoped repositories are held until Execute returns.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn in one database transaction. A returned error rolls back
// every write fn made.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appdues.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) DueRepo() dues.DueRecordRepository {
	return NewGormDueRecordRepository(r.tx)
}

func (r *gormTransactionalRepositories) TransactionRepo() dues.TransactionRepository {
	return NewGormTransactionRepository(r.tx)
}

func (r *gormTransactionalRepositories) MemberRepo() dues.MemberRepository {
	return NewGormMemberRepository(r.tx)
}

var (
	_ appdues.TransactionScope          = (*GormTransactionScope)(nil)
	_ appdues.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
)
