package persistence

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/duesledger/backend/internal/domain/dues"
	"github.com/duesledger/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// newSQLiteDB opens a private in-memory database on a single connection so
// every statement sees the same schema.
func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := Open(sqlite.Open(dsn), nil, Options{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

// newMockDB returns a postgres-dialect GORM session over sqlmock
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true, TranslateError: true})
	require.NoError(t, err)
	return gormDB, mock, mockDB
}

type ledgerFixture struct {
	db       *gorm.DB
	dues     *GormDueRecordRepository
	txs      *GormTransactionRepository
	members  *GormMemberRepository
	reports  *GormReportRepository
	tenantID uuid.UUID
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	db := newSQLiteDB(t)
	return &ledgerFixture{
		db:       db,
		dues:     NewGormDueRecordRepository(db),
		txs:      NewGormTransactionRepository(db),
		members:  NewGormMemberRepository(db),
		reports:  NewGormReportRepository(db),
		tenantID: uuid.New(),
	}
}

func (f *ledgerFixture) member(t *testing.T, name, fee string) *dues.Member {
	t.Helper()
	m, err := dues.NewMember(f.tenantID, uuid.New(), name, dec(fee))
	require.NoError(t, err)
	require.NoError(t, f.members.Save(t.Context(), m))
	return m
}

func (f *ledgerFixture) monthly(t *testing.T, ownerID uuid.UUID, month, year int, amount string) *dues.DueRecord {
	t.Helper()
	due, err := dues.NewMonthlyDue(f.tenantID, ownerID, dues.Period{Month: month, Year: year}, dec(amount))
	require.NoError(t, err)
	require.NoError(t, f.dues.Create(t.Context(), due))
	return due
}

func (f *ledgerFixture) event(t *testing.T, ownerID uuid.UUID, title, amount string) *dues.DueRecord {
	t.Helper()
	due, err := dues.NewEventDue(f.tenantID, ownerID, title, dec(amount))
	require.NoError(t, err)
	require.NoError(t, f.dues.Create(t.Context(), due))
	return due
}

// pay allocates amount across the given dues in order and persists both sides
func (f *ledgerFixture) pay(t *testing.T, ownerID uuid.UUID, mode dues.PaymentMode, amount string, targets ...*dues.DueRecord) *dues.Transaction {
	t.Helper()
	tx, err := dues.NewTransaction(f.tenantID, ownerID, dec(amount), mode, "", "")
	require.NoError(t, err)
	for _, due := range targets {
		_, err := tx.Allocate(due, due.Outstanding())
		require.NoError(t, err)
		require.NoError(t, f.dues.SaveWithLock(t.Context(), due))
	}
	require.NoError(t, f.txs.Create(t.Context(), tx))
	return tx
}
