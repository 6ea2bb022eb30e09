package persistence

import (
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/duesledger/backend/internal/domain/dues"
	"github.com/duesledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormDueRecordRepository_CreateAndFind(t *testing.T) {
	f := newLedgerFixture(t)
	owner := f.member(t, "Asha", "100")

	t.Run("round trips a monthly due", func(t *testing.T) {
		due := f.monthly(t, owner.ID, 3, 2024, "100")

		got, err := f.dues.FindByIDForTenant(t.Context(), f.tenantID, due.ID)
		require.NoError(t, err)
		assert.Equal(t, dues.DueKindMonthlyFee, got.Kind)
		require.NotNil(t, got.Period)
		assert.Equal(t, dues.Period{Month: 3, Year: 2024}, *got.Period)
		assert.True(t, got.Amount.Equal(dec("100")))
		assert.True(t, got.PaidAmount.IsZero())
		assert.Equal(t, 1, got.Version)
	})

	t.Run("round trips an event due", func(t *testing.T) {
		due := f.event(t, owner.ID, "Annual Picnic", "25.50")

		got, err := f.dues.FindByIDForTenant(t.Context(), f.tenantID, due.ID)
		require.NoError(t, err)
		assert.Nil(t, got.Period)
		assert.Equal(t, "Annual Picnic", got.Title)
		assert.True(t, got.Amount.Equal(dec("25.5")))
	})

	t.Run("unknown id is DUE_NOT_FOUND", func(t *testing.T) {
		_, err := f.dues.FindByIDForTenant(t.Context(), f.tenantID, uuid.New())
		assert.ErrorIs(t, err, dues.ErrDueNotFound)
	})

	t.Run("other tenant cannot see the due", func(t *testing.T) {
		due := f.monthly(t, owner.ID, 4, 2024, "100")
		_, err := f.dues.FindByIDForTenant(t.Context(), uuid.New(), due.ID)
		assert.ErrorIs(t, err, dues.ErrDueNotFound)
	})
}

func TestGormDueRecordRepository_DuplicatePeriod(t *testing.T) {
	f := newLedgerFixture(t)
	owner := f.member(t, "Asha", "100")
	f.monthly(t, owner.ID, 1, 2025, "100")

	second, err := dues.NewMonthlyDue(f.tenantID, owner.ID, dues.Period{Month: 1, Year: 2025}, dec("100"))
	require.NoError(t, err)
	err = f.dues.Create(t.Context(), second)
	assert.ErrorIs(t, err, dues.ErrDuplicateDue)

	// Event dues carry no period and never collide
	f.event(t, owner.ID, "Gala", "10")
	f.event(t, owner.ID, "Gala", "10")
}

func TestGormDueRecordRepository_FindOutstandingByOwner(t *testing.T) {
	f := newLedgerFixture(t)
	owner := f.member(t, "Asha", "100")
	other := f.member(t, "Ben", "100")

	mar24 := f.monthly(t, owner.ID, 3, 2024, "100")
	event := f.event(t, owner.ID, "Gala", "40")
	feb25 := f.monthly(t, owner.ID, 2, 2025, "100")
	jan24 := f.monthly(t, owner.ID, 1, 2024, "100")
	paid := f.monthly(t, owner.ID, 12, 2023, "100")
	f.pay(t, owner.ID, dues.PaymentModeCash, "100", paid)
	f.monthly(t, other.ID, 1, 2020, "100")

	got, err := f.dues.FindOutstandingByOwner(t.Context(), f.tenantID, owner.ID, nil, true)
	require.NoError(t, err)
	ids := make([]uuid.UUID, len(got))
	for i := range got {
		ids[i] = got[i].ID
	}
	assert.Equal(t, []uuid.UUID{jan24.ID, mar24.ID, feb25.ID, event.ID}, ids)

	monthly := dues.DueKindMonthlyFee
	got, err = f.dues.FindOutstandingByOwner(t.Context(), f.tenantID, owner.ID, &monthly, false)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestGormDueRecordRepository_SaveWithLock(t *testing.T) {
	f := newLedgerFixture(t)
	owner := f.member(t, "Asha", "100")
	due := f.monthly(t, owner.ID, 1, 2025, "100")

	stale, err := f.dues.FindByIDForTenant(t.Context(), f.tenantID, due.ID)
	require.NoError(t, err)

	require.NoError(t, due.Apply(dec("40"), uuid.New()))
	require.NoError(t, f.dues.SaveWithLock(t.Context(), due))
	assert.Equal(t, 2, due.Version)

	got, err := f.dues.FindByIDForTenant(t.Context(), f.tenantID, due.ID)
	require.NoError(t, err)
	assert.True(t, got.PaidAmount.Equal(dec("40")))
	assert.Equal(t, dues.DueStatusPartial, got.Status())
	assert.Equal(t, 2, got.Version)

	require.NoError(t, stale.Apply(dec("10"), uuid.New()))
	err = f.dues.SaveWithLock(t.Context(), stale)
	assert.ErrorIs(t, err, shared.ErrOptimisticLock)
	assert.Equal(t, 1, stale.Version)

	status := dues.DueStatusPartial
	count, err := f.dues.CountForTenant(t.Context(), f.tenantID, dues.DueRecordFilter{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestGormDueRecordRepository_DeleteCascadesAllocations(t *testing.T) {
	f := newLedgerFixture(t)
	owner := f.member(t, "Asha", "100")
	jan := f.monthly(t, owner.ID, 1, 2025, "100")
	feb := f.monthly(t, owner.ID, 2, 2025, "100")
	tx := f.pay(t, owner.ID, dues.PaymentModeCash, "150", jan, feb)

	require.NoError(t, f.dues.Delete(t.Context(), f.tenantID, feb.ID))

	_, err := f.dues.FindByIDForTenant(t.Context(), f.tenantID, feb.ID)
	assert.ErrorIs(t, err, dues.ErrDueNotFound)

	loaded, err := f.txs.FindByIDForTenant(t.Context(), f.tenantID, tx.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Allocations, 1)
	assert.Equal(t, jan.ID, loaded.Allocations[0].DueRecordID)
	assert.True(t, loaded.RecordedAllocated.Equal(dec("150")), "recorded total survives the cascade")

	err = f.dues.Delete(t.Context(), f.tenantID, feb.ID)
	assert.ErrorIs(t, err, dues.ErrDueNotFound)
}

func TestGormDueRecordRepository_CohortAndPeriodQueries(t *testing.T) {
	f := newLedgerFixture(t)
	a := f.member(t, "Asha", "100")
	b := f.member(t, "Ben", "100")
	f.event(t, a.ID, "Gala", "10")
	f.event(t, b.ID, "Gala", "10")
	f.event(t, b.ID, "Picnic", "5")
	f.monthly(t, a.ID, 6, 2025, "100")

	cohort, err := f.dues.FindByCohort(t.Context(), f.tenantID, "Gala")
	require.NoError(t, err)
	require.Len(t, cohort, 2)
	assert.True(t, cohort[0].ID.String() < cohort[1].ID.String(), "cohort is id ordered")

	owners, err := f.dues.FindOwnerIDsWithPeriod(t.Context(), f.tenantID, dues.Period{Month: 6, Year: 2025})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a.ID}, owners)

	event := dues.DueKindEvent
	filter := dues.DueRecordFilter{Filter: shared.Filter{Page: 1, PageSize: 2, OrderBy: "title", OrderDir: "asc"}, Kind: &event}
	page, err := f.dues.FindAllForTenant(t.Context(), f.tenantID, filter)
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, "Gala", page[0].Title)

	filter.Page = 2
	page, err = f.dues.FindAllForTenant(t.Context(), f.tenantID, filter)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Picnic", page[0].Title)

	total, err := f.dues.CountForTenant(t.Context(), f.tenantID, dues.DueRecordFilter{OwnerID: &b.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestGormDueRecordRepository_SQLShape(t *testing.T) {
	t.Run("FindByIDForUpdate takes a row lock", func(t *testing.T) {
		db, mock, _ := newMockDB(t)
		repo := NewGormDueRecordRepository(db)
		tenantID, id := uuid.New(), uuid.New()

		rows := sqlmock.NewRows([]string{"id", "tenant_id", "owner_id", "kind", "month", "year", "title", "amount", "paid_amount", "status", "version"}).
			AddRow(id.String(), tenantID.String(), uuid.NewString(), "MONTHLY_FEE", 1, 2025, "", "100", "0", "PENDING", 3)
		mock.ExpectQuery(`SELECT \* FROM "due_records" WHERE .*tenant_id = .* LIMIT \$3 FOR UPDATE`).
			WillReturnRows(rows)

		due, err := repo.FindByIDForUpdate(t.Context(), tenantID, id)
		require.NoError(t, err)
		assert.Equal(t, 3, due.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("SaveWithLock guards on the loaded version", func(t *testing.T) {
		db, mock, _ := newMockDB(t)
		repo := NewGormDueRecordRepository(db)
		due, err := dues.NewMonthlyDue(uuid.New(), uuid.New(), dues.Period{Month: 1, Year: 2025}, dec("100"))
		require.NoError(t, err)
		due.Version = 4

		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "due_records" SET`) + `.*"version"=\$\d.*` + regexp.QuoteMeta(`WHERE tenant_id = `) + `\$\d+ AND id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err = repo.SaveWithLock(t.Context(), due)
		assert.ErrorIs(t, err, shared.ErrOptimisticLock)
		assert.Equal(t, 4, due.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("FindOutstandingByOwner locks in id order", func(t *testing.T) {
		db, mock, _ := newMockDB(t)
		repo := NewGormDueRecordRepository(db)
		tenantID, ownerID := uuid.New(), uuid.New()
		low, high := uuid.MustParse("00000000-0000-0000-0000-000000000001"), uuid.MustParse("00000000-0000-0000-0000-000000000002")

		rows := sqlmock.NewRows([]string{"id", "tenant_id", "owner_id", "kind", "month", "year", "title", "amount", "paid_amount", "status", "version"}).
			AddRow(low.String(), tenantID.String(), ownerID.String(), "MONTHLY_FEE", 5, 2025, "", "100", "0", "PENDING", 1).
			AddRow(high.String(), tenantID.String(), ownerID.String(), "MONTHLY_FEE", 1, 2024, "", "100", "0", "PENDING", 1)
		mock.ExpectQuery(`SELECT \* FROM "due_records" WHERE .*owner_id = .* ORDER BY id ASC FOR UPDATE`).
			WillReturnRows(rows)

		got, err := repo.FindOutstandingByOwner(t.Context(), tenantID, ownerID, nil, true)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, high, got[0].ID, "returned oldest first after locking")
		assert.Equal(t, low, got[1].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("driver failures are STORAGE_ERROR", func(t *testing.T) {
		db, mock, _ := newMockDB(t)
		repo := NewGormDueRecordRepository(db)
		mock.ExpectQuery(`SELECT`).WillReturnError(assert.AnError)

		_, err := repo.FindByIDForTenant(t.Context(), uuid.New(), uuid.New())
		assert.ErrorIs(t, err, dues.ErrStorage)
		assert.ErrorIs(t, err, assert.AnError)
	})
}
