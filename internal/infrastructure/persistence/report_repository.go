package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/duesledger/backend/internal/domain/dues"
	"github.com/duesledger/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormReportRepository implements ReportRepository with aggregate SQL over
// the ledger tables. Multi-query reports run inside one read-only
// transaction so every figure comes from the same snapshot.
type GormReportRepository struct {
	db *gorm.DB
}

// NewGormReportRepository creates a new GormReportRepository
func NewGormReportRepository(db *gorm.DB) *GormReportRepository {
	return &GormReportRepository{db: db}
}

// OwnerTotals aggregates dues per owner. A nil ownerID covers every owner.
func (r *GormReportRepository) OwnerTotals(ctx context.Context, tenantID uuid.UUID, ownerID *uuid.UUID) ([]dues.OwnerTotals, error) {
	rows, err := ownerTotals(r.db.WithContext(ctx), tenantID, ownerID)
	if err != nil {
		return nil, storageError("owner totals", err)
	}
	return rows, nil
}

// OwnerLedger loads the owner's totals and every due they cover inside one
// read-only transaction
func (r *GormReportRepository) OwnerLedger(ctx context.Context, tenantID, ownerID uuid.UUID) (*dues.OwnerLedger, error) {
	ledger := &dues.OwnerLedger{Totals: dues.OwnerTotals{OwnerID: ownerID}}
	err := r.readOnly(ctx, func(tx *gorm.DB) error {
		totals, err := ownerTotals(tx, tenantID, &ownerID)
		if err != nil {
			return err
		}
		if len(totals) > 0 {
			ledger.Totals = totals[0]
		}

		var rows []models.DueRecordModel
		if err := tx.Scopes(TenantScope(tenantID)).
			Where("owner_id = ?", ownerID).
			Order("created_at ASC, id ASC").
			Find(&rows).Error; err != nil {
			return err
		}
		ledger.Dues = dueRecordsToDomain(rows)
		return nil
	})
	if err != nil {
		return nil, storageError("owner ledger", err)
	}
	return ledger, nil
}

func ownerTotals(db *gorm.DB, tenantID uuid.UUID, ownerID *uuid.UUID) ([]dues.OwnerTotals, error) {
	query := db.Table("due_records d").
		Select(`
			d.owner_id AS owner_id,
			COALESCE(m.name, '') AS owner_name,
			COUNT(*) AS due_count,
			COALESCE(SUM(d.amount), 0) AS total_amount,
			COALESCE(SUM(d.paid_amount), 0) AS total_paid,
			COALESCE(SUM(d.amount - d.paid_amount), 0) AS outstanding,
			SUM(CASE WHEN d.status = ? THEN 1 ELSE 0 END) AS pending_count,
			SUM(CASE WHEN d.status = ? THEN 1 ELSE 0 END) AS partial_count,
			SUM(CASE WHEN d.status = ? THEN 1 ELSE 0 END) AS paid_count
		`, string(dues.DueStatusPending), string(dues.DueStatusPartial), string(dues.DueStatusPaid)).
		Joins("LEFT JOIN members m ON m.id = d.owner_id AND m.tenant_id = d.tenant_id").
		Where("d.tenant_id = ?", tenantID)
	if ownerID != nil {
		query = query.Where("d.owner_id = ?", *ownerID)
	}

	var rows []dues.OwnerTotals
	if err := query.
		Group("d.owner_id, m.name").
		Order("owner_name ASC, d.owner_id ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []dues.OwnerTotals{}
	}
	return rows, nil
}

// PeriodGrid lists the monthly dues of year, one cell per owner and month
func (r *GormReportRepository) PeriodGrid(ctx context.Context, tenantID uuid.UUID, year int) ([]dues.PeriodCell, error) {
	var cells []dues.PeriodCell
	if err := r.db.WithContext(ctx).Table("due_records").
		Select("owner_id, id AS due_id, month, year, amount, paid_amount").
		Where("tenant_id = ? AND kind = ? AND year = ?", tenantID, string(dues.DueKindMonthlyFee), year).
		Order("owner_id ASC, month ASC").
		Scan(&cells).Error; err != nil {
		return nil, storageError("period grid", err)
	}
	return cells, nil
}

// Overview computes the organization totals. dayStart and dayEnd bound
// today's collections as a half-open interval.
func (r *GormReportRepository) Overview(ctx context.Context, tenantID uuid.UUID, dayStart, dayEnd time.Time) (*dues.Overview, error) {
	overview := &dues.Overview{}
	err := r.readOnly(ctx, func(tx *gorm.DB) error {
		var received struct {
			Total decimal.Decimal
			Today decimal.Decimal
		}
		if err := tx.Table("transactions").
			Select(`
				COALESCE(SUM(amount), 0) AS total,
				COALESCE(SUM(CASE WHEN timestamp >= ? AND timestamp < ? THEN amount ELSE 0 END), 0) AS today
			`, dayStart, dayEnd).
			Where("tenant_id = ? AND mode <> ?", tenantID, string(dues.PaymentModeAdjustment)).
			Scan(&received).Error; err != nil {
			return err
		}

		var ledger struct {
			Collected     decimal.Decimal
			PendingFees   decimal.Decimal
			PendingEvents decimal.Decimal
			Outstanding   int64
		}
		if err := tx.Table("due_records").
			Select(`
				COALESCE(SUM(paid_amount), 0) AS collected,
				COALESCE(SUM(CASE WHEN kind = ? THEN amount - paid_amount ELSE 0 END), 0) AS pending_fees,
				COALESCE(SUM(CASE WHEN kind = ? THEN amount - paid_amount ELSE 0 END), 0) AS pending_events,
				COALESCE(SUM(CASE WHEN status IN ? THEN 1 ELSE 0 END), 0) AS outstanding
			`, string(dues.DueKindMonthlyFee), string(dues.DueKindEvent), outstandingStatuses()).
			Where("tenant_id = ?", tenantID).
			Scan(&ledger).Error; err != nil {
			return err
		}

		var members int64
		if err := tx.Table("members").
			Where("tenant_id = ? AND active = ?", tenantID, true).
			Count(&members).Error; err != nil {
			return err
		}

		overview.TotalReceived = received.Total
		overview.TodayCollections = received.Today
		overview.TotalCollected = ledger.Collected
		overview.PendingFees = ledger.PendingFees
		overview.PendingEvents = ledger.PendingEvents
		overview.OutstandingDues = ledger.Outstanding
		overview.MemberCount = members
		return nil
	})
	if err != nil {
		return nil, storageError("overview", err)
	}
	return overview, nil
}

// CohortSummaries rolls up event dues by title
func (r *GormReportRepository) CohortSummaries(ctx context.Context, tenantID uuid.UUID) ([]dues.CohortSummary, error) {
	var rows []dues.CohortSummary
	if err := r.db.WithContext(ctx).Table("due_records").
		Select(`
			title,
			COUNT(*) AS due_count,
			COALESCE(SUM(amount), 0) AS total_amount,
			COALESCE(SUM(paid_amount), 0) AS total_paid
		`).
		Where("tenant_id = ? AND kind = ?", tenantID, string(dues.DueKindEvent)).
		Group("title").
		Order("title ASC").
		Scan(&rows).Error; err != nil {
		return nil, storageError("cohort summaries", err)
	}
	if rows == nil {
		rows = []dues.CohortSummary{}
	}
	return rows, nil
}

// readOnly runs fn in a read-only repeatable-read transaction on Postgres.
// Other dialects get a plain transaction.
func (r *GormReportRepository) readOnly(ctx context.Context, fn func(tx *gorm.DB) error) error {
	db := r.db.WithContext(ctx)
	if db.Dialector.Name() != "postgres" {
		return db.Transaction(fn)
	}
	return db.Transaction(fn, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
}

var _ dues.ReportRepository = (*GormReportRepository)(nil)
