package persistence

import (
	"context"
	"sort"

	"github.com/duesledger/backend/internal/domain/dues"
	"github.com/duesledger/backend/internal/domain/shared"
	"github.com/duesledger/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// oldestFirst orders monthly dues by period and puts event dues after them
const oldestFirst = "CASE WHEN year IS NULL THEN 1 ELSE 0 END, year, month, created_at, id"

// GormDueRecordRepository implements DueRecordRepository using GORM
type GormDueRecordRepository struct {
	db *gorm.DB
}

// NewGormDueRecordRepository creates a new GormDueRecordRepository
func NewGormDueRecordRepository(db *gorm.DB) *GormDueRecordRepository {
	return &GormDueRecordRepository{db: db}
}

// FindByIDForTenant finds a due by ID within a tenant
func (r *GormDueRecordRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*dues.DueRecord, error) {
	return r.findOne(r.db.WithContext(ctx), tenantID, id)
}

// FindByIDForUpdate finds a due and row-locks it until the transaction ends
func (r *GormDueRecordRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*dues.DueRecord, error) {
	return r.findOne(r.db.WithContext(ctx).Clauses(forUpdate), tenantID, id)
}

func (r *GormDueRecordRepository) findOne(query *gorm.DB, tenantID, id uuid.UUID) (*dues.DueRecord, error) {
	var model models.DueRecordModel
	if err := query.Scopes(TenantScope(tenantID)).Where("id = ?", id).First(&model).Error; err != nil {
		if isNotFound(err) {
			return nil, dues.NewDueNotFoundError(id)
		}
		return nil, storageError("find due", err)
	}
	return model.ToDomain(), nil
}

// FindByIDsForUpdate locks the given dues in id order
func (r *GormDueRecordRepository) FindByIDsForUpdate(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]dues.DueRecord, error) {
	if len(ids) == 0 {
		return []dues.DueRecord{}, nil
	}
	var rows []models.DueRecordModel
	if err := r.db.WithContext(ctx).
		Clauses(forUpdate).
		Scopes(TenantScope(tenantID)).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, storageError("lock dues", err)
	}
	return dueRecordsToDomain(rows), nil
}

// FindOutstandingByOwner lists an owner's unpaid dues oldest first
func (r *GormDueRecordRepository) FindOutstandingByOwner(ctx context.Context, tenantID, ownerID uuid.UUID, kind *dues.DueKind, lock bool) ([]dues.DueRecord, error) {
	query := r.db.WithContext(ctx)
	if lock {
		query = query.Clauses(forUpdate)
	}
	query = query.Scopes(TenantScope(tenantID)).
		Where("owner_id = ? AND status IN ?", ownerID, outstandingStatuses())
	if kind != nil {
		query = query.Where("kind = ?", string(*kind))
	}

	// locks are always taken in id order, the same order FindByIDsForUpdate uses
	order := oldestFirst
	if lock {
		order = "id ASC"
	}

	var rows []models.DueRecordModel
	if err := query.Order(order).Find(&rows).Error; err != nil {
		return nil, storageError("find outstanding dues", err)
	}
	out := dueRecordsToDomain(rows)
	if lock {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].OlderThan(&out[j])
		})
	}
	return out, nil
}

// FindAllForTenant lists dues with filtering and pagination
func (r *GormDueRecordRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter dues.DueRecordFilter) ([]dues.DueRecord, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.DueRecordModel{}), tenantID, filter)
	query = paginate(query, filter.Filter, DueRecordSortFields, "created_at")

	var rows []models.DueRecordModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, storageError("list dues", err)
	}
	return dueRecordsToDomain(rows), nil
}

// CountForTenant counts dues matching the filter
func (r *GormDueRecordRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter dues.DueRecordFilter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.DueRecordModel{}), tenantID, filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, storageError("count dues", err)
	}
	return count, nil
}

// FindByCohort lists every event due with the given title, in id order
func (r *GormDueRecordRepository) FindByCohort(ctx context.Context, tenantID uuid.UUID, title string) ([]dues.DueRecord, error) {
	var rows []models.DueRecordModel
	if err := r.db.WithContext(ctx).
		Scopes(TenantScope(tenantID)).
		Where("kind = ? AND title = ?", string(dues.DueKindEvent), title).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, storageError("find cohort", err)
	}
	return dueRecordsToDomain(rows), nil
}

// FindOwnerIDsWithPeriod returns owners that already have a monthly due for period
func (r *GormDueRecordRepository) FindOwnerIDsWithPeriod(ctx context.Context, tenantID uuid.UUID, period dues.Period) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.DueRecordModel{}).
		Scopes(TenantScope(tenantID)).
		Where("kind = ? AND month = ? AND year = ?", string(dues.DueKindMonthlyFee), period.Month, period.Year).
		Pluck("owner_id", &ids).Error; err != nil {
		return nil, storageError("find period owners", err)
	}
	return ids, nil
}

// Create inserts a new due
func (r *GormDueRecordRepository) Create(ctx context.Context, due *dues.DueRecord) error {
	model := models.DueRecordModelFromDomain(due)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicate(err) && due.Period != nil {
			return dues.NewDuplicateDueError(due.OwnerID, *due.Period)
		}
		return storageError("create due", err)
	}
	return nil
}

// SaveWithLock writes the mutable columns when the stored version still
// matches the loaded one, then advances the in-memory version.
func (r *GormDueRecordRepository) SaveWithLock(ctx context.Context, due *dues.DueRecord) error {
	result := r.db.WithContext(ctx).
		Model(&models.DueRecordModel{}).
		Where("tenant_id = ? AND id = ? AND version = ?", due.TenantID, due.ID, due.Version).
		Updates(map[string]any{
			"title":       due.Title,
			"amount":      due.Amount,
			"paid_amount": due.PaidAmount,
			"status":      string(due.Status()),
			"version":     due.Version + 1,
			"updated_at":  due.UpdatedAt,
		})
	if result.Error != nil {
		return storageError("save due", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrOptimisticLock
	}
	due.IncrementVersion()
	return nil
}

// Delete removes a due together with the allocations that reference it
func (r *GormDueRecordRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Scopes(TenantScope(tenantID)).
		Where("due_record_id = ?", id).
		Delete(&models.AllocationModel{}).Error; err != nil {
		return storageError("delete due allocations", err)
	}
	result := db.Scopes(TenantScope(tenantID)).Where("id = ?", id).Delete(&models.DueRecordModel{})
	if result.Error != nil {
		return storageError("delete due", result.Error)
	}
	if result.RowsAffected == 0 {
		return dues.NewDueNotFoundError(id)
	}
	return nil
}

func (r *GormDueRecordRepository) applyFilter(query *gorm.DB, tenantID uuid.UUID, filter dues.DueRecordFilter) *gorm.DB {
	query = query.Scopes(TenantScope(tenantID))
	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.Kind != nil {
		query = query.Where("kind = ?", string(*filter.Kind))
	}
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	if filter.Year != nil {
		query = query.Where("year = ?", *filter.Year)
	}
	if filter.Month != nil {
		query = query.Where("month = ?", *filter.Month)
	}
	if filter.Title != "" {
		query = query.Where("title = ?", filter.Title)
	}
	if filter.Outstanding {
		query = query.Where("status IN ?", outstandingStatuses())
	}
	return query
}

func outstandingStatuses() []string {
	return []string{string(dues.DueStatusPending), string(dues.DueStatusPartial)}
}

func dueRecordsToDomain(rows []models.DueRecordModel) []dues.DueRecord {
	out := make([]dues.DueRecord, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

var _ dues.DueRecordRepository = (*GormDueRecordRepository)(nil)
