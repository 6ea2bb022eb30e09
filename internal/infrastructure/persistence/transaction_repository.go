package persistence

import (
	"context"

	"github.com/duesledger/backend/internal/domain/dues"
	"github.com/duesledger/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormTransactionRepository implements TransactionRepository using GORM.
// Allocations are written and read alongside their transaction.
type GormTransactionRepository struct {
	db *gorm.DB
}

// NewGormTransactionRepository creates a new GormTransactionRepository
func NewGormTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

func preloadAllocations(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC, id ASC")
}

// FindByIDForTenant loads a transaction with its allocations
func (r *GormTransactionRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*dues.Transaction, error) {
	return r.findOne(r.db.WithContext(ctx), tenantID, id)
}

// FindByIDForUpdate loads and row-locks a transaction
func (r *GormTransactionRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*dues.Transaction, error) {
	return r.findOne(r.db.WithContext(ctx).Clauses(forUpdate), tenantID, id)
}

func (r *GormTransactionRepository) findOne(query *gorm.DB, tenantID, id uuid.UUID) (*dues.Transaction, error) {
	var model models.TransactionModel
	if err := query.
		Preload("Allocations", preloadAllocations).
		Scopes(TenantScope(tenantID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if isNotFound(err) {
			return nil, dues.ErrTransactionMissing
		}
		return nil, storageError("find transaction", err)
	}
	return model.ToDomain(), nil
}

// FindAllForTenant lists transactions with their allocations
func (r *GormTransactionRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter dues.TransactionFilter) ([]dues.Transaction, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.TransactionModel{}), tenantID, filter)
	query = paginate(query, filter.Filter, TransactionSortFields, "timestamp")

	var rows []models.TransactionModel
	if err := query.Preload("Allocations", preloadAllocations).Find(&rows).Error; err != nil {
		return nil, storageError("list transactions", err)
	}
	out := make([]dues.Transaction, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// CountForTenant counts transactions matching the filter
func (r *GormTransactionRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter dues.TransactionFilter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.TransactionModel{}), tenantID, filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, storageError("count transactions", err)
	}
	return count, nil
}

// FindAllocationsByDue lists allocations that reference a due
func (r *GormTransactionRepository) FindAllocationsByDue(ctx context.Context, tenantID, dueID uuid.UUID) ([]dues.Allocation, error) {
	var rows []models.AllocationModel
	if err := r.db.WithContext(ctx).
		Scopes(TenantScope(tenantID)).
		Where("due_record_id = ?", dueID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, storageError("find allocations", err)
	}
	out := make([]dues.Allocation, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// Create inserts the transaction row and then each allocation
func (r *GormTransactionRepository) Create(ctx context.Context, tx *dues.Transaction) error {
	model := models.TransactionModelFromDomain(tx)
	db := r.db.WithContext(ctx)
	if err := db.Omit("Allocations").Create(model).Error; err != nil {
		return storageError("create transaction", err)
	}
	if len(model.Allocations) == 0 {
		return nil
	}
	if err := db.Create(&model.Allocations).Error; err != nil {
		return storageError("create allocations", err)
	}
	return nil
}

// Delete removes the allocations and then the transaction
func (r *GormTransactionRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Scopes(TenantScope(tenantID)).
		Where("transaction_id = ?", id).
		Delete(&models.AllocationModel{}).Error; err != nil {
		return storageError("delete allocations", err)
	}
	result := db.Scopes(TenantScope(tenantID)).Where("id = ?", id).Delete(&models.TransactionModel{})
	if result.Error != nil {
		return storageError("delete transaction", result.Error)
	}
	if result.RowsAffected == 0 {
		return dues.ErrTransactionMissing
	}
	return nil
}

func (r *GormTransactionRepository) applyFilter(query *gorm.DB, tenantID uuid.UUID, filter dues.TransactionFilter) *gorm.DB {
	query = query.Scopes(TenantScope(tenantID))
	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.Mode != nil {
		query = query.Where("mode = ?", string(*filter.Mode))
	}
	if filter.From != nil {
		query = query.Where("timestamp >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("timestamp < ?", *filter.To)
	}
	return query
}

var _ dues.TransactionRepository = (*GormTransactionRepository)(nil)
