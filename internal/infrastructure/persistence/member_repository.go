package persistence

import (
	"context"
	"strings"

	"github.com/duesledger/backend/internal/domain/dues"
	"github.com/duesledger/backend/internal/domain/shared"
	"github.com/duesledger/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormMemberRepository implements MemberRepository using GORM
type GormMemberRepository struct {
	db *gorm.DB
}

// NewGormMemberRepository creates a new GormMemberRepository
func NewGormMemberRepository(db *gorm.DB) *GormMemberRepository {
	return &GormMemberRepository{db: db}
}

// FindByIDForTenant finds a member by ID within a tenant
func (r *GormMemberRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*dues.Member, error) {
	var model models.MemberModel
	if err := r.db.WithContext(ctx).
		Scopes(TenantScope(tenantID)).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if isNotFound(err) {
			return nil, dues.ErrMemberNotFound
		}
		return nil, storageError("find member", err)
	}
	return model.ToDomain(), nil
}

// FindAllForTenant lists members with filtering and pagination
func (r *GormMemberRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter dues.MemberFilter) ([]dues.Member, error) {
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.MemberModel{}), tenantID, filter)
	query = paginate(query, filter.Filter, MemberSortFields, "name")

	var rows []models.MemberModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, storageError("list members", err)
	}
	return membersToDomain(rows), nil
}

// CountForTenant counts members matching the filter
func (r *GormMemberRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter dues.MemberFilter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.MemberModel{}), tenantID, filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, storageError("count members", err)
	}
	return count, nil
}

// FindActive lists every active member ordered by id
func (r *GormMemberRepository) FindActive(ctx context.Context, tenantID uuid.UUID) ([]dues.Member, error) {
	var rows []models.MemberModel
	if err := r.db.WithContext(ctx).
		Scopes(TenantScope(tenantID)).
		Where("active = ?", true).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, storageError("find active members", err)
	}
	return membersToDomain(rows), nil
}

// FindActiveByIDs returns the active members among ids
func (r *GormMemberRepository) FindActiveByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]dues.Member, error) {
	if len(ids) == 0 {
		return []dues.Member{}, nil
	}
	var rows []models.MemberModel
	if err := r.db.WithContext(ctx).
		Scopes(TenantScope(tenantID)).
		Where("active = ? AND id IN ?", true, ids).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, storageError("find members", err)
	}
	return membersToDomain(rows), nil
}

// FindTenantIDs lists tenants that have at least one active member
func (r *GormMemberRepository) FindTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.MemberModel{}).
		Where("active = ?", true).
		Distinct("tenant_id").
		Order("tenant_id ASC").
		Pluck("tenant_id", &ids).Error; err != nil {
		return nil, storageError("find tenants", err)
	}
	return ids, nil
}

// Save inserts a new member. An id already in use fails with ALREADY_EXISTS.
func (r *GormMemberRepository) Save(ctx context.Context, member *dues.Member) error {
	if err := r.db.WithContext(ctx).Create(models.MemberModelFromDomain(member)).Error; err != nil {
		if isDuplicate(err) {
			return shared.ErrAlreadyExists
		}
		return storageError("create member", err)
	}
	return nil
}

// SaveWithLock updates a member when its stored version still matches
func (r *GormMemberRepository) SaveWithLock(ctx context.Context, member *dues.Member) error {
	result := r.db.WithContext(ctx).
		Model(&models.MemberModel{}).
		Where("tenant_id = ? AND id = ? AND version = ?", member.TenantID, member.ID, member.Version).
		Updates(map[string]any{
			"name":       member.Name,
			"active":     member.Active,
			"fee_amount": member.FeeAmount,
			"version":    member.Version + 1,
			"updated_at": member.UpdatedAt,
		})
	if result.Error != nil {
		return storageError("save member", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrOptimisticLock
	}
	member.IncrementVersion()
	return nil
}

func (r *GormMemberRepository) applyFilter(query *gorm.DB, tenantID uuid.UUID, filter dues.MemberFilter) *gorm.DB {
	query = query.Scopes(TenantScope(tenantID))
	if filter.ActiveOnly {
		query = query.Where("active = ?", true)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	return query
}

func membersToDomain(rows []models.MemberModel) []dues.Member {
	out := make([]dues.Member, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

var _ dues.MemberRepository = (*GormMemberRepository)(nil)
