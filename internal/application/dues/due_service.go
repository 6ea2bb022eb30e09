package dues

import (
	"context"

	"github.com/duesledger/backend/internal/domain/dues"
	"github.com/duesledger/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// DueService manages individual due records, members and their fee config
type DueService struct {
	txScope        TransactionScope
	dueRepo        dues.DueRecordRepository
	memberRepo     dues.MemberRepository
	eventPublisher shared.EventPublisher
	maxRetries     int
}

// NewDueService creates a new DueService
func NewDueService(txScope TransactionScope, dueRepo dues.DueRecordRepository, memberRepo dues.MemberRepository) *DueService {
	return &DueService{
		txScope:    txScope,
		dueRepo:    dueRepo,
		memberRepo: memberRepo,
		maxRetries: DefaultMaxRetries,
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *DueService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMaxRetries sets how often a conflicting member update is retried
func (s *DueService) SetMaxRetries(n int) {
	if n >= 0 {
		s.maxRetries = n
	}
}

// CreateDue creates one due by hand. A second monthly due for the same
// owner and period fails with DUPLICATE_DUE.
func (s *DueService) CreateDue(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, req CreateDueRequest) (*DueResponse, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if _, err := s.memberRepo.FindByIDForTenant(ctx, tenantID, req.OwnerID); err != nil {
		return nil, err
	}

	var due *dues.DueRecord
	var err error
	switch req.Kind {
	case dues.DueKindMonthlyFee:
		var period dues.Period
		period, err = dues.NewPeriod(req.Month, req.Year)
		if err != nil {
			return nil, err
		}
		due, err = dues.NewMonthlyDue(tenantID, req.OwnerID, period, req.Amount)
	case dues.DueKindEvent:
		due, err = dues.NewEventDue(tenantID, req.OwnerID, req.Title, req.Amount)
	default:
		return nil, shared.NewDomainError("INVALID_KIND", "Kind must be MONTHLY_FEE or EVENT")
	}
	if err != nil {
		return nil, err
	}
	due.SetCreatedBy(actor.UserID)

	if err := s.dueRepo.Create(ctx, due); err != nil {
		return nil, err
	}
	s.publish(ctx, due)

	resp := ToDueResponse(due)
	return &resp, nil
}

// GetDue returns a due the actor is allowed to see
func (s *DueService) GetDue(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, id uuid.UUID) (*DueResponse, error) {
	due, err := s.dueRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanActFor(due.OwnerID) {
		// hide other owners' dues
		return nil, dues.NewDueNotFoundError(id)
	}
	resp := ToDueResponse(due)
	return &resp, nil
}

// ListDues lists dues with filtering and pagination. Callers without
// finance-admin only see their own.
func (s *DueService) ListDues(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, filter DueListFilter) (shared.Paginated[DueResponse], error) {
	if filter.OwnerID == nil && !actor.IsFinanceAdmin() {
		self := actor.UserID
		filter.OwnerID = &self
	}
	if filter.OwnerID != nil {
		if err := actor.AuthorizeFor(*filter.OwnerID); err != nil {
			return shared.Paginated[DueResponse]{}, err
		}
	}

	domainFilter := dues.DueRecordFilter{
		Filter:      pageFilter(filter.Page, filter.PageSize, filter.OrderBy, filter.OrderDir),
		OwnerID:     filter.OwnerID,
		Kind:        filter.Kind,
		Status:      filter.Status,
		Year:        filter.Year,
		Month:       filter.Month,
		Title:       filter.Title,
		Outstanding: filter.Outstanding,
	}
	items, err := s.dueRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return shared.Paginated[DueResponse]{}, err
	}
	total, err := s.dueRepo.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return shared.Paginated[DueResponse]{}, err
	}
	return shared.NewPaginated(ToDueResponses(items), total, domainFilter.Page, domainFilter.PageSize), nil
}

// ListOutstanding lists an owner's PENDING and PARTIAL dues oldest period first
func (s *DueService) ListOutstanding(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, ownerID uuid.UUID) ([]DueResponse, error) {
	if err := actor.AuthorizeFor(ownerID); err != nil {
		return nil, err
	}
	items, err := s.dueRepo.FindOutstandingByOwner(ctx, tenantID, ownerID, nil, false)
	if err != nil {
		return nil, err
	}
	return ToDueResponses(items), nil
}

// DeleteDue removes a due together with its allocations. Transactions that
// paid it can no longer be revoked.
func (s *DueService) DeleteDue(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, id uuid.UUID) error {
	if err := actor.RequireAdmin(); err != nil {
		return err
	}
	var deleted *dues.DueRecord
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		due, err := repos.DueRepo().FindByIDForUpdate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if err := repos.DueRepo().Delete(ctx, tenantID, id); err != nil {
			return err
		}
		deleted = due
		return nil
	})
	if err != nil {
		return err
	}
	if s.eventPublisher != nil {
		_ = s.eventPublisher.Publish(ctx, dues.NewDueDeletedEvent(deleted))
	}
	return nil
}

// GetFeeConfig returns the owner's default monthly amount
func (s *DueService) GetFeeConfig(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, ownerID uuid.UUID) (*dues.FeeConfig, error) {
	if err := actor.AuthorizeFor(ownerID); err != nil {
		return nil, err
	}
	member, err := s.memberRepo.FindByIDForTenant(ctx, tenantID, ownerID)
	if err != nil {
		return nil, err
	}
	cfg := member.FeeConfig()
	return &cfg, nil
}

// SetFeeConfig changes the owner's default monthly amount. Zero disables
// default generation for the owner.
func (s *DueService) SetFeeConfig(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, cfg dues.FeeConfig) (*dues.FeeConfig, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	var member *dues.Member
	err := retryOnConflict(ctx, s.maxRetries, "set_fee_config", nil, func() error {
		var err error
		member, err = s.memberRepo.FindByIDForTenant(ctx, tenantID, cfg.OwnerID)
		if err != nil {
			return err
		}
		if err := member.SetFeeAmount(cfg.Amount); err != nil {
			return err
		}
		return s.memberRepo.SaveWithLock(ctx, member)
	})
	if err != nil {
		return nil, err
	}
	out := member.FeeConfig()
	return &out, nil
}

// CreateMember registers a due owner. The member id is the owner's
// identity user id.
func (s *DueService) CreateMember(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, req CreateMemberRequest) (*MemberResponse, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	member, err := dues.NewMember(tenantID, req.ID, req.Name, req.FeeAmount)
	if err != nil {
		return nil, err
	}
	member.SetCreatedBy(actor.UserID)
	if err := s.memberRepo.Save(ctx, member); err != nil {
		return nil, err
	}
	resp := ToMemberResponse(member)
	return &resp, nil
}

// GetMember returns one member
func (s *DueService) GetMember(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, id uuid.UUID) (*MemberResponse, error) {
	if err := actor.AuthorizeFor(id); err != nil {
		return nil, err
	}
	member, err := s.memberRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	resp := ToMemberResponse(member)
	return &resp, nil
}

// UpdateMember renames or (de)activates a member
func (s *DueService) UpdateMember(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, id uuid.UUID, req UpdateMemberRequest) (*MemberResponse, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	var member *dues.Member
	err := retryOnConflict(ctx, s.maxRetries, "update_member", nil, func() error {
		var err error
		member, err = s.memberRepo.FindByIDForTenant(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if req.Name != nil {
			if err := member.Rename(*req.Name); err != nil {
				return err
			}
		}
		if req.Active != nil {
			if *req.Active {
				member.Activate()
			} else {
				member.Deactivate()
			}
		}
		return s.memberRepo.SaveWithLock(ctx, member)
	})
	if err != nil {
		return nil, err
	}
	resp := ToMemberResponse(member)
	return &resp, nil
}

// ListMembers lists members with filtering and pagination
func (s *DueService) ListMembers(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, filter MemberListFilter) (shared.Paginated[MemberResponse], error) {
	if err := actor.RequireAdmin(); err != nil {
		return shared.Paginated[MemberResponse]{}, err
	}
	domainFilter := dues.MemberFilter{
		Filter:     pageFilter(filter.Page, filter.PageSize, filter.OrderBy, filter.OrderDir),
		Search:     filter.Search,
		ActiveOnly: filter.ActiveOnly,
	}
	items, err := s.memberRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return shared.Paginated[MemberResponse]{}, err
	}
	total, err := s.memberRepo.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return shared.Paginated[MemberResponse]{}, err
	}
	out := make([]MemberResponse, len(items))
	for i := range items {
		out[i] = ToMemberResponse(&items[i])
	}
	return shared.NewPaginated(out, total, domainFilter.Page, domainFilter.PageSize), nil
}

func (s *DueService) publish(ctx context.Context, due *dues.DueRecord) {
	events := due.GetDomainEvents()
	due.ClearDomainEvents()
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	_ = s.eventPublisher.Publish(ctx, events...)
}
