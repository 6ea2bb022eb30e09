package handler

import (
	"context"
	"net/http"
	"testing"

	duesapp "github.com/duesledger/backend/internal/application/dues"
	"github.com/duesledger/backend/internal/domain/dues"
	"github.com/duesledger/backend/internal/domain/shared"
	"github.com/duesledger/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockDueService implements DueService and MemberService for testing
type MockDueService struct {
	mock.Mock
}

func (m *MockDueService) CreateDue(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, req duesapp.CreateDueRequest) (*duesapp.DueResponse, error) {
	args := m.Called(ctx, tenantID, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*duesapp.DueResponse), args.Error(1)
}

func (m *MockDueService) GetDue(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, id uuid.UUID) (*duesapp.DueResponse, error) {
	args := m.Called(ctx, tenantID, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*duesapp.DueResponse), args.Error(1)
}

func (m *MockDueService) ListDues(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, filter duesapp.DueListFilter) (shared.Paginated[duesapp.DueResponse], error) {
	args := m.Called(ctx, tenantID, actor, filter)
	return args.Get(0).(shared.Paginated[duesapp.DueResponse]), args.Error(1)
}

func (m *MockDueService) ListOutstanding(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, ownerID uuid.UUID) ([]duesapp.DueResponse, error) {
	args := m.Called(ctx, tenantID, actor, ownerID)
	return args.Get(0).([]duesapp.DueResponse), args.Error(1)
}

func (m *MockDueService) DeleteDue(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, id uuid.UUID) error {
	return m.Called(ctx, tenantID, actor, id).Error(0)
}

func (m *MockDueService) GetFeeConfig(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, ownerID uuid.UUID) (*dues.FeeConfig, error) {
	args := m.Called(ctx, tenantID, actor, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dues.FeeConfig), args.Error(1)
}

func (m *MockDueService) SetFeeConfig(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, cfg dues.FeeConfig) (*dues.FeeConfig, error) {
	args := m.Called(ctx, tenantID, actor, cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dues.FeeConfig), args.Error(1)
}

func (m *MockDueService) CreateMember(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, req duesapp.CreateMemberRequest) (*duesapp.MemberResponse, error) {
	args := m.Called(ctx, tenantID, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*duesapp.MemberResponse), args.Error(1)
}

func (m *MockDueService) GetMember(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, id uuid.UUID) (*duesapp.MemberResponse, error) {
	args := m.Called(ctx, tenantID, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*duesapp.MemberResponse), args.Error(1)
}

func (m *MockDueService) UpdateMember(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, id uuid.UUID, req duesapp.UpdateMemberRequest) (*duesapp.MemberResponse, error) {
	args := m.Called(ctx, tenantID, actor, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*duesapp.MemberResponse), args.Error(1)
}

func (m *MockDueService) ListMembers(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, filter duesapp.MemberListFilter) (shared.Paginated[duesapp.MemberResponse], error) {
	args := m.Called(ctx, tenantID, actor, filter)
	return args.Get(0).(shared.Paginated[duesapp.MemberResponse]), args.Error(1)
}

func TestDueHandler_Create(t *testing.T) {
	actor := adminActor()

	t.Run("creates a monthly due", func(t *testing.T) {
		svc := new(MockDueService)
		r := newTestEngine(actor)
		r.POST("/dues", NewDueHandler(svc).Create)

		svc.On("CreateDue", mock.Anything, testTenantID, *actor, duesapp.CreateDueRequest{
			OwnerID: testOwnerID,
			Kind:    dues.DueKindMonthlyFee,
			Month:   3,
			Year:    2025,
			Amount:  decimal.RequireFromString("100.00"),
		}).Return(&duesapp.DueResponse{ID: uuid.New(), Label: "March 2025", Status: "PENDING"}, nil)

		w, resp := doJSON(t, r, http.MethodPost, "/dues", map[string]any{
			"owner_id": testOwnerID.String(),
			"kind":     "MONTHLY_FEE",
			"month":    3,
			"year":     2025,
			"amount":   "100.00",
		})
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "March 2025", resp.Data.(map[string]any)["label"])
		svc.AssertExpectations(t)
	})

	t.Run("duplicate period is 409", func(t *testing.T) {
		svc := new(MockDueService)
		r := newTestEngine(actor)
		r.POST("/dues", NewDueHandler(svc).Create)
		svc.On("CreateDue", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, shared.NewDomainError(dues.CodeDuplicateDue, "exists"))

		w, resp := doJSON(t, r, http.MethodPost, "/dues", map[string]any{
			"owner_id": testOwnerID.String(),
			"kind":     "MONTHLY_FEE",
			"month":    3,
			"year":     2025,
			"amount":   "100",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, dues.CodeDuplicateDue, resp.Error.Code)
	})

	t.Run("month out of range", func(t *testing.T) {
		r := newTestEngine(actor)
		r.POST("/dues", NewDueHandler(new(MockDueService)).Create)

		w, resp := doJSON(t, r, http.MethodPost, "/dues", map[string]any{
			"owner_id": testOwnerID.String(),
			"kind":     "MONTHLY_FEE",
			"month":    13,
			"year":     2025,
			"amount":   "100",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "month", resp.Error.Details[0].Field)
	})
}

func TestDueHandler_List(t *testing.T) {
	svc := new(MockDueService)
	actor := memberActor()
	r := newTestEngine(actor)
	r.GET("/dues", NewDueHandler(svc).List)

	svc.On("ListDues", mock.Anything, testTenantID, *actor, mock.MatchedBy(func(f duesapp.DueListFilter) bool {
		return f.Kind != nil && *f.Kind == dues.DueKindEvent &&
			f.Status != nil && *f.Status == dues.DueStatusPartial &&
			f.Year != nil && *f.Year == 2025 &&
			f.Outstanding && f.Page == 1 && f.PageSize == 20
	})).Return(shared.NewPaginated([]duesapp.DueResponse{{ID: uuid.New()}}, 1, 1, 20), nil)

	w, resp := doJSON(t, r, http.MethodGet, "/dues?kind=EVENT&status=PARTIAL&year=2025&outstanding=true", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data.([]any), 1)
	svc.AssertExpectations(t)

	w, resp = doJSON(t, r, http.MethodGet, "/dues?status=LATE", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)

	w, _ = doJSON(t, r, http.MethodGet, "/dues?year=twenty", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDueHandler_DeleteAndOutstanding(t *testing.T) {
	svc := new(MockDueService)
	actor := adminActor()
	h := NewDueHandler(svc)
	r := newTestEngine(actor)
	r.DELETE("/dues/:id", h.Delete)
	r.GET("/members/:id/outstanding", h.ListOutstanding)

	dueID := uuid.New()
	svc.On("DeleteDue", mock.Anything, testTenantID, *actor, dueID).Return(nil)
	svc.On("ListOutstanding", mock.Anything, testTenantID, *actor, testOwnerID).
		Return([]duesapp.DueResponse{{ID: dueID, Status: "PARTIAL"}}, nil)

	w, _ := doJSON(t, r, http.MethodDelete, "/dues/"+dueID.String(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, resp := doJSON(t, r, http.MethodGet, "/members/"+testOwnerID.String()+"/outstanding", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data.([]any), 1)
	svc.AssertExpectations(t)
}

func TestDueHandler_FeeConfig(t *testing.T) {
	svc := new(MockDueService)
	actor := adminActor()
	h := NewDueHandler(svc)
	r := newTestEngine(actor)
	r.GET("/members/:id/fee-config", h.GetFeeConfig)
	r.PUT("/members/:id/fee-config", h.SetFeeConfig)

	cfg := dues.FeeConfig{OwnerID: testOwnerID, Amount: decimal.RequireFromString("250")}
	svc.On("SetFeeConfig", mock.Anything, testTenantID, *actor, cfg).Return(&cfg, nil)
	svc.On("GetFeeConfig", mock.Anything, testTenantID, *actor, testOwnerID).Return(&cfg, nil)

	w, resp := doJSON(t, r, http.MethodPut, "/members/"+testOwnerID.String()+"/fee-config", map[string]string{"amount": "250"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "250", resp.Data.(map[string]any)["amount"])

	w, _ = doJSON(t, r, http.MethodGet, "/members/"+testOwnerID.String()+"/fee-config", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestMemberHandler(t *testing.T) {
	svc := new(MockDueService)
	actor := adminActor()
	h := NewMemberHandler(svc)
	r := newTestEngine(actor)
	r.POST("/members", h.Create)
	r.PATCH("/members/:id", h.Update)
	r.GET("/members", h.List)

	svc.On("CreateMember", mock.Anything, testTenantID, *actor, duesapp.CreateMemberRequest{
		ID:        testOwnerID,
		Name:      "Asha",
		FeeAmount: decimal.RequireFromString("120"),
	}).Return(&duesapp.MemberResponse{ID: testOwnerID, Name: "Asha", Active: true}, nil)

	inactive := false
	svc.On("UpdateMember", mock.Anything, testTenantID, *actor, testOwnerID, duesapp.UpdateMemberRequest{Active: &inactive}).
		Return(&duesapp.MemberResponse{ID: testOwnerID, Name: "Asha"}, nil)

	svc.On("ListMembers", mock.Anything, testTenantID, *actor, duesapp.MemberListFilter{
		Search: "as", ActiveOnly: true, Page: 1, PageSize: 50,
	}).Return(shared.NewPaginated([]duesapp.MemberResponse{}, 0, 1, 50), nil)

	w, _ := doJSON(t, r, http.MethodPost, "/members", map[string]string{
		"id": testOwnerID.String(), "name": "Asha", "fee_amount": "120",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	w, resp := doJSON(t, r, http.MethodPatch, "/members/"+testOwnerID.String(), map[string]any{"active": false})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp.Data.(map[string]any)["active"])

	w, _ = doJSON(t, r, http.MethodGet, "/members?search=as&active_only=true&page_size=50", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/members", map[string]string{"name": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertExpectations(t)
}

// stubBulk records the last request per operation
type stubBulk struct {
	monthly duesapp.GenerateMonthlyDuesRequest
	events  duesapp.GenerateEventDuesRequest
	cohort  duesapp.UpdateCohortRequest
	deleted string
	result  *duesapp.BulkResult
	err     error
}

func (s *stubBulk) GenerateMonthlyDues(_ context.Context, _ uuid.UUID, _ dues.Actor, req duesapp.GenerateMonthlyDuesRequest) (*duesapp.BulkResult, error) {
	s.monthly = req
	return s.result, s.err
}

func (s *stubBulk) GenerateEventDues(_ context.Context, _ uuid.UUID, _ dues.Actor, req duesapp.GenerateEventDuesRequest) (*duesapp.BulkResult, error) {
	s.events = req
	return s.result, s.err
}

func (s *stubBulk) UpdateEventCohort(_ context.Context, _ uuid.UUID, _ dues.Actor, req duesapp.UpdateCohortRequest) (*duesapp.BulkResult, error) {
	s.cohort = req
	return s.result, s.err
}

func (s *stubBulk) DeleteEventCohort(_ context.Context, _ uuid.UUID, _ dues.Actor, title string) (*duesapp.BulkResult, error) {
	s.deleted = title
	return s.result, s.err
}

func newBulkEngine(stub *stubBulk) *gin.Engine {
	h := NewBulkHandler(stub)
	r := newTestEngine(adminActor())
	r.POST("/bulk/monthly", h.GenerateMonthly)
	r.POST("/bulk/events", h.GenerateEvents)
	r.PUT("/bulk/events", h.UpdateCohort)
	r.DELETE("/bulk/events", h.DeleteCohort)
	return r
}

func TestBulkHandler(t *testing.T) {
	t.Run("monthly with override", func(t *testing.T) {
		stub := &stubBulk{result: &duesapp.BulkResult{Created: 3, Skipped: 1}}
		w, resp := doJSON(t, newBulkEngine(stub), http.MethodPost, "/bulk/monthly", map[string]any{
			"month": 4, "year": 2025, "amount": "75",
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, dues.Period{Month: 4, Year: 2025}, stub.monthly.Period)
		require.NotNil(t, stub.monthly.OverrideAmount)
		assert.True(t, stub.monthly.OverrideAmount.Equal(decimal.NewFromInt(75)))
		assert.Equal(t, float64(3), resp.Data.(map[string]any)["created"])
	})

	t.Run("monthly without override uses member fees", func(t *testing.T) {
		stub := &stubBulk{result: &duesapp.BulkResult{}}
		w, _ := doJSON(t, newBulkEngine(stub), http.MethodPost, "/bulk/monthly", map[string]any{"month": 1, "year": 2026})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Nil(t, stub.monthly.OverrideAmount)
	})

	t.Run("events with explicit owners", func(t *testing.T) {
		stub := &stubBulk{result: &duesapp.BulkResult{Created: 1}}
		w, _ := doJSON(t, newBulkEngine(stub), http.MethodPost, "/bulk/events", map[string]any{
			"title": "Annual Picnic", "amount": "30", "owner_ids": []string{testOwnerID.String()},
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Annual Picnic", stub.events.Title)
		assert.Equal(t, []uuid.UUID{testOwnerID}, stub.events.OwnerIDs)
	})

	t.Run("events reject a bad owner id", func(t *testing.T) {
		stub := &stubBulk{}
		w, _ := doJSON(t, newBulkEngine(stub), http.MethodPost, "/bulk/events", map[string]any{
			"title": "Picnic", "amount": "30", "owner_ids": []string{"nope"},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("cohort rename", func(t *testing.T) {
		stub := &stubBulk{result: &duesapp.BulkResult{Updated: 2}}
		w, _ := doJSON(t, newBulkEngine(stub), http.MethodPut, "/bulk/events", map[string]any{
			"title": "Picnic", "new_title": "Summer Picnic",
		})
		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, stub.cohort.NewTitle)
		assert.Equal(t, "Summer Picnic", *stub.cohort.NewTitle)
		assert.Nil(t, stub.cohort.Amount)
	})

	t.Run("cohort delete needs a title", func(t *testing.T) {
		stub := &stubBulk{result: &duesapp.BulkResult{Deleted: 2}}
		w, _ := doJSON(t, newBulkEngine(stub), http.MethodDelete, "/bulk/events", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w, _ = doJSON(t, newBulkEngine(stub), http.MethodDelete, "/bulk/events?title=Picnic", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Picnic", stub.deleted)
	})

	t.Run("invalid title from the generator", func(t *testing.T) {
		stub := &stubBulk{err: shared.NewDomainError(dues.CodeInvalidTitle, "title required")}
		w, resp := doJSON(t, newBulkEngine(stub), http.MethodPost, "/bulk/events", map[string]any{
			"title": " ", "amount": "30",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dues.CodeInvalidTitle, resp.Error.Code)
	})
}
