package handler

import (
	"context"

	duesapp "github.com/duesledger/backend/internal/application/dues"
	"github.com/duesledger/backend/internal/domain/dues"
	"github.com/duesledger/backend/internal/domain/shared"
	"github.com/duesledger/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DueService is the part of the application layer the due endpoints use
type DueService interface {
	CreateDue(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, req duesapp.CreateDueRequest) (*duesapp.DueResponse, error)
	GetDue(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, id uuid.UUID) (*duesapp.DueResponse, error)
	ListDues(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, filter duesapp.DueListFilter) (shared.Paginated[duesapp.DueResponse], error)
	ListOutstanding(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, ownerID uuid.UUID) ([]duesapp.DueResponse, error)
	DeleteDue(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, id uuid.UUID) error
	GetFeeConfig(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, ownerID uuid.UUID) (*dues.FeeConfig, error)
	SetFeeConfig(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, cfg dues.FeeConfig) (*dues.FeeConfig, error)
}

// DueHandler handles due record endpoints
type DueHandler struct {
	BaseHandler
	dueService DueService
}

// NewDueHandler creates a new DueHandler
func NewDueHandler(dueService DueService) *DueHandler {
	return &DueHandler{dueService: dueService}
}

// CreateDueRequest is the body of POST /dues. Amount is a decimal string.
type CreateDueRequest struct {
	OwnerID string `json:"owner_id" binding:"required,uuid"`
	Kind    string `json:"kind" binding:"required,due_kind"`
	Month   int    `json:"month" binding:"omitempty,min=1,max=12"`
	Year    int    `json:"year" binding:"omitempty,min=1000,max=9999"`
	Title   string `json:"title" binding:"max=200"`
	Amount  string `json:"amount" binding:"required"`
}

// ListDuesQuery holds the query parameters of GET /dues
type ListDuesQuery struct {
	dto.ListRequest
	Kind        string `form:"kind" binding:"omitempty,due_kind"`
	Status      string `form:"status" binding:"omitempty,oneof=PENDING PARTIAL PAID"`
	Title       string `form:"title"`
	Outstanding bool   `form:"outstanding"`
}

// FeeConfigRequest is the body of PUT /members/:id/fee-config
type FeeConfigRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// Create creates a single due by hand
func (h *DueHandler) Create(c *gin.Context) {
	tenantID, actor, ok := h.caller(c)
	if !ok {
		return
	}

	var req CreateDueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.InvalidBody(c, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	due, err := h.dueService.CreateDue(c.Request.Context(), tenantID, actor, duesapp.CreateDueRequest{
		OwnerID: uuid.MustParse(req.OwnerID),
		Kind:    dues.DueKind(req.Kind),
		Month:   req.Month,
		Year:    req.Year,
		Title:   req.Title,
		Amount:  amount,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, due)
}

// Get returns one due
func (h *DueHandler) Get(c *gin.Context) {
	tenantID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		h.HandleError(c, err)
		return
	}

	due, err := h.dueService.GetDue(c.Request.Context(), tenantID, actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, due)
}

// List lists dues with filters and pagination
func (h *DueHandler) List(c *gin.Context) {
	tenantID, actor, ok := h.caller(c)
	if !ok {
		return
	}

	var q ListDuesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.InvalidBody(c, err)
		return
	}
	q.Normalize()

	filter := duesapp.DueListFilter{
		Title:       q.Title,
		Outstanding: q.Outstanding,
		Page:        q.Page,
		PageSize:    q.PageSize,
		OrderBy:     q.OrderBy,
		OrderDir:    q.OrderDir,
	}
	var err error
	if filter.OwnerID, err = parseOptionalUUIDQuery(c, "owner_id"); err != nil {
		h.HandleError(c, err)
		return
	}
	if filter.Year, err = parseOptionalIntQuery(c, "year"); err != nil {
		h.HandleError(c, err)
		return
	}
	if filter.Month, err = parseOptionalIntQuery(c, "month"); err != nil {
		h.HandleError(c, err)
		return
	}
	if q.Kind != "" {
		kind := dues.DueKind(q.Kind)
		filter.Kind = &kind
	}
	if q.Status != "" {
		status := dues.DueStatus(q.Status)
		filter.Status = &status
	}

	page, err := h.dueService.ListDues(c.Request.Context(), tenantID, actor, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// ListOutstanding lists a member's unpaid dues oldest period first
func (h *DueHandler) ListOutstanding(c *gin.Context) {
	tenantID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	ownerID, err := parseUUIDParam(c, "id")
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items, err := h.dueService.ListOutstanding(c.Request.Context(), tenantID, actor, ownerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, items)
}

// Delete removes a due and its allocations
func (h *DueHandler) Delete(c *gin.Context) {
	tenantID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if err := h.dueService.DeleteDue(c.Request.Context(), tenantID, actor, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// GetFeeConfig returns a member's default monthly amount
func (h *DueHandler) GetFeeConfig(c *gin.Context) {
	tenantID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	ownerID, err := parseUUIDParam(c, "id")
	if err != nil {
		h.HandleError(c, err)
		return
	}

	cfg, err := h.dueService.GetFeeConfig(c.Request.Context(), tenantID, actor, ownerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cfg)
}

// SetFeeConfig changes a member's default monthly amount
func (h *DueHandler) SetFeeConfig(c *gin.Context) {
	tenantID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	ownerID, err := parseUUIDParam(c, "id")
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var req FeeConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.InvalidBody(c, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	cfg, err := h.dueService.SetFeeConfig(c.Request.Context(), tenantID, actor, dues.FeeConfig{OwnerID: ownerID, Amount: amount})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cfg)
}
