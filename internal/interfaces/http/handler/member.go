package handler

import (
	"context"

	duesapp "github.com/duesledger/backend/internal/application/dues"
	"github.com/duesledger/backend/internal/domain/dues"
	"github.com/duesledger/backend/internal/domain/shared"
	"github.com/duesledger/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemberService is the part of the application layer the member endpoints use
type MemberService interface {
	CreateMember(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, req duesapp.CreateMemberRequest) (*duesapp.MemberResponse, error)
	GetMember(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, id uuid.UUID) (*duesapp.MemberResponse, error)
	UpdateMember(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, id uuid.UUID, req duesapp.UpdateMemberRequest) (*duesapp.MemberResponse, error)
	ListMembers(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, filter duesapp.MemberListFilter) (shared.Paginated[duesapp.MemberResponse], error)
}

// MemberHandler handles the member directory
type MemberHandler struct {
	BaseHandler
	memberService MemberService
}

// NewMemberHandler creates a new MemberHandler
func NewMemberHandler(memberService MemberService) *MemberHandler {
	return &MemberHandler{memberService: memberService}
}

// CreateMemberRequest is the body of POST /members. ID is the member's
// identity user id; FeeAmount defaults to zero.
type CreateMemberRequest struct {
	ID        string `json:"id" binding:"omitempty,uuid"`
	Name      string `json:"name" binding:"required,min=1,max=200"`
	FeeAmount string `json:"fee_amount"`
}

// UpdateMemberRequest is the body of PATCH /members/:id
type UpdateMemberRequest struct {
	Name   *string `json:"name" binding:"omitempty,min=1,max=200"`
	Active *bool   `json:"active"`
}

// ListMembersQuery holds the query parameters of GET /members
type ListMembersQuery struct {
	dto.ListRequest
	Search     string `form:"search"`
	ActiveOnly bool   `form:"active_only"`
}

// Create registers a member
func (h *MemberHandler) Create(c *gin.Context) {
	tenantID, actor, ok := h.caller(c)
	if !ok {
		return
	}

	var req CreateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.InvalidBody(c, err)
		return
	}

	appReq := duesapp.CreateMemberRequest{Name: req.Name, FeeAmount: decimal.Zero}
	if req.ID != "" {
		appReq.ID = uuid.MustParse(req.ID)
	}
	if req.FeeAmount != "" {
		fee, err := parseAmount("fee_amount", req.FeeAmount)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		appReq.FeeAmount = fee
	}

	member, err := h.memberService.CreateMember(c.Request.Context(), tenantID, actor, appReq)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, member)
}

// Get returns one member
func (h *MemberHandler) Get(c *gin.Context) {
	tenantID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		h.HandleError(c, err)
		return
	}

	member, err := h.memberService.GetMember(c.Request.Context(), tenantID, actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, member)
}

// Update renames or (de)activates a member
func (h *MemberHandler) Update(c *gin.Context) {
	tenantID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var req UpdateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.InvalidBody(c, err)
		return
	}

	member, err := h.memberService.UpdateMember(c.Request.Context(), tenantID, actor, id, duesapp.UpdateMemberRequest{
		Name:   req.Name,
		Active: req.Active,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, member)
}

// List lists members
func (h *MemberHandler) List(c *gin.Context) {
	tenantID, actor, ok := h.caller(c)
	if !ok {
		return
	}

	var q ListMembersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.InvalidBody(c, err)
		return
	}
	q.Normalize()

	page, err := h.memberService.ListMembers(c.Request.Context(), tenantID, actor, duesapp.MemberListFilter{
		Search:     q.Search,
		ActiveOnly: q.ActiveOnly,
		Page:       q.Page,
		PageSize:   q.PageSize,
		OrderBy:    q.OrderBy,
		OrderDir:   q.OrderDir,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}
