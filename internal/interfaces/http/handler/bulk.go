package handler

import (
	"context"

	duesapp "github.com/duesledger/backend/internal/application/dues"
	"github.com/duesledger/backend/internal/domain/dues"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BulkService is the bulk generator as seen by the bulk endpoints
type BulkService interface {
	GenerateMonthlyDues(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, req duesapp.GenerateMonthlyDuesRequest) (*duesapp.BulkResult, error)
	GenerateEventDues(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, req duesapp.GenerateEventDuesRequest) (*duesapp.BulkResult, error)
	UpdateEventCohort(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, req duesapp.UpdateCohortRequest) (*duesapp.BulkResult, error)
	DeleteEventCohort(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, title string) (*duesapp.BulkResult, error)
}

// BulkHandler handles monthly generation and event cohorts
type BulkHandler struct {
	BaseHandler
	bulk BulkService
}

// NewBulkHandler creates a new BulkHandler
func NewBulkHandler(bulk BulkService) *BulkHandler {
	return &BulkHandler{bulk: bulk}
}

// GenerateMonthlyRequest is the body of POST /bulk/monthly. Without an
// amount each member's configured fee is used.
type GenerateMonthlyRequest struct {
	Month  int     `json:"month" binding:"required,min=1,max=12"`
	Year   int     `json:"year" binding:"required,min=1000,max=9999"`
	Amount *string `json:"amount"`
}

// GenerateEventRequest is the body of POST /bulk/events. An empty
// owner_ids targets every active member.
type GenerateEventRequest struct {
	Title    string   `json:"title" binding:"required,min=1,max=200"`
	Amount   string   `json:"amount" binding:"required"`
	OwnerIDs []string `json:"owner_ids" binding:"omitempty,dive,uuid"`
}

// UpdateCohortRequest is the body of PUT /bulk/events
type UpdateCohortRequest struct {
	Title    string  `json:"title" binding:"required,min=1,max=200"`
	Amount   *string `json:"amount"`
	NewTitle *string `json:"new_title" binding:"omitempty,min=1,max=200"`
}

// CohortQuery names the cohort for DELETE /bulk/events
type CohortQuery struct {
	Title string `form:"title" binding:"required,min=1,max=200"`
}

// GenerateMonthly creates one monthly due per active member for a period
func (h *BulkHandler) GenerateMonthly(c *gin.Context) {
	tenantID, actor, ok := h.caller(c)
	if !ok {
		return
	}

	var req GenerateMonthlyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.InvalidBody(c, err)
		return
	}
	period, err := dues.NewPeriod(req.Month, req.Year)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	override, err := parseOptionalAmount("amount", req.Amount)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.bulk.GenerateMonthlyDues(c.Request.Context(), tenantID, actor, duesapp.GenerateMonthlyDuesRequest{
		Period:         period,
		OverrideAmount: override,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// GenerateEvents creates an event cohort
func (h *BulkHandler) GenerateEvents(c *gin.Context) {
	tenantID, actor, ok := h.caller(c)
	if !ok {
		return
	}

	var req GenerateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.InvalidBody(c, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	owners, err := parseUUIDs("owner_ids", req.OwnerIDs)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.bulk.GenerateEventDues(c.Request.Context(), tenantID, actor, duesapp.GenerateEventDuesRequest{
		Title:    req.Title,
		Amount:   amount,
		OwnerIDs: owners,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// UpdateCohort changes the amount or title of every due in a cohort
func (h *BulkHandler) UpdateCohort(c *gin.Context) {
	tenantID, actor, ok := h.caller(c)
	if !ok {
		return
	}

	var req UpdateCohortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.InvalidBody(c, err)
		return
	}
	amount, err := parseOptionalAmount("amount", req.Amount)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.bulk.UpdateEventCohort(c.Request.Context(), tenantID, actor, duesapp.UpdateCohortRequest{
		Title:    req.Title,
		Amount:   amount,
		NewTitle: req.NewTitle,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// DeleteCohort removes every due of a cohort
func (h *BulkHandler) DeleteCohort(c *gin.Context) {
	tenantID, actor, ok := h.caller(c)
	if !ok {
		return
	}

	var q CohortQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.InvalidBody(c, err)
		return
	}

	result, err := h.bulk.DeleteEventCohort(c.Request.Context(), tenantID, actor, q.Title)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
