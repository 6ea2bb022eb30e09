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

// PaymentService is the part of the application layer the payment endpoints use
type PaymentService interface {
	RecordPayment(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, req duesapp.RecordPaymentRequest) (*duesapp.PaymentResponse, error)
	RecordAdjustment(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, req duesapp.RecordAdjustmentRequest) (*duesapp.PaymentResponse, error)
	RevokeTransaction(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, transactionID uuid.UUID) error
	GetTransaction(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, id uuid.UUID) (*duesapp.TransactionResponse, error)
	ListTransactions(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, filter duesapp.TransactionListFilter) (shared.Paginated[duesapp.TransactionResponse], error)
}

// PaymentHandler handles payments, adjustments and transaction history
type PaymentHandler struct {
	BaseHandler
	paymentService PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// AllocationRequest names one due and the amount to apply to it
type AllocationRequest struct {
	DueID  string `json:"due_id" binding:"required,uuid"`
	Amount string `json:"amount" binding:"required"`
}

// RecordPaymentRequest is the body of POST /payments. With neither
// target_due_id nor allocations the owner's monthly dues are paid oldest first.
type RecordPaymentRequest struct {
	OwnerID     string              `json:"owner_id" binding:"required,uuid"`
	Amount      string              `json:"amount" binding:"required"`
	Mode        string              `json:"mode" binding:"required,receipt_mode"`
	Reference   string              `json:"reference" binding:"max=100"`
	Note        string              `json:"note" binding:"max=500"`
	TargetDueID string              `json:"target_due_id" binding:"omitempty,uuid"`
	Allocations []AllocationRequest `json:"allocations" binding:"omitempty,dive"`
}

// RecordAdjustmentRequest is the body of POST /adjustments
type RecordAdjustmentRequest struct {
	DueID  string `json:"due_id" binding:"required,uuid"`
	Amount string `json:"amount" binding:"required"`
	Note   string `json:"note" binding:"max=500"`
}

// ListTransactionsQuery holds the paging parameters of GET /transactions
type ListTransactionsQuery struct {
	dto.ListRequest
	Mode string `form:"mode" binding:"omitempty,payment_mode"`
}

// Record stores a payment and allocates it
func (h *PaymentHandler) Record(c *gin.Context) {
	tenantID, actor, ok := h.caller(c)
	if !ok {
		return
	}

	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.InvalidBody(c, err)
		return
	}
	appReq, err := req.toAppRequest()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.paymentService.RecordPayment(c.Request.Context(), tenantID, actor, appReq)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

func (r RecordPaymentRequest) toAppRequest() (duesapp.RecordPaymentRequest, error) {
	amount, err := parseAmount("amount", r.Amount)
	if err != nil {
		return duesapp.RecordPaymentRequest{}, err
	}
	out := duesapp.RecordPaymentRequest{
		OwnerID:   uuid.MustParse(r.OwnerID),
		Amount:    amount,
		Mode:      dues.PaymentMode(r.Mode),
		Reference: r.Reference,
		Note:      r.Note,
	}
	if r.TargetDueID != "" {
		target := uuid.MustParse(r.TargetDueID)
		out.TargetDueID = &target
	}
	for _, a := range r.Allocations {
		allocAmount, err := parseAmount("allocations.amount", a.Amount)
		if err != nil {
			return duesapp.RecordPaymentRequest{}, err
		}
		out.Allocations = append(out.Allocations, dues.ExplicitAllocation{
			DueID:  uuid.MustParse(a.DueID),
			Amount: allocAmount,
		})
	}
	return out, nil
}

// RecordAdjustment applies an administrative correction to one due
func (h *PaymentHandler) RecordAdjustment(c *gin.Context) {
	tenantID, actor, ok := h.caller(c)
	if !ok {
		return
	}

	var req RecordAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.InvalidBody(c, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.paymentService.RecordAdjustment(c.Request.Context(), tenantID, actor, duesapp.RecordAdjustmentRequest{
		DueID:  uuid.MustParse(req.DueID),
		Amount: amount,
		Note:   req.Note,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// Revoke reverses a transaction and every allocation it made
func (h *PaymentHandler) Revoke(c *gin.Context) {
	tenantID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if err := h.paymentService.RevokeTransaction(c.Request.Context(), tenantID, actor, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, RevokeData{TransactionID: id.String(), Revoked: true})
}

// Get returns one transaction with its allocations
func (h *PaymentHandler) Get(c *gin.Context) {
	tenantID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		h.HandleError(c, err)
		return
	}

	tx, err := h.paymentService.GetTransaction(c.Request.Context(), tenantID, actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tx)
}

// List lists transactions newest first
func (h *PaymentHandler) List(c *gin.Context) {
	tenantID, actor, ok := h.caller(c)
	if !ok {
		return
	}

	var q ListTransactionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.InvalidBody(c, err)
		return
	}
	q.Normalize()

	filter := duesapp.TransactionListFilter{Page: q.Page, PageSize: q.PageSize}
	var err error
	if filter.OwnerID, err = parseOptionalUUIDQuery(c, "owner_id"); err != nil {
		h.HandleError(c, err)
		return
	}
	if filter.From, err = parseOptionalTimeQuery(c, "from"); err != nil {
		h.HandleError(c, err)
		return
	}
	if filter.To, err = parseOptionalTimeQuery(c, "to"); err != nil {
		h.HandleError(c, err)
		return
	}
	if q.Mode != "" {
		mode := dues.PaymentMode(q.Mode)
		filter.Mode = &mode
	}

	page, err := h.paymentService.ListTransactions(c.Request.Context(), tenantID, actor, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}
