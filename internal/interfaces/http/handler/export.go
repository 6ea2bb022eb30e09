package handler

import (
	"context"

	duesapp "github.com/duesledger/backend/internal/application/dues"
	"github.com/duesledger/backend/internal/domain/dues"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ExportService writes ledger archives
type ExportService interface {
	ExportLedger(ctx context.Context, tenantID uuid.UUID, actor dues.Actor) (*duesapp.ExportResponse, error)
}

// ExportHandler handles ledger export requests
type ExportHandler struct {
	BaseHandler
	exports ExportService
}

// NewExportHandler creates a new ExportHandler
func NewExportHandler(exports ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Create uploads a snapshot of the tenant ledger and returns a download link
func (h *ExportHandler) Create(c *gin.Context) {
	tenantID, actor, ok := h.caller(c)
	if !ok {
		return
	}

	result, err := h.exports.ExportLedger(c.Request.Context(), tenantID, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}
