package handler

import (
	"context"
	"time"

	duesapp "github.com/duesledger/backend/internal/application/dues"
	"github.com/duesledger/backend/internal/domain/dues"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReportService is the read side used by the report endpoints
type ReportService interface {
	OwnerStatement(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, ownerID uuid.UUID) (*duesapp.OwnerStatement, error)
	OwnerTotals(ctx context.Context, tenantID uuid.UUID, actor dues.Actor) ([]dues.OwnerTotals, error)
	PeriodGrid(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, year int) (*duesapp.PeriodGrid, error)
	Overview(ctx context.Context, tenantID uuid.UUID, actor dues.Actor) (*dues.Overview, error)
	CohortSummaries(ctx context.Context, tenantID uuid.UUID, actor dues.Actor) ([]duesapp.CohortSummaryResponse, error)
}

// ReportHandler serves ledger reports
type ReportHandler struct {
	BaseHandler
	reports ReportService
	now     func() time.Time
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(reports ReportService) *ReportHandler {
	return &ReportHandler{reports: reports, now: time.Now}
}

// Statement returns a member's totals and every due they hold
func (h *ReportHandler) Statement(c *gin.Context) {
	tenantID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	ownerID, err := parseUUIDParam(c, "id")
	if err != nil {
		h.HandleError(c, err)
		return
	}

	statement, err := h.reports.OwnerStatement(c.Request.Context(), tenantID, actor, ownerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, statement)
}

// OwnerTotals returns the per-member totals of the tenant
func (h *ReportHandler) OwnerTotals(c *gin.Context) {
	tenantID, actor, ok := h.caller(c)
	if !ok {
		return
	}

	totals, err := h.reports.OwnerTotals(c.Request.Context(), tenantID, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, totals)
}

// PeriodGrid returns the member x month grid, defaulting to the current year
func (h *ReportHandler) PeriodGrid(c *gin.Context) {
	tenantID, actor, ok := h.caller(c)
	if !ok {
		return
	}
	year, err := parseOptionalIntQuery(c, "year")
	if err != nil {
		h.HandleError(c, err)
		return
	}
	y := h.now().Year()
	if year != nil {
		y = *year
	}

	grid, err := h.reports.PeriodGrid(c.Request.Context(), tenantID, actor, y)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, grid)
}

// Overview returns the tenant dashboard numbers
func (h *ReportHandler) Overview(c *gin.Context) {
	tenantID, actor, ok := h.caller(c)
	if !ok {
		return
	}

	overview, err := h.reports.Overview(c.Request.Context(), tenantID, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, overview)
}

// Cohorts returns one rollup per event cohort
func (h *ReportHandler) Cohorts(c *gin.Context) {
	tenantID, actor, ok := h.caller(c)
	if !ok {
		return
	}

	cohorts, err := h.reports.CohortSummaries(c.Request.Context(), tenantID, actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cohorts)
}
