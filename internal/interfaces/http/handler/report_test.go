package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	duesapp "github.com/duesledger/backend/internal/application/dues"
	"github.com/duesledger/backend/internal/domain/dues"
	"github.com/duesledger/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReports struct {
	year int
	err  error
}

func (s *stubReports) OwnerStatement(_ context.Context, _ uuid.UUID, _ dues.Actor, ownerID uuid.UUID) (*duesapp.OwnerStatement, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &duesapp.OwnerStatement{Totals: dues.OwnerTotals{OwnerID: ownerID, Outstanding: decimal.NewFromInt(40)}}, nil
}

func (s *stubReports) OwnerTotals(context.Context, uuid.UUID, dues.Actor) ([]dues.OwnerTotals, error) {
	return []dues.OwnerTotals{{OwnerID: testOwnerID}}, s.err
}

func (s *stubReports) PeriodGrid(_ context.Context, _ uuid.UUID, _ dues.Actor, year int) (*duesapp.PeriodGrid, error) {
	s.year = year
	return &duesapp.PeriodGrid{Year: year}, s.err
}

func (s *stubReports) Overview(context.Context, uuid.UUID, dues.Actor) (*dues.Overview, error) {
	return &dues.Overview{MemberCount: 12}, s.err
}

func (s *stubReports) CohortSummaries(context.Context, uuid.UUID, dues.Actor) ([]duesapp.CohortSummaryResponse, error) {
	return []duesapp.CohortSummaryResponse{{Title: "Picnic", DueCount: 3}}, s.err
}

func TestReportHandler(t *testing.T) {
	stub := &stubReports{}
	h := NewReportHandler(stub)
	h.now = func() time.Time { return time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC) }

	r := newTestEngine(adminActor())
	r.GET("/reports/members/:id/statement", h.Statement)
	r.GET("/reports/owners", h.OwnerTotals)
	r.GET("/reports/grid", h.PeriodGrid)
	r.GET("/reports/overview", h.Overview)
	r.GET("/reports/cohorts", h.Cohorts)

	w, resp := doJSON(t, r, http.MethodGet, "/reports/members/"+testOwnerID.String()+"/statement", nil)
	require.Equal(t, http.StatusOK, w.Code)
	totals := resp.Data.(map[string]any)["totals"].(map[string]any)
	assert.Equal(t, "40", totals["outstanding"])

	w, _ = doJSON(t, r, http.MethodGet, "/reports/grid", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2026, stub.year)

	w, _ = doJSON(t, r, http.MethodGet, "/reports/grid?year=2024", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2024, stub.year)

	w, resp = doJSON(t, r, http.MethodGet, "/reports/overview", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(12), resp.Data.(map[string]any)["member_count"])

	w, resp = doJSON(t, r, http.MethodGet, "/reports/cohorts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data.([]any), 1)

	w, _ = doJSON(t, r, http.MethodGet, "/reports/owners", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReportHandler_Forbidden(t *testing.T) {
	stub := &stubReports{err: shared.NewDomainError(dues.CodeUnauthorized, "finance-admin required")}
	r := newTestEngine(memberActor())
	r.GET("/reports/overview", NewReportHandler(stub).Overview)

	w, resp := doJSON(t, r, http.MethodGet, "/reports/overview", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, dues.CodeUnauthorized, resp.Error.Code)
}

type stubExports struct {
	resp *duesapp.ExportResponse
	err  error
}

func (s stubExports) ExportLedger(context.Context, uuid.UUID, dues.Actor) (*duesapp.ExportResponse, error) {
	return s.resp, s.err
}

func TestExportHandler(t *testing.T) {
	r := newTestEngine(adminActor())
	r.POST("/exports", NewExportHandler(stubExports{resp: &duesapp.ExportResponse{
		Key: "exports/t/2026.jsonl", URL: "https://bucket/exports", DueCount: 3,
	}}).Create)

	w, resp := doJSON(t, r, http.MethodPost, "/exports", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "exports/t/2026.jsonl", resp.Data.(map[string]any)["key"])

	r = newTestEngine(adminActor())
	r.POST("/exports", NewExportHandler(stubExports{err: shared.NewDomainError(dues.CodeStorageError, "upload failed")}).Create)
	w, resp = doJSON(t, r, http.MethodPost, "/exports", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, dues.CodeStorageError, resp.Error.Code)
}
