package dues

import (
	"context"
	"sort"
	"time"

	"github.com/duesledger/backend/internal/domain/dues"
	"github.com/google/uuid"
)

// ReportService computes read-only views over the live ledger. Nothing is cached.
type ReportService struct {
	reportRepo dues.ReportRepository
	location   *time.Location
	now        func() time.Time
}

// NewReportService creates a new ReportService. "Today" is evaluated in loc;
// a nil loc means UTC.
func NewReportService(reportRepo dues.ReportRepository, loc *time.Location) *ReportService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportService{
		reportRepo: reportRepo,
		location:   loc,
		now:        time.Now,
	}
}

// OwnerStatement returns an owner's totals and all of their dues
func (s *ReportService) OwnerStatement(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, ownerID uuid.UUID) (*OwnerStatement, error) {
	if err := actor.AuthorizeFor(ownerID); err != nil {
		return nil, err
	}
	ledger, err := s.reportRepo.OwnerLedger(ctx, tenantID, ownerID)
	if err != nil {
		return nil, err
	}

	return &OwnerStatement{Totals: ledger.Totals, Dues: ToDueResponses(ledger.Dues)}, nil
}

// OwnerTotals lists totals for every owner with at least one due
func (s *ReportService) OwnerTotals(ctx context.Context, tenantID uuid.UUID, actor dues.Actor) ([]dues.OwnerTotals, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	return s.reportRepo.OwnerTotals(ctx, tenantID, nil)
}

// PeriodGrid returns the owner x month grid of monthly dues for year
func (s *ReportService) PeriodGrid(ctx context.Context, tenantID uuid.UUID, actor dues.Actor, year int) (*PeriodGrid, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if _, err := dues.NewPeriod(1, year); err != nil {
		return nil, err
	}
	cells, err := s.reportRepo.PeriodGrid(ctx, tenantID, year)
	if err != nil {
		return nil, err
	}

	rows := make(map[uuid.UUID]*PeriodGridRow)
	for _, cell := range cells {
		row, ok := rows[cell.OwnerID]
		if !ok {
			row = &PeriodGridRow{OwnerID: cell.OwnerID, Cells: make(map[int]PeriodGridCell)}
			rows[cell.OwnerID] = row
		}
		row.Cells[cell.Month] = PeriodGridCell{
			DueID:      cell.DueID,
			Amount:     cell.Amount,
			PaidAmount: cell.PaidAmount,
			Status:     string(cell.Status()),
		}
	}

	grid := &PeriodGrid{Year: year, Rows: make([]PeriodGridRow, 0, len(rows))}
	for _, row := range rows {
		grid.Rows = append(grid.Rows, *row)
	}
	sort.Slice(grid.Rows, func(i, j int) bool {
		return grid.Rows[i].OwnerID.String() < grid.Rows[j].OwnerID.String()
	})
	return grid, nil
}

// Overview returns the organization-wide totals including today's collections
func (s *ReportService) Overview(ctx context.Context, tenantID uuid.UUID, actor dues.Actor) (*dues.Overview, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	now := s.now().In(s.location)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
	return s.reportRepo.Overview(ctx, tenantID, dayStart, dayStart.AddDate(0, 0, 1))
}

// CohortSummaries lists every event cohort with its rollup
func (s *ReportService) CohortSummaries(ctx context.Context, tenantID uuid.UUID, actor dues.Actor) ([]CohortSummaryResponse, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	summaries, err := s.reportRepo.CohortSummaries(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]CohortSummaryResponse, len(summaries))
	for i, c := range summaries {
		out[i] = CohortSummaryResponse{
			Title:       c.Title,
			DueCount:    c.DueCount,
			TotalAmount: c.TotalAmount,
			TotalPaid:   c.TotalPaid,
			Outstanding: c.Outstanding(),
		}
	}
	return out, nil
}
