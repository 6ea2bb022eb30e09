package dues

import (
	"fmt"
	"time"

	"github.com/duesledger/backend/internal/domain/shared"
)

// Period identifies a billing month
type Period struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// NewPeriod validates month 1-12 and a four digit year
func NewPeriod(month, year int) (Period, error) {
	p := Period{Month: month, Year: year}
	if !p.IsValid() {
		return Period{}, shared.NewDomainError(CodeInvalidPeriod,
			fmt.Sprintf("Invalid period %d/%d: month must be 1-12 and year 1000-9999", month, year))
	}
	return p, nil
}

// PeriodOf returns the period containing t
func PeriodOf(t time.Time) Period {
	return Period{Month: int(t.Month()), Year: t.Year()}
}

// IsValid checks the month and year ranges
func (p Period) IsValid() bool {
	return p.Month >= 1 && p.Month <= 12 && p.Year >= 1000 && p.Year <= 9999
}

// Before orders periods by year then month
func (p Period) Before(other Period) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Month < other.Month
}

// Next returns the following month
func (p Period) Next() Period {
	if p.Month == 12 {
		return Period{Month: 1, Year: p.Year + 1}
	}
	return Period{Month: p.Month + 1, Year: p.Year}
}

// String formats the period as YYYY-MM
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}
