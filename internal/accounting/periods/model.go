package periods

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// TaxPeriod represents a calendar-month tax period identified as YYYYMM.
type TaxPeriod struct {
	Code      string
	DateFrom  time.Time
	DateUntil time.Time
	Closed    *time.Time
}

// IsClosed reports whether the period stopped accepting postings.
func (p TaxPeriod) IsClosed() bool {
	return p.Closed != nil
}

// Contains reports whether date falls inside the inclusive period window.
// Only the calendar day is compared.
func (p TaxPeriod) Contains(date time.Time) bool {
	day := truncateDay(date)
	return !day.Before(truncateDay(p.DateFrom)) && !day.After(truncateDay(p.DateUntil))
}

// ParseCode validates a YYYYMM code and returns its year and month.
func ParseCode(code string) (int, time.Month, error) {
	if len(code) != 6 {
		return 0, 0, fmt.Errorf("%w: %q", shared.ErrInvalidPeriod, code)
	}
	t, err := time.Parse("200601", code)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", shared.ErrInvalidPeriod, code)
	}
	return t.Year(), t.Month(), nil
}

// ForMonth builds the open period covering the whole calendar month of code.
func ForMonth(code string) (TaxPeriod, error) {
	year, month, err := ParseCode(code)
	if err != nil {
		return TaxPeriod{}, err
	}
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return TaxPeriod{
		Code:      code,
		DateFrom:  from,
		DateUntil: from.AddDate(0, 1, -1),
	}, nil
}

// CodeFor returns the YYYYMM code of the month containing date.
func CodeFor(date time.Time) string {
	return date.Format("200601")
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
