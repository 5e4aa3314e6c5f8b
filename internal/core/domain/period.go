package domain

import (
	"fmt"
	"strings"
	"time"
)

// DataWindowMonths is how far back police.uk guarantees street-level data.
// Requests outside the window are still sent; the fetcher logs a warning.
const DataWindowMonths = 36

// Month is a calendar year-month, formatted as YYYY-MM on the wire.
type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth parses a YYYY-MM string.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q: expected YYYY-MM", s)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Next returns the following calendar month.
func (m Month) Next() Month {
	if m.Month == time.December {
		return Month{Year: m.Year + 1, Month: time.January}
	}
	return Month{Year: m.Year, Month: m.Month + 1}
}

// Before reports whether m is strictly earlier than o.
func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// WithinWindow reports whether m falls inside the upstream data window
// counted back from now.
func (m Month) WithinWindow(now time.Time) bool {
	oldest := time.Date(now.Year(), now.Month()-DataWindowMonths, 1, 0, 0, 0, 0, time.UTC)
	return !m.Before(MonthOf(oldest))
}

// MarshalText encodes the month as YYYY-MM.
func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a YYYY-MM month.
func (m *Month) UnmarshalText(b []byte) error {
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Period is an ordered run of consecutive months. The zero value is empty
// and invalid; build one with NewPeriod, MonthRange or ParsePeriod.
type Period struct {
	Months []Month `json:"months"`
}

// NewPeriod validates that months are non-empty and consecutive.
func NewPeriod(months ...Month) (Period, error) {
	if len(months) == 0 {
		return Period{}, fmt.Errorf("period must contain at least one month")
	}
	for i := 1; i < len(months); i++ {
		if months[i] != months[i-1].Next() {
			return Period{}, fmt.Errorf("period months must be consecutive: %s does not follow %s", months[i], months[i-1])
		}
	}
	out := make([]Month, len(months))
	copy(out, months)
	return Period{Months: out}, nil
}

// SingleMonth is a one-month period.
func SingleMonth(m Month) Period {
	return Period{Months: []Month{m}}
}

// MonthRange returns the inclusive run from..to.
func MonthRange(from, to Month) (Period, error) {
	if to.Before(from) {
		return Period{}, fmt.Errorf("period end %s is before start %s", to, from)
	}
	var months []Month
	for m := from; !to.Before(m); m = m.Next() {
		months = append(months, m)
	}
	return NewPeriod(months...)
}

// ParsePeriod accepts "YYYY-MM" or an inclusive range "YYYY-MM..YYYY-MM".
func ParsePeriod(s string) (Period, error) {
	from, to, isRange := strings.Cut(s, "..")
	start, err := ParseMonth(from)
	if err != nil {
		return Period{}, err
	}
	if !isRange {
		return SingleMonth(start), nil
	}
	end, err := ParseMonth(to)
	if err != nil {
		return Period{}, err
	}
	return MonthRange(start, end)
}

// Label is the canonical text form used in cache keys.
func (p Period) Label() string {
	switch len(p.Months) {
	case 0:
		return ""
	case 1:
		return p.Months[0].String()
	default:
		return p.Months[0].String() + ".." + p.Months[len(p.Months)-1].String()
	}
}

func (p Period) String() string { return p.Label() }
