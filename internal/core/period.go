package core

import (
	"time"
)

// DateLayout is the canonical stored date form.
const DateLayout = "2006-01-02"

// MonthRange is the first and last calendar day of a month, inclusive.
type MonthRange struct {
	Start string
	End   string
}

// MonthRangeAt returns the month offset months away from now's month.
// Offsets roll over year boundaries (January with offset -1 is December
// of the previous year).
func MonthRangeAt(now time.Time, offset int) MonthRange {
	first := time.Date(now.Year(), now.Month()+time.Month(offset), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return MonthRange{
		Start: first.Format(DateLayout),
		End:   last.Format(DateLayout),
	}
}

// ParseDate accepts a calendar date (YYYY-MM-DD) or an RFC 3339 timestamp
// and returns the canonical YYYY-MM-DD form.
func ParseDate(s string) (string, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t.Format(DateLayout), nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(DateLayout), nil
		}
	}
	return "", ErrInvalidDate
}
