package shared

import (
	"strings"
	"time"
)

// DateOnly truncates t to its calendar date in UTC. Ledger dates carry no
// time of day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date builds a ledger date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate reads a YYYY-MM-DD ledger date.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, Validationf("invalid date %q, expected YYYY-MM-DD", raw)
	}
	return t, nil
}

// FormatDate renders a ledger date, empty for nil.
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}
