package recurring

import (
	"time"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

// FirstRunDate aligns the start date to the rule: the first matching date on
// or after start.
func FirstRunDate(t Template) time.Time {
	start := shared.DateOnly(t.StartDate)
	switch t.Frequency {
	case FrequencyWeekly:
		delta := (weekday(t) - int(start.Weekday()) + 7) % 7
		return start.AddDate(0, 0, delta)
	case FrequencyMonthly, FrequencyQuarterly:
		first := monthDay(start.Year(), start.Month(), anchorDay(t))
		if first.Before(start) {
			months := 1
			if t.Frequency == FrequencyQuarterly {
				months = 3
			}
			first = addMonths(first, months, anchorDay(t))
		}
		return first
	case FrequencyYearly:
		first := monthDay(start.Year(), anchorMonth(t), anchorDay(t))
		if first.Before(start) {
			first = monthDay(start.Year()+1, anchorMonth(t), anchorDay(t))
		}
		return first
	default:
		return start
	}
}

// NextRunDate advances from by one period of the template's rule. Month based
// rules return to the anchor day when the month is long enough and clamp to
// the last day otherwise.
func NextRunDate(t Template, from time.Time) time.Time {
	from = shared.DateOnly(from)
	switch t.Frequency {
	case FrequencyDaily:
		return from.AddDate(0, 0, 1)
	case FrequencyWeekly:
		delta := (weekday(t) - int(from.Weekday()) + 7) % 7
		if delta == 0 {
			delta = 7
		}
		return from.AddDate(0, 0, delta)
	case FrequencyMonthly:
		return addMonths(from, 1, anchorDay(t))
	case FrequencyQuarterly:
		return addMonths(from, 3, anchorDay(t))
	case FrequencyYearly:
		return monthDay(from.Year()+1, anchorMonth(t), anchorDay(t))
	default:
		return from.AddDate(0, 0, 1)
	}
}

func weekday(t Template) int {
	if t.DayOfWeek != nil {
		return *t.DayOfWeek
	}
	return int(t.StartDate.Weekday())
}

func anchorDay(t Template) int {
	if t.DayOfMonth != nil {
		return *t.DayOfMonth
	}
	return t.StartDate.Day()
}

func anchorMonth(t Template) time.Month {
	if t.MonthOfYear != nil {
		return time.Month(*t.MonthOfYear)
	}
	return t.StartDate.Month()
}

func addMonths(from time.Time, months, day int) time.Time {
	first := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	return monthDay(first.Year(), first.Month(), day)
}

func monthDay(year int, month time.Month, day int) time.Time {
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
