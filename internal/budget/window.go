package budget

import (
	"fmt"
	"time"
)

// WindowStart returns the inclusive start of the current accounting window
// for a period. Weekly is a rolling seven-day window; monthly and yearly are
// calendar-aligned. The result is truncated to midnight because expenses
// carry calendar dates, not timestamps.
func WindowStart(period Period, now time.Time) (time.Time, error) {
	switch period {
	case PeriodWeekly:
		return dateOnly(now.AddDate(0, 0, -7)), nil
	case PeriodMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	case PeriodYearly:
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC), nil
	default:
		return time.Time{}, fmt.Errorf("unknown budget period %q", period)
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
