package utils

import (
	"time"

	"github.com/jinzhu/now"
)

// AddMonths moves t forward by months, clamping the day to the end of the
// target month (Jan 31 + 1 month is Feb 28 or 29, not Mar 3).
func AddMonths(t time.Time, months int) time.Time {
	first := now.With(t).BeginningOfMonth().AddDate(0, months, 0)
	last := now.With(first).EndOfMonth()
	day := t.Day()
	if day > last.Day() {
		day = last.Day()
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
