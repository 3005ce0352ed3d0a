package quota

import (
	"time"

	"github.com/ManuelReschke/NoteFox/internal/pkg/entitlements"
)

// WindowStart returns the civil date the current counting window starts on,
// evaluated in loc and encoded as midnight UTC. Daily windows start today,
// monthly windows on the first of the month.
func WindowStart(period entitlements.Period, now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := now.In(loc).Date()
	if period == entitlements.PeriodMonth {
		d = 1
	}
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the civil date of now in loc, encoded as midnight UTC.
func Today(now time.Time, loc *time.Location) time.Time {
	return WindowStart(entitlements.PeriodDay, now, loc)
}

// civilDate normalizes a stored reset date, whatever location the driver
// decoded it in, to midnight UTC of the same calendar day.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// expired reports whether a record stamped resetAt belongs to a window that
// ended before window.
func expired(resetAt, window time.Time) bool {
	return civilDate(resetAt).Before(window)
}
