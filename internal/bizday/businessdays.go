package bizday

import "time"

// firingHour is the hour-of-day (UTC) every computed firing time is
// normalized to, chosen to place firings outside business hours for
// downstream systems.
const firingHour = 1

// normalize sets d's time-of-day to 01:00:00 UTC, preserving its calendar
// date.
func normalize(d time.Time) time.Time {
	d = d.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), firingHour, 0, 0, 0, time.UTC)
}

// NextBusinessDay returns the next business day on or after from, at
// 01:00 UTC. If from is already a business day, its own date is used.
func NextBusinessDay(from time.Time) time.Time {
	current := from.UTC()
	for !IsBusinessDay(current) {
		current = current.AddDate(0, 0, 1)
	}
	return normalize(current)
}

// AddBusinessDays advances t by |n| business days in the sign direction of
// n, returning a timestamp normalized to 01:00:00 UTC on a business day.
//
// For n=0, the underlying Python source leaves this case undefined (its
// loop body never executes, returning the input unchanged but for the
// time-of-day — which is not business-day safe when t itself falls on a
// weekend or holiday). This implementation fixes n=0 to mean "the next
// business day on or after t, at 01:00 UTC", per spec.
func AddBusinessDays(t time.Time, n int) time.Time {
	if n == 0 {
		return NextBusinessDay(t)
	}

	step := 1
	if n < 0 {
		step = -1
	}
	remaining := n
	if remaining < 0 {
		remaining = -remaining
	}

	current := t.UTC()
	for remaining > 0 {
		current = current.AddDate(0, 0, step)
		if IsBusinessDay(current) {
			remaining--
		}
	}

	return normalize(current)
}
