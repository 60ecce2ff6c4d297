// Package clock provides the timezone-aware wall clock and the small
// time-of-day parsing helpers the scheduler is built on.
package clock

import (
	"strconv"
	"strings"
	"time"
)

// Now returns the current time in the named IANA zone. An empty or
// unresolvable zone name silently falls back to the local clock, so
// callers never have to handle an error from the clock.
func Now(tzName string) time.Time {
	if tzName != "" {
		if loc, err := time.LoadLocation(tzName); err == nil {
			return time.Now().In(loc)
		}
	}
	return time.Now()
}

// ParseHHMM parses "H:MM" or "HH:MM" into an hour and minute.
// Hour must be 0-23, minute 0-59 and exactly two digits. Returns
// ok=false for anything malformed.
func ParseHHMM(s string) (hour, minute int, ok bool) {
	s = strings.TrimSpace(s)
	hh, mm, found := strings.Cut(s, ":")
	if !found || len(hh) < 1 || len(hh) > 2 || len(mm) != 2 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

// InQuietHours reports whether now falls inside a "HH:MM-HH:MM" window.
// Both bounds are inclusive. A window whose start is later than its end
// wraps past midnight ("22:00-06:00" contains 23:30 and 05:00). An empty
// or malformed window is never quiet.
func InQuietHours(now time.Time, window string) bool {
	a, b, found := strings.Cut(window, "-")
	if !found {
		return false
	}
	sh, sm, ok := ParseHHMM(a)
	if !ok {
		return false
	}
	eh, em, ok := ParseHHMM(b)
	if !ok {
		return false
	}
	cur := now.Hour()*60 + now.Minute()
	start := sh*60 + sm
	end := eh*60 + em
	if start <= end {
		return cur >= start && cur <= end
	}
	return cur >= start || cur <= end
}
