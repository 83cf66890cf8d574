package rates

import "time"

// Cooldown reports whether an action last performed at last may run again at now.
// A zero last time never blocks. remaining is zero when ok.
func Cooldown(now, last time.Time, period time.Duration) (ok bool, remaining time.Duration) {
	if period <= 0 || last.IsZero() {
		return true, 0
	}
	next := last.Add(period)
	if !now.Before(next) {
		return true, 0
	}
	return false, next.Sub(now)
}

// WithinWindow reports whether now falls inside [start, start+window).
func WithinWindow(now, start time.Time, window time.Duration) bool {
	if window <= 0 || start.IsZero() {
		return false
	}
	return !now.Before(start) && now.Before(start.Add(window))
}
