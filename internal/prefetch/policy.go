package prefetch

import "time"

// InQuietHours reports whether t falls inside the [start, end) hour
// window in local time. The window may wrap midnight: start 22 and end 6
// covers 22:00 through 05:59.
func InQuietHours(t time.Time, start, end int) bool {
	if start == end {
		return false
	}

	hour := t.Hour()
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}
