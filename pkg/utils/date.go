package utils

import "time"

// TruncateToDay normalizes a timestamp to midnight UTC. All simulated trading
// days are keyed this way so bars from different sources line up.
func TruncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days between two timestamps,
// never less than 1.
func DaysBetween(start, end time.Time) float64 {
	days := end.Sub(start).Hours() / 24
	if days < 1 {
		return 1
	}
	return days
}

// ParseDate parses a YYYY-MM-DD date string in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}
