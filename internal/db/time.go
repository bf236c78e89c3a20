package db

import (
	"fmt"
	"time"
)

// TimeLayout is the storage format for timestamps in TEXT columns. The
// fractional part is fixed-width so that string comparison in SQL orders
// chronologically (RFC3339Nano trims trailing zeros, which breaks that).
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime reads a stored timestamp, accepting both the fixed-width layout
// and plain RFC3339 (hand-inserted rows, older data).
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		var err2 error
		t, err2 = time.Parse(time.RFC3339, s)
		if err2 != nil {
			return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
		}
	}
	return t, nil
}
