// Package fixtime serializes and parses FIX UTC timestamps
// (tag 52 SendingTime and similar fields): YYYYMMDD-HH:MM:SS[.mmm].
package fixtime

import (
	"fmt"
	"time"
)

const (
	layoutSeconds = "20060102-15:04:05"
	layoutMillis  = "20060102-15:04:05.000"
)

// Format renders t (converted to UTC) as a FIX UTC timestamp. When millis is
// true the rendered value carries a three-digit millisecond field, truncated
// (never rounded) from t's sub-second component.
func Format(t time.Time, millis bool) string {
	u := t.UTC()
	if millis {
		return u.Format(layoutMillis)
	}
	return u.Format(layoutSeconds)
}

// Parse accepts both the second-precision and millisecond-precision FIX
// timestamp grammars and returns an instant pinned to UTC. It rejects any
// string that does not match the exact grammar or whose calendar components
// are out of range.
func Parse(s string) (time.Time, error) {
	if len(s) == len(layoutSeconds) {
		t, err := time.Parse(layoutSeconds, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("fixtime: %w", err)
		}
		return t.UTC(), nil
	}
	if len(s) == len(layoutMillis) {
		t, err := time.Parse(layoutMillis, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("fixtime: %w", err)
		}
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("fixtime: %q does not match YYYYMMDD-HH:MM:SS[.mmm]", s)
}

// Now returns the current instant formatted as a FIX UTC timestamp, the form
// session headers (tag 52) use at send time.
func Now(millis bool) string {
	return Format(time.Now(), millis)
}
