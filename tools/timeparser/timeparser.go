package timeparser

import (
	"fmt"
	"strings"
	"time"
)

// ParseReadingTimestamp parses a reading timestamp in any of the formats the
// ingest pipeline has been seen to emit. Values without a zone are taken as UTC.
func ParseReadingTimestamp(value string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04:05.999999-07", // postgres timestamptz text
	}

	value = strings.TrimSpace(value)

	var lastErr error
	for _, format := range formats {
		t, err := time.Parse(format, value)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}

	return time.Time{}, fmt.Errorf("failed to parse timestamp '%s': %w", value, lastErr)
}

// IsTooFarInFuture reports whether readingTime lies more than tolerance after reference.
// Late readings are never rejected.
func IsTooFarInFuture(readingTime, reference time.Time, tolerance time.Duration) bool {
	return readingTime.Sub(reference) > tolerance
}
