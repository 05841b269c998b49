package query

import (
	"fmt"
	"time"
)

// DateLayout is the layout of a calendar date filter value.
const DateLayout = "2006-01-02"

// DateTimeLayout is the layout of a timestamp rendered by
// TagblockTimestampToDate.
const DateTimeLayout = "2006-01-02 15:04:05"

var boundaryLayouts = []string{DateTimeLayout, "2006-01-02T15:04:05", time.RFC3339, DateLayout}

// DateToTagblockTimestamp converts a UTC calendar time to the Unix seconds
// stored in tagblock_timestamp.
func DateToTagblockTimestamp(year int, month time.Month, day, hour, minute, second int) int64 {
	return time.Date(year, month, day, hour, minute, second, 0, time.UTC).Unix()
}

// TagblockTimestampToDate renders a tagblock timestamp as
// "YYYY-MM-DD HH:MM:SS" in UTC.
func TagblockTimestampToDate(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(DateTimeLayout)
}

// parseBoundary converts a date filter value to a tagblock timestamp. A bare
// date is midnight UTC, or the last second of that day when it closes the
// range.
func parseBoundary(s string, end bool) (int64, error) {
	for _, layout := range boundaryLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err != nil {
			continue
		}
		if end && layout == DateLayout {
			t = t.Add(24*time.Hour - time.Second)
		}
		return t.Unix(), nil
	}
	return 0, fmt.Errorf("%w: unrecognized date %q", ErrInvalidCriteria, s)
}
