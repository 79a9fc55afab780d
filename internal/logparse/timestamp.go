package logparse

import (
	"fmt"
	"strings"
	"time"
)

// naiveLayouts carry no zone and are read in the local zone. Fractional
// seconds after the seconds field are accepted by time.Parse without being
// named in the layout.
var naiveLayouts = []string{
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 MST",
	time.RFC1123Z,
	time.RFC1123,
}

// ParseTimestamp reads the datetime field of a record.
func ParseTimestamp(value string) (time.Time, error) {
	return parseTimestampIn(value, time.Local)
}

func parseTimestampIn(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrUnparseableTimestamp)
	}
	// Comma decimal separators show up in some PHP locales.
	normalized := strings.Replace(value, ",", ".", 1)
	for _, layout := range zonedLayouts {
		if ts, err := time.Parse(layout, normalized); err == nil {
			return ts, nil
		}
	}
	for _, layout := range naiveLayouts {
		if ts, err := time.ParseInLocation(layout, normalized, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableTimestamp, value)
}
