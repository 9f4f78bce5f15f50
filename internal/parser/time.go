package parser

import (
	"strconv"
	"strings"
	"time"

	"toursync/internal/model"
)

// Fallback layouts tried after the ISO-8601 combined parser, in order.
// Device exports disagree on fractions and offsets, so all of these
// occur in the wild.
var timeLayouts = []string{
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
}

// parseTimeMillis parses a timestamp string into epoch milliseconds.
// It tries the ISO-8601 combined parser first, then the fallback
// layouts. Layouts without an offset are interpreted as UTC.
func parseTimeMillis(text string) (int64, error) {
	text = strings.TrimSpace(text)

	if t, err := time.Parse(time.RFC3339Nano, text); err == nil {
		return t.UnixMilli(), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, text, time.UTC); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return model.NoTime, ErrInvalidStartTime
}

// parseFloat parses numeric character data into a sample field. Anything
// unparsable becomes the unset sentinel; a bad number never aborts a file.
func parseFloat(text string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return model.NoValue
	}
	return v
}
