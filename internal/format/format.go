// Package format renders display strings for article pages.
package format

import (
	"strings"
	"time"
)

// DefaultDateLayout renders dates like "March 4, 2025".
const DefaultDateLayout = "January 2, 2006"

const wordsPerMinute = 200

// Date renders t in loc using layout. A zero time renders as "". An empty
// layout uses DefaultDateLayout and a nil loc uses UTC.
func Date(t time.Time, layout string, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if layout == "" {
		layout = DefaultDateLayout
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(layout)
}

// ReadingMinutes estimates reading time for the given text blocks, rounding
// up. Any non-empty text reads in at least one minute.
func ReadingMinutes(blocks ...string) int {
	words := 0
	for _, b := range blocks {
		words += len(strings.Fields(b))
	}
	if words == 0 {
		return 0
	}
	return (words + wordsPerMinute - 1) / wordsPerMinute
}
