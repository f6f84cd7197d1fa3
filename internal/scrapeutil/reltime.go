package scrapeutil

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// relTimePattern matches strings like "5 minutes ago", "1 hour ago".
var relTimePattern = regexp.MustCompile(`^(\d+)\s+(second|minute|hour|day|week|month)s?\s+ago$`)

var unitSeconds = map[string]int64{
	"second": 1,
	"minute": 60,
	"hour":   3600,
	"day":    86400,
	"week":   604800,
	"month":  2592000, // 30-day approximation, matching the source scraper.
}

// ParseRelativeTime converts a scraped relative-time string ("5 minutes
// ago") into an absolute timestamp using now as the reference point. It
// reports ok=false for "Not Available"/empty text or any string that does
// not match the "<N> <unit>(s) ago" shape — there is no Go equivalent of a
// full natural-language date parser in the dependency set available to this
// build, so only the literal relative-time shape is handled.
func ParseRelativeTime(text string, now time.Time) (t time.Time, ok bool) {
	trimmed := strings.ToLower(strings.TrimSpace(text))
	if trimmed == "" || trimmed == "not available" {
		return time.Time{}, false
	}

	m := relTimePattern.FindStringSubmatch(trimmed)
	if m == nil {
		return time.Time{}, false
	}

	value, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	secs, known := unitSeconds[m[2]]
	if !known {
		return time.Time{}, false
	}

	return now.Add(-time.Duration(value*secs) * time.Second), true
}
