// Package scrapeutil holds small parsing helpers shared by the HTML-scrape
// platform adapters: human-formatted viewer counts and relative-time
// strings, neither of which the documented JSON/OAuth APIs need.
package scrapeutil

import (
	"strconv"
	"strings"
)

// ParseViewerCount implements §8 property 5 exactly: strip commas and
// whitespace, lowercase, then a "k" suffix multiplies by 1,000 and an "m"
// suffix by 1,000,000; any parse failure yields 0.
func ParseViewerCount(text string) uint32 {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.ReplaceAll(t, ",", "")
	t = strings.TrimSpace(t)
	if t == "" {
		return 0
	}

	switch {
	case strings.Contains(t, "k"):
		return parseScaled(strings.ReplaceAll(t, "k", ""), 1000)
	case strings.Contains(t, "m"):
		return parseScaled(strings.ReplaceAll(t, "m", ""), 1_000_000)
	default:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil || n < 0 {
			return 0
		}
		return uint32(n)
	}
}

func parseScaled(numPart string, scale int64) uint32 {
	f, err := strconv.ParseFloat(strings.TrimSpace(numPart), 64)
	if err != nil || f < 0 {
		return 0
	}
	scaled := int64(f * float64(scale))
	if scaled < 0 {
		return 0
	}
	return uint32(scaled)
}
