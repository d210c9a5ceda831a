package ledger

import (
	"regexp"
	"strconv"
	"strings"
)

type lineRange struct {
	start int
	end   int
}

// rangePattern accepts "12", "10-12", "L10-L12" and "lines 10-12".
var rangePattern = regexp.MustCompile(`^(?i:l|lines?\s*)?(\d+)(?:\s*-\s*(?i:l)?(\d+))?$`)

func parseRange(location string) (lineRange, bool) {
	m := rangePattern.FindStringSubmatch(strings.TrimSpace(location))
	if m == nil {
		return lineRange{}, false
	}
	start, err := strconv.Atoi(m[1])
	if err != nil {
		return lineRange{}, false
	}
	end := start
	if m[2] != "" {
		if end, err = strconv.Atoi(m[2]); err != nil {
			return lineRange{}, false
		}
	}
	if end < start {
		start, end = end, start
	}
	return lineRange{start: start, end: end}, true
}

// locationsOverlap reports whether two evidence locations in the same
// source refer to overlapping text. Line ranges overlap when they share a
// line; any other locations must be equal.
func locationsOverlap(a, b string) bool {
	ra, okA := parseRange(a)
	rb, okB := parseRange(b)
	if okA && okB {
		return ra.start <= rb.end && rb.start <= ra.end
	}
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}
