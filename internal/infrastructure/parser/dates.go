package parser

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// dateCandidates lists the date hints of one item in resolution order.
type dateCandidates struct {
	Published string
	Updated   string
	Created   string
	// Parsed holds structured times already decoded by the feed parser.
	Parsed []*time.Time
}

// resolveDate returns the first parsable candidate, or nil when every hint fails.
func resolveDate(c dateCandidates) *time.Time {
	for _, raw := range []string{c.Published, c.Updated, c.Created} {
		if t, ok := parseLoose(raw); ok {
			return &t
		}
	}
	for _, parsed := range c.Parsed {
		if parsed != nil && !parsed.IsZero() {
			t := parsed.UTC()
			return &t
		}
	}
	return nil
}

func parseLoose(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
