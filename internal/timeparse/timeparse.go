// Package timeparse implements parse_timestamp(text) -> epoch_seconds|error,
// the textual datetime normalizer spec.md treats as a pure external
// function (§1 "Out of scope: ... the textual datetime parser"). It is
// reproduced here, minimally, only because the module must actually call
// something; see DESIGN.md for why this stays on the standard library
// rather than an ecosystem dependency.
package timeparse

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// layouts are tried in order; the first one that parses the full string wins.
var layouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02-01-2006 15:04:05",
	"02-01-2006 15:04",
	"02-01-2006",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	"20060102150405",
	"20060102",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 03:04:05 PM",
	"01/02/2006 03:04:05 PM",
	"January 2, 2006 15:04:05",
	"Jan 2, 2006 15:04:05",
	"January 2, 2006",
	"Jan 2, 2006",
}

// Parse normalizes text into UTC epoch seconds. Bare integers are treated
// as already-epoch-seconds. All other formats enumerated in spec.md §6 are
// attempted in turn.
func Parse(text string) (int64, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, fmt.Errorf("empty timestamp")
	}

	if epoch, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return epoch, nil
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Unix(), nil
		}
	}

	return 0, fmt.Errorf("unrecognized timestamp format: %q", text)
}

// Format renders epoch seconds back to the canonical UTC layout this
// module uses for the partition column's on-disk representation (see
// SPEC_FULL.md §5, Open Question (a)).
func Format(epoch int64) string {
	return time.Unix(epoch, 0).UTC().Format("2006-01-02 15:04:05")
}
