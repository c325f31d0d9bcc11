// Package bucket implements the time bucketizer (C1): parsing an interval
// specification and mapping epoch-second timestamps to bucket-start epochs.
package bucket

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nuuskamummu/sqlite3-partitioner/internal/vterrors"
)

// Unit is the interval's time unit.
type Unit int

const (
	Hour Unit = iota
	Day
)

func (u Unit) String() string {
	switch u {
	case Hour:
		return "hour"
	case Day:
		return "day"
	default:
		return "unknown"
	}
}

// Interval is an immutable, strictly positive partitioning period.
type Interval struct {
	Count   uint32
	Unit    Unit
	Seconds int64
}

// ParseInterval parses "<n> hour" or "<n> day" (case-insensitive, plural
// tolerated, arbitrary surrounding whitespace). n must be a positive decimal
// integer fitting in 32 bits.
func ParseInterval(text string) (Interval, error) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return Interval{}, fmt.Errorf("%w: %q", vterrors.ErrInvalidInterval, text)
	}

	n, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil || n == 0 {
		return Interval{}, fmt.Errorf("%w: %q", vterrors.ErrInvalidInterval, text)
	}

	unitText := strings.ToLower(strings.TrimSuffix(fields[1], "s"))
	var unit Unit
	var perUnit int64
	switch unitText {
	case "hour":
		unit = Hour
		perUnit = 3600
	case "day":
		unit = Day
		perUnit = 86400
	default:
		return Interval{}, fmt.Errorf("%w: unrecognized unit %q", vterrors.ErrInvalidInterval, fields[1])
	}

	seconds := int64(n) * perUnit
	if seconds <= 0 {
		return Interval{}, fmt.Errorf("%w: %q", vterrors.ErrInvalidInterval, text)
	}

	return Interval{Count: uint32(n), Unit: unit, Seconds: seconds}, nil
}

// FromSeconds reconstructs an Interval from a raw seconds value read back
// from the catalog's root row, where only Seconds was persisted. Prefers
// Day if it divides evenly, otherwise Hour; falls back to a 1-hour-unit
// display when seconds isn't a whole number of hours (Bucketize/NextBucket
// only ever depend on Seconds, so this only affects String()).
func FromSeconds(seconds int64) Interval {
	switch {
	case seconds > 0 && seconds%86400 == 0:
		return Interval{Count: uint32(seconds / 86400), Unit: Day, Seconds: seconds}
	case seconds > 0 && seconds%3600 == 0:
		return Interval{Count: uint32(seconds / 3600), Unit: Hour, Seconds: seconds}
	default:
		return Interval{Count: uint32(seconds), Unit: Hour, Seconds: seconds}
	}
}

// String renders the interval back as "<n> <unit>".
func (iv Interval) String() string {
	return fmt.Sprintf("%d %s", iv.Count, iv.Unit)
}

// Bucketize maps an epoch-second timestamp to its bucket-start epoch, using
// floor-division so the result is always <= ts and bucket-aligned even for
// negative timestamps.
func Bucketize(ts int64, iv Interval) int64 {
	r := ts % iv.Seconds
	if r < 0 {
		r += iv.Seconds
	}
	return ts - r
}

// NextBucket returns the start epoch of the bucket immediately following b.
// Saturates at math.MaxInt64 on overflow, for use in planner upper bounds.
func NextBucket(b int64, iv Interval) int64 {
	if b > math.MaxInt64-iv.Seconds {
		return math.MaxInt64
	}
	return b + iv.Seconds
}

// NextBucketChecked is the insert-path counterpart of NextBucket: it
// rejects overflow instead of saturating, per spec.md §4.1.
func NextBucketChecked(b int64, iv Interval) (int64, error) {
	if b > math.MaxInt64-iv.Seconds {
		return 0, vterrors.ErrTimestampOutOfRange
	}
	return b + iv.Seconds, nil
}
