// Package predicate implements the typed representation of host-pushed
// WHERE constraints (C3) and the bucket-range extraction used by the
// planner and cursor to prune partitions.
package predicate

import (
	"math"

	"github.com/nuuskamummu/sqlite3-partitioner/internal/bucket"
)

// Op is a constraint operator, as pushed down by the host.
type Op int

const (
	OpEQ Op = iota
	OpLT
	OpLE
	OpGT
	OpGE
	OpIS
	OpISNOT
	OpMATCH
	OpLIKE
	OpGLOB
	OpREGEXP
)

// Prunable reports whether this operator can narrow a partition range when
// applied to the partition column. Only the five comparison operators are
// interpretable for pruning; everything else is pushed through verbatim to
// every visited partition's WHERE clause.
func (o Op) Prunable() bool {
	switch o {
	case OpEQ, OpLT, OpLE, OpGT, OpGE:
		return true
	default:
		return false
	}
}

// Constraint is one (column, operator, argv slot) triple from the host's
// constraint list.
type Constraint struct {
	ColumnIndex int
	Op          Op
	ArgvIndex   int // position in the filter-time argv the planner asked for
}

// Range is an inclusive bucket-unit range extracted from the partition
// column's constraints. NoLower/NoUpper encode "-infinity"/"+infinity"
// ("earliest existing"/"latest existing" per spec.md §4.3).
type Range struct {
	Lo      int64
	Hi      int64
	NoLower bool
	NoUpper bool
}

// Unbounded returns the full range, used when no partition-column
// constraints were pushed down.
func Unbounded() Range {
	return Range{NoLower: true, NoUpper: true}
}

// ExtractPartitionRange narrows lo/hi bucket bounds from the constraints
// that apply to the partition column, given their bound argument values
// (already resolved to epoch seconds by the caller).
//
// '=' narrows both bounds to bucketize(v). '>'/'>=' raise the lower bound;
// because a row with ts > v may still live in the same bucket as v, the
// raised bound is still bucketize(v), inclusive at the bucket level.
// '<'/'<=' lower the upper bound symmetrically.
func ExtractPartitionRange(constraints []Constraint, values map[int]int64, iv bucket.Interval) Range {
	r := Unbounded()

	for _, c := range constraints {
		v, ok := values[c.ArgvIndex]
		if !ok || !c.Op.Prunable() {
			continue
		}
		b := bucket.Bucketize(v, iv)

		switch c.Op {
		case OpEQ:
			r = narrowLower(r, b)
			r = narrowUpper(r, b)
		case OpGT, OpGE:
			r = narrowLower(r, b)
		case OpLT, OpLE:
			r = narrowUpper(r, b)
		}
	}

	return r
}

func narrowLower(r Range, b int64) Range {
	if r.NoLower || b > r.Lo {
		r.Lo = b
		r.NoLower = false
	}
	return r
}

func narrowUpper(r Range, b int64) Range {
	if r.NoUpper || b < r.Hi {
		r.Hi = b
		r.NoUpper = false
	}
	return r
}

// LoBound returns the effective lower bound, or math.MinInt64 if unbounded.
func (r Range) LoBound() int64 {
	if r.NoLower {
		return math.MinInt64
	}
	return r.Lo
}

// HiBound returns the effective upper bound, or math.MaxInt64 if unbounded.
func (r Range) HiBound() int64 {
	if r.NoUpper {
		return math.MaxInt64
	}
	return r.Hi
}
