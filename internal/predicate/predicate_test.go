package predicate

import (
	"math"
	"testing"

	"github.com/nuuskamummu/sqlite3-partitioner/internal/bucket"
)

var hourly = bucket.Interval{Seconds: 3600}

func TestOpPrunable(t *testing.T) {
	prunable := []Op{OpEQ, OpLT, OpLE, OpGT, OpGE}
	for _, op := range prunable {
		if !op.Prunable() {
			t.Errorf("expected %v to be prunable", op)
		}
	}
	notPrunable := []Op{OpIS, OpISNOT, OpMATCH, OpLIKE, OpGLOB, OpREGEXP}
	for _, op := range notPrunable {
		if op.Prunable() {
			t.Errorf("expected %v to not be prunable", op)
		}
	}
}

func TestExtractPartitionRangeUnbounded(t *testing.T) {
	r := ExtractPartitionRange(nil, nil, hourly)
	if r.LoBound() != math.MinInt64 || r.HiBound() != math.MaxInt64 {
		t.Errorf("expected unbounded range, got %+v", r)
	}
}

func TestExtractPartitionRangeEquality(t *testing.T) {
	constraints := []Constraint{{ColumnIndex: 0, Op: OpEQ, ArgvIndex: 1}}
	values := map[int]int64{1: 7300} // bucketizes to 7200
	r := ExtractPartitionRange(constraints, values, hourly)
	if r.LoBound() != 7200 || r.HiBound() != 7200 {
		t.Errorf("equality constraint should collapse to a single bucket, got %+v", r)
	}
}

func TestExtractPartitionRangeOpenEnded(t *testing.T) {
	constraints := []Constraint{{ColumnIndex: 0, Op: OpGE, ArgvIndex: 1}}
	values := map[int]int64{1: 10000}
	r := ExtractPartitionRange(constraints, values, hourly)
	if r.LoBound() != 7200 {
		t.Errorf("expected lower bound 7200, got %d", r.LoBound())
	}
	if r.HiBound() != math.MaxInt64 {
		t.Errorf("expected unbounded upper, got %d", r.HiBound())
	}
}

func TestExtractPartitionRangeNarrowsToTightest(t *testing.T) {
	// Two lower bounds: the tighter (larger) one should win.
	constraints := []Constraint{
		{ColumnIndex: 0, Op: OpGE, ArgvIndex: 1},
		{ColumnIndex: 0, Op: OpGT, ArgvIndex: 2},
	}
	values := map[int]int64{1: 0, 2: 10000}
	r := ExtractPartitionRange(constraints, values, hourly)
	if r.LoBound() != 7200 {
		t.Errorf("expected the tighter lower bound 7200, got %d", r.LoBound())
	}
}

func TestExtractPartitionRangeIgnoresUnprunableOps(t *testing.T) {
	constraints := []Constraint{{ColumnIndex: 0, Op: OpLIKE, ArgvIndex: 1}}
	values := map[int]int64{1: 10000}
	r := ExtractPartitionRange(constraints, values, hourly)
	if r.LoBound() != math.MinInt64 || r.HiBound() != math.MaxInt64 {
		t.Errorf("LIKE should not narrow the range, got %+v", r)
	}
}
