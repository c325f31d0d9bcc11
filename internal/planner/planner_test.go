package planner

import (
	"testing"

	"github.com/nuuskamummu/sqlite3-partitioner/internal/predicate"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/schema"
)

func testSchema(t *testing.T) schema.Schema {
	t.Helper()
	s, err := schema.ParseColumns("id INTEGER, ts TIMESTAMP partition_column, label TEXT")
	if err != nil {
		t.Fatalf("schema setup: %v", err)
	}
	return s
}

func TestBestIndexEqualityOnPartitionColumn(t *testing.T) {
	s := testSchema(t)
	constraints := []HostConstraint{
		{ColumnIndex: 1, Op: predicate.OpEQ, Usable: true},
	}
	plan := BestIndex(s, constraints, nil)

	if plan.Used[0] != 1 {
		t.Fatalf("expected constraint 0 to be used at arg position 1, got %d", plan.Used[0])
	}
	if plan.EstimatedCost != 1.0 {
		t.Errorf("expected equality plan to have the lowest cost, got %v", plan.EstimatedCost)
	}

	decoded, err := Decode(plan.IdxStr)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded) != 1 || decoded[0].ColumnIndex != 1 || decoded[0].Op != predicate.OpEQ || decoded[0].ArgPos != 1 {
		t.Errorf("unexpected decoded constraints: %+v", decoded)
	}
}

func TestBestIndexSkipsUnusableConstraints(t *testing.T) {
	s := testSchema(t)
	constraints := []HostConstraint{
		{ColumnIndex: 1, Op: predicate.OpEQ, Usable: false},
		{ColumnIndex: 2, Op: predicate.OpEQ, Usable: true},
	}
	plan := BestIndex(s, constraints, nil)

	if plan.Used[0] != 0 {
		t.Errorf("expected unusable constraint to stay unused, got %d", plan.Used[0])
	}
	if plan.Used[1] != 1 {
		t.Errorf("expected usable constraint to get arg position 1, got %d", plan.Used[1])
	}
}

func TestBestIndexArgPositionsAreSequential(t *testing.T) {
	s := testSchema(t)
	constraints := []HostConstraint{
		{ColumnIndex: 0, Op: predicate.OpEQ, Usable: true},
		{ColumnIndex: 1, Op: predicate.OpGE, Usable: true},
		{ColumnIndex: 2, Op: predicate.OpLIKE, Usable: true},
	}
	plan := BestIndex(s, constraints, nil)

	for i, want := range []int{1, 2, 3} {
		if plan.Used[i] != want {
			t.Errorf("constraint %d: Used = %d, want %d", i, plan.Used[i], want)
		}
	}
}

func TestBestIndexOrderByConsumedOnlyForEqualityAscending(t *testing.T) {
	s := testSchema(t)
	constraints := []HostConstraint{{ColumnIndex: 1, Op: predicate.OpEQ, Usable: true}}

	ascending := BestIndex(s, constraints, []HostOrderBy{{ColumnIndex: 1, Desc: false}})
	if !ascending.OrderByConsumed {
		t.Error("expected ascending order-by on partition column to be consumed")
	}

	descending := BestIndex(s, constraints, []HostOrderBy{{ColumnIndex: 1, Desc: true}})
	if descending.OrderByConsumed {
		t.Error("descending order-by should not be marked consumed")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	planned := []PlannedConstraint{
		{ColumnIndex: 1, Op: predicate.OpGE, ArgPos: 1},
		{ColumnIndex: 2, Op: predicate.OpEQ, ArgPos: 2},
	}
	idxStr, err := Encode(planned)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(idxStr)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded) != len(planned) {
		t.Fatalf("expected %d constraints, got %d", len(planned), len(decoded))
	}
	for i := range planned {
		if decoded[i] != planned[i] {
			t.Errorf("constraint %d: got %+v, want %+v", i, decoded[i], planned[i])
		}
	}
}

func TestDecodeEmptyIdxStr(t *testing.T) {
	decoded, err := Decode("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded != nil {
		t.Errorf("expected nil for empty idxStr, got %+v", decoded)
	}
}

func TestDecodeRejectsUnsupportedVersion(t *testing.T) {
	// A single 0xFF byte is a well-formed base64 payload but an unsupported version.
	if _, err := Decode("_w"); err == nil {
		t.Error("expected an error for an unsupported version byte")
	}
}

func TestDecodeRejectsTruncatedPayload(t *testing.T) {
	if _, err := Decode("AQ"); err == nil {
		t.Error("expected an error for a truncated idxStr")
	}
}
