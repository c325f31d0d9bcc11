package schema

import (
	"errors"
	"testing"

	"github.com/nuuskamummu/sqlite3-partitioner/internal/vterrors"
)

func TestParseColumns(t *testing.T) {
	s, err := ParseColumns("id INTEGER, ts TIMESTAMP partition_column, label TEXT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Columns) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(s.Columns))
	}
	if s.PartitionColumnIndex != 1 {
		t.Errorf("expected partition column index 1, got %d", s.PartitionColumnIndex)
	}
	if got := s.PartitionColumnName(); got != "ts" {
		t.Errorf("PartitionColumnName() = %q, want ts", got)
	}
	if got := s.ColumnNames(); len(got) != 3 || got[0] != "id" || got[2] != "label" {
		t.Errorf("ColumnNames() = %v", got)
	}
}

func TestParseColumnsWithParenthesizedType(t *testing.T) {
	s, err := ParseColumns("amount decimal(10,2), ts TIMESTAMP partition_column")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Columns[0].DeclaredType != "decimal(10,2)" {
		t.Errorf("expected decimal(10,2) type preserved, got %q", s.Columns[0].DeclaredType)
	}
}

func TestParseColumnsRequiresPartitionColumn(t *testing.T) {
	_, err := ParseColumns("id INTEGER, label TEXT")
	if !errors.Is(err, vterrors.ErrNoPartitionColumn) {
		t.Errorf("expected ErrNoPartitionColumn, got %v", err)
	}
}

func TestParseColumnsRejectsMultiplePartitionColumns(t *testing.T) {
	_, err := ParseColumns("a TIMESTAMP partition_column, b TIMESTAMP partition_column")
	if !errors.Is(err, vterrors.ErrMultiplePartitionColumns) {
		t.Errorf("expected ErrMultiplePartitionColumns, got %v", err)
	}
}

func TestParseColumnsRejectsNonTimestampPartitionColumn(t *testing.T) {
	_, err := ParseColumns("a INTEGER partition_column")
	if !errors.Is(err, vterrors.ErrUnsupportedPartitionColumnType) {
		t.Errorf("expected ErrUnsupportedPartitionColumnType, got %v", err)
	}
}

func TestValidateRow(t *testing.T) {
	s, err := ParseColumns("id INTEGER, ts TIMESTAMP partition_column")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	cases := []struct {
		name      string
		values    []interface{}
		wantEpoch int64
		wantErr   error
	}{
		{"epoch int64", []interface{}{int64(1), int64(1700000000)}, 1700000000, nil},
		{"text timestamp", []interface{}{int64(1), "2024-01-01 00:00:00"}, 1704067200, nil},
		{"nil partition value", []interface{}{int64(1), nil}, 0, vterrors.ErrPartitionColumnTypeMismatch},
		{"unparseable text", []interface{}{int64(1), "not a date"}, 0, vterrors.ErrPartitionColumnTypeMismatch},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			epoch, err := ValidateRow(s, tc.values)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected error %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if epoch != tc.wantEpoch {
				t.Errorf("epoch = %d, want %d", epoch, tc.wantEpoch)
			}
		})
	}
}

func TestValidateRowArityMismatch(t *testing.T) {
	s, _ := ParseColumns("id INTEGER, ts TIMESTAMP partition_column")
	if _, err := ValidateRow(s, []interface{}{int64(1)}); err == nil {
		t.Error("expected arity-mismatch error")
	}
}

func TestVirtualColumnType(t *testing.T) {
	s, _ := ParseColumns("id INTEGER, ts TIMESTAMP partition_column")
	if got := s.VirtualColumnType(0); got != "INTEGER" {
		t.Errorf("column 0 type = %q, want INTEGER", got)
	}
	if got := s.VirtualColumnType(1); got != "TEXT" {
		t.Errorf("partition column type = %q, want TEXT", got)
	}
}
