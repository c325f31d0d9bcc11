// Package schema implements the column schema (C2): parsing the DDL column
// list, identifying the partition column, and validating row tuples.
package schema

import (
	"fmt"
	"strings"

	"github.com/nuuskamummu/sqlite3-partitioner/internal/timeparse"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/vterrors"
)

// Role distinguishes the single partition column from ordinary columns.
type Role int

const (
	Ordinary Role = iota
	PartitionColumn
)

// ColumnDecl is one column declaration from the virtual table's DDL.
type ColumnDecl struct {
	Name         string
	DeclaredType string
	Role         Role
}

// Schema is the ordered column list of a virtual table, as seen by the host.
type Schema struct {
	Columns              []ColumnDecl
	PartitionColumnIndex int
}

// ParseColumns parses a comma-separated column list of the form
// "name type [partition_column]". Insertion order is preserved as the
// column order the host sees.
func ParseColumns(spec string) (Schema, error) {
	parts := splitTopLevel(spec, ',')

	var cols []ColumnDecl
	partitionIdx := -1

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Fields(part)
		if len(fields) < 2 {
			return Schema{}, fmt.Errorf("malformed column declaration: %q", part)
		}

		name := fields[0]
		declaredType := fields[1]
		role := Ordinary
		if len(fields) >= 3 && strings.EqualFold(fields[2], "partition_column") {
			role = PartitionColumn
		}

		if role == PartitionColumn {
			if partitionIdx != -1 {
				return Schema{}, vterrors.ErrMultiplePartitionColumns
			}
			if !strings.EqualFold(declaredType, "timestamp") {
				return Schema{}, fmt.Errorf("%w: column %q declared as %q", vterrors.ErrUnsupportedPartitionColumnType, name, declaredType)
			}
			partitionIdx = len(cols)
		}

		cols = append(cols, ColumnDecl{Name: name, DeclaredType: declaredType, Role: role})
	}

	if partitionIdx == -1 {
		return Schema{}, vterrors.ErrNoPartitionColumn
	}

	return Schema{Columns: cols, PartitionColumnIndex: partitionIdx}, nil
}

// splitTopLevel splits on sep, ignoring separators inside parentheses (so a
// declared type like "decimal(10,2)" is not cut in half).
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// ColumnNames returns the schema's column names in order.
func (s Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// PartitionColumnName returns the name of the designated partition column.
func (s Schema) PartitionColumnName() string {
	return s.Columns[s.PartitionColumnIndex].Name
}

// ValidateRow checks arity and normalizes the partition-column value to
// epoch seconds. Other column values are passed through verbatim; the host
// engine enforces their types at storage time.
func ValidateRow(s Schema, values []interface{}) (epochSeconds int64, err error) {
	if len(values) != len(s.Columns) {
		return 0, fmt.Errorf("row has %d values, schema has %d columns", len(values), len(s.Columns))
	}

	v := values[s.PartitionColumnIndex]
	switch val := v.(type) {
	case nil:
		return 0, vterrors.ErrPartitionColumnTypeMismatch
	case string:
		epoch, perr := timeparse.Parse(val)
		if perr != nil {
			return 0, fmt.Errorf("%w: %v", vterrors.ErrPartitionColumnTypeMismatch, perr)
		}
		return epoch, nil
	case int64:
		return val, nil
	case int:
		return int64(val), nil
	case float64:
		// sqlite may hand back numeric literals as float64 through database/sql
		return int64(val), nil
	default:
		return 0, vterrors.ErrPartitionColumnTypeMismatch
	}
}

// VirtualColumnType returns the type the host should see for column i: the
// partition column is always surfaced as TEXT/"timestamp"; other columns
// keep their declared type.
func (s Schema) VirtualColumnType(i int) string {
	if i == s.PartitionColumnIndex {
		return "TEXT"
	}
	return s.Columns[i].DeclaredType
}
