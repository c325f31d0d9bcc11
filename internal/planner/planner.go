// Package planner implements the query planner (C6): turning the host's
// constraint list into an index plan (which constraints the module will
// consume) and an opaque, versioned idxStr payload that the cursor
// reparses at filter time.
package planner

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/nuuskamummu/sqlite3-partitioner/internal/predicate"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/schema"
)

// HostConstraint is one entry of the host's constraint list, as surfaced by
// xBestIndex before the module decides which ones it will use.
type HostConstraint struct {
	ColumnIndex int
	Op          predicate.Op
	Usable      bool
}

// HostOrderBy is one entry of the host's requested sort order.
type HostOrderBy struct {
	ColumnIndex int
	Desc        bool
}

// PlannedConstraint is one constraint the module committed to handling
// itself, recorded in idxStr so filter() can rebuild both the bucket range
// and the per-partition WHERE clause without re-deriving anything from the
// host.
type PlannedConstraint struct {
	ColumnIndex int
	Op          predicate.Op
	ArgPos      int // 1-based position in the argv Filter() receives
}

// Plan is the result of BestIndex: which host constraints are consumed,
// the opaque idxStr, and cost/ordering hints.
type Plan struct {
	// Used[i] is 0 (host must recheck) or the 1-based arg position the
	// host should populate for the i-th input constraint.
	Used            []int
	IdxStr          string
	EstimatedCost   float64
	EstimatedRows   int64
	OrderByConsumed bool
}

const idxStrVersion byte = 1

// BestIndex builds a Plan from the host's constraint and order-by lists.
// Every pushable constraint — on the partition column or not — is marked
// used and recorded in idxStr, so it ends up in the per-partition WHERE.
func BestIndex(s schema.Schema, constraints []HostConstraint, orderBy []HostOrderBy) Plan {
	used := make([]int, len(constraints))
	var planned []PlannedConstraint
	argPos := 0
	hasEquality := false
	hasRange := false

	for i, c := range constraints {
		if !c.Usable {
			continue
		}
		if c.ColumnIndex == s.PartitionColumnIndex {
			if !c.Op.Prunable() {
				// Non-comparison predicate on the partition column (MATCH/LIKE/...):
				// still pushed through, just never narrows the bucket range.
				argPos++
				used[i] = argPos
				planned = append(planned, PlannedConstraint{ColumnIndex: c.ColumnIndex, Op: c.Op, ArgPos: argPos})
				continue
			}
			argPos++
			used[i] = argPos
			planned = append(planned, PlannedConstraint{ColumnIndex: c.ColumnIndex, Op: c.Op, ArgPos: argPos})
			if c.Op == predicate.OpEQ {
				hasEquality = true
			} else {
				hasRange = true
			}
			continue
		}

		// Any other pushable operator on a non-partition column: consumed
		// and flows into the per-partition WHERE verbatim.
		argPos++
		used[i] = argPos
		planned = append(planned, PlannedConstraint{ColumnIndex: c.ColumnIndex, Op: c.Op, ArgPos: argPos})
	}

	cost := 1000.0
	rows := int64(100000)
	switch {
	case hasEquality:
		cost = 1.0
		rows = 100
	case hasRange:
		cost = 10.0
		rows = 10000
	}

	orderByConsumed := hasEquality && len(orderBy) == 1 &&
		orderBy[0].ColumnIndex == s.PartitionColumnIndex && !orderBy[0].Desc

	idxStr, err := Encode(planned)
	if err != nil {
		// Encode never fails for well-formed input; degrade to an empty
		// plan rather than propagate an internal invariant violation.
		idxStr = ""
	}

	return Plan{
		Used:            used,
		IdxStr:          idxStr,
		EstimatedCost:   cost,
		EstimatedRows:   rows,
		OrderByConsumed: orderByConsumed,
	}
}

// Encode serializes planned constraints into a compact, versioned,
// base64-safe payload: a version byte, a count, then one
// (columnIndex uint16, op byte, argPos byte) record per constraint.
func Encode(planned []PlannedConstraint) (string, error) {
	var buf bytes.Buffer
	buf.WriteByte(idxStrVersion)
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(planned))); err != nil {
		return "", err
	}
	for _, p := range planned {
		if err := binary.Write(&buf, binary.BigEndian, uint16(p.ColumnIndex)); err != nil {
			return "", err
		}
		buf.WriteByte(byte(p.Op))
		buf.WriteByte(byte(p.ArgPos))
	}
	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode reparses an idxStr produced by Encode. Unknown version tags are
// rejected with a descriptive error, per spec.md §9 ("opaque planner
// payload"), so a stale cached plan from a different module version never
// silently misbehaves.
func Decode(idxStr string) ([]PlannedConstraint, error) {
	if idxStr == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(idxStr)
	if err != nil {
		return nil, fmt.Errorf("idxStr is not valid base64: %w", err)
	}
	r := bytes.NewReader(raw)

	version, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("idxStr truncated: missing version byte")
	}
	if version != idxStrVersion {
		return nil, fmt.Errorf("idxStr has unsupported version %d (expected %d)", version, idxStrVersion)
	}

	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("idxStr truncated: missing constraint count")
	}

	planned := make([]PlannedConstraint, 0, count)
	for i := uint16(0); i < count; i++ {
		var col uint16
		if err := binary.Read(r, binary.BigEndian, &col); err != nil {
			return nil, fmt.Errorf("idxStr truncated at constraint %d", i)
		}
		opByte, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("idxStr truncated at constraint %d", i)
		}
		argPos, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("idxStr truncated at constraint %d", i)
		}
		planned = append(planned, PlannedConstraint{
			ColumnIndex: int(col),
			Op:          predicate.Op(opByte),
			ArgPos:      int(argPos),
		})
	}

	return planned, nil
}
