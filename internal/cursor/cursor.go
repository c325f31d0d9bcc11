// Package cursor implements the multi-partition cursor (C7): selecting
// partitions by bucket-range predicates, opening one child statement per
// partition, and stitching per-partition rows into a single stream with a
// stable synthetic rowid.
package cursor

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/nuuskamummu/sqlite3-partitioner/internal/catalog"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/logging"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/partitionmgr"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/planner"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/predicate"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/schema"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/timeparse"
)

var log = logging.GetLogger("cursor")

// localRowidBits is the width of the local-rowid field in a synthetic
// rowid; the remaining high bits encode the cursor-local partition
// ordinal (spec.md §4.7, §9 "Synthetic rowid collisions").
const localRowidBits = 40

const localRowidMask = (int64(1) << localRowidBits) - 1

// EncodeRowid packs a cursor-local partition ordinal and a partition's own
// rowid into one synthetic rowid.
func EncodeRowid(ordinal uint32, localRowid int64) int64 {
	return (int64(ordinal) << localRowidBits) | (localRowid & localRowidMask)
}

// DecodeRowid reverses EncodeRowid.
func DecodeRowid(rowid int64) (ordinal uint32, localRowid int64) {
	ordinal = uint32(rowid >> localRowidBits)
	localRowid = rowid & localRowidMask
	return
}

// opSymbol renders a predicate.Op as the SQL text used in a per-partition
// WHERE clause.
func opSymbol(op predicate.Op) string {
	switch op {
	case predicate.OpEQ:
		return "="
	case predicate.OpLT:
		return "<"
	case predicate.OpLE:
		return "<="
	case predicate.OpGT:
		return ">"
	case predicate.OpGE:
		return ">="
	case predicate.OpIS:
		return "IS"
	case predicate.OpISNOT:
		return "IS NOT"
	case predicate.OpMATCH:
		return "MATCH"
	case predicate.OpLIKE:
		return "LIKE"
	case predicate.OpGLOB:
		return "GLOB"
	case predicate.OpREGEXP:
		return "REGEXP"
	default:
		return "="
	}
}

// Cursor is the per-query virtual-table cursor. It is not safe for
// concurrent use — the host drives one cursor from a single goroutine, per
// spec.md §5.
type Cursor struct {
	db     *sql.DB
	schema schema.Schema
	mgr    *partitionmgr.Manager

	partitions []partitionmgr.PartitionRef // L, in ascending bucket order
	ordinal    int                         // index into partitions of the open child

	whereClause string
	whereBinds  []interface{}

	rows       *sql.Rows
	currentRow []interface{}
	eof        bool
}

// New returns a cursor bound to db/schema/mgr. Filter must be called before
// any other method.
func New(db *sql.DB, s schema.Schema, mgr *partitionmgr.Manager) *Cursor {
	return &Cursor{db: db, schema: s, mgr: mgr, eof: true}
}

// Partitions returns the ordered partition list used by the most recent
// Filter call — the DML dispatcher needs this to decode rowids produced by
// this cursor (spec.md §4.8).
func (c *Cursor) Partitions() []partitionmgr.PartitionRef {
	return c.partitions
}

// Filter computes the partition range from the planned constraints, opens
// the first non-empty partition, and positions the cursor on its first
// row. idxStr/argv come straight from the host's xFilter call.
func (c *Cursor) Filter(ctx context.Context, idxStr string, argv []interface{}) error {
	if err := c.closeChild(); err != nil {
		return err
	}

	planned, err := planner.Decode(idxStr)
	if err != nil {
		return fmt.Errorf("filter: %w", err)
	}

	values := make(map[int]int64)
	var whereParts []string
	var binds []interface{}

	for _, p := range planned {
		if p.ArgPos < 1 || p.ArgPos > len(argv) {
			return fmt.Errorf("filter: idxStr references arg position %d, but only %d args were supplied", p.ArgPos, len(argv))
		}
		arg := argv[p.ArgPos-1]

		// The partition column is stored on disk in its canonicalized text
		// form (SPEC_FULL.md §5); bind that same form here too, or SQLite's
		// TEXT-affinity coercion compares the host's raw value as a string
		// and silently breaks ordering.
		if p.ColumnIndex == c.schema.PartitionColumnIndex {
			if epoch, ok := partitionEpoch(arg); ok {
				if p.Op.Prunable() {
					values[p.ArgPos] = epoch
				}
				arg = timeparse.Format(epoch)
			}
		}

		colName := c.schema.Columns[p.ColumnIndex].Name
		whereParts = append(whereParts, fmt.Sprintf("%s %s ?", catalog.QuoteIdent(colName), opSymbol(p.Op)))
		binds = append(binds, arg)
	}

	constraints := make([]predicate.Constraint, 0, len(planned))
	for _, p := range planned {
		constraints = append(constraints, predicate.Constraint{ColumnIndex: p.ColumnIndex, Op: p.Op, ArgvIndex: p.ArgPos})
	}

	bucketRange := predicate.ExtractPartitionRange(constraints, values, c.mgr.Interval())

	c.partitions = c.mgr.PartitionsInRange(bucketRange.LoBound(), bucketRange.HiBound())
	c.ordinal = 0
	c.whereClause = strings.Join(whereParts, " AND ")
	c.whereBinds = binds

	log.Debug("filter", "partitions", len(c.partitions), "where", c.whereClause)

	return c.openNext(ctx)
}

func toEpoch(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	case float64:
		return int64(val), true
	default:
		return 0, false
	}
}

// partitionEpoch resolves a bound argument for the partition column to
// epoch seconds, for bucket-range pruning. Host-bound literals for a TEXT
// virtual column most often arrive as strings (e.g. WHERE ts > '2024-...'),
// so this also accepts anything timeparse.Parse understands.
func partitionEpoch(v interface{}) (int64, bool) {
	if epoch, ok := toEpoch(v); ok {
		return epoch, true
	}
	if s, ok := v.(string); ok {
		if epoch, err := timeparse.Parse(s); err == nil {
			return epoch, true
		}
	}
	return 0, false
}

// openNext opens child statements starting at c.ordinal until one yields a
// row or the partition list is exhausted.
func (c *Cursor) openNext(ctx context.Context) error {
	for c.ordinal < len(c.partitions) {
		part := c.partitions[c.ordinal]

		colNames := make([]string, len(c.schema.Columns))
		for i, col := range c.schema.Columns {
			colNames[i] = catalog.QuoteIdent(col.Name)
		}

		query := fmt.Sprintf("SELECT rowid, %s FROM %s", strings.Join(colNames, ", "), catalog.QuoteIdent(part.Name))
		if c.whereClause != "" {
			query += " WHERE " + c.whereClause
		}

		rows, err := c.db.QueryContext(ctx, query, c.whereBinds...)
		if err != nil {
			return fmt.Errorf("opening partition %q: %w", part.Name, err)
		}

		if !rows.Next() {
			rows.Close()
			c.ordinal++
			continue
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}

		if err := c.scanCurrent(rows); err != nil {
			rows.Close()
			return err
		}

		c.rows = rows
		c.eof = false
		return nil
	}

	c.eof = true
	c.rows = nil
	return nil
}

func (c *Cursor) scanCurrent(rows *sql.Rows) error {
	dest := make([]interface{}, len(c.schema.Columns)+1)
	ptrs := make([]interface{}, len(dest))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return fmt.Errorf("scanning row: %w", err)
	}
	c.currentRow = dest
	return nil
}

// Next advances to the next row, crossing into the following partition
// when the current child statement is exhausted.
func (c *Cursor) Next(ctx context.Context) error {
	if c.rows == nil {
		c.eof = true
		return nil
	}
	if c.rows.Next() {
		if err := c.rows.Err(); err != nil {
			return err
		}
		return c.scanCurrent(c.rows)
	}
	if err := c.rows.Err(); err != nil {
		return err
	}

	if err := c.closeChild(); err != nil {
		return err
	}
	c.ordinal++
	return c.openNext(ctx)
}

// EOF reports whether the cursor has no more rows.
func (c *Cursor) EOF() bool {
	return c.eof
}

// Column returns the value of column i (0-based, in virtual-schema order)
// of the current row.
func (c *Cursor) Column(i int) interface{} {
	if c.currentRow == nil || i+1 >= len(c.currentRow) {
		return nil
	}
	return c.currentRow[i+1]
}

// Rowid returns the synthetic rowid of the current row: the cursor-local
// partition ordinal packed with the partition's own rowid (spec.md §4.7,
// invariant I5).
func (c *Cursor) Rowid() int64 {
	if c.currentRow == nil || len(c.currentRow) == 0 {
		return 0
	}
	local, _ := toEpoch(c.currentRow[0])
	return EncodeRowid(uint32(c.ordinal), local)
}

// Close finalizes any open child statement.
func (c *Cursor) Close() error {
	return c.closeChild()
}

func (c *Cursor) closeChild() error {
	if c.rows != nil {
		err := c.rows.Close()
		c.rows = nil
		return err
	}
	return nil
}
