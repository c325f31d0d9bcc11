package vtab

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/nuuskamummu/sqlite3-partitioner/internal/bucket"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/catalog"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/cursor"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/dml"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/partitionmgr"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/planner"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/schema"
)

// VTab is one open virtual table instance: one per CREATE/CONNECT, shared
// by every cursor opened against it.
type VTab struct {
	base       string
	db         *sql.DB
	catalog    *catalog.Catalog
	schema     schema.Schema
	interval   bucket.Interval
	mgr        *partitionmgr.Manager
	dispatcher *dml.Dispatcher

	// lastPartitions is the ordered partition list used by the most
	// recently filtered cursor. xUpdate carries only a rowid, not a
	// cursor reference, so the dispatcher decodes against whichever
	// cursor most recently ran in this connection — correct for the
	// single-statement-at-a-time access pattern spec.md §5 assumes.
	lastPartitions []partitionmgr.PartitionRef
}

// BestIndex converts the host's constraint/order-by lists to planner types,
// runs BestIndex, and translates the result back to go-sqlite3's
// IndexResult shape.
func (v *VTab) BestIndex(cst []sqlite3.InfoConstraint, ob []sqlite3.InfoOrderBy) (*sqlite3.IndexResult, error) {
	constraints := make([]planner.HostConstraint, len(cst))
	for i, c := range cst {
		op, ok := mapOp(c.Op)
		constraints[i] = planner.HostConstraint{
			ColumnIndex: c.Column,
			Op:          op,
			Usable:      c.Usable && ok,
		}
	}

	orderBy := make([]planner.HostOrderBy, len(ob))
	for i, o := range ob {
		orderBy[i] = planner.HostOrderBy{ColumnIndex: o.Column, Desc: o.Desc}
	}

	plan := planner.BestIndex(v.schema, constraints, orderBy)

	used := make([]bool, len(plan.Used))
	for i, u := range plan.Used {
		used[i] = u != 0
	}

	return &sqlite3.IndexResult{
		Used:           used,
		IdxNum:         0,
		IdxStr:         plan.IdxStr,
		AlreadyOrdered: plan.OrderByConsumed,
		EstimatedCost:  plan.EstimatedCost,
		EstimatedRows:  float64(plan.EstimatedRows),
	}, nil
}

// Open returns a fresh cursor wrapping internal/cursor.Cursor.
func (v *VTab) Open() (sqlite3.VTabCursor, error) {
	return &Cursor{vtab: v, inner: cursor.New(v.db, v.schema, v.mgr)}, nil
}

// Disconnect releases this VTab instance without touching persisted state.
func (v *VTab) Disconnect() error {
	return nil
}

// Destroy drops every partition plus the shadow tables (DROP TABLE on the
// virtual table), all inside one transaction on the side connection.
func (v *VTab) Destroy() error {
	ctx := context.Background()
	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("partitioner: destroy: %w", err)
	}
	defer tx.Rollback()

	if err := v.catalog.Destroy(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete implements sqlite3.VTabUpdater's delete half of xUpdate: rowid is
// the host's argv[0] for a single-argument xUpdate call.
func (v *VTab) Delete(rowid interface{}) error {
	id, ok := rowid.(int64)
	if !ok {
		return fmt.Errorf("partitioner: delete: unexpected rowid type %T", rowid)
	}

	ctx := context.Background()
	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("partitioner: delete: %w", err)
	}
	defer tx.Rollback()

	if err := v.dispatcher.Delete(ctx, tx, id, v.lastPartitions); err != nil {
		return err
	}
	return tx.Commit()
}

// Insert implements sqlite3.VTabUpdater's insert half of xUpdate: rowidHint
// is the host's argv[1] (nil unless the statement supplied an explicit
// rowid), values is argv[2:]. Partition provisioning and the row insert
// run in one transaction on the side connection, so a failure anywhere in
// EnsurePartition's CREATE TABLE/CREATE INDEX/lookup-insert sequence never
// leaves an orphaned partition or a row with nowhere to land (spec.md
// §4.5, §5).
func (v *VTab) Insert(rowidHint interface{}, values []interface{}) (int64, error) {
	ctx := context.Background()
	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("partitioner: insert: %w", err)
	}
	defer tx.Rollback()

	local, err := v.dispatcher.Insert(ctx, tx, values)
	if err != nil {
		// EnsurePartition may have optimistically cached a partition the
		// rolled-back transaction never actually created; resync from the
		// lookup table rather than trust the in-memory index.
		_ = v.mgr.Rehydrate(ctx, v.db)
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		_ = v.mgr.Rehydrate(ctx, v.db)
		return 0, fmt.Errorf("partitioner: insert: %w", err)
	}
	return local, nil
}

// Update implements sqlite3.VTabUpdater's update half of xUpdate: rowid is
// the host's argv[0] (the row being modified), values is argv[1:] (the new
// rowid followed by the new column values) — only the column values are
// used here since this table's rowid isn't a settable column. A
// bucket-crossing update provisions its destination partition the same way
// Insert does, so it gets the same transactional treatment.
func (v *VTab) Update(rowid interface{}, values []interface{}) error {
	oldRowid, ok := rowid.(int64)
	if !ok {
		return fmt.Errorf("partitioner: update: unexpected rowid type %T", rowid)
	}
	if len(values) < 1 {
		return fmt.Errorf("partitioner: update: expected a new-rowid slot plus column values, got %d", len(values))
	}

	ctx := context.Background()
	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("partitioner: update: %w", err)
	}
	defer tx.Rollback()

	if _, err := v.dispatcher.Update(ctx, tx, oldRowid, values[1:], v.lastPartitions); err != nil {
		_ = v.mgr.Rehydrate(ctx, v.db)
		return err
	}
	if err := tx.Commit(); err != nil {
		_ = v.mgr.Rehydrate(ctx, v.db)
		return fmt.Errorf("partitioner: update: %w", err)
	}
	return nil
}
