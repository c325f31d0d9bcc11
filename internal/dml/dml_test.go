package dml

import (
	"context"
	"errors"
	"testing"

	"github.com/nuuskamummu/sqlite3-partitioner/internal/bucket"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/catalog"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/cursor"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/partitionmgr"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/schema"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/testutil"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/vterrors"
)

func setup(t *testing.T) (*testutil.TestDB, *Dispatcher, *partitionmgr.Manager, *catalog.Catalog, schema.Schema, bucket.Interval) {
	t.Helper()
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	s, err := schema.ParseColumns("id INTEGER, ts TIMESTAMP partition_column, label TEXT")
	if err != nil {
		t.Fatalf("schema setup: %v", err)
	}
	iv := bucket.Interval{Seconds: 3600}
	cat := catalog.New("events")
	if err := cat.Create(ctx, db.DB, iv, s); err != nil {
		t.Fatalf("Create: %v", err)
	}
	mgr := partitionmgr.New(cat, s, iv, catalog.TemplateTableName("events"), nil)
	d := New(cat, mgr, s, iv)
	return db, d, mgr, cat, s, iv
}

func TestInsertCreatesPartitionOnDemand(t *testing.T) {
	db, d, _, _, _, _ := setup(t)
	ctx := context.Background()

	local, err := d.Insert(ctx, db.DB, []interface{}{int64(1), int64(100), "a"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if local != 1 {
		t.Errorf("expected first local rowid 1, got %d", local)
	}

	partitionName := catalog.PartitionTableName("events", 0)
	db.AssertRowCount(partitionName, 1)
}

func TestInsertTwoRowsSameBucketReuseTable(t *testing.T) {
	db, d, _, _, _, _ := setup(t)
	ctx := context.Background()

	if _, err := d.Insert(ctx, db.DB, []interface{}{int64(1), int64(100), "a"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := d.Insert(ctx, db.DB, []interface{}{int64(2), int64(200), "b"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	db.AssertRowCount(catalog.PartitionTableName("events", 0), 2)
}

func TestDeleteByCursorRowid(t *testing.T) {
	db, d, mgr, _, s, _ := setup(t)
	ctx := context.Background()

	if _, err := d.Insert(ctx, db.DB, []interface{}{int64(1), int64(100), "a"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	cur := cursor.New(db.DB, s, mgr)
	idxStr := ""
	if err := cur.Filter(ctx, idxStr, nil); err != nil {
		t.Fatalf("Filter: %v", err)
	}
	rowid := cur.Rowid()

	if err := d.Delete(ctx, db.DB, rowid, cur.Partitions()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	db.AssertRowCount(catalog.PartitionTableName("events", 0), 0)
}

func TestDeleteAmbiguousAcrossPartitions(t *testing.T) {
	db, d, mgr, _, _, _ := setup(t)
	ctx := context.Background()

	// Force two partitions, each containing a row with local rowid 1 (their
	// own independent autoincrement sequences), so decoding an
	// out-of-context rowid can't disambiguate.
	if _, err := d.Insert(ctx, db.DB, []interface{}{int64(1), int64(100), "a"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := d.Insert(ctx, db.DB, []interface{}{int64(2), int64(3700), "b"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	err := d.Delete(ctx, db.DB, 1, nil)
	var ambiguous *vterrors.AmbiguousDeleteError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("expected AmbiguousDeleteError, got %v", err)
	}
	if len(ambiguous.Partitions) != 2 {
		t.Errorf("expected 2 candidate partitions, got %+v", ambiguous.Partitions)
	}
	_ = mgr
}

func TestUpdateInPlaceOnlyTouchesChangedColumns(t *testing.T) {
	db, d, mgr, _, s, _ := setup(t)
	ctx := context.Background()

	if _, err := d.Insert(ctx, db.DB, []interface{}{int64(1), int64(100), "a"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	cur := cursor.New(db.DB, s, mgr)
	idxStr := ""
	if err := cur.Filter(ctx, idxStr, nil); err != nil {
		t.Fatalf("Filter: %v", err)
	}
	rowid := cur.Rowid()

	newRowid, err := d.Update(ctx, db.DB, rowid, []interface{}{int64(1), int64(100), "changed"}, cur.Partitions())
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if newRowid != rowid {
		t.Errorf("in-place update should keep the same rowid, got %d want %d", newRowid, rowid)
	}

	var label string
	err = db.QueryRow("SELECT label FROM " + catalog.PartitionTableName("events", 0) + " WHERE rowid = ?", rowid).Scan(&label)
	if err != nil {
		t.Fatalf("reading back updated row: %v", err)
	}
	if label != "changed" {
		t.Errorf("label = %q, want changed", label)
	}
}

func TestUpdateCrossingBucketReinserts(t *testing.T) {
	db, d, mgr, _, s, _ := setup(t)
	ctx := context.Background()

	if _, err := d.Insert(ctx, db.DB, []interface{}{int64(1), int64(100), "a"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	cur := cursor.New(db.DB, s, mgr)
	idxStr := ""
	if err := cur.Filter(ctx, idxStr, nil); err != nil {
		t.Fatalf("Filter: %v", err)
	}
	rowid := cur.Rowid()

	if _, err := d.Update(ctx, db.DB, rowid, []interface{}{int64(1), int64(7300), "a"}, cur.Partitions()); err != nil {
		t.Fatalf("Update: %v", err)
	}

	db.AssertRowCount(catalog.PartitionTableName("events", 0), 0)
	db.AssertRowCount(catalog.PartitionTableName("events", 7200), 1)
}
