package cursor

import (
	"context"
	"testing"

	"github.com/nuuskamummu/sqlite3-partitioner/internal/bucket"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/catalog"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/partitionmgr"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/planner"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/predicate"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/schema"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/testutil"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/timeparse"
)

func setupTwoPartitions(t *testing.T) (*testutil.TestDB, schema.Schema, *partitionmgr.Manager) {
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

	for _, bkt := range []int64{0, 3600} {
		name, err := mgr.EnsurePartition(ctx, db.DB, bkt)
		if err != nil {
			t.Fatalf("EnsurePartition(%d): %v", bkt, err)
		}
		db.MustExec("INSERT INTO "+catalog.QuoteIdent(name)+" (id, ts, label) VALUES (?, ?, ?)", 1, timeparse.Format(bkt), "a")
		db.MustExec("INSERT INTO "+catalog.QuoteIdent(name)+" (id, ts, label) VALUES (?, ?, ?)", 2, timeparse.Format(bkt+1), "b")
	}

	return db, s, mgr
}

func TestCursorIteratesAllPartitionsInOrder(t *testing.T) {
	db, s, mgr := setupTwoPartitions(t)
	c := New(db.DB, s, mgr)

	idxStr, err := planner.Encode(nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := c.Filter(context.Background(), idxStr, nil); err != nil {
		t.Fatalf("Filter: %v", err)
	}

	var labels []string
	prevBucket := int64(-1)
	for !c.EOF() {
		labels = append(labels, c.Column(2).(string))
		epoch, err := timeparse.Parse(c.Column(1).(string))
		if err != nil {
			t.Fatalf("parsing stored timestamp: %v", err)
		}
		if b := bucket.Bucketize(epoch, mgr.Interval()); b < prevBucket {
			t.Errorf("bucket %d visited after bucket %d", b, prevBucket)
		} else {
			prevBucket = b
		}
		if err := c.Next(context.Background()); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}

	if len(labels) != 4 {
		t.Fatalf("expected 4 rows across both partitions, got %d: %v", len(labels), labels)
	}
}

func TestCursorFiltersAndPrunesByPartitionColumn(t *testing.T) {
	db, s, mgr := setupTwoPartitions(t)
	c := New(db.DB, s, mgr)

	planned := []planner.PlannedConstraint{
		{ColumnIndex: 1, Op: predicate.OpGE, ArgPos: 1},
	}
	idxStr, err := planner.Encode(planned)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if err := c.Filter(context.Background(), idxStr, []interface{}{int64(3600)}); err != nil {
		t.Fatalf("Filter: %v", err)
	}

	count := 0
	for !c.EOF() {
		tsText, ok := c.Column(1).(string)
		if !ok {
			t.Fatalf("expected partition column to scan back as text, got %T", c.Column(1))
		}
		epoch, err := timeparse.Parse(tsText)
		if err != nil {
			t.Fatalf("parsing stored timestamp %q: %v", tsText, err)
		}
		if epoch < 3600 {
			t.Errorf("expected only rows with ts >= 3600, got %d", epoch)
		}
		count++
		if err := c.Next(context.Background()); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	if count != 2 {
		t.Errorf("expected 2 rows in the pruned partition, got %d", count)
	}
}

func TestCursorRowidRoundTrips(t *testing.T) {
	db, s, mgr := setupTwoPartitions(t)
	c := New(db.DB, s, mgr)

	idxStr, _ := planner.Encode(nil)
	if err := c.Filter(context.Background(), idxStr, nil); err != nil {
		t.Fatalf("Filter: %v", err)
	}

	rowid := c.Rowid()
	ordinal, local := DecodeRowid(rowid)
	if ordinal != 0 {
		t.Errorf("expected first row to belong to partition ordinal 0, got %d", ordinal)
	}
	if local != 1 {
		t.Errorf("expected first local rowid 1, got %d", local)
	}
	if got := EncodeRowid(ordinal, local); got != rowid {
		t.Errorf("EncodeRowid(DecodeRowid(x)) = %d, want %d", got, rowid)
	}
}
