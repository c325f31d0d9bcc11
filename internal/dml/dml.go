// Package dml implements the DML dispatcher (C8): inserting rows into the
// correct (lazily created) partition, and routing rowid-addressed
// update/delete calls back to the partition that owns the row.
package dml

import (
	"context"
	"fmt"
	"strings"

	"github.com/nuuskamummu/sqlite3-partitioner/internal/bucket"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/catalog"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/cursor"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/logging"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/partitionmgr"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/schema"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/timeparse"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/vterrors"
)

var log = logging.GetLogger("dml")

// Dispatcher implements insert/update/delete against a single virtual
// table's partitions, per spec.md §4.8.
type Dispatcher struct {
	catalog  *catalog.Catalog
	mgr      *partitionmgr.Manager
	schema   schema.Schema
	interval bucket.Interval
}

// New returns a Dispatcher bound to one virtual table's catalog/manager/schema.
func New(cat *catalog.Catalog, mgr *partitionmgr.Manager, s schema.Schema, iv bucket.Interval) *Dispatcher {
	return &Dispatcher{catalog: cat, mgr: mgr, schema: s, interval: iv}
}

// Insert validates and bucketizes the row, creating the destination
// partition on demand, and returns the local rowid the partition table
// issued (spec.md §4.8 "insert").
func (d *Dispatcher) Insert(ctx context.Context, q catalog.Querier, values []interface{}) (int64, error) {
	epoch, err := schema.ValidateRow(d.schema, values)
	if err != nil {
		return 0, err
	}

	bucketStart := bucket.Bucketize(epoch, d.interval)
	partitionName, err := d.mgr.EnsurePartition(ctx, q, bucketStart)
	if err != nil {
		return 0, err
	}

	normalized := append([]interface{}(nil), values...)
	normalized[d.schema.PartitionColumnIndex] = timeparse.Format(epoch)

	colNames := make([]string, len(d.schema.Columns))
	placeholders := make([]string, len(d.schema.Columns))
	for i, c := range d.schema.Columns {
		colNames[i] = catalog.QuoteIdent(c.Name)
		placeholders[i] = "?"
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		catalog.QuoteIdent(partitionName), strings.Join(colNames, ", "), strings.Join(placeholders, ", "))

	res, err := q.ExecContext(ctx, query, normalized...)
	if err != nil {
		return 0, fmt.Errorf("insert into partition %q: %w", partitionName, err)
	}
	return res.LastInsertId()
}

// Delete removes the row identified by rowid, a synthetic rowid produced
// by a cursor.Cursor. partitions must be that cursor's Partitions() list
// (spec.md §4.8 "delete"). If the encoded ordinal can't be resolved
// against partitions (rowid came from outside this statement's last
// cursor, or the partition list has since changed), Delete falls back to
// scanning every known partition for a matching raw rowid; a match in more
// than one partition is reported as an ambiguous delete.
func (d *Dispatcher) Delete(ctx context.Context, q catalog.Querier, rowid int64, partitions []partitionmgr.PartitionRef) error {
	ordinal, local := cursor.DecodeRowid(rowid)
	if int(ordinal) < len(partitions) {
		name := partitions[ordinal].Name
		n, err := d.deleteFrom(ctx, q, name, local)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
	}
	return d.deleteAmbiguous(ctx, q, local)
}

func (d *Dispatcher) deleteFrom(ctx context.Context, q catalog.Querier, partitionName string, local int64) (int64, error) {
	res, err := q.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE rowid = ?", catalog.QuoteIdent(partitionName)), local)
	if err != nil {
		return 0, fmt.Errorf("delete from partition %q: %w", partitionName, err)
	}
	return res.RowsAffected()
}

func (d *Dispatcher) deleteAmbiguous(ctx context.Context, q catalog.Querier, local int64) error {
	name, err := d.locateOwner(ctx, q, local)
	if err != nil {
		return err
	}
	if name == "" {
		return nil
	}
	_, err = d.deleteFrom(ctx, q, name, local)
	return err
}

// locateOwner scans every known partition for a row with the given raw
// (partition-local) rowid, returning the owning partition's name. More than
// one owner is an AmbiguousDelete; zero owners returns "" with no error
// (the row is already gone).
func (d *Dispatcher) locateOwner(ctx context.Context, q catalog.Querier, local int64) (string, error) {
	var matched []string
	for _, name := range d.mgr.All() {
		var exists int
		err := q.QueryRowContext(ctx,
			fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE rowid = ?", catalog.QuoteIdent(name)), local,
		).Scan(&exists)
		if err != nil {
			return "", fmt.Errorf("scanning partition %q for rowid %d: %w", name, local, err)
		}
		if exists > 0 {
			matched = append(matched, name)
		}
	}

	switch len(matched) {
	case 0:
		return "", nil
	case 1:
		return matched[0], nil
	default:
		log.Warn("ambiguous delete", "rowid", local, "partitions", matched)
		return "", &vterrors.AmbiguousDeleteError{Partitions: matched}
	}
}

// Update applies newValues to the row identified by oldRowid. If the
// partition column's bucket changed, the row is deleted from its old
// partition and reinserted (returning the new partition's local rowid);
// otherwise it's updated in place, touching only columns whose value
// actually changed (spec.md §4.8 "update", invariant P7).
func (d *Dispatcher) Update(ctx context.Context, q catalog.Querier, oldRowid int64, newValues []interface{}, partitions []partitionmgr.PartitionRef) (int64, error) {
	newEpoch, err := schema.ValidateRow(d.schema, newValues)
	if err != nil {
		return 0, err
	}

	oldPartition, oldLocal, err := d.resolveOwner(ctx, q, oldRowid, partitions)
	if err != nil {
		return 0, err
	}
	if oldPartition == "" {
		// The in-memory index may be stale (another connection created the
		// partition); re-read the lookup table once before giving up.
		if err := d.mgr.Rehydrate(ctx, q); err != nil {
			return 0, err
		}
		oldPartition, oldLocal, err = d.resolveOwner(ctx, q, oldRowid, partitions)
		if err != nil {
			return 0, err
		}
	}
	if oldPartition == "" {
		return 0, vterrors.ErrPartitionMissing
	}

	oldBucket, err := bucketOfPartitionName(d.catalog.BaseName, oldPartition)
	if err != nil {
		return 0, err
	}
	newBucket := bucket.Bucketize(newEpoch, d.interval)

	if newBucket != oldBucket {
		if _, err := d.deleteFrom(ctx, q, oldPartition, oldLocal); err != nil {
			return 0, err
		}

		newPartitionName, err := d.mgr.EnsurePartition(ctx, q, newBucket)
		if err != nil {
			return 0, err
		}

		normalized := append([]interface{}(nil), newValues...)
		normalized[d.schema.PartitionColumnIndex] = timeparse.Format(newEpoch)

		colNames := make([]string, len(d.schema.Columns))
		placeholders := make([]string, len(d.schema.Columns))
		for i, c := range d.schema.Columns {
			colNames[i] = catalog.QuoteIdent(c.Name)
			placeholders[i] = "?"
		}
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			catalog.QuoteIdent(newPartitionName), strings.Join(colNames, ", "), strings.Join(placeholders, ", "))
		res, err := q.ExecContext(ctx, query, normalized...)
		if err != nil {
			return 0, fmt.Errorf("reinsert into partition %q: %w", newPartitionName, err)
		}
		return res.LastInsertId()
	}

	existing, err := d.readRow(ctx, q, oldPartition, oldLocal)
	if err != nil {
		return 0, err
	}

	var setCols []string
	var binds []interface{}
	for i, c := range d.schema.Columns {
		newVal := newValues[i]
		if i == d.schema.PartitionColumnIndex {
			newVal = timeparse.Format(newEpoch)
		}
		if valuesEqual(existing[i], newVal) {
			continue
		}
		setCols = append(setCols, fmt.Sprintf("%s = ?", catalog.QuoteIdent(c.Name)))
		binds = append(binds, newVal)
	}

	if len(setCols) == 0 {
		return oldRowid, nil
	}

	binds = append(binds, oldLocal)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE rowid = ?", catalog.QuoteIdent(oldPartition), strings.Join(setCols, ", "))
	if _, err := q.ExecContext(ctx, query, binds...); err != nil {
		return 0, fmt.Errorf("update partition %q: %w", oldPartition, err)
	}

	return oldRowid, nil
}

// resolveOwner finds the partition/local-rowid pair for a rowid, preferring
// the supplied cursor partition list and falling back to a full scan.
func (d *Dispatcher) resolveOwner(ctx context.Context, q catalog.Querier, rowid int64, partitions []partitionmgr.PartitionRef) (string, int64, error) {
	ordinal, local := cursor.DecodeRowid(rowid)
	if int(ordinal) < len(partitions) {
		name := partitions[ordinal].Name
		var exists int
		err := q.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE rowid = ?", catalog.QuoteIdent(name)), local).Scan(&exists)
		if err == nil && exists > 0 {
			return name, local, nil
		}
	}

	name, err := d.locateOwner(ctx, q, local)
	if err != nil {
		return "", 0, err
	}
	return name, local, nil
}

func (d *Dispatcher) readRow(ctx context.Context, q catalog.Querier, partitionName string, local int64) ([]interface{}, error) {
	colNames := make([]string, len(d.schema.Columns))
	for i, c := range d.schema.Columns {
		colNames[i] = catalog.QuoteIdent(c.Name)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE rowid = ?", strings.Join(colNames, ", "), catalog.QuoteIdent(partitionName))

	dest := make([]interface{}, len(d.schema.Columns))
	ptrs := make([]interface{}, len(dest))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	if err := q.QueryRowContext(ctx, query, local).Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("%w: reading existing row from %q: %v", vterrors.ErrPartitionMissing, partitionName, err)
	}
	return dest, nil
}

// valuesEqual compares two column values for the update-minimality check.
// Values arrive from two different paths (a freshly scanned row and the
// host's bound parameters), so byte/string equivalence is compared across
// the handful of representations database/sql hands back.
func valuesEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ab, aIsBytes := a.([]byte)
	bb, bIsBytes := b.([]byte)
	if aIsBytes || bIsBytes {
		if !aIsBytes {
			ab = []byte(fmt.Sprintf("%v", a))
		}
		if !bIsBytes {
			bb = []byte(fmt.Sprintf("%v", b))
		}
		return string(ab) == string(bb)
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// bucketOfPartitionName recovers the bucket epoch encoded in a partition
// table name ("{base}_{bucket}"), avoiding a round trip through the row's
// own partition-column value.
func bucketOfPartitionName(base, partitionName string) (int64, error) {
	suffix := strings.TrimPrefix(partitionName, base+"_")
	if suffix == partitionName {
		return 0, fmt.Errorf("%w: partition name %q doesn't match base %q", vterrors.ErrCatalogCorrupt, partitionName, base)
	}
	var bucketEpoch int64
	if _, err := fmt.Sscanf(suffix, "%d", &bucketEpoch); err != nil {
		return 0, fmt.Errorf("%w: partition name %q has non-numeric bucket suffix", vterrors.ErrCatalogCorrupt, partitionName)
	}
	return bucketEpoch, nil
}
