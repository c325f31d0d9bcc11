// Package catalog implements the shadow-table catalog (C4): the three
// metadata tables per virtual table (root, lookup, template) plus their
// DDL generation and CREATE/CONNECT lifecycle.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/nuuskamummu/sqlite3-partitioner/internal/bucket"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/logging"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/schema"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/vterrors"
)

var log = logging.GetLogger("catalog")

// Querier is satisfied by both *sql.DB and *sql.Tx, so every catalog
// operation can run either standalone or inside an existing transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Root is the single-row metadata record read from "{base}_root".
type Root struct {
	PartitionColumnName string
	IntervalSeconds     int64
	TemplateName        string
	LookupName          string
}

// IndexDef describes one template index eligible for replication to new
// partitions: only user-created indexes (PRAGMA index_list origin 'c'),
// not constraint-backed ones (see SPEC_FULL.md §5).
type IndexDef struct {
	Name    string
	Unique  bool
	Columns []string
}

// Catalog owns the shadow-table lifecycle for one virtual table base name.
type Catalog struct {
	BaseName string
}

// New returns a Catalog bound to baseName. Catalog itself is stateless;
// every method takes the Querier to operate against.
func New(baseName string) *Catalog {
	return &Catalog{BaseName: baseName}
}

// Create executes the three CREATE TABLE statements and inserts the single
// root row, per spec.md §4.4. Callers are expected to wrap this in a
// transaction/savepoint.
func (c *Catalog) Create(ctx context.Context, q Querier, iv bucket.Interval, s schema.Schema) error {
	log.Info("creating shadow tables", "base", c.BaseName, "interval", iv.String())

	if _, err := q.ExecContext(ctx, buildCreateRootSQL(c.BaseName)); err != nil {
		return fmt.Errorf("create root table: %w", err)
	}
	if _, err := q.ExecContext(ctx, buildCreateLookupSQL(c.BaseName)); err != nil {
		return fmt.Errorf("create lookup table: %w", err)
	}
	if _, err := q.ExecContext(ctx, buildCreateTemplateSQL(c.BaseName, s)); err != nil {
		return fmt.Errorf("create template table: %w", err)
	}

	_, err := q.ExecContext(ctx, buildInsertRootSQL(c.BaseName),
		s.PartitionColumnName(), iv.Seconds, TemplateTableName(c.BaseName), LookupTableName(c.BaseName))
	if err != nil {
		return fmt.Errorf("insert root row: %w", err)
	}

	return nil
}

// ReadRoot reads the single root row, failing CatalogCorrupt if missing or
// malformed.
func (c *Catalog) ReadRoot(ctx context.Context, q Querier) (Root, error) {
	row := q.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT partition_column_name, interval_seconds, template_name, lookup_name FROM %s LIMIT 1`,
		QuoteIdent(RootTableName(c.BaseName)),
	))

	var r Root
	if err := row.Scan(&r.PartitionColumnName, &r.IntervalSeconds, &r.TemplateName, &r.LookupName); err != nil {
		return Root{}, fmt.Errorf("%w: reading root row for %q: %v", vterrors.ErrCatalogCorrupt, c.BaseName, err)
	}
	if r.PartitionColumnName == "" || r.IntervalSeconds <= 0 {
		return Root{}, fmt.Errorf("%w: malformed root row for %q", vterrors.ErrCatalogCorrupt, c.BaseName)
	}
	return r, nil
}

// ReadTemplateSchema rebuilds the Schema from the template table's column
// metadata (PRAGMA table_info), cross-checked against root's
// partition_column_name. Used at CONNECT time.
func (c *Catalog) ReadTemplateSchema(ctx context.Context, q Querier, root Root) (schema.Schema, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", QuoteIdent(root.TemplateName)))
	if err != nil {
		return schema.Schema{}, fmt.Errorf("%w: reading template columns: %v", vterrors.ErrCatalogCorrupt, err)
	}
	defer rows.Close()

	var cols []schema.ColumnDecl
	partitionIdx := -1
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dfltValue sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return schema.Schema{}, fmt.Errorf("%w: scanning template column: %v", vterrors.ErrCatalogCorrupt, err)
		}
		role := schema.Ordinary
		if name == root.PartitionColumnName {
			role = schema.PartitionColumn
			partitionIdx = len(cols)
		}
		cols = append(cols, schema.ColumnDecl{Name: name, DeclaredType: colType, Role: role})
	}
	if err := rows.Err(); err != nil {
		return schema.Schema{}, fmt.Errorf("%w: %v", vterrors.ErrCatalogCorrupt, err)
	}
	if partitionIdx == -1 {
		return schema.Schema{}, fmt.Errorf("%w: partition column %q from root not found in template %q",
			vterrors.ErrCatalogCorrupt, root.PartitionColumnName, root.TemplateName)
	}

	return schema.Schema{Columns: cols, PartitionColumnIndex: partitionIdx}, nil
}

// Connect reconstructs in-memory state (root + schema) from the shadow
// tables, per spec.md §4.4 and invariant I4.
func (c *Catalog) Connect(ctx context.Context, q Querier) (Root, schema.Schema, error) {
	root, err := c.ReadRoot(ctx, q)
	if err != nil {
		return Root{}, schema.Schema{}, err
	}
	s, err := c.ReadTemplateSchema(ctx, q, root)
	if err != nil {
		return Root{}, schema.Schema{}, err
	}
	return root, s, nil
}

// ReadLookup reads all lookup rows into a bucket -> partition name map.
func (c *Catalog) ReadLookup(ctx context.Context, q Querier) (map[int64]string, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf(
		`SELECT bucket_start_epoch, partition_name FROM %s ORDER BY bucket_start_epoch ASC`,
		QuoteIdent(LookupTableName(c.BaseName)),
	))
	if err != nil {
		return nil, fmt.Errorf("%w: reading lookup table: %v", vterrors.ErrCatalogCorrupt, err)
	}
	defer rows.Close()

	m := make(map[int64]string)
	for rows.Next() {
		var b int64
		var name string
		if err := rows.Scan(&b, &name); err != nil {
			return nil, fmt.Errorf("%w: scanning lookup row: %v", vterrors.ErrCatalogCorrupt, err)
		}
		m[b] = name
	}
	return m, rows.Err()
}

// InsertLookup inserts one bucket -> partition_name row.
func (c *Catalog) InsertLookup(ctx context.Context, q Querier, bucketStartEpoch int64, partitionName string) error {
	_, err := q.ExecContext(ctx, buildInsertLookupSQL(c.BaseName), bucketStartEpoch, partitionName)
	if err != nil {
		return fmt.Errorf("insert lookup row: %w", err)
	}
	return nil
}

// CreatePartitionTable issues the CREATE TABLE for a new partition.
func (c *Catalog) CreatePartitionTable(ctx context.Context, q Querier, partitionName string, s schema.Schema) error {
	_, err := q.ExecContext(ctx, buildCreatePartitionSQL(partitionName, s))
	if err != nil {
		return fmt.Errorf("create partition table %q: %w", partitionName, err)
	}
	return nil
}

// TemplateIndexes lists the indexes eligible for replication: user-created
// indexes on the template table (PRAGMA index_list origin == "c").
func (c *Catalog) TemplateIndexes(ctx context.Context, q Querier, templateName string) ([]IndexDef, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%s)", QuoteIdent(templateName)))
	if err != nil {
		return nil, fmt.Errorf("listing template indexes: %w", err)
	}

	type rawIndex struct {
		name   string
		unique bool
		origin string
	}
	var raw []rawIndex
	for rows.Next() {
		var seq int
		var name, origin string
		var unique, partial int
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning index_list row: %w", err)
		}
		raw = append(raw, rawIndex{name: name, unique: unique != 0, origin: origin})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var defs []IndexDef
	for _, ri := range raw {
		if ri.origin != "c" {
			continue
		}
		cols, err := c.indexColumns(ctx, q, ri.name)
		if err != nil {
			return nil, err
		}
		defs = append(defs, IndexDef{Name: ri.name, Unique: ri.unique, Columns: cols})
	}
	return defs, nil
}

func (c *Catalog) indexColumns(ctx context.Context, q Querier, indexName string) ([]string, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%s)", QuoteIdent(indexName)))
	if err != nil {
		return nil, fmt.Errorf("listing index_info for %q: %w", indexName, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var seqno, cid int
		var name sql.NullString
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, fmt.Errorf("scanning index_info row for %q: %w", indexName, err)
		}
		cols = append(cols, name.String)
	}
	return cols, rows.Err()
}

// CreatePartitionIndex creates one partition-local index, replicated from a
// template IndexDef, with its name munged per PartitionIndexName.
func (c *Catalog) CreatePartitionIndex(ctx context.Context, q Querier, partitionName string, bucketStartEpoch int64, def IndexDef) error {
	name := PartitionIndexName(def.Name, bucketStartEpoch)
	_, err := q.ExecContext(ctx, buildCreateIndexSQL(name, partitionName, def.Columns, def.Unique))
	if err != nil {
		return fmt.Errorf("create partition index %q on %q: %w", name, partitionName, err)
	}
	return nil
}

// Destroy drops every partition listed in the lookup table, in ascending
// bucket order, then root/lookup/template, per spec.md §9 ("Drop semantics"). Callers must
// wrap this in a savepoint.
func (c *Catalog) Destroy(ctx context.Context, q Querier) error {
	log.Info("destroying virtual table", "base", c.BaseName)

	partitions, err := c.ReadLookup(ctx, q)
	if err != nil {
		return err
	}
	buckets := make([]int64, 0, len(partitions))
	for b := range partitions {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i] < buckets[j] })
	for _, bucketEpoch := range buckets {
		name := partitions[bucketEpoch]
		if _, err := q.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", QuoteIdent(name))); err != nil {
			return fmt.Errorf("drop partition %q (bucket %d): %w", name, bucketEpoch, err)
		}
	}

	for _, table := range []string{TemplateTableName(c.BaseName), LookupTableName(c.BaseName), RootTableName(c.BaseName)} {
		if _, err := q.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", QuoteIdent(table))); err != nil {
			return fmt.Errorf("drop shadow table %q: %w", table, err)
		}
	}

	return nil
}

// TableExists checks sqlite_master for a table by name.
func TableExists(ctx context.Context, q Querier, name string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name = ?`, name).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
