package vtab

import (
	"context"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/nuuskamummu/sqlite3-partitioner/internal/bucket"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/catalog"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/dml"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/partitionmgr"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/schema"
)

// Module implements sqlite3.Module. It is stateless; every virtual table
// instance's state lives in its own *VTab.
type Module struct{}

// DestroyModule is called once when the module is unregistered from a
// connection. Nothing to release here.
func (m *Module) DestroyModule() {}

// Create handles CREATE VIRTUAL TABLE ... USING partitioner(...): it parses
// the interval and column arguments, writes the three shadow tables, and
// declares the virtual schema to the host.
func (m *Module) Create(c *sqlite3.SQLiteConn, args []string) (sqlite3.VTab, error) {
	return m.open(c, args, true)
}

// Connect re-attaches to an existing virtual table (e.g. after the host
// process restarts), rebuilding schema/partition state from the shadow
// tables instead of the DDL arguments.
func (m *Module) Connect(c *sqlite3.SQLiteConn, args []string) (sqlite3.VTab, error) {
	return m.open(c, args, false)
}

// open implements both Create and Connect: args is
// [moduleName, dbName, tableName, "<n> <hour|day>", col decls...] for
// Create, and the same shape replayed by the host for Connect.
func (m *Module) open(c *sqlite3.SQLiteConn, args []string, creating bool) (sqlite3.VTab, error) {
	if len(args) < 4 {
		return nil, fmt.Errorf("partitioner: expected at least one interval argument and one column declaration, got %v", args)
	}
	base := args[2]

	path, err := mainDBPath(c)
	if err != nil {
		return nil, fmt.Errorf("partitioner: %w", err)
	}
	sideDB, err := sideDBFor(path)
	if err != nil {
		return nil, fmt.Errorf("partitioner: %w", err)
	}

	ctx := context.Background()
	cat := catalog.New(base)

	var iv bucket.Interval
	var s schema.Schema
	var root catalog.Root

	if creating {
		// The host passes module arguments exactly as written, so a quoted
		// interval ('1 hour' or "1 hour") arrives with its quotes.
		ivText := strings.TrimSpace(args[3])
		if n := len(ivText); n >= 2 && (ivText[0] == '\'' || ivText[0] == '"') && ivText[n-1] == ivText[0] {
			ivText = ivText[1 : n-1]
		}
		iv, err = bucket.ParseInterval(ivText)
		if err != nil {
			return nil, fmt.Errorf("partitioner: %w", err)
		}
		s, err = schema.ParseColumns(strings.Join(args[4:], ","))
		if err != nil {
			return nil, fmt.Errorf("partitioner: %w", err)
		}

		if err := cat.Create(ctx, sideDB, iv, s); err != nil {
			return nil, fmt.Errorf("partitioner: %w", err)
		}
		root = catalog.Root{
			PartitionColumnName: s.PartitionColumnName(),
			IntervalSeconds:     iv.Seconds,
			TemplateName:        catalog.TemplateTableName(base),
			LookupName:          catalog.LookupTableName(base),
		}
	} else {
		root, s, err = cat.Connect(ctx, sideDB)
		if err != nil {
			return nil, fmt.Errorf("partitioner: %w", err)
		}
		iv = bucket.FromSeconds(root.IntervalSeconds)
	}

	existing, err := cat.ReadLookup(ctx, sideDB)
	if err != nil {
		return nil, fmt.Errorf("partitioner: %w", err)
	}

	mgr := partitionmgr.New(cat, s, iv, root.TemplateName, existing)
	dispatcher := dml.New(cat, mgr, s, iv)

	if err := c.DeclareVTab("CREATE TABLE " + base + " " + catalog.DeclareColumnsSQL(s)); err != nil {
		return nil, fmt.Errorf("partitioner: declaring virtual schema: %w", err)
	}

	log.Info("virtual table ready", "base", base, "creating", creating, "interval", iv.String(), "columns", len(s.Columns))

	return &VTab{
		base:       base,
		db:         sideDB,
		catalog:    cat,
		schema:     s,
		interval:   iv,
		mgr:        mgr,
		dispatcher: dispatcher,
	}, nil
}
