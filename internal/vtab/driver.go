// Package vtab wires C1–C8 into github.com/mattn/go-sqlite3's virtual-table
// ABI: sqlite3.Module, sqlite3.VTab, sqlite3.VTabCursor, and
// sqlite3.VTabUpdater, registered on a dedicated driver via ConnectHook —
// the same pattern go-sqlite3 documents for shipping a Go-implemented
// virtual table without a cgo-exported C entry point.
package vtab

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/nuuskamummu/sqlite3-partitioner/internal/logging"
)

var log = logging.GetLogger("vtab")

// DriverName is the database/sql driver name this package registers under.
// Open connections with sql.Open(DriverName, path) to get the "partitioner"
// virtual-table module available.
const DriverName = "sqlite3_partitioner"

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.CreateModule("partitioner", &Module{})
		},
	})
}

// sideDB maps a database file path to a dedicated *sql.DB used for
// catalog/partition/DML queries. Create/Connect run inside the raw
// SQLiteConn the host hands the module, which only exposes the low-level
// driver.Exec/driver.Query ABI; the rest of this module is written against
// database/sql's *sql.Rows/*sql.Row/sql.Result, so DDL and DML after the
// initial CREATE/CONNECT go through this side connection to the same file
// instead. This does not work against ":memory:" — use a shared-cache URI
// (file::memory:?cache=shared) if an in-memory catalog is needed.
var (
	sideDBMu sync.Mutex
	sideDBs  = map[string]*sql.DB{}
)

func sideDBFor(path string) (*sql.DB, error) {
	sideDBMu.Lock()
	defer sideDBMu.Unlock()

	if db, ok := sideDBs[path]; ok {
		return db, nil
	}
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("opening side connection to %q: %w", path, err)
	}
	sideDBs[path] = db
	return db, nil
}

// mainDBPath reads the file backing the "main" database of conn via
// PRAGMA database_list.
func mainDBPath(conn *sqlite3.SQLiteConn) (string, error) {
	rows, err := conn.Query("PRAGMA database_list", nil)
	if err != nil {
		return "", fmt.Errorf("reading database_list: %w", err)
	}
	defer rows.Close()

	dest := make([]driver.Value, 3)
	for {
		if err := rows.Next(dest); err != nil {
			if err == io.EOF {
				break
			}
			return "", fmt.Errorf("scanning database_list: %w", err)
		}
		if name, _ := dest[1].(string); name == "main" {
			file, _ := dest[2].(string)
			return file, nil
		}
	}
	return "", fmt.Errorf("no \"main\" database attached to connection")
}
