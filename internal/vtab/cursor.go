package vtab

import (
	"context"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/nuuskamummu/sqlite3-partitioner/internal/cursor"
)

// Cursor adapts internal/cursor.Cursor to sqlite3.VTabCursor.
type Cursor struct {
	vtab  *VTab
	inner *cursor.Cursor
}

// Filter runs the planned query against the partition set, then records
// the partition list on the parent VTab so Update can decode rowids this
// cursor hands out.
func (c *Cursor) Filter(idxNum int, idxStr string, vals []interface{}) error {
	if err := c.inner.Filter(context.Background(), idxStr, vals); err != nil {
		return err
	}
	c.vtab.lastPartitions = c.inner.Partitions()
	return nil
}

// Next advances the cursor.
func (c *Cursor) Next() error {
	return c.inner.Next(context.Background())
}

// EOF reports whether the cursor is exhausted.
func (c *Cursor) EOF() bool {
	return c.inner.EOF()
}

// Rowid returns the current row's synthetic rowid.
func (c *Cursor) Rowid() (int64, error) {
	return c.inner.Rowid(), nil
}

// Close releases the cursor's child statement.
func (c *Cursor) Close() error {
	return c.inner.Close()
}

// Column writes column col's value into ctx, translating from the Go
// values database/sql hands back into the matching SQLiteContext result
// setter.
func (c *Cursor) Column(ctx *sqlite3.SQLiteContext, col int) error {
	v := c.inner.Column(col)
	switch val := v.(type) {
	case nil:
		ctx.ResultNull()
	case int64:
		ctx.ResultInt64(val)
	case int:
		ctx.ResultInt(val)
	case float64:
		ctx.ResultDouble(val)
	case bool:
		if val {
			ctx.ResultInt(1)
		} else {
			ctx.ResultInt(0)
		}
	case []byte:
		ctx.ResultBlob(val)
	case string:
		ctx.ResultText(val)
	case time.Time:
		ctx.ResultText(val.UTC().Format("2006-01-02 15:04:05"))
	default:
		return fmt.Errorf("partitioner: column %d: unsupported value type %T", col, v)
	}
	return nil
}
