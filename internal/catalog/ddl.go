package catalog

import (
	"fmt"
	"strings"

	"github.com/nuuskamummu/sqlite3-partitioner/internal/schema"
)

// QuoteIdent quotes a SQL identifier, doubling any embedded double quotes,
// per spec.md §4.4 ("identifier quoting must escape embedded double-quotes
// by doubling").
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// RootTableName returns "{base}_root".
func RootTableName(base string) string { return base + "_root" }

// LookupTableName returns "{base}_lookup".
func LookupTableName(base string) string { return base + "_lookup" }

// TemplateTableName returns "{base}_template".
func TemplateTableName(base string) string { return base + "_template" }

// PartitionTableName returns "{base}_{bucket}".
func PartitionTableName(base string, bucketStartEpoch int64) string {
	return fmt.Sprintf("%s_%d", base, bucketStartEpoch)
}

func buildCreateRootSQL(base string) string {
	return fmt.Sprintf(
		`CREATE TABLE %s (partition_column_name TEXT, interval_seconds INTEGER, template_name TEXT, lookup_name TEXT)`,
		QuoteIdent(RootTableName(base)),
	)
}

func buildCreateLookupSQL(base string) string {
	return fmt.Sprintf(
		`CREATE TABLE %s (bucket_start_epoch INTEGER PRIMARY KEY, partition_name TEXT NOT NULL)`,
		QuoteIdent(LookupTableName(base)),
	)
}

// buildColumnListSQL renders the column list shared by the template and
// every partition table: the partition column is always declared TEXT.
func buildColumnListSQL(s schema.Schema) string {
	defs := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		defs[i] = fmt.Sprintf("%s %s", QuoteIdent(c.Name), s.VirtualColumnType(i))
	}
	return strings.Join(defs, ", ")
}

// DeclareColumnsSQL renders the column-list portion of a
// sqlite3.SQLiteConn.DeclareVTab call: the schema the host sees for this
// virtual table, parenthesized and ready to append after "CREATE TABLE x".
func DeclareColumnsSQL(s schema.Schema) string {
	return "(" + buildColumnListSQL(s) + ")"
}

func buildCreateTemplateSQL(base string, s schema.Schema) string {
	return fmt.Sprintf("CREATE TABLE %s (%s)", QuoteIdent(TemplateTableName(base)), buildColumnListSQL(s))
}

// buildCreatePartitionSQL builds the DDL for a new partition table, sharing
// the template's column list.
func buildCreatePartitionSQL(partitionName string, s schema.Schema) string {
	return fmt.Sprintf("CREATE TABLE %s (%s)", QuoteIdent(partitionName), buildColumnListSQL(s))
}

// buildInsertRootSQL inserts the single root row.
func buildInsertRootSQL(base string) string {
	return fmt.Sprintf(
		`INSERT INTO %s (partition_column_name, interval_seconds, template_name, lookup_name) VALUES (?, ?, ?, ?)`,
		QuoteIdent(RootTableName(base)),
	)
}

// buildInsertLookupSQL inserts one lookup row.
func buildInsertLookupSQL(base string) string {
	return fmt.Sprintf(
		`INSERT INTO %s (bucket_start_epoch, partition_name) VALUES (?, ?)`,
		QuoteIdent(LookupTableName(base)),
	)
}

// buildCreateIndexSQL renders a CREATE INDEX statement for the given index
// definition against table.
func buildCreateIndexSQL(indexName, tableName string, columns []string, unique bool) string {
	quotedCols := make([]string, len(columns))
	for i, c := range columns {
		quotedCols[i] = QuoteIdent(c)
	}
	uniqueKw := ""
	if unique {
		uniqueKw = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)", uniqueKw, QuoteIdent(indexName), QuoteIdent(tableName), strings.Join(quotedCols, ", "))
}

// PartitionIndexName renames a template index for a new partition: the
// "_template" substring is replaced by "_{bucket}"; if the template index
// name doesn't contain it, "_{bucket}" is appended instead.
func PartitionIndexName(templateIndexName string, bucketStartEpoch int64) string {
	suffix := fmt.Sprintf("_%d", bucketStartEpoch)
	if strings.Contains(templateIndexName, "_template") {
		return strings.Replace(templateIndexName, "_template", suffix, 1)
	}
	return templateIndexName + suffix
}
