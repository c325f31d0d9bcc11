package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nuuskamummu/sqlite3-partitioner/internal/bucket"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/catalog"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/vtab"
)

// inspectCmd represents the inspect command.
var inspectCmd = &cobra.Command{
	Use:   "inspect <db> <table>",
	Short: "Print a virtual table's root row, partitions, and indexes",
	Long: `Inspect reconnects to a virtual table's shadow catalog directly (root,
lookup, and template-index tables) rather than querying the virtual table
itself, and prints what it finds.

Example:
  partitioner inspect events.db events`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runInspect(args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(dbPath, table string) {
	db, err := sql.Open(vtab.DriverName, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", dbPath, err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	cat := catalog.New(table)

	root, _, err := cat.Connect(ctx, db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %q: %v\n", table, err)
		os.Exit(1)
	}

	iv := bucket.FromSeconds(root.IntervalSeconds)
	fmt.Printf("Table: %s\n", table)
	fmt.Printf("  Partition column: %s\n", root.PartitionColumnName)
	fmt.Printf("  Interval:         %s (%d seconds)\n", iv, root.IntervalSeconds)
	fmt.Printf("  Template table:   %s\n", root.TemplateName)
	fmt.Printf("  Lookup table:     %s\n", root.LookupName)
	fmt.Println()

	lookup, err := cat.ReadLookup(ctx, db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading lookup table: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Partitions (%d):\n", len(lookup))
	for bucketStart, name := range lookup {
		fmt.Printf("  %d -> %s\n", bucketStart, name)
	}
	fmt.Println()

	indexes, err := cat.TemplateIndexes(ctx, db, root.TemplateName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading template indexes: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Indexes (%d):\n", len(indexes))
	for _, def := range indexes {
		unique := ""
		if def.Unique {
			unique = " UNIQUE"
		}
		fmt.Printf("  %s%s (%v)\n", def.Name, unique, def.Columns)
	}
}
