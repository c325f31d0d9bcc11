package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nuuskamummu/sqlite3-partitioner/internal/config"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/vtab"
)

var (
	createInterval string
	createColumns  string
)

// createCmd represents the create command.
var createCmd = &cobra.Command{
	Use:   "create <db> <table>",
	Short: "Create a partitioned virtual table",
	Long: `Create opens (or creates) a SQLite database file and declares a new
partitioner virtual table in it.

Example:
  partitioner create events.db events \
    --interval "1 hour" \
    --columns "id INTEGER, ts TIMESTAMP partition_column, value REAL"`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runCreate(args[0], args[1])
	},
}

func init() {
	createCmd.Flags().StringVar(&createInterval, "interval", "1 hour", "bucket interval, e.g. \"1 hour\", \"1 day\"")
	createCmd.Flags().StringVar(&createColumns, "columns", "", "comma-separated column declarations, one of which must be tagged partition_column")
	rootCmd.AddCommand(createCmd)
}

func runCreate(dbPath, table string) {
	if createColumns == "" {
		fmt.Fprintln(os.Stderr, "Error: --columns is required")
		os.Exit(1)
	}
	if !createCmd.Flags().Changed("interval") {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		createInterval = cfg.Partition.DefaultInterval
	}

	db, err := sql.Open(vtab.DriverName, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", dbPath, err)
		os.Exit(1)
	}
	defer db.Close()

	stmt := fmt.Sprintf(
		`CREATE VIRTUAL TABLE %q USING partitioner(%q, %s)`,
		table, createInterval, createColumns,
	)
	if _, err := db.Exec(stmt); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating virtual table: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created %q in %s (interval %s)\n", table, dbPath, createInterval)
}
