package main

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nuuskamummu/sqlite3-partitioner/internal/vtab"
)

// execCmd represents the exec command.
var execCmd = &cobra.Command{
	Use:   "exec <db> <sql>",
	Short: "Run one SQL statement against a partitioner-enabled connection",
	Long: `Exec opens db with the partitioner driver registered and runs a single
statement. SELECTs print their result set; other statements print the
number of rows affected.

Example:
  partitioner exec events.db "SELECT * FROM events WHERE ts > 1700000000"`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		runExec(args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(execCmd)
}

func runExec(dbPath, query string) {
	db, err := sql.Open(vtab.DriverName, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", dbPath, err)
		os.Exit(1)
	}
	defer db.Close()

	if isSelect(query) {
		if err := printRows(db, query); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	result, err := db.Exec(query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	affected, _ := result.RowsAffected()
	fmt.Printf("OK (%d rows affected)\n", affected)
}

func isSelect(query string) bool {
	trimmed := strings.TrimSpace(query)
	return len(trimmed) >= 6 && strings.EqualFold(trimmed[:6], "select")
}

func printRows(db *sql.DB, query string) error {
	rows, err := db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	fmt.Println(strings.Join(cols, "\t"))

	dest := make([]interface{}, len(cols))
	holders := make([]interface{}, len(cols))
	for i := range dest {
		holders[i] = &dest[i]
	}

	n := 0
	for rows.Next() {
		if err := rows.Scan(holders...); err != nil {
			return err
		}
		fields := make([]string, len(cols))
		for i, v := range dest {
			fields[i] = fmt.Sprintf("%v", v)
		}
		fmt.Println(strings.Join(fields, "\t"))
		n++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	fmt.Printf("\n(%d rows)\n", n)
	return nil
}
