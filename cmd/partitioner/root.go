package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nuuskamummu/sqlite3-partitioner/internal/logging"
)

var (
	// Version is set during build.
	Version = "0.1.0"

	// Global flags
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "partitioner",
	Short: "Time-range partitioning for SQLite, as a virtual table",
	Long: `partitioner manages sqlite3-partitioner virtual tables: time-range
partitioned tables backed by a set of ordinary SQLite tables, transparently
routed to by bucket.

Examples:
  partitioner create events.db events --interval "1 hour" --columns "id INTEGER, ts TIMESTAMP partition_column, value REAL"
  partitioner exec events.db "SELECT * FROM events WHERE ts > 1700000000"
  partitioner inspect events.db events
  partitioner serve events.db --table events`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logging.Config{
			Level:  logLevel,
			Format: "console",
			Output: "stderr",
		})
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log_level", "info", "log level (debug, info, warn, error)")
}
