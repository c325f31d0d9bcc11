package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nuuskamummu/sqlite3-partitioner/internal/api"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/config"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/vtab"
)

var (
	serveTables []string
	servePort   int
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve <db>",
	Short: "Start the admin/inspection HTTP API over a database",
	Long: `Serve starts a read-mostly HTTP API for inspecting the partitioner
virtual tables registered in db: root metadata, partition lists, template
indexes, plus one write endpoint to force-create a partition ahead of
traffic.

Example:
  partitioner serve events.db --table events --table metrics`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runServe(args[0])
	},
}

func init() {
	serveCmd.Flags().StringArrayVar(&serveTables, "table", nil, "virtual table name to expose (repeatable)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (overrides config if nonzero)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(dbPath string) {
	if len(serveTables) == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one --table is required")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if servePort != 0 {
		cfg.RestAPI.Port = servePort
		cfg.RestAPI.AutoPort = false
	}

	db, err := sql.Open(vtab.DriverName, dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", dbPath, err)
		os.Exit(1)
	}
	defer db.Close()

	srv := api.NewServer(db, cfg, serveTables)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := srv.StartWithContext(ctx, 10*time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
