// Package api implements the admin/inspection HTTP surface: read-mostly
// diagnostic endpoints over the catalog and partition manager for
// virtual tables registered on an already-open connection, plus one
// operational write (force-creating a partition ahead of traffic).
package api

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/nuuskamummu/sqlite3-partitioner/internal/bucket"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/catalog"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/config"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/logging"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/partitionmgr"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/ratelimit"
)

// table bundles the objects needed to answer one virtual table's worth of
// diagnostic queries: its catalog reader, its root row, and a
// partition manager rehydrated from the lookup table.
type table struct {
	name string
	cat  *catalog.Catalog
	root catalog.Root
	mgr  *partitionmgr.Manager
}

// Server represents the admin/inspection REST API server.
type Server struct {
	router     *gin.Engine
	db         *sql.DB
	config     *config.Config
	tableNames []string
	httpServer *http.Server
	log        *logging.Logger
}

// NewServer creates a new admin API server over db, watching the given
// virtual table base names.
func NewServer(db *sql.DB, cfg *config.Config, tableNames []string) *Server {
	log := logging.GetLogger("api")
	log.Info("initializing admin API server", "tables", tableNames)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())

	if cfg.RestAPI.CORS {
		log.Debug("enabling CORS")
		corsConfig := cors.Config{
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key"},
			ExposeHeaders: []string{"Content-Length", "Retry-After", "X-Request-Id"},
			MaxAge:        12 * time.Hour,
		}
		if len(cfg.RestAPI.AllowOrigins) > 0 {
			corsConfig.AllowOrigins = cfg.RestAPI.AllowOrigins
		} else if cfg.RestAPI.APIKey != "" {
			corsConfig.AllowOrigins = []string{
				"http://localhost:*",
				"http://127.0.0.1:*",
				"https://localhost:*",
				"https://127.0.0.1:*",
			}
			corsConfig.AllowWildcard = true
		} else {
			corsConfig.AllowAllOrigins = true
		}
		router.Use(cors.New(corsConfig))
	}

	if cfg.RestAPI.APIKey != "" {
		log.Info("API key authentication enabled")
		router.Use(APIKeyAuthMiddleware(cfg.RestAPI.APIKey))
	}

	if cfg.RateLimit.Enabled {
		log.Info("rate limiting enabled")
		rlCfg := &ratelimit.Config{
			Enabled: cfg.RateLimit.Enabled,
			Global: ratelimit.LimitConfig{
				RequestsPerSecond: cfg.RateLimit.Global.RequestsPerSecond,
				BurstSize:         cfg.RateLimit.Global.BurstSize,
			},
		}
		for _, route := range cfg.RateLimit.Routes {
			rlCfg.Routes = append(rlCfg.Routes, ratelimit.RouteLimit{
				Name:              route.Name,
				RequestsPerSecond: route.RequestsPerSecond,
				BurstSize:         route.BurstSize,
			})
		}
		limiter := ratelimit.NewLimiter(rlCfg)
		router.Use(RateLimitMiddleware(limiter))
	}

	router.Use(MaxBodySizeMiddleware(DefaultBodyLimit))

	server := &Server{
		router:     router,
		db:         db,
		config:     cfg,
		tableNames: tableNames,
		log:        log,
	}

	server.setupRoutes()

	return server
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/health", s.healthHandler)
		v1.GET("/tables", s.listTables)
		v1.GET("/tables/:name/root", s.tableRoot)
		v1.GET("/tables/:name/partitions", s.listPartitions)
		v1.GET("/tables/:name/indexes", s.listIndexes)
		v1.POST("/tables/:name/partitions", s.ensurePartition)
	}
}

// loadTable reconnects to a virtual table's shadow catalog by base name.
func (s *Server) loadTable(ctx context.Context, name string) (*table, error) {
	cat := catalog.New(name)
	root, sch, err := cat.Connect(ctx, s.db)
	if err != nil {
		return nil, err
	}

	lookup, err := cat.ReadLookup(ctx, s.db)
	if err != nil {
		return nil, err
	}

	iv := bucket.FromSeconds(root.IntervalSeconds)
	mgr := partitionmgr.New(cat, sch, iv, root.TemplateName, lookup)

	return &table{name: name, cat: cat, root: root, mgr: mgr}, nil
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr, err := s.listenAddr()
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	s.log.Info("starting admin API server", "address", addr)
	return s.httpServer.ListenAndServe()
}

// StartWithContext starts the HTTP server and blocks until ctx is
// cancelled or the server encounters an error, then shuts down gracefully.
func (s *Server) StartWithContext(ctx context.Context, shutdownTimeout time.Duration) error {
	addr, err := s.listenAddr()
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("starting admin API server", "address", addr)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("stopping admin API server")
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.Error("server shutdown error", "error", err)
			return err
		}
		s.log.Info("admin API server stopped")
	}
	return nil
}

// Router returns the underlying Gin router for testing.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) listenAddr() (string, error) {
	port := s.config.RestAPI.Port
	if s.config.RestAPI.AutoPort {
		availablePort, err := findAvailablePort(port)
		if err != nil {
			s.log.Error("failed to find available port", "error", err, "start_port", port)
			return "", fmt.Errorf("failed to find available port: %w", err)
		}
		port = availablePort
		s.log.Debug("found available port", "port", port)
	}
	return fmt.Sprintf("%s:%d", s.config.RestAPI.Host, port), nil
}

func findAvailablePort(startPort int) (int, error) {
	for port := startPort; port < startPort+100; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			ln.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port found in range %d-%d", startPort, startPort+100)
}
