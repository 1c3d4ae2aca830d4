/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the payroll engine HTTP server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, optional YAML file, PAYROLL_* env)
  2. Initialize the logger at the configured level
  3. Wire store, holiday chain, metrics, service and batch runner (app.New)
  4. Configure HTTP router
  5. Start the recalculation scheduler when enabled
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -addr    HTTP listen address (overrides PAYROLL_ADDR)
  -db      SQLite database path (overrides PAYROLL_DB_PATH)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler (waits for a running batch)
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close the holiday cache and database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/payroll.db"

  # Run with in-memory database and live holiday data
  PAYROLL_HEBCAL_ENABLED=true ./server -db=":memory:"

  # Configure from a file
  PAYROLL_CONFIG=./payroll.yaml ./server

SEE ALSO:
  - app/app.go: Component wiring
  - api/server.go: Router configuration
  - config/config.go: Configuration keys
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/payroll-engine/api"
	"github.com/warp/payroll-engine/app"
	"github.com/warp/payroll-engine/config"
	"github.com/warp/payroll-engine/logger"
)

func main() {
	ctx := context.Background()

	// Flags
	addr := flag.String("addr", "", "HTTP listen address")
	dbPath := flag.String("db", "", "SQLite database path")
	flag.Parse()

	if err := logger.Init(); err != nil {
		panic(err)
	}
	log := logger.Named("server")

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Error(ctx, "failed to load config", logger.Error(err))
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "unknown log level, keeping info", logger.String("level", cfg.LogLevel))
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Error(ctx, "failed to initialize", logger.Error(err))
		os.Exit(1)
	}
	defer a.Close()

	loc, _ := cfg.Location()
	handler := api.NewHandler(a.Store, a.Service, a.Runner, loc)
	router := api.NewRouter(handler, api.RouterOptions{Metrics: a.Metrics})

	scheduler := api.NewRecalculationScheduler(a.Runner, loc)
	scheduler.Enabled = cfg.SchedulerEnabled
	scheduler.Interval = cfg.SchedulerInterval
	scheduler.Start()

	// Create server
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info(ctx, "server starting",
			logger.String("addr", cfg.Addr),
			logger.String("db", cfg.DBPath),
			logger.String("timezone", cfg.Timezone))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "server failed", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info(ctx, "shutting down server")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server forced to shutdown", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}
