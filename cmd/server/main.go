/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the payroll approval server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load configuration
  2. Build the zap logger
  3. Open the store (SQLite file, or memory)
  4. Seed benefit templates (file or presets)
  5. Build the payroll service and API handler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to the YAML config (default: configs/config.yaml)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with the default config
  ./server

  # Run against an in-memory store on another port
  DATABASE_PATH=memory PORT=3000 ./server

ENVIRONMENT:
  PAYROLL_* overrides any config key (PAYROLL_SERVER_PORT, ...), plus the
  short forms DATABASE_PATH, MINIMUM_WAGE, PORT, LOG_LEVEL. A .env file in
  the working directory is loaded first.

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration keys
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/payroll-engine/api"
	"github.com/warp/payroll-engine/config"
	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/logging"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/memory"
	"github.com/warp/payroll-engine/store/sqlite"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting payroll engine",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("database", cfg.Database.Path),
	)

	// Initialize store
	var store payroll.Store
	if cfg.Database.InMemory() {
		store = memory.New()
		logger.Info("Using in-memory store")
	} else {
		db, err := sqlite.New(cfg.Database.Path)
		if err != nil {
			logger.Fatal("Failed to initialize database", zap.Error(err))
		}
		defer db.Close()
		store = db
	}

	policy, err := cfg.Payroll.MinimumWagePolicy()
	if err != nil {
		logger.Fatal("Invalid minimum wage", zap.Error(err))
	}
	svc := payroll.NewService(store, payroll.NewExceptionEngine(policy), payroll.WithLogger(logger))

	templates, err := loadTemplates(cfg.Payroll.BenefitTemplatesFile)
	if err != nil {
		logger.Fatal("Failed to load benefit templates", zap.Error(err))
	}
	ctx := context.Background()
	for _, t := range templates {
		if err := svc.SaveBenefitTemplate(ctx, t); err != nil {
			logger.Fatal("Failed to seed benefit template", zap.String("template", t.ID), zap.Error(err))
		}
	}
	logger.Info("Benefit templates loaded", zap.Int("count", len(templates)))

	handler := api.NewHandler(svc, templates, logger)
	router := api.NewRouter(handler, api.RouterOptions{AllowedOrigins: cfg.Server.AllowedOrigins})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}

// loadTemplates reads the template catalog, or falls back to the presets.
func loadTemplates(path string) ([]payroll.BenefitTemplate, error) {
	if path == "" {
		return payroll.DefaultBenefitTemplates(), nil
	}
	return factory.NewBenefitFactory().LoadFile(path)
}
