/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the evaluation engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load the evaluation-policy configuration
  3. Initialize SQLite store
  4. Wire approval service, reconciler, calculators, advisor
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port     HTTP server port (default: 8080)
  -db       SQLite database path (default: evaluation.db)
            Use ":memory:" for in-memory database
  -config   Evaluation-policy YAML: grading scale, attendance weights,
            holidays, baseline hours. Empty for built-in defaults.
  -admin    Identity allowed to satisfy the HR-approver check

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database and custom policy
  ./server -db="./data/evaluation.db" -config="./policy.yaml"

  # Run with in-memory database
  ./server -db=":memory:"

ENVIRONMENT:
  ADVISOR_TOKEN    enables the GPT commentary advisor when set
  ADVISOR_CATALOG  folder/catalog identifier for the advisor account

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - factory/config.go: Configuration schema
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

	log "github.com/sirupsen/logrus"

	"github.com/warp/evaluation-engine/advisor"
	"github.com/warp/evaluation-engine/api"
	"github.com/warp/evaluation-engine/approval"
	"github.com/warp/evaluation-engine/engine"
	"github.com/warp/evaluation-engine/factory"
	"github.com/warp/evaluation-engine/payout"
	"github.com/warp/evaluation-engine/reconcile"
	"github.com/warp/evaluation-engine/store/sqlite"
	"github.com/warp/evaluation-engine/workrate"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "evaluation.db", "SQLite database path")
	configPath := flag.String("config", "", "evaluation-policy YAML path")
	adminID := flag.String("admin", "", "admin override identity for HR decisions")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	// Load policy configuration
	cfg, err := factory.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer store.Close()

	// Wire services
	var opts []approval.Option
	if *adminID != "" {
		opts = append(opts, approval.WithAdminOverride(engine.EmployeeID(*adminID)))
	}
	approvals := approval.NewService(store, opts...)
	reconciler := reconcile.New(store)
	calculator := &workrate.Calculator{
		Weights:              cfg.Weights,
		Holidays:             cfg.Holidays,
		MonthlyBaselineHours: cfg.MonthlyBaselineHours,
	}
	evaluator := &payout.Evaluator{Store: store, Scale: cfg.Scale, Calculator: calculator}

	var adv advisor.Provider = advisor.Disabled{}
	if token := os.Getenv("ADVISOR_TOKEN"); token != "" {
		adv = advisor.NewGPT(token, os.Getenv("ADVISOR_CATALOG"))
		log.Info("Commentary advisor enabled")
	}

	handler := api.NewHandler(store, approvals, reconciler, calculator, evaluator, adv)
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithField("port", *port).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("Server forced to shutdown")
	}

	log.Info("Server stopped")
}
