package main

//
//  @title           proptrack API
//  @version         1.0
//  @description     Prop-firm trade import, PnL ledger reconciliation and trading statistics.
//  @termsOfService  https://github.com/guttosm/proptrack
//  @contact.name    API Support
//  @contact.url     https://github.com/guttosm/proptrack
//  @license.name    MIT
//  @license.url     https://opensource.org/licenses/MIT
//  @host            localhost:8080
//  @BasePath        /
//  @schemes         http
//
//  @securityDefinitions.apikey BearerAuth
//  @in                         header
//  @name                       Authorization
//
//  @tag.name        imports
//  @tag.description Trade CSV import and dry-run preview
//
//  @tag.name        statistics
//  @tag.description Trading statistics and custom formulas
//
//  @tag.name        health
//  @tag.description Liveness and readiness probes

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guttosm/proptrack/config"
	_ "github.com/guttosm/proptrack/docs" // swagger docs
	"github.com/guttosm/proptrack/internal/app"
	"github.com/guttosm/proptrack/internal/ingestion"
	"github.com/guttosm/proptrack/internal/logger"
	"github.com/guttosm/proptrack/internal/storage"
)

// startServer initializes and starts the HTTP server in a separate goroutine.
//
// Parameters:
//   - router (http.Handler): The HTTP router (Gin Engine) configured with all routes.
//   - port (string): The port where the server will listen for incoming requests.
//
// Returns:
//   - *http.Server: The initialized HTTP server instance.
func startServer(router http.Handler, port string) *http.Server {
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.L().Info().Str("port", port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal().Err(err).Msg("server failed to start")
		}
	}()

	return server
}

// gracefulShutdown gracefully terminates the HTTP server and cleans up resources
// when an OS interrupt signal (SIGINT, SIGTERM) is received.
//
// Parameters:
//   - ctx (context.Context): A context with timeout for graceful shutdown.
//   - server (*http.Server): The HTTP server instance to shut down.
//   - cleanup (func()): Cleanup callback to release resources (e.g., DB connections).
func gracefulShutdown(ctx context.Context, server *http.Server, cleanup func()) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	logger.L().Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.L().Fatal().Err(err).Msg("server forced to shutdown")
	}

	cleanup()
	logger.L().Info().Msg("server exited gracefully")
}

// runIngest imports every export in dir as the system user and logs a
// per-file summary.
func runIngest(ctx context.Context, cfg config.Config, dir string, parallel int, preview bool) error {
	db, err := app.InitPostgres(cfg)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer func() { _ = db.Close() }()

	svcs, err := app.NewServices(cfg, db, nil)
	if err != nil {
		return err
	}

	results, err := ingestion.ProcessDirectory(ctx, dir, app.SystemImporter{Imports: svcs.Imports}, ingestion.ProcessOptions{
		Parallel: parallel,
		Preview:  preview,
	})
	for _, r := range results {
		ev := logger.L().Info().Str("file", r.Path).Str("account_id", r.AccountID)
		if r.Import != nil {
			ev.Str("summary", r.Import.Summary).Msg("imported")
		} else if r.Preview != nil {
			ev.Int("new_trades", r.Preview.NewTrades).Str("net_new_pnl", r.Preview.NetNewPnl.StringFixed(2)).Msg("previewed")
		}
	}
	return err
}

// runMigrate applies the embedded schema migrations.
func runMigrate(ctx context.Context, cfg config.Config) error {
	db, err := app.InitPostgres(cfg)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer func() { _ = db.Close() }()
	return storage.Migrate(ctx, db)
}

// main is the entry point of the proptrack application.
//
// Modes (selected via --mode flag):
//   - api:     Starts the REST API for imports and statistics.
//   - ingest:  Imports every "<account>_<platform>[_suffix].csv" file in --dir.
//   - migrate: Applies database migrations and exits.
//
// Flags:
//   - --mode:     Execution mode ("api", "ingest" or "migrate"). Default: "api".
//   - --dir:      Directory containing CSV exports. Default: "./data/input".
//   - --parallel: How many accounts to ingest concurrently (0=auto).
//   - --preview:  Report what ingest would do without writing.
//   - --port:     Port for the API server. Defaults to value from config (SERVER_PORT).
func main() {
	ctx := context.Background()

	// Load configuration from environment or .env file
	config.LoadConfig()

	// Initialize JSON logger
	logger.Init()

	// Parse CLI flags (override config defaults if provided)
	mode := flag.String("mode", "api", "Mode: api, ingest or migrate")
	dir := flag.String("dir", "./data/input", "Directory with <account>_<platform>.csv exports")
	parallel := flag.Int("parallel", 0, "How many accounts to ingest concurrently (0=auto)")
	preview := flag.Bool("preview", false, "Ingest in preview mode: report without writing")
	port := flag.String("port", config.AppConfig.Server.Port, "Port for API mode")
	flag.Parse()

	switch *mode {
	case "ingest":
		logger.L().Info().Str("dir", *dir).Bool("preview", *preview).Msg("running ingestion")
		if err := runIngest(ctx, config.AppConfig, *dir, *parallel, *preview); err != nil {
			logger.L().Fatal().Err(err).Msg("ingestion failed")
		}
		logger.L().Info().Msg("ingestion completed successfully")

	case "migrate":
		if err := runMigrate(ctx, config.AppConfig); err != nil {
			logger.L().Fatal().Err(err).Msg("migration failed")
		}
		logger.L().Info().Msg("migrations applied")

	case "api":
		logger.L().Info().Msg("starting API server")

		router, cleanup, err := app.InitializeApp()
		if err != nil {
			logger.L().Fatal().Err(err).Msg("app init error")
		}

		server := startServer(router, *port)
		gracefulShutdown(ctx, server, cleanup)

	default:
		logger.L().Fatal().Str("mode", *mode).Msg("unknown mode")
	}
}
