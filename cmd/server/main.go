package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/NaN-tic/csvimport/internal/config"
	"github.com/NaN-tic/csvimport/internal/core"
	"github.com/NaN-tic/csvimport/internal/database"
	"github.com/NaN-tic/csvimport/internal/logging"
	"github.com/NaN-tic/csvimport/internal/notify"
	"github.com/NaN-tic/csvimport/internal/profilefile"
	"github.com/NaN-tic/csvimport/internal/store/memory"
	"github.com/NaN-tic/csvimport/internal/store/postgres"
	"github.com/NaN-tic/csvimport/internal/watch"
	"github.com/NaN-tic/csvimport/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"store_backend", cfg.Store.Backend,
		"watch_enabled", cfg.Watch.Enabled,
	)

	ctx := context.Background()

	// Open the metadata database holding profiles and runs
	metaDB, err := database.Init(cfg.MetaDB.Path)
	if err != nil {
		slog.Error("failed to open metadata database", "error", err)
		os.Exit(1)
	}
	defer metaDB.Close()

	profiles := database.NewProfileRepo(metaDB)
	runs := database.NewRunRepo(metaDB)

	// Load the record schema the store serves
	schema, err := profilefile.LoadSchema(cfg.Store.SchemaPath)
	if err != nil {
		slog.Error("failed to load store schema", "path", cfg.Store.SchemaPath, "error", err)
		os.Exit(1)
	}
	slog.Info("schema loaded", "collections", len(schema.Names()))

	// Select the record store backend
	var recordStore core.RecordStore
	switch cfg.Store.Backend {
	case config.StorePostgres:
		// Parse and configure connection pool
		poolConfig, err := pgxpool.ParseConfig(cfg.Store.URL)
		if err != nil {
			slog.Error("failed to parse database URL", "error", err)
			os.Exit(1)
		}

		// Apply pool configuration from config
		poolConfig.MaxConns = int32(cfg.Store.MaxConns)
		poolConfig.MinConns = int32(cfg.Store.MinConns)
		poolConfig.MaxConnLifetime = cfg.Store.MaxConnLifetime
		poolConfig.MaxConnIdleTime = cfg.Store.MaxConnIdleTime

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		// Verify connection
		if err := pool.Ping(ctx); err != nil {
			slog.Error("failed to ping database", "error", err)
			os.Exit(1)
		}

		// Log which database we connected to
		if u, err := url.Parse(cfg.Store.URL); err == nil {
			dbName := strings.TrimPrefix(u.Path, "/")
			slog.Info("connected to record store", "name", dbName)
		} else {
			slog.Info("connected to record store")
		}

		recordStore = postgres.New(pool, schema)
	default:
		recordStore = memory.New(schema)
	}

	// Wire run report delivery
	reporter := &notify.RunReporter{
		Notifier: buildNotifier(cfg),
		To:       cfg.Notify.To,
	}

	runner := core.NewRunner(recordStore, slog.Default(), reporter)

	// Create server with config
	server := web.NewServer(cfg, slog.Default(), profiles, runs, runner)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())

	// Start the inbox watcher when enabled
	if cfg.Watch.Enabled {
		watcher, err := watch.New(cfg.Watch.Dir, cfg.Watch.Pattern, cfg.Watch.Settle,
			watchHandler(cfg, profiles, runs, runner), slog.Default())
		if err != nil {
			slog.Error("failed to create watcher", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := watcher.Start(jobCtx); err != nil && jobCtx.Err() == nil {
				slog.Error("watcher stopped", "error", err)
			}
		}()
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	// Start server (uses addr from config internally)
	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}

// buildNotifier picks the report transport: the mail gateway when one is
// configured, the log otherwise.
func buildNotifier(cfg *config.Config) notify.Notifier {
	if cfg.Notify.GatewayURL != "" {
		return notify.NewGateway(cfg.Notify.GatewayURL, cfg.Notify.From, cfg.Notify.Timeout)
	}
	return &notify.LogNotifier{Log: slog.Default()}
}

// watchHandler builds the import callback for inbox files. The profile is
// looked up per file so edits apply without a restart. A run that ends in
// the error state reports an error so the watcher files the CSV under
// failed/ instead of processed/.
func watchHandler(cfg *config.Config, profiles *database.ProfileRepo, runs *database.RunRepo, runner *core.Runner) watch.HandleFunc {
	return func(ctx context.Context, path string) error {
		profile, err := profiles.GetByName(ctx, cfg.Watch.Profile)
		if err != nil {
			return fmt.Errorf("load profile %q: %w", cfg.Watch.Profile, err)
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		runCtx, cancel := context.WithTimeout(ctx, cfg.Import.Timeout)
		defer cancel()

		run, err := runner.Run(runCtx, profile, filepath.Base(path), f)
		if run != nil {
			if saveErr := runs.Save(ctx, run); saveErr != nil {
				slog.Error("save run", "run_id", run.ID, "error", saveErr)
			}
		}
		return err
	}
}
