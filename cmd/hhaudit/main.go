// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/olegiv/hhaudit/internal/auth"
	"github.com/olegiv/hhaudit/internal/capture"
	"github.com/olegiv/hhaudit/internal/config"
	"github.com/olegiv/hhaudit/internal/handler"
	"github.com/olegiv/hhaudit/internal/logging"
	"github.com/olegiv/hhaudit/internal/middleware"
	"github.com/olegiv/hhaudit/internal/scheduler"
	"github.com/olegiv/hhaudit/internal/service"
	"github.com/olegiv/hhaudit/internal/session"
	"github.com/olegiv/hhaudit/internal/store"
	"github.com/olegiv/hhaudit/internal/version"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "hhaudit - Hand hygiene compliance audit service\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  HHA_SESSION_SECRET          Session key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  HHA_DB_PATH                 SQLite database path (default: ./data/hhaudit.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  HHA_SERVER_HOST             Listen host (default: localhost)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  HHA_SERVER_PORT             Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  HHA_ENV                     Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  HHA_LOG_LEVEL               debug|info|warn|error (default: info)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  HHA_REDIS_URL               Keep audit records in Redis instead of SQLite (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  HHA_DRAFT_TTL               Idle time before a draft is discarded (default: 12h)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  HHA_DRAFT_SWEEP_SCHEDULE    Cron schedule of the draft sweep (default: */15 * * * *)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  HHA_TRUSTED_ORIGINS         Extra origins allowed to post, comma separated\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	info := version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}

	if *showVersion {
		_, _ = fmt.Println(info.String())
		os.Exit(0)
	}

	if err := run(info); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(info version.Info) error {
	// Load .env file if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o750); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready")

	// Upgrade logger to also write WARN and ERROR logs to the event log
	events := store.NewEvents(db)
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger = slog.New(logging.NewEventLogHandler(textHandler, events))
	slog.SetDefault(logger)
	slog.Info("event log integration enabled", "min_level", "warn")

	backend, extraChecks, err := openBackend(cfg, db)
	if err != nil {
		return err
	}
	records := store.NewRecords(backend, logger)
	defer func() {
		if err := records.Close(); err != nil {
			slog.Error("error closing record store", "error", err)
		}
	}()

	ctx := context.Background()
	eventService := service.NewEventService(events)
	accounts := service.NewAccounts(ctx, records, auth.NewHasher(auth.DefaultParams), logger)
	audits := service.NewAudits(ctx, records, logger)
	slog.Info("records loaded", "observers", accounts.Count(), "sessions", audits.Count())

	forms := capture.NewManager(time.Now, logger)

	sched := scheduler.New(forms, cfg.DraftTTL, cfg.DraftSweepSchedule, eventService, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	sessionManager := session.New(db, cfg.IsDevelopment())

	loginProtection := middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig())
	defer loginProtection.Stop()

	csrfKey := []byte(cfg.SessionSecret)[:config.MinSessionSecretLength]

	router := handler.NewRouter(handler.RouterConfig{
		Auth:            handler.NewAuthHandler(accounts, sessionManager, eventService, loginProtection),
		Audit:           handler.NewAuditHandler(forms, audits, eventService),
		Reports:         handler.NewReportsHandler(audits, eventService, time.Now),
		Events:          handler.NewEventsHandler(eventService),
		Health:          handler.NewHealthHandler(db, info, extraChecks),
		SessionManager:  sessionManager,
		Observers:       accounts,
		LoginProtection: loginProtection,
		CSRF:            middleware.CSRF(middleware.DefaultCSRFConfig(csrfKey, cfg.IsDevelopment(), cfg.TrustedOrigins)),
		IsDevelopment:   cfg.IsDevelopment(),
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second, // The elapsed stream clears its own deadline
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	// Request contexts derive from baseCtx; cancelling it on shutdown ends
	// open elapsed-time streams so Shutdown does not wait on them.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	srv.BaseContext = func(net.Listener) context.Context { return baseCtx }
	srv.RegisterOnShutdown(cancelBase)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", info.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// openBackend selects the record store: Redis when configured, otherwise the
// records table of the SQLite database.
func openBackend(cfg *config.Config, db *sql.DB) (store.Backend, map[string]handler.Pinger, error) {
	if !cfg.UseRedis() {
		slog.Info("record store", "backend", "sqlite")
		return store.NewSQLiteBackend(db), nil, nil
	}

	opts := store.DefaultRedisOptions()
	opts.URL = cfg.RedisURL
	opts.Prefix = cfg.RedisPrefix

	backend, err := store.NewRedisBackend(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}
	slog.Info("record store", "backend", "redis", "prefix", opts.Prefix)
	return backend, map[string]handler.Pinger{"redis": backend}, nil
}
