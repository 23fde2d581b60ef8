// Package main is the entry point for the school-run API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver for database/sql
	"github.com/pressly/goose/v3"

	"github.com/schoolrun/backend/internal/config"
	"github.com/schoolrun/backend/internal/handler"
	"github.com/schoolrun/backend/internal/metrics"
	"github.com/schoolrun/backend/internal/middleware"
	"github.com/schoolrun/backend/internal/notify"
	"github.com/schoolrun/backend/internal/publisher"
	"github.com/schoolrun/backend/internal/repo"
	"github.com/schoolrun/backend/internal/service"
	"github.com/schoolrun/backend/internal/tasks"
	"github.com/schoolrun/backend/migrations"
	"github.com/schoolrun/backend/spec"
)

// maxBodyBytes caps request bodies; the largest legitimate payload is a
// 500-point location batch, far below this.
const maxBodyBytes = 1 << 20 // 1 MiB

func main() {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	// JSON handler writes machine-readable output suitable for log aggregators.
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// --- Database ---------------------------------------------------------
	// pgxpool manages a pool of Postgres connections.
	// New() does not open connections immediately — the first query does.
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Verify the DB is reachable before accepting traffic.
	if err := pool.Ping(context.Background()); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	logger.Info("database connection established")

	if err := migrate(cfg.DatabaseURL); err != nil {
		logger.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	// --- Observability & messaging ---------------------------------------
	collector := metrics.NewCollector()
	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = collector.Serve(cfg.MetricsAddr, logger)
	}

	var pub *publisher.NATSPublisher
	if cfg.NATSURL != "" {
		pub, err = publisher.NewNATSPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer pub.Close()
	}

	// --- Repositories, services, handlers ---------------------------------
	trips := repo.NewTripRepo(pool)
	targets := repo.NewTargetRepo(pool)
	locations := repo.NewLocationRepo(pool)
	scopes := repo.NewScopeRepo(pool)
	live := repo.NewLiveRepo(pool)
	reminders := repo.NewReminderRepo(pool)
	notifications := repo.NewNotificationRepo(pool)

	dispatcher := notify.NewInAppDispatcher(notifications, logger)

	runner := tasks.NewRunner(logger, 4, cfg.ReminderQueueSize,
		tasks.WithTimeout(30*time.Second))

	reminderSvc := service.NewReminderService(reminders, trips, dispatcher, cfg.ReminderCooldown, collector, logger)
	tripSvc := service.NewTripService(trips, targets, scopes, locations, dispatcher, collector, logger)
	liveSvc := service.NewLiveService(live, scopes, logger)

	var positions publisher.PositionPublisher
	if pub != nil {
		positions = pub
	}
	locationSvc := service.NewLocationService(locations, trips, reminderSvc, runner, positions, collector, logger)

	server := handler.NewServer(tripSvc, locationSvc, liveSvc, spec.OpenAPI, logger)

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID → RealIP → Logger → Recoverer.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(maxBodyBytes))

	server.Mount(r, middleware.NewAuthenticator([]byte(cfg.JWTSecret)))

	// --- HTTP Server ------------------------------------------------------
	// Explicit timeouts prevent slowloris and resource exhaustion attacks.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown: wait for OS signal, then give in-flight requests
	// up to 15 seconds to complete before forcefully closing.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	// Drain queued reminder evaluations and publishes before the pool closes.
	runner.Close()

	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(ctx)
	}
	logger.Info("server stopped")
}

// migrate applies all pending migrations. The migration files are embedded,
// so the binary is self-contained.
func migrate(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return err
	}
	_, err = provider.Up(context.Background())
	return err
}
