package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/sheetcast/internal/config"
	"github.com/JonMunkholm/sheetcast/internal/logging"
	"github.com/JonMunkholm/sheetcast/internal/metrics"
	"github.com/JonMunkholm/sheetcast/internal/store"
	"github.com/JonMunkholm/sheetcast/internal/template"
	"github.com/JonMunkholm/sheetcast/internal/web"
)

func main() {
	// Overload lets a local .env win over the inherited environment.
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	templates, err := template.LoadDir(cfg.Validation.TemplatesDir)
	if err != nil {
		slog.Error("failed to load templates", "dir", cfg.Validation.TemplatesDir, "error", err)
		os.Exit(1)
	}
	for _, t := range templates.All() {
		slog.Debug("template loaded", "name", t.Name(), "attributes", len(t.Attributes()))
	}

	opts := []web.Option{
		web.WithMetrics(metrics.New(cfg.Metrics.Namespace, cfg.Metrics.Enabled)),
	}

	ctx := context.Background()
	if cfg.Database.Enabled() {
		pool, err := connect(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		recorder := store.NewRecorder(pool)
		if err := recorder.Migrate(ctx); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		opts = append(opts, web.WithRecorder(recorder))
		slog.Info("recording validation runs")
	} else {
		slog.Info("no database configured, validation runs are not recorded")
	}

	server, err := web.NewServer(cfg, templates, opts...)
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if active := server.Limiter().Active(); active > 0 {
			slog.Info("waiting for validations to complete", "active", active)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}

func connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	slog.Info("connected to database", "name", poolConfig.ConnConfig.Database)
	return pool, nil
}
