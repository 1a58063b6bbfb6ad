// Package main is the entry point for the photo trips API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pkordes/photo-trips/internal/config"
	"github.com/pkordes/photo-trips/internal/geocode"
	"github.com/pkordes/photo-trips/internal/handler"
	"github.com/pkordes/photo-trips/internal/middleware"
	"github.com/pkordes/photo-trips/internal/repo"
	"github.com/pkordes/photo-trips/internal/service"
	"github.com/pkordes/photo-trips/migrations"
)

func main() {
	// --- Config -----------------------------------------------------------
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("failed to read .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		// Use plain stderr before the logger is configured.
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	logger := newLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx := context.Background()

	// --- Database ---------------------------------------------------------
	// New() does not open connections immediately; the first query does.
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Verify the DB is reachable before accepting traffic.
	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	slog.Info("database connection established")

	if cfg.MigrateOnStart {
		// goose drives database/sql; borrow the pool's config for it.
		db := stdlib.OpenDBFromPool(pool)
		applied, err := migrations.Up(ctx, db)
		db.Close()
		if err != nil {
			slog.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
		slog.Info("migrations applied", "count", applied)
	}

	// --- Services ---------------------------------------------------------
	photos := repo.NewPhotoRepo(pool)
	trips := repo.NewTripRepo(pool)
	opts := []service.Option{
		service.WithTransactor(repo.NewTransactor(pool)),
		service.WithLogger(logger),
	}
	var serverOpts []handler.ServerOption
	if cfg.Geocoder.Enabled() {
		geo, err := geocode.New(geocode.Config{
			BaseURL:       cfg.Geocoder.URL,
			UserAgent:     cfg.Geocoder.UserAgent,
			RatePerSecond: cfg.Geocoder.RatePerSecond,
			Timeout:       cfg.Geocoder.Timeout,
		}, logger)
		if err != nil {
			slog.Error("invalid geocoder configuration", "error", err)
			os.Exit(1)
		}
		opts = append(opts, service.WithPlaceNamer(geo))
		serverOpts = append(serverOpts, handler.WithGeocoder(geo))
		slog.Info("reverse geocoding enabled", "url", cfg.Geocoder.URL)
	}
	tripService := service.NewTripService(photos, trips, service.SystemClock, opts...)

	// --- Router -----------------------------------------------------------
	// RequestID generates a unique trace ID per request.
	// RealIP sets r.RemoteAddr from X-Forwarded-For / X-Real-IP (safe behind a proxy).
	// SlogLogger writes one structured log line per request.
	// Recoverer catches panics and returns HTTP 500 instead of crashing.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))

	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/", handler.NewServer(tripService, cfg.Cluster, logger, serverOpts...).Routes())

	// --- HTTP Server ------------------------------------------------------
	// Auto-cluster over a large library can take a while; WriteTimeout leaves room.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown: wait for OS signal, then give in-flight requests
	// up to 15 seconds to complete before forcefully closing.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// newLogger builds the process logger: JSON for machines, tint for people.
// An unknown level falls back to info.
func newLogger(w io.Writer, level, format string) *slog.Logger {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		logLevel = slog.LevelInfo
	}
	if format == "text" {
		return slog.New(tint.NewHandler(w, &tint.Options{Level: logLevel, TimeFormat: time.Kitchen}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel}))
}
