package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/anatolykoptev/go-imagegrab"
	"github.com/anatolykoptev/go-imagegrab/internal/config"
	"github.com/anatolykoptev/go-imagegrab/internal/metrics"
	"github.com/anatolykoptev/go-imagegrab/internal/server"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	format, err := imagegrab.ParseFormat(cfg.Storage.Format)
	if err != nil {
		logger.Error("invalid storage format", "error", err)
		os.Exit(1)
	}
	store, err := imagegrab.NewDirStore(cfg.Storage.Dir, format)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	pipeline := &imagegrab.Config{
		Store:          store,
		UserAgent:      cfg.Fetch.UserAgent,
		TargetSize:     cfg.Image.TargetSize,
		DedupThreshold: cfg.Image.DedupThreshold,
		FetchWorkers:   cfg.Fetch.Workers,
		MaxImageBytes:  cfg.Fetch.MaxBytes,
		MaxPixels:      cfg.Image.MaxPixels,
		SkipLogoURLs:   cfg.Image.SkipLogos,

		SkipStockImages:   cfg.Image.SkipStock,
		ExtraStockDomains: cfg.Image.ExtraStockDomains,

		OnCandidate: m.ObserveCandidate,
		OnPanic:     m.ObservePanic,
	}
	pipeline.Fetcher = imagegrab.NewHTTPFetcher(pipeline, cfg.Fetch.Timeout)

	api := server.New(pipeline, store, m, server.Options{
		MinWidth:     cfg.Image.MinWidth,
		MinHeight:    cfg.Image.MinHeight,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started",
			"addr", cfg.Server.Addr,
			"storage_dir", store.Dir(),
			"format", string(format),
			"fetch_workers", cfg.Fetch.Workers,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("shutdown timeout exceeded, forcing exit", "error", err)
		return
	}
	logger.Info("graceful shutdown complete")
}

func newLogger(c config.LoggingConfig) *slog.Logger {
	var logLevel slog.Level
	switch c.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if c.JSONFormat {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
