// Package main is the entry point for the cachemux server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blueberrycongee/cachemux/internal/api"
	"github.com/blueberrycongee/cachemux/internal/cache"
	"github.com/blueberrycongee/cachemux/internal/cache/semantic"
	"github.com/blueberrycongee/cachemux/internal/config"
	"github.com/blueberrycongee/cachemux/internal/listener"
	"github.com/blueberrycongee/cachemux/internal/memory"
	"github.com/blueberrycongee/cachemux/internal/observability"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting cachemux", "version", "0.1.0")

	// Load configuration
	cfgManager, err := config.NewManager(*configPath, logger)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	cfg := cfgManager.Get()
	logger = newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start config watcher
	if err := cfgManager.Watch(ctx); err != nil {
		logger.Warn("config hot-reload disabled", "error", err)
	}

	// Tracing
	tracerProvider, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRate:  cfg.Tracing.SampleRate,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Secret resolution for credential fields (env://, vault://)
	secrets, err := newSecretManager(logger)
	if err != nil {
		logger.Error("failed to initialize secret manager", "error", err)
		os.Exit(1)
	}
	defer secrets.Close()

	// Exact-match store
	if pw, err := secrets.Get(ctx, cfg.Cache.Redis.Password); err == nil {
		cfg.Cache.Redis.Password = pw
	} else {
		logger.Error("failed to resolve redis password", "error", err)
		os.Exit(1)
	}
	store, err := cache.NewStore(cfg.Cache)
	if err != nil {
		logger.Error("failed to create cache store", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("exact store ready", "type", cfg.Cache.Type)

	// Similarity matcher
	var matcher *semantic.Matcher
	if cfg.Semantic.Enabled {
		matcher, err = semantic.NewFromConfig(ctx, cfg.Semantic.Config, secrets)
		if err != nil {
			logger.Error("failed to create similarity matcher", "error", err)
			os.Exit(1)
		}
		logger.Info("similarity matching enabled",
			"store", cfg.Semantic.VectorStore,
			"threshold", cfg.Semantic.SimilarityThreshold,
		)
	}

	service := cache.NewService(store, matcher, logger, cache.ServiceConfig{
		DefaultTTL:   cfg.Cache.TTL,
		MaxValueSize: cfg.Cache.MaxValueKB * 1024,
	})
	invalidator := cache.NewInvalidationController(store, matcher, logger)

	// Tiered conversational memory
	validator := memory.NewAdmissionValidator(matcher, 0)
	tiers := memory.NewTierManager(matcher, validator, logger, memory.Config{
		L1Capacity:      cfg.Memory.L1Capacity,
		L2Capacity:      cfg.Memory.L2Capacity,
		RecallThreshold: cfg.Memory.RecallThreshold,
		L3TTL:           cfg.Memory.L3TTL,
	})

	// Listener registry
	listenerStore, err := newListenerStore(cfg, logger)
	if err != nil {
		logger.Error("failed to create listener store", "error", err)
		os.Exit(1)
	}
	defer listenerStore.Close()
	listeners := listener.NewRegistry(listenerStore, logger)

	// Auth store
	authStore, err := newAuthStore(ctx, cfg, secrets, logger)
	if err != nil {
		logger.Error("failed to create auth store", "error", err)
		os.Exit(1)
	}
	defer authStore.Close()

	// API handler and routes
	handler := api.NewHandler(service, invalidator, tiers, listeners, logger)

	mux := http.NewServeMux()
	handler.Routes(mux)

	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, promhttp.Handler())
	}

	middleware, err := buildMiddlewareStack(cfg, authStore, logger)
	if err != nil {
		logger.Error("failed to build middleware", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		logger.Error("tracer shutdown error", "error", err)
	}

	cfgManager.Close()
	logger.Info("server stopped")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return observability.NewLogger(observability.LoggerConfig{
		Level:      level,
		Output:     os.Stdout,
		JSONFormat: cfg.Format != "text",
	}, observability.NewRedactor())
}
