package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ridelens/ridelens/internal/analytics"
	"github.com/ridelens/ridelens/internal/api"
	"github.com/ridelens/ridelens/internal/chat"
	"github.com/ridelens/ridelens/internal/config"
	"github.com/ridelens/ridelens/internal/nl2sql"
	"github.com/ridelens/ridelens/internal/observability"
	"github.com/ridelens/ridelens/internal/query/sqlexec"
	"github.com/ridelens/ridelens/internal/schema"
	"github.com/ridelens/ridelens/internal/warehouse"
)

func main() {
	cfg, err := config.LoadFromEnv("ridelens-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	wh, err := warehouse.Open(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to open warehouse", slog.String("driver", cfg.Warehouse.Driver), slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = wh.Close() }()

	executor, err := sqlexec.New(wh.DB, sqlexec.Options{
		Timeout:       cfg.Query.Timeout,
		MaxConcurrent: cfg.Query.MaxConcurrent,
		TxOptions:     wh.TxOptions,
	})
	if err != nil {
		logger.Error("failed to initialize query executor", slog.Any("error", err))
		os.Exit(1)
	}

	descriptor := schema.TripDataset
	var generator nl2sql.Generator
	client, err := nl2sql.NewClient(nl2sql.Config{
		BaseURL: cfg.AI.BaseURL,
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout,
		Dialect: wh.Dialect,
		Schema:  &descriptor,
	})
	switch {
	case errors.Is(err, nl2sql.ErrMissingAPIKey):
		logger.Warn("completion api key not configured; chat questions will fail until it is set")
	case err != nil:
		logger.Error("failed to initialize completion client", slog.Any("error", err))
		os.Exit(1)
	default:
		generator = client
		logger.Info("completion client ready", slog.String("model", client.Model()), slog.String("dialect", wh.Dialect))
	}

	repo := analytics.NewRepository(wh.DB)
	deps := api.Dependencies{
		Logger:            logger,
		Readiness:         api.WarehouseReadiness(wh.DB.PingContext, repo.HealthCheck),
		DependencyTimeout: time.Second,
		Chat:              chat.NewService(generator, executor, logger),
		Analytics:         repo,
		Schema:            &descriptor,
		ChatLimiter:       api.NewClientLimiter(cfg.Chat.RateLimitRPS, cfg.Chat.RateLimitBurst),
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address), slog.String("profile", string(cfg.Profile)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
