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

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pcr-hr/hr-portal/internal/app"
	"github.com/pcr-hr/hr-portal/internal/auth"
	"github.com/pcr-hr/hr-portal/internal/backend"
	jobmetrics "github.com/pcr-hr/hr-portal/internal/jobs"
	"github.com/pcr-hr/hr-portal/internal/masterdata"
	"github.com/pcr-hr/hr-portal/internal/platform/cache"
	"github.com/pcr-hr/hr-portal/jobs"
)

func main() {
	if app.StartupDisabled() {
		slog.Default().Info("startup disabled, worker not started")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := auth.NewSessionManager(redisClient, app.SessionCookieName, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	provider, err := auth.NewProvider(ctx, auth.ProviderConfig{
		Issuer:       cfg.KeycloakIssuer,
		ClientID:     cfg.KeycloakClientID,
		ClientSecret: cfg.KeycloakClientSecret,
	}, logger)
	if err != nil {
		logger.Error("discover identity provider", slog.Any("error", err))
		os.Exit(1)
	}
	acquirer := auth.NewAcquirer(sessionManager, provider, logger)

	syncer := &app.SessionSyncer{
		Registry:      masterdata.DefaultRegistry(),
		Client:        backend.NewClient(cfg.BackendBaseURL, nil, logger),
		MasterBaseURL: cfg.MasterAPIBaseURL,
		Tokens:        acquirer,
		Lookups:       masterdata.NewLookupService(cache.NewVersioned(redisClient, "hrportal:lookups", cfg.LookupCacheTTL)),
		Logger:        logger,
	}
	syncJob := jobs.NewMasterdataSyncJob(syncer, logger, jobmetrics.NewMetrics(nil))

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskMasterdataSync, Handler: syncJob.Handle},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
