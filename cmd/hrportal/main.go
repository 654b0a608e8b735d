package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pcr-hr/hr-portal/internal/app"
	"github.com/pcr-hr/hr-portal/internal/auth"
	"github.com/pcr-hr/hr-portal/internal/backend"
	"github.com/pcr-hr/hr-portal/internal/masterdata"
	"github.com/pcr-hr/hr-portal/internal/observability"
	"github.com/pcr-hr/hr-portal/internal/platform/cache"
	"github.com/pcr-hr/hr-portal/internal/proxy"
	"github.com/pcr-hr/hr-portal/jobs"
)

func main() {
	if app.StartupDisabled() {
		slog.Default().Info("startup disabled, portal not started")
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
	slog.SetDefault(logger)

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

	metrics := observability.NewMetrics()

	sessionManager := auth.NewSessionManager(redisClient, app.SessionCookieName, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := auth.NewCSRFManager(cfg.CSRFSecret)
	provider, err := auth.NewProvider(ctx, auth.ProviderConfig{
		Issuer:       cfg.KeycloakIssuer,
		ClientID:     cfg.KeycloakClientID,
		ClientSecret: cfg.KeycloakClientSecret,
		RedirectURL:  strings.TrimRight(cfg.AppBaseURL, "/") + "/auth/callback",
	}, logger)
	if err != nil {
		logger.Error("discover identity provider", slog.Any("error", err))
		os.Exit(1)
	}
	acquirer := auth.NewAcquirer(sessionManager, provider, logger, auth.WithRefreshObserver(metrics))
	authHandler := auth.NewHandler(logger, provider, sessionManager, csrfManager, cfg.AppBaseURL)

	proxyHandler := proxy.NewHandler(acquirer, cfg.BackendBaseURL, logger, proxy.WithObserver(metrics))

	lookupCache := cache.NewVersioned(redisClient, "hrportal:lookups", cfg.LookupCacheTTL)
	if err := lookupCache.ListenForInvalidation(ctx); err != nil {
		logger.Warn("lookup cache invalidation listener", slog.Any("error", err))
	}
	lookups := masterdata.NewLookupService(lookupCache)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobsClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer jobsClient.Close()
	inspector := asynq.NewInspector(redisOpts)
	defer inspector.Close()

	backendClient := backend.NewClient(cfg.BackendBaseURL, nil, logger)
	masterDataHandler := masterdata.NewHandler(
		logger,
		masterdata.DefaultRegistry(),
		app.SessionResources(backendClient, cfg.MasterAPIBaseURL, acquirer),
		lookups,
		app.SyncEnqueuer{Client: jobsClient},
	)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SessionManager:    sessionManager,
		CSRFManager:       csrfManager,
		AuthHandler:       authHandler,
		Proxy:             proxyHandler,
		MasterDataHandler: masterDataHandler,
		JobHandler:        jobs.NewHandler(inspector, logger),
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("backend", cfg.BackendBaseURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
