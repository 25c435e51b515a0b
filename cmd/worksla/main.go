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

	"github.com/worksla/worksla-web/internal/admin"
	"github.com/worksla/worksla-web/internal/apiclient"
	"github.com/worksla/worksla-web/internal/app"
	"github.com/worksla/worksla-web/internal/auth"
	"github.com/worksla/worksla-web/internal/dashboard"
	"github.com/worksla/worksla-web/internal/observability"
	"github.com/worksla/worksla-web/internal/platform/cache"
	"github.com/worksla/worksla-web/internal/reports"
	"github.com/worksla/worksla-web/internal/shared"
	"github.com/worksla/worksla-web/internal/view"
	"github.com/worksla/worksla-web/internal/workpackages"
	"github.com/worksla/worksla-web/jobs"
	"github.com/worksla/worksla-web/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngineWithLocale(view.Locale{Location: cfg.Location(), Language: cfg.Language()})
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	api := apiclient.New(apiclient.Options{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.APITimeout,
		UserAgent: cfg.APIUserAgent,
		Logger:    logger,
		Observer:  metrics,
	})
	defer api.CloseIdleConnections()

	listCache := cache.NewVersioned(redisClient, "worksla:wp", cfg.WPListCacheTTL)
	if err := listCache.ListenForInvalidation(ctx, func(version int64) {
		logger.Info("work package cache invalidated", slog.Int64("version", version))
	}); err != nil {
		logger.Warn("subscribe cache invalidation", slog.Any("error", err))
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	wpBackend := workpackages.NewAPIBackend(api, cfg.JournalResource)
	wpService := workpackages.NewService(wpBackend, listCache, metrics, logger, workpackages.Config{
		FetchSize:       cfg.WPListFetchSize,
		JournalPageSize: cfg.JournalPageSize,
		JournalMaxPages: cfg.JournalMaxPages,
	})

	var pdf reports.PDFRenderer
	readiness := map[string]app.Pinger{
		"redis": app.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
		"backend": app.PingFunc(func(ctx context.Context) error {
			_, err := api.Health(ctx)
			return err
		}),
	}
	if cfg.GotenbergURL != "" {
		gotenberg := report.NewClient(cfg.GotenbergURL)
		pdf = gotenberg
		readiness["gotenberg"] = gotenberg
	}

	authService := auth.NewService(api, logger)
	reportService := reports.NewService(reports.NewAPIBackend(api), logger)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		Templates:           templates,
		SessionManager:      sessionManager,
		CSRFManager:         csrfManager,
		AuthHandler:         auth.NewHandler(logger, authService, templates, sessionManager, csrfManager),
		AuthMiddleware:      auth.Middleware{Templates: templates, Logger: logger},
		DashboardHandler:    dashboard.NewHandler(logger, wpBackend, templates, csrfManager),
		WorkPackagesHandler: workpackages.NewHandler(logger, wpService, templates, csrfManager, cfg.WPListPageSize),
		ReportsHandler:      reports.NewHandler(logger, reportService, templates, csrfManager, pdf),
		AdminHandler:        admin.NewHandler(logger, admin.NewAPIBackend(api), jobClient, templates, csrfManager),
		JobHandler:          jobs.NewHandler(jobClient, logger),
		Metrics:             metrics,
		Readiness:           readiness,
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("api", cfg.APIBaseURL))
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
