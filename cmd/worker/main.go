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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/worksla/worksla-web/internal/apiclient"
	"github.com/worksla/worksla-web/internal/app"
	jobmetrics "github.com/worksla/worksla-web/internal/jobs"
	"github.com/worksla/worksla-web/internal/platform/cache"
	"github.com/worksla/worksla-web/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
	if cfg.WorkerAPIUsername == "" {
		logger.Warn("WORKER_API_USERNAME is empty; sync tasks will be skipped")
	}

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

	api := apiclient.New(apiclient.Options{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.APITimeout,
		UserAgent: cfg.APIUserAgent + " (worker)",
		Logger:    logger,
	})
	defer api.CloseIdleConnections()

	listCache := cache.NewVersioned(redisClient, "worksla:wp", cfg.WPListCacheTTL)
	metrics := jobmetrics.NewMetrics(prometheus.DefaultRegisterer)
	syncJob := jobs.NewSyncJob(api, listCache, cfg.WorkerAPIUsername, cfg.WorkerAPIPassword, logger, metrics)

	var cron []jobs.CronRegistration
	if cfg.WorkerRefreshCron != "" {
		cron = append(cron, jobs.CronRegistration{
			Spec:    cfg.WorkerRefreshCron,
			Task:    jobs.NewRefreshTask(),
			Options: []asynq.Option{asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(1), asynq.Unique(5 * time.Minute)},
		})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Location:    cfg.Location(),
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskWorkpackagesSync, Handler: syncJob.HandleSync},
			{Type: jobs.TaskWorkpackagesRefresh, Handler: syncJob.HandleRefresh},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              cfg.WorkerMetricsAddr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("serving worker metrics", slog.String("addr", cfg.WorkerMetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("starting worker", slog.String("refresh_cron", cfg.WorkerRefreshCron))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
