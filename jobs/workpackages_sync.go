package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/worksla/worksla-web/internal/apiclient"
	jobmetrics "github.com/worksla/worksla-web/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Backend paths used by the sync jobs.
const (
	SyncPath    = "/admin/wp_cache/sync"
	RefreshPath = "/workpackages/refresh"
)

// BackendAPI is the part of the API client the jobs use.
type BackendAPI interface {
	Login(ctx context.Context, creds *apiclient.Credentials, username, password string) (apiclient.User, error)
	PostJSON(ctx context.Context, creds *apiclient.Credentials, path string, body, out any) error
}

// CacheBumper invalidates the work package list cache.
type CacheBumper interface {
	Bump(ctx context.Context) (int64, error)
}

// SyncResult is the backend reply to a sync or refresh call.
type SyncResult struct {
	Message   string `json:"message"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
}

// SyncJob signs in with a service account, asks the backend to sync or
// refresh its work package cache and invalidates the dashboard list cache.
type SyncJob struct {
	API      BackendAPI
	Cache    CacheBumper
	Username string
	Password string
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	Timeout  time.Duration

	mu    sync.Mutex
	creds *apiclient.Credentials
	clock func() time.Time
}

// NewSyncJob wires dependencies for the sync handlers.
func NewSyncJob(api BackendAPI, cache CacheBumper, username, password string, logger *slog.Logger, metrics *jobmetrics.Metrics) *SyncJob {
	return &SyncJob{
		API:      api,
		Cache:    cache,
		Username: username,
		Password: password,
		Logger:   logger,
		Metrics:  metrics,
		Timeout:  5 * time.Minute,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// HandleSync processes workpackages:sync tasks.
func (j *SyncJob) HandleSync(ctx context.Context, t *asynq.Task) error {
	var payload SyncPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode sync payload: %w", asynq.SkipRetry)
		}
	}
	logger := j.logger(TaskWorkpackagesSync).With(slog.String("requested_by", payload.RequestedBy))
	return j.run(ctx, TaskWorkpackagesSync, SyncPath, logger)
}

// HandleRefresh processes workpackages:refresh tasks.
func (j *SyncJob) HandleRefresh(ctx context.Context, _ *asynq.Task) error {
	return j.run(ctx, TaskWorkpackagesRefresh, RefreshPath, j.logger(TaskWorkpackagesRefresh))
}

func (j *SyncJob) run(ctx context.Context, job, path string, logger *slog.Logger) (resultErr error) {
	if j == nil || j.API == nil {
		return errors.New("sync job: handler not configured")
	}
	tracker := j.metrics().Track(job)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	start := j.now()
	logger.Info("starting backend sync")
	result, err := j.call(ctx, path)
	if err != nil {
		logger.Error("backend sync", slog.Any("error", err))
		return err
	}
	j.metrics().AddSynced(job, result.Processed)

	if j.Cache != nil {
		version, err := j.Cache.Bump(ctx)
		if err != nil {
			// The backend already holds the new data; lists refresh when
			// their entries expire.
			logger.Warn("bump list cache", slog.Any("error", err))
		} else {
			j.metrics().CacheBumped(job)
			logger.Debug("list cache bumped", slog.Int64("version", version))
		}
	}
	logger.Info("completed backend sync",
		slog.Int("processed", result.Processed),
		slog.Int("total", result.Total),
		slog.Duration("duration", j.now().Sub(start)))
	return nil
}

// call posts to path, signing in first when the service account has no
// credentials and once more if they expired.
func (j *SyncJob) call(ctx context.Context, path string) (SyncResult, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var result SyncResult
	for attempt := 0; attempt < 2; attempt++ {
		if j.creds == nil || !j.creds.Valid() {
			if err := j.login(ctx); err != nil {
				return SyncResult{}, err
			}
		}
		err := j.API.PostJSON(ctx, j.creds, path, nil, &result)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, apiclient.ErrAuthExpired) {
			return SyncResult{}, err
		}
		j.creds = nil
	}
	return SyncResult{}, apiclient.ErrAuthExpired
}

func (j *SyncJob) login(ctx context.Context) error {
	if j.Username == "" {
		return fmt.Errorf("sync job: service account not configured: %w", asynq.SkipRetry)
	}
	creds := apiclient.NewCredentials("worker:" + j.Username)
	if _, err := j.API.Login(ctx, creds, j.Username, j.Password); err != nil {
		return fmt.Errorf("service account login: %w", err)
	}
	j.creds = creds
	return nil
}

func (j *SyncJob) logger(job string) *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", job))
	}
	return slog.Default().With(slog.String("job", job))
}

func (j *SyncJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *SyncJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
