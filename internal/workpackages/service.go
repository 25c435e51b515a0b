package workpackages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/worksla/worksla-web/internal/apiclient"
	"github.com/worksla/worksla-web/internal/paging"
	"github.com/worksla/worksla-web/internal/platform/cache"
)

// ErrQueryTooShort is returned for searches under two characters.
var ErrQueryTooShort = errors.New("workpackages: search needs at least 2 characters")

// Metrics receives aggregation and cache instrumentation.
type Metrics interface {
	ObserveAggregation(status string, pages int)
	ObserveCache(hit bool)
}

// Config tunes the service.
type Config struct {
	// FetchSize is the backend page size used for the single list fetch.
	FetchSize       int
	JournalPageSize int
	JournalMaxPages int
	SearchLimit     int
}

// Service loads work packages for the pages of the dashboard.
type Service struct {
	backend Backend
	cache   *cache.Versioned
	metrics Metrics
	logger  *slog.Logger
	cfg     Config
	now     func() time.Time
}

// NewService wires the service. cache and metrics may be nil.
func NewService(backend Backend, listCache *cache.Versioned, metrics Metrics, logger *slog.Logger, cfg Config) *Service {
	if cfg.FetchSize <= 0 {
		cfg.FetchSize = 200
	}
	if cfg.JournalPageSize <= 0 {
		cfg.JournalPageSize = paging.DefaultPageSize
	}
	if cfg.JournalMaxPages <= 0 {
		cfg.JournalMaxPages = paging.DefaultMaxPages
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		backend: backend,
		cache:   listCache,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Snapshot is the full list as fetched for one user.
type Snapshot struct {
	Items        []WorkPackage `json:"items"`
	BackendTotal int           `json:"backend_total"`
	FetchedAt    time.Time     `json:"fetched_at"`
}

// Truncated reports whether the backend holds more items than were fetched.
func (s Snapshot) Truncated() bool {
	return s.BackendTotal > len(s.Items)
}

// ListAll fetches the list once with the configured fetch size. Results are
// cached per user until the cache version is bumped.
func (s *Service) ListAll(ctx context.Context, creds *apiclient.Credentials, userKey string) (Snapshot, error) {
	key, err := s.cache.BuildKey(ctx, "list", userKey, strconv.Itoa(s.cfg.FetchSize))
	if err != nil {
		s.logger.Warn("workpackages list cache key", slog.Any("error", err))
		return s.loadList(ctx, creds)
	}
	var snap Snapshot
	hit, err := s.cache.FetchJSON(ctx, key, &snap, func(ctx context.Context) (any, error) {
		return s.loadList(ctx, creds)
	})
	if err != nil {
		return Snapshot{}, err
	}
	if s.metrics != nil {
		s.metrics.ObserveCache(hit)
	}
	if snap.Items == nil {
		snap.Items = []WorkPackage{}
	}
	return snap, nil
}

func (s *Service) loadList(ctx context.Context, creds *apiclient.Credentials) (Snapshot, error) {
	resp, err := s.backend.List(ctx, creds, ListQuery{Page: 1, PageSize: s.cfg.FetchSize})
	if err != nil {
		return Snapshot{}, fmt.Errorf("workpackages: list: %w", err)
	}
	items := resp.Items
	if items == nil {
		items = []WorkPackage{}
	}
	total := resp.Total
	if total < len(items) {
		total = len(items)
	}
	return Snapshot{Items: items, BackendTotal: total, FetchedAt: s.now().UTC()}, nil
}

// Detail is a work package with its aggregated history.
type Detail struct {
	WorkPackage WorkPackage
	History     paging.Result[ActivityRecord]
	Activities  []Activity
	Timeline    Timeline
}

// Truncated reports whether the history hit the page cap.
func (d Detail) Truncated() bool {
	return d.History.Status == paging.StatusCappedIncomplete
}

// Detail loads the work package and its history concurrently.
func (s *Service) Detail(ctx context.Context, creds *apiclient.Credentials, id int64) (Detail, error) {
	var (
		wp      WorkPackage
		history paging.Result[ActivityRecord]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		wp, err = s.backend.Get(gctx, creds, id)
		if err != nil {
			return fmt.Errorf("workpackages: get %d: %w", id, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		history, err = s.History(gctx, creds, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return Detail{}, err
	}

	return Detail{
		WorkPackage: wp,
		History:     history,
		Activities:  BuildActivities(history.Items),
		Timeline:    BuildTimeline(history.Items, wp.CreatedAt.Time, wp.UpdatedAt.Time, s.now()),
	}, nil
}

// History aggregates every journal page of a work package up to the page cap.
func (s *Service) History(ctx context.Context, creds *apiclient.Credentials, id int64) (paging.Result[ActivityRecord], error) {
	fetch := func(ctx context.Context, req paging.PageRequest) (paging.Page[ActivityRecord], error) {
		page, err := s.backend.JournalPage(ctx, creds, id, req.Offset, req.PageSize)
		if err != nil {
			return paging.Page[ActivityRecord]{}, err
		}
		return paging.Page[ActivityRecord]{Items: page.Journals, HasMore: page.HasMore}, nil
	}
	result, err := paging.Collect(ctx, fetch, paging.Options{
		PageSize: s.cfg.JournalPageSize,
		MaxPages: s.cfg.JournalMaxPages,
	})
	if err != nil {
		return paging.Result[ActivityRecord]{}, fmt.Errorf("workpackages: history %d: %w", id, err)
	}
	if s.metrics != nil {
		s.metrics.ObserveAggregation(result.Status.String(), result.Pages)
	}
	if !result.Complete() {
		s.logger.Info("work package history capped",
			slog.Int64("wp_id", id),
			slog.Int("pages", result.Pages),
			slog.Int("items", result.Total))
	}
	return result, nil
}

// Refresh asks the backend to resync its cache and invalidates cached lists.
func (s *Service) Refresh(ctx context.Context, creds *apiclient.Credentials) (RefreshResult, error) {
	result, err := s.backend.Refresh(ctx, creds)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("workpackages: refresh: %w", err)
	}
	if _, err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("workpackages cache bump", slog.Any("error", err))
	}
	return result, nil
}

// Search runs the backend global search.
func (s *Service) Search(ctx context.Context, creds *apiclient.Credentials, q string) ([]WorkPackage, error) {
	q = strings.TrimSpace(q)
	if len([]rune(q)) < 2 {
		return nil, ErrQueryTooShort
	}
	items, err := s.backend.Search(ctx, creds, q, s.cfg.SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("workpackages: search: %w", err)
	}
	return items, nil
}
