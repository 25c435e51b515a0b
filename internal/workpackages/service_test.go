package workpackages

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worksla/worksla-web/internal/apiclient"
	"github.com/worksla/worksla-web/internal/paging"
	"github.com/worksla/worksla-web/internal/platform/cache"
)

type stubBackend struct {
	mu          sync.Mutex
	items       []WorkPackage
	total       int
	journals    []ActivityRecord
	journalErr  error
	listCalls   atomic.Int32
	offsets     []int
	refreshes   atomic.Int32
	searchQuery string
}

func (s *stubBackend) List(_ context.Context, _ *apiclient.Credentials, q ListQuery) (ListResponse, error) {
	s.listCalls.Add(1)
	items := s.items
	if len(items) > q.PageSize {
		items = items[:q.PageSize]
	}
	return ListResponse{Items: items, Total: s.total, Page: 1, PageSize: q.PageSize}, nil
}

func (s *stubBackend) Get(_ context.Context, _ *apiclient.Credentials, id int64) (WorkPackage, error) {
	for _, wp := range s.items {
		if wp.ID == id {
			return wp, nil
		}
	}
	return WorkPackage{}, &apiclient.HTTPError{Method: "GET", Path: fmt.Sprintf("/workpackages/%d", id), Status: 404}
}

func (s *stubBackend) JournalPage(_ context.Context, _ *apiclient.Credentials, id int64, offset, pageSize int) (JournalPage, error) {
	s.mu.Lock()
	s.offsets = append(s.offsets, offset)
	s.mu.Unlock()
	if s.journalErr != nil {
		return JournalPage{}, s.journalErr
	}
	end := min(offset+pageSize, len(s.journals))
	var page []ActivityRecord
	if offset < len(s.journals) {
		page = s.journals[offset:end]
	}
	return JournalPage{WPID: id, Journals: page, Total: len(s.journals), Offset: offset, PageSize: pageSize, HasMore: end < len(s.journals)}, nil
}

func (s *stubBackend) Dashboard(context.Context, *apiclient.Credentials) (Dashboard, error) {
	return Dashboard{}, nil
}

func (s *stubBackend) Refresh(context.Context, *apiclient.Credentials) (RefreshResult, error) {
	s.refreshes.Add(1)
	return RefreshResult{Message: "ok", Processed: len(s.items)}, nil
}

func (s *stubBackend) Search(_ context.Context, _ *apiclient.Credentials, q string, _ int) ([]WorkPackage, error) {
	s.searchQuery = q
	return s.items[:1], nil
}

type recordingMetrics struct {
	mu           sync.Mutex
	aggregations []string
	pages        []int
	hits, misses int
}

func (m *recordingMetrics) ObserveAggregation(status string, pages int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aggregations = append(m.aggregations, status)
	m.pages = append(m.pages, pages)
}

func (m *recordingMetrics) ObserveCache(hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.hits++
	} else {
		m.misses++
	}
}

func journals(n int, start time.Time) []ActivityRecord {
	out := make([]ActivityRecord, n)
	for i := range out {
		// Newest first.
		out[i] = ActivityRecord{ID: int64(n - i), CreatedAt: Timestamp{start.Add(time.Duration(n-i) * time.Minute)}}
	}
	return out
}

func newTestCache(t *testing.T) (*cache.Versioned, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewVersioned(client, "worksla:wp", time.Minute), mr
}

func TestListAllCachesPerUserUntilBump(t *testing.T) {
	backend := &stubBackend{items: fixture37(), total: 37}
	versioned, _ := newTestCache(t)
	metrics := &recordingMetrics{}
	svc := NewService(backend, versioned, metrics, nil, Config{FetchSize: 200})
	ctx := context.Background()

	snap, err := svc.ListAll(ctx, nil, "7")
	require.NoError(t, err)
	assert.Len(t, snap.Items, 37)
	assert.False(t, snap.Truncated())

	_, err = svc.ListAll(ctx, nil, "7")
	require.NoError(t, err)
	assert.Equal(t, int32(1), backend.listCalls.Load(), "second call served from cache")

	_, err = svc.ListAll(ctx, nil, "8")
	require.NoError(t, err)
	assert.Equal(t, int32(2), backend.listCalls.Load(), "other users do not share entries")

	_, err = svc.Refresh(ctx, nil)
	require.NoError(t, err)
	_, err = svc.ListAll(ctx, nil, "7")
	require.NoError(t, err)
	assert.Equal(t, int32(3), backend.listCalls.Load(), "refresh invalidates cached lists")
	assert.Equal(t, 1, metrics.hits)
	assert.Equal(t, 3, metrics.misses)
}

func TestListAllFlagsTruncation(t *testing.T) {
	backend := &stubBackend{items: fixture37(), total: 500}
	svc := NewService(backend, nil, nil, nil, Config{FetchSize: 20})

	snap, err := svc.ListAll(context.Background(), nil, "1")
	require.NoError(t, err)
	assert.Len(t, snap.Items, 20)
	assert.Equal(t, 500, snap.BackendTotal)
	assert.True(t, snap.Truncated())
}

func TestDetailAggregatesFullHistory(t *testing.T) {
	created := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	backend := &stubBackend{
		items:    []WorkPackage{{ID: 9, Subject: "x", CreatedAt: Timestamp{created}, UpdatedAt: Timestamp{created.Add(200 * time.Minute)}}},
		journals: journals(120, created),
	}
	metrics := &recordingMetrics{}
	svc := NewService(backend, nil, metrics, nil, Config{})

	detail, err := svc.Detail(context.Background(), nil, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(9), detail.WorkPackage.ID)
	assert.Len(t, detail.History.Items, 120)
	assert.False(t, detail.Truncated())
	assert.Equal(t, []int{0, 50, 100}, backend.offsets)
	require.Len(t, detail.Activities, 120)
	assert.Equal(t, int64(1), detail.Activities[0].Record.ID, "activities are oldest first")
	assert.Equal(t, []string{"complete"}, metrics.aggregations)
}

func TestDetailReportsCappedHistory(t *testing.T) {
	created := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	backend := &stubBackend{
		items:    []WorkPackage{{ID: 9, CreatedAt: Timestamp{created}}},
		journals: journals(1100, created),
	}
	metrics := &recordingMetrics{}
	svc := NewService(backend, nil, metrics, nil, Config{})

	detail, err := svc.Detail(context.Background(), nil, 9)
	require.NoError(t, err)
	assert.Len(t, detail.History.Items, paging.DefaultPageSize*paging.DefaultMaxPages)
	assert.True(t, detail.Truncated())
	assert.Equal(t, paging.DefaultMaxPages, detail.History.Pages)
	assert.Equal(t, []string{"capped_incomplete"}, metrics.aggregations)
}

func TestDetailFailsWhenAnyPageFails(t *testing.T) {
	boom := errors.New("boom")
	backend := &stubBackend{
		items:      []WorkPackage{{ID: 9}},
		journalErr: boom,
	}
	svc := NewService(backend, nil, nil, nil, Config{})

	_, err := svc.Detail(context.Background(), nil, 9)
	require.ErrorIs(t, err, boom)
}

func TestDetailPropagatesNotFound(t *testing.T) {
	svc := NewService(&stubBackend{}, nil, nil, nil, Config{})
	_, err := svc.Detail(context.Background(), nil, 404)
	require.Error(t, err)
	assert.True(t, apiclient.IsNotFound(err))
}

func TestSearchRequiresTwoCharacters(t *testing.T) {
	backend := &stubBackend{items: fixture37()}
	svc := NewService(backend, nil, nil, nil, Config{})

	_, err := svc.Search(context.Background(), nil, " a ")
	require.ErrorIs(t, err, ErrQueryTooShort)

	results, err := svc.Search(context.Background(), nil, " กา ")
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, "กา", backend.searchQuery)
}
