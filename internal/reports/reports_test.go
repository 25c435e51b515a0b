package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worksla/worksla-web/internal/apiclient"
)

var bangkok = time.FixedZone("ICT", 7*3600)

func values(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestParseFiltersDefaultsToLastThirtyDays(t *testing.T) {
	now := time.Date(2025, 6, 15, 22, 30, 0, 0, time.UTC) // 05:30 on the 16th in Bangkok
	f, err := ParseFilters(values(nil), now, bangkok)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-16", f.To.Format(time.DateOnly))
	assert.Equal(t, "2025-05-17", f.From.Format(time.DateOnly))
	assert.Equal(t, GroupByAssignee, f.GroupBy)
	assert.Equal(t, "2025-06-16T23:59:59", f.RangeEnd().Format("2006-01-02T15:04:05"))
}

func TestParseFiltersRejectsBadInput(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	cases := map[string]map[string]string{
		"bad date":       {"from": "15/06/2025"},
		"reversed range": {"from": "2025-06-10", "to": "2025-06-01"},
		"bad assignee":   {"assignee_id": "abc"},
		"negative":       {"project_id": "-4"},
		"bad grouping":   {"group_by": "team"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFilters(values(in), now, time.UTC)
			require.ErrorIs(t, err, ErrInvalidFilter)
		})
	}
}

func TestParseFiltersReadsScope(t *testing.T) {
	f, err := ParseFilters(values(map[string]string{
		"from": "2025-01-01", "to": "2025-01-31", "assignee_id": "12", "project_id": "3", "group_by": "project",
	}), time.Now(), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, int64(12), f.AssigneeID)
	assert.Equal(t, int64(3), f.ProjectID)
	assert.Equal(t, GroupByProject, f.GroupBy)
}

func TestCompletionRate(t *testing.T) {
	assert.Equal(t, 0.0, ProductivityRow{}.CompletionRate())
	assert.Equal(t, 33.3, ProductivityRow{Total: 3, Completed: 1}.CompletionRate())
	assert.Equal(t, 100.0, ProductivityRow{Total: 4, Completed: 4}.CompletionRate())
}

type stubBackend struct {
	sla     SLAReport
	prod    ProductivityReport
	slaErr  error
	prodErr error
}

func (s *stubBackend) SLA(_ context.Context, _ *apiclient.Credentials, _ Filters) (SLAReport, error) {
	return s.sla, s.slaErr
}

func (s *stubBackend) Productivity(_ context.Context, _ *apiclient.Credentials, _ Filters) (ProductivityReport, error) {
	return s.prod, s.prodErr
}

func TestServiceLoadCombinesReports(t *testing.T) {
	backend := &stubBackend{
		sla:  SLAReport{Metrics: SLAMetrics{Total: 10, OnTime: 7, Overdue: 2, SLAPercentage: 77.78}},
		prod: ProductivityReport{GroupBy: GroupByAssignee, Data: []ProductivityRow{{Name: "Somchai", Total: 5, Completed: 4}}},
	}
	svc := NewService(backend, nil)
	b, err := svc.Load(context.Background(), nil, Filters{GroupBy: GroupByAssignee})
	require.NoError(t, err)
	assert.Equal(t, 1, b.SLA.Metrics.Unmeasured())
	require.Len(t, b.Productivity.Data, 1)
	assert.False(t, b.GeneratedAt.IsZero())
}

func TestServiceLoadFailsWhenEitherReportFails(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewService(&stubBackend{prodErr: boom}, nil).Load(context.Background(), nil, Filters{})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "productivity report")

	_, err = NewService(&stubBackend{slaErr: &apiclient.HTTPError{Status: 500}}, nil).Load(context.Background(), nil, Filters{})
	assert.Equal(t, 500, apiclient.StatusOf(err))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, Bundle{
		Filters: Filters{From: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), To: time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)},
		SLA:     SLAReport{Metrics: SLAMetrics{Total: 4, OnTime: 3, Overdue: 1, SLAPercentage: 75}},
		Productivity: ProductivityReport{GroupBy: GroupByProject, Data: []ProductivityRow{
			{Name: "งานซ่อม, อาคาร A", Total: 3, Completed: 1, InProgress: 1, Overdue: 1},
		}},
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(buf.String(), "\ufeff"))

	// Blank separator lines are skipped by the reader.
	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(buf.String(), "\ufeff")))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"SLA %", "75.00"}, rows[6])
	assert.Equal(t, []string{"Project", "Total", "Completed", "In Progress", "Overdue", "Completion %"}, rows[7])
	assert.Equal(t, []string{"งานซ่อม, อาคาร A", "3", "1", "1", "1", "33.3"}, rows[8])
}
