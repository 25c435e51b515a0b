// Package reports renders SLA and productivity reports from the backend.
package reports

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/worksla/worksla-web/internal/workpackages"
)

// Grouping options for the productivity report.
const (
	GroupByAssignee = "assignee"
	GroupByProject  = "project"
)

// DefaultRange is used when no dates are supplied.
const DefaultRange = 30 * 24 * time.Hour

// ErrInvalidFilter is returned for malformed report filters.
var ErrInvalidFilter = errors.New("reports: invalid filter")

// Period is the inclusive date range a report covers.
type Period struct {
	Start workpackages.Timestamp `json:"start"`
	End   workpackages.Timestamp `json:"end"`
}

// SLAMetrics are the headline SLA numbers.
type SLAMetrics struct {
	Total         int     `json:"total"`
	OnTime        int     `json:"on_time"`
	Overdue       int     `json:"overdue"`
	SLAPercentage float64 `json:"sla_percentage"`
}

// Unmeasured counts work packages without both a due date and an update.
func (m SLAMetrics) Unmeasured() int {
	return max(m.Total-m.OnTime-m.Overdue, 0)
}

// SLAReport is the backend SLA report payload.
type SLAReport struct {
	Period  Period     `json:"period"`
	Metrics SLAMetrics `json:"metrics"`
}

// ProductivityRow is one group of the productivity report.
type ProductivityRow struct {
	Name       string `json:"name"`
	Total      int    `json:"total"`
	Completed  int    `json:"completed"`
	InProgress int    `json:"in_progress"`
	Overdue    int    `json:"overdue"`
}

// CompletionRate is completed/total as a percentage with one decimal.
func (r ProductivityRow) CompletionRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(int(float64(r.Completed)/float64(r.Total)*1000+0.5)) / 10
}

// ProductivityReport is the backend productivity report payload.
type ProductivityReport struct {
	Period  Period            `json:"period"`
	GroupBy string            `json:"group_by"`
	Data    []ProductivityRow `json:"data"`
}

// Filters select the report range and scope.
type Filters struct {
	From       time.Time
	To         time.Time
	AssigneeID int64
	ProjectID  int64
	GroupBy    string
}

// ParseFilters reads from, to, assignee_id, project_id and group_by. Dates
// default to the DefaultRange ending today in loc.
func ParseFilters(get func(string) string, now time.Time, loc *time.Location) (Filters, error) {
	if loc == nil {
		loc = time.UTC
	}
	today := time.Date(now.In(loc).Year(), now.In(loc).Month(), now.In(loc).Day(), 0, 0, 0, 0, loc)
	f := Filters{To: today, From: today.Add(-DefaultRange), GroupBy: GroupByAssignee}

	var err error
	if raw := strings.TrimSpace(get("from")); raw != "" {
		if f.From, err = time.ParseInLocation("2006-01-02", raw, loc); err != nil {
			return Filters{}, fmt.Errorf("%w: from %q", ErrInvalidFilter, raw)
		}
	}
	if raw := strings.TrimSpace(get("to")); raw != "" {
		if f.To, err = time.ParseInLocation("2006-01-02", raw, loc); err != nil {
			return Filters{}, fmt.Errorf("%w: to %q", ErrInvalidFilter, raw)
		}
	}
	if f.To.Before(f.From) {
		return Filters{}, fmt.Errorf("%w: range ends before it starts", ErrInvalidFilter)
	}
	if f.AssigneeID, err = optionalID(get("assignee_id")); err != nil {
		return Filters{}, fmt.Errorf("%w: assignee_id", ErrInvalidFilter)
	}
	if f.ProjectID, err = optionalID(get("project_id")); err != nil {
		return Filters{}, fmt.Errorf("%w: project_id", ErrInvalidFilter)
	}
	switch g := strings.TrimSpace(get("group_by")); g {
	case "", GroupByAssignee:
	case GroupByProject:
		f.GroupBy = GroupByProject
	default:
		return Filters{}, fmt.Errorf("%w: group_by %q", ErrInvalidFilter, g)
	}
	return f, nil
}

// RangeEnd is the exclusive end of the To day, sent to the backend.
func (f Filters) RangeEnd() time.Time {
	return f.To.Add(24*time.Hour - time.Second)
}

func optionalID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, ErrInvalidFilter
	}
	return id, nil
}
