package workpackages

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

// StatusInterval is a span of time spent in one status.
type StatusInterval struct {
	Status     string
	Start      time.Time
	End        time.Time
	Duration   time.Duration
	Percentage float64
}

// StatusSummary totals the time spent in a status across intervals.
type StatusSummary struct {
	Status      string
	Total       time.Duration
	Percentage  float64
	Occurrences int
}

// Timeline is the status history of a work package.
type Timeline struct {
	Intervals     []StatusInterval
	Summary       []StatusSummary
	Start         time.Time
	End           time.Time
	Total         time.Duration
	CurrentStatus string
}

// Elapsed formats the interval duration.
func (i StatusInterval) Elapsed() string { return FormatDuration(i.Duration) }

// Elapsed formats the status total.
func (s StatusSummary) Elapsed() string { return FormatDuration(s.Total) }

// Elapsed formats the whole span.
func (t Timeline) Elapsed() string { return FormatDuration(t.Total) }

// InitialStatus is assumed when no transition names the starting status.
const InitialStatus = "New"

// BuildTimeline derives status intervals from status-change records between
// createdAt and updatedAt. Missing bounds fall back to now.
func BuildTimeline(records []ActivityRecord, createdAt, updatedAt, now time.Time) Timeline {
	type event struct {
		at   time.Time
		from string
		to   string
	}
	var events []event
	for _, rec := range chronological(records) {
		change := ExtractStatusChange(rec.Details)
		if change == nil || rec.CreatedAt.IsZero() {
			continue
		}
		events = append(events, event{at: rec.CreatedAt.Time, from: change.From, to: change.To})
	}

	start := createdAt
	if start.IsZero() {
		start = now
	}
	end := updatedAt
	if end.IsZero() {
		end = now
	}

	status := InitialStatus
	if len(events) > 0 && events[0].from != "" {
		status = events[0].from
	}
	cursor := start
	var intervals []StatusInterval
	for _, ev := range events {
		intervals = append(intervals, StatusInterval{Status: status, Start: cursor, End: ev.at, Duration: ev.at.Sub(cursor)})
		status = ev.to
		cursor = ev.at
	}
	intervals = append(intervals, StatusInterval{Status: status, Start: cursor, End: end, Duration: end.Sub(cursor)})

	total := end.Sub(start)
	summaries := map[string]*StatusSummary{}
	var order []string
	for i := range intervals {
		intervals[i].Percentage = percentOf(intervals[i].Duration, total)
		s, ok := summaries[intervals[i].Status]
		if !ok {
			s = &StatusSummary{Status: intervals[i].Status}
			summaries[intervals[i].Status] = s
			order = append(order, intervals[i].Status)
		}
		s.Total += intervals[i].Duration
		s.Occurrences++
	}
	summary := make([]StatusSummary, 0, len(order))
	for _, name := range order {
		s := summaries[name]
		s.Percentage = percentOf(s.Total, total)
		summary = append(summary, *s)
	}

	return Timeline{
		Intervals:     intervals,
		Summary:       summary,
		Start:         start,
		End:           end,
		Total:         total,
		CurrentStatus: status,
	}
}

// percentOf rounds part/total to one decimal place.
func percentOf(part, total time.Duration) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}

// chronological returns records oldest first without touching the input.
// Undated records keep their relative order after all dated ones.
func chronological(records []ActivityRecord) []ActivityRecord {
	ordered := slices.Clone(records)
	slices.SortStableFunc(ordered, compareCreated)
	return ordered
}

func compareCreated(a, b ActivityRecord) int {
	switch az, bz := a.CreatedAt.IsZero(), b.CreatedAt.IsZero(); {
	case az && bz:
		return 0
	case az:
		return 1
	case bz:
		return -1
	}
	return a.CreatedAt.Compare(b.CreatedAt.Time)
}

// FormatDuration renders d as "2d 3h 15m", "3h 45m" or "4m 30s". Minutes are
// dropped from spans of a week or more and seconds from spans of five
// minutes or more.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		return "0s"
	}
	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	var parts []string
	switch {
	case days > 0:
		parts = append(parts, fmt.Sprintf("%dd", days))
		if h := hours % 24; h > 0 {
			parts = append(parts, fmt.Sprintf("%dh", h))
		}
		if m := minutes % 60; m > 0 && days < 7 {
			parts = append(parts, fmt.Sprintf("%dm", m))
		}
	case hours > 0:
		parts = append(parts, fmt.Sprintf("%dh", hours))
		if m := minutes % 60; m > 0 {
			parts = append(parts, fmt.Sprintf("%dm", m))
		}
	case minutes > 0:
		parts = append(parts, fmt.Sprintf("%dm", minutes))
		if s := seconds % 60; s > 0 && minutes < 5 {
			parts = append(parts, fmt.Sprintf("%ds", s))
		}
	default:
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}
	return strings.Join(parts, " ")
}
