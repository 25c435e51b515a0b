package workpackages

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidID is returned when a work package id is not a positive integer.
var ErrInvalidID = errors.New("workpackages: invalid id")

// WorkPackage mirrors the backend work package representation.
type WorkPackage struct {
	ID             int64     `json:"wp_id"`
	Subject        string    `json:"subject"`
	Status         string    `json:"status,omitempty"`
	Priority       string    `json:"priority,omitempty"`
	Type           string    `json:"type,omitempty"`
	AssigneeID     *int64    `json:"assignee_id,omitempty"`
	AssigneeName   string    `json:"assignee_name,omitempty"`
	ProjectID      *int64    `json:"project_id,omitempty"`
	ProjectName    string    `json:"project_name,omitempty"`
	StartDate      Timestamp `json:"start_date"`
	DueDate        Timestamp `json:"due_date"`
	DoneRatio      *int      `json:"done_ratio,omitempty"`
	EstimatedHours *float64  `json:"estimated_hours,omitempty"`
	Description    string    `json:"description,omitempty"`
	CreatedAt      Timestamp `json:"created_at"`
	UpdatedAt      Timestamp `json:"updated_at"`
	CachedAt       Timestamp `json:"cached_at"`
	OpenProjectURL string    `json:"openproject_url,omitempty"`
}

// UnmarshalJSON accepts either wp_id or id as the identifier.
func (w *WorkPackage) UnmarshalJSON(data []byte) error {
	type alias WorkPackage
	var payload struct {
		alias
		LegacyID *int64 `json:"id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	*w = WorkPackage(payload.alias)
	if w.ID == 0 && payload.LegacyID != nil {
		w.ID = *payload.LegacyID
	}
	return nil
}

// Overdue reports whether the due date passed while work remains.
func (w WorkPackage) Overdue(now time.Time) bool {
	if w.DueDate.IsZero() {
		return false
	}
	if w.DoneRatio != nil && *w.DoneRatio >= 100 {
		return false
	}
	return w.DueDate.Time.Before(now)
}

// Progress returns done_ratio clamped to 0..100.
func (w WorkPackage) Progress() int {
	if w.DoneRatio == nil {
		return 0
	}
	return min(max(*w.DoneRatio, 0), 100)
}

// ListResponse is one page of the backend work package listing.
type ListResponse struct {
	Items      []WorkPackage `json:"items"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalPages int           `json:"total_pages"`
	HasNext    bool          `json:"has_next"`
	HasPrev    bool          `json:"has_prev"`
}

// ActivityDetail is one field change recorded in a journal entry.
type ActivityDetail struct {
	Property string  `json:"property"`
	OldValue *string `json:"old_value,omitempty"`
	NewValue *string `json:"new_value,omitempty"`
}

// UnmarshalJSON accepts property/old_value/new_value, field/from/to and
// OpenProject's formatted {raw, html} detail lines.
func (d *ActivityDetail) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*d = parseDetailText(text)
		return nil
	}
	d.Property = firstString(raw, "property", "field", "fieldLabel", "name")
	d.OldValue = optionalString(raw, "old_value", "oldValue", "fromLabel", "from")
	d.NewValue = optionalString(raw, "new_value", "newValue", "toLabel", "to")
	if d.Property == "" {
		if text := firstString(raw, "raw", "html"); text != "" {
			*d = parseDetailText(stripTags(text))
		}
	}
	return nil
}

// Old returns the previous value or an empty string.
func (d ActivityDetail) Old() string {
	if d.OldValue == nil {
		return ""
	}
	return *d.OldValue
}

// New returns the new value or an empty string.
func (d ActivityDetail) New() string {
	if d.NewValue == nil {
		return ""
	}
	return *d.NewValue
}

// ActivityRecord is one journal entry of a work package.
type ActivityRecord struct {
	ID        int64            `json:"id"`
	UserID    *int64           `json:"user_id,omitempty"`
	UserName  string           `json:"user_name"`
	CreatedAt Timestamp        `json:"created_at"`
	Version   int              `json:"version,omitempty"`
	Notes     string           `json:"notes,omitempty"`
	Details   []ActivityDetail `json:"details"`
}

// JournalPage is one page of activity records.
type JournalPage struct {
	WPID     int64            `json:"wp_id"`
	Journals []ActivityRecord `json:"journals"`
	Total    int              `json:"total"`
	Offset   int              `json:"offset"`
	PageSize int              `json:"page_size"`
	HasMore  bool             `json:"has_more"`
}

// UnmarshalJSON reads records from "journals", falling back to "activities".
func (p *JournalPage) UnmarshalJSON(data []byte) error {
	type alias JournalPage
	var payload struct {
		alias
		Activities []ActivityRecord `json:"activities"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	*p = JournalPage(payload.alias)
	if p.Journals == nil {
		p.Journals = payload.Activities
	}
	return nil
}

// Stats summarises work packages on the dashboard.
type Stats struct {
	Total        int            `json:"total"`
	ByStatus     map[string]int `json:"by_status"`
	ByPriority   map[string]int `json:"by_priority"`
	OverdueCount int            `json:"overdue_count"`
	DueSoonCount int            `json:"due_soon_count"`
}

// Dashboard is the backend dashboard payload.
type Dashboard struct {
	Stats         Stats         `json:"stats"`
	Overdue       []WorkPackage `json:"overdue"`
	DueSoon       []WorkPackage `json:"due_soon"`
	RecentUpdates []WorkPackage `json:"recent_updates"`
}

// RefreshResult is returned by the backend refresh endpoint.
type RefreshResult struct {
	Message   string `json:"message"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
}

// ParseID validates a path id.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, raw)
	}
	return id, nil
}

// Timestamp tolerates the date formats the backend emits, including nulls.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses value using the accepted layouts. Values without a
// zone are read as UTC.
func ParseTimestamp(value string) (Timestamp, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Timestamp{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("workpackages: unrecognised timestamp %q", value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	parsed, err := ParseTimestamp(value)
	if err != nil {
		// Unknown formats are treated as missing rather than failing the page.
		*t = Timestamp{}
		return nil
	}
	*t = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func firstString(raw map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		if v := scalarString(raw[key]); v != nil && *v != "" {
			return *v
		}
	}
	return ""
}

func optionalString(raw map[string]json.RawMessage, keys ...string) *string {
	for _, key := range keys {
		if v := scalarString(raw[key]); v != nil {
			return v
		}
	}
	return nil
}

// scalarString renders a JSON scalar as text; null and absent yield nil.
func scalarString(data json.RawMessage) *string {
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return &s
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		out := n.String()
		return &out
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		out := strconv.FormatBool(b)
		return &out
	}
	out := string(data)
	return &out
}

// parseDetailText understands "X changed from A to B" and "X set to B".
func parseDetailText(text string) ActivityDetail {
	text = strings.TrimSpace(strings.ReplaceAll(text, "*", ""))
	if idx := strings.Index(text, " changed from "); idx > 0 {
		rest := text[idx+len(" changed from "):]
		if to := strings.LastIndex(rest, " to "); to >= 0 {
			oldValue := strings.TrimSpace(rest[:to])
			newValue := strings.TrimSpace(rest[to+len(" to "):])
			return ActivityDetail{Property: strings.TrimSpace(text[:idx]), OldValue: &oldValue, NewValue: &newValue}
		}
	}
	if idx := strings.Index(text, " set to "); idx > 0 {
		newValue := strings.TrimSpace(text[idx+len(" set to "):])
		return ActivityDetail{Property: strings.TrimSpace(text[:idx]), NewValue: &newValue}
	}
	return ActivityDetail{Property: text}
}
