package workpackages

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/worksla/worksla-web/internal/shared"
)

// SortKey selects the ordering of the list view.
type SortKey string

// Supported sort keys.
const (
	SortCreatedDesc SortKey = "created_desc"
	SortCreatedAsc  SortKey = "created_asc"
	SortUpdatedDesc SortKey = "updated_desc"
	SortUpdatedAsc  SortKey = "updated_asc"
	SortIDDesc      SortKey = "id_desc"
	SortIDAsc       SortKey = "id_asc"
	SortSubjectAsc  SortKey = "subject_asc"
	SortSubjectDesc SortKey = "subject_desc"
)

// DefaultSort is used when no or an unknown key is supplied.
const DefaultSort = SortCreatedDesc

// SortOption is a labelled sort key for the UI.
type SortOption struct {
	Key   SortKey
	Label string
}

// SortOptions lists the keys in menu order.
var SortOptions = []SortOption{
	{SortCreatedDesc, "Created (newest)"},
	{SortCreatedAsc, "Created (oldest)"},
	{SortUpdatedDesc, "Updated (newest)"},
	{SortUpdatedAsc, "Updated (oldest)"},
	{SortIDDesc, "ID (high to low)"},
	{SortIDAsc, "ID (low to high)"},
	{SortSubjectAsc, "Subject (A-Z)"},
	{SortSubjectDesc, "Subject (Z-A)"},
}

// ParseSortKey maps raw input to a known key, falling back to DefaultSort.
func ParseSortKey(raw string) SortKey {
	key := SortKey(strings.TrimSpace(raw))
	for _, opt := range SortOptions {
		if opt.Key == key {
			return key
		}
	}
	return DefaultSort
}

// Status names used by the status counters.
const (
	StatusNew        = "New"
	StatusInProgress = "กำลังดำเนินการ"
	StatusCompleted  = "ดำเนินการเสร็จ"
	StatusClosed     = "ปิดงาน"
)

// Criteria narrows the list. Empty fields and "all" impose no constraint.
type Criteria struct {
	Search   string
	Status   string
	Priority string
	Type     string
	Sort     SortKey
}

// Active reports whether any filter is set.
func (c Criteria) Active() bool {
	return c.Search != "" || constrained(c.Status) || constrained(c.Priority) || constrained(c.Type)
}

// Matches reports whether wp satisfies every active criterion.
func (c Criteria) Matches(wp WorkPackage) bool {
	if q := strings.TrimSpace(c.Search); q != "" {
		subject := strings.ToLower(wp.Subject)
		if !strings.Contains(subject, strings.ToLower(q)) && !strings.Contains(strconv.FormatInt(wp.ID, 10), q) {
			return false
		}
	}
	if constrained(c.Status) && wp.Status != c.Status {
		return false
	}
	if constrained(c.Priority) && wp.Priority != c.Priority {
		return false
	}
	if constrained(c.Type) && wp.Type != c.Type {
		return false
	}
	return true
}

func constrained(v string) bool {
	return v != "" && v != "all"
}

// Sorter orders work packages; subjects are compared with a language-aware collator.
type Sorter struct {
	lang language.Tag
}

// NewSorter returns a Sorter collating subjects for lang.
func NewSorter(lang language.Tag) Sorter {
	return Sorter{lang: lang}
}

// Sort orders items in place with a stable sort.
func (s Sorter) Sort(items []WorkPackage, key SortKey) {
	var cmp func(a, b WorkPackage) int
	switch ParseSortKey(string(key)) {
	case SortCreatedAsc:
		cmp = func(a, b WorkPackage) int { return compareTime(a.CreatedAt.Time, b.CreatedAt.Time) }
	case SortUpdatedDesc:
		cmp = func(a, b WorkPackage) int { return compareTime(b.UpdatedAt.Time, a.UpdatedAt.Time) }
	case SortUpdatedAsc:
		cmp = func(a, b WorkPackage) int { return compareTime(a.UpdatedAt.Time, b.UpdatedAt.Time) }
	case SortIDDesc:
		cmp = func(a, b WorkPackage) int { return compareInt(b.ID, a.ID) }
	case SortIDAsc:
		cmp = func(a, b WorkPackage) int { return compareInt(a.ID, b.ID) }
	case SortSubjectAsc, SortSubjectDesc:
		// Collators keep internal buffers and are not safe to share.
		col := collate.New(s.lang)
		if ParseSortKey(string(key)) == SortSubjectAsc {
			cmp = func(a, b WorkPackage) int { return col.CompareString(a.Subject, b.Subject) }
		} else {
			cmp = func(a, b WorkPackage) int { return col.CompareString(b.Subject, a.Subject) }
		}
	default:
		cmp = func(a, b WorkPackage) int { return compareTime(b.CreatedAt.Time, a.CreatedAt.Time) }
	}
	slices.SortStableFunc(items, cmp)
}

func compareTime(a, b time.Time) int {
	return a.Compare(b)
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Window returns the 1-based page of length size from items. Pages outside
// the collection yield an empty slice.
func Window[T any](items []T, page, size int) []T {
	if page < 1 || size <= 0 {
		return []T{}
	}
	start := (page - 1) * size
	if start >= len(items) {
		return []T{}
	}
	end := min(start+size, len(items))
	return items[start:end]
}

// StatusCounts are the headline counters above the list.
type StatusCounts struct {
	Total      int
	New        int
	InProgress int
	Completed  int
	Closed     int
}

// FilterOptions are the distinct values offered in the filter menus, in
// first-seen order.
type FilterOptions struct {
	Statuses   []string
	Priorities []string
	Types      []string
}

// ListView is everything the list page renders.
type ListView struct {
	Criteria   Criteria
	Items      []WorkPackage
	Matched    int
	Source     int
	Pagination shared.Pagination
	Counts     StatusCounts
	Options    FilterOptions

	// Truncated is set when the backend holds more items than were fetched.
	Truncated    bool
	BackendTotal int
}

// BuildListView filters, sorts and windows source without mutating it.
func BuildListView(source []WorkPackage, criteria Criteria, page, size int, sorter Sorter) ListView {
	criteria.Sort = ParseSortKey(string(criteria.Sort))
	filtered := make([]WorkPackage, 0, len(source))
	for _, wp := range source {
		if criteria.Matches(wp) {
			filtered = append(filtered, wp)
		}
	}
	sorter.Sort(filtered, criteria.Sort)

	pagination := shared.NewPagination(page, size, len(filtered))
	return ListView{
		Criteria:   criteria,
		Items:      Window(filtered, pagination.Page, pagination.PerPage),
		Matched:    len(filtered),
		Source:     len(source),
		Pagination: pagination,
		Counts:     CountStatuses(source),
		Options:    DistinctOptions(source),
	}
}

// CountStatuses tallies the headline statuses over the full source list.
func CountStatuses(items []WorkPackage) StatusCounts {
	counts := StatusCounts{Total: len(items)}
	for _, wp := range items {
		switch wp.Status {
		case StatusNew:
			counts.New++
		case StatusInProgress:
			counts.InProgress++
		case StatusCompleted:
			counts.Completed++
		case StatusClosed:
			counts.Closed++
		}
	}
	return counts
}

// DistinctOptions collects non-empty statuses, priorities and types.
func DistinctOptions(items []WorkPackage) FilterOptions {
	var opts FilterOptions
	seen := map[string]struct{}{}
	add := func(dst *[]string, kind, value string) {
		if value == "" {
			return
		}
		k := kind + "\x00" + value
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		*dst = append(*dst, value)
	}
	for _, wp := range items {
		add(&opts.Statuses, "s", wp.Status)
		add(&opts.Priorities, "p", wp.Priority)
		add(&opts.Types, "t", wp.Type)
	}
	return opts
}
