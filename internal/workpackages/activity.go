package workpackages

import (
	"html"
	"html/template"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// ActivityKind classifies a journal entry for display.
type ActivityKind string

// Activity kinds, checked in this order.
const (
	KindStatusChange   ActivityKind = "status-change"
	KindAssigneeChange ActivityKind = "assignee-change"
	KindCreated        ActivityKind = "created"
	KindComment        ActivityKind = "comment"
	KindFieldChange    ActivityKind = "field-change"
)

// StatusChange is the from/to pair of a status transition.
type StatusChange struct {
	From string
	To   string
}

// Activity is a journal entry prepared for rendering.
type Activity struct {
	Index        int
	Record       ActivityRecord
	Kind         ActivityKind
	StatusChange *StatusChange
	NotesHTML    template.HTML
	NotesText    string
}

var (
	notesPolicyOnce sync.Once
	notesPolicy     *bluemonday.Policy
	tagPattern      = regexp.MustCompile(`<[^>]*>`)
	spacePattern    = regexp.MustCompile(`\s+`)
)

func policy() *bluemonday.Policy {
	notesPolicyOnce.Do(func() {
		p := bluemonday.NewPolicy()
		p.AllowElements("br", "p", "strong", "em", "u")
		p.AllowAttrs("href").OnElements("a")
		p.AllowAttrs("target").Matching(regexp.MustCompile(`^_(blank|self)$`)).OnElements("a")
		p.AllowAttrs("rel").OnElements("a")
		p.AllowStandardURLs()
		p.RequireNoFollowOnLinks(false)
		notesPolicy = p
	})
	return notesPolicy
}

// SanitizeNotes keeps only links and basic inline formatting.
func SanitizeNotes(raw string) template.HTML {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	return template.HTML(policy().Sanitize(raw))
}

// PlainText strips all markup and collapses whitespace.
func PlainText(raw string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(html.UnescapeString(stripTags(raw)), " "))
}

func stripTags(raw string) string {
	return tagPattern.ReplaceAllString(raw, " ")
}

// Classify determines the display kind of a record. index is 1-based in
// chronological order.
func Classify(rec ActivityRecord, index int) ActivityKind {
	if findDetail(rec.Details, "status") != nil {
		return KindStatusChange
	}
	if findDetail(rec.Details, "assignee") != nil {
		return KindAssigneeChange
	}
	if index == 1 {
		return KindCreated
	}
	if strings.TrimSpace(PlainText(rec.Notes)) != "" {
		return KindComment
	}
	return KindFieldChange
}

// ExtractStatusChange returns the status transition recorded in details.
func ExtractStatusChange(details []ActivityDetail) *StatusChange {
	d := findDetail(details, "status")
	if d == nil {
		return nil
	}
	change := &StatusChange{From: d.Old(), To: d.New()}
	if change.From == "" {
		change.From = "Unknown"
	}
	if change.To == "" {
		change.To = "Unknown"
	}
	return change
}

func findDetail(details []ActivityDetail, property string) *ActivityDetail {
	for i := range details {
		if strings.EqualFold(strings.TrimSpace(details[i].Property), property) {
			return &details[i]
		}
	}
	return nil
}

// BuildActivities orders records oldest first, numbers them and classifies
// each one.
func BuildActivities(records []ActivityRecord) []Activity {
	ordered := chronological(records)
	out := make([]Activity, 0, len(ordered))
	for i, rec := range ordered {
		index := i + 1
		out = append(out, Activity{
			Index:        index,
			Record:       rec,
			Kind:         Classify(rec, index),
			StatusChange: ExtractStatusChange(rec.Details),
			NotesHTML:    SanitizeNotes(rec.Notes),
			NotesText:    PlainText(rec.Notes),
		})
	}
	return out
}
