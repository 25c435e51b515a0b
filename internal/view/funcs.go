package view

import (
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var statusClasses = map[string]string{
	"new":            "badge-info",
	"in progress":    "badge-warning",
	"กำลังดำเนินการ": "badge-warning",
	"รับเรื่อง":      "badge-info",
	"ดำเนินการเสร็จ": "badge-success",
	"completed":      "badge-success",
	"resolved":       "badge-success",
	"ปิดงาน":         "badge-muted",
	"closed":         "badge-muted",
	"rejected":       "badge-danger",
	"on hold":        "badge-muted",
}

var priorityClasses = map[string]string{
	"immediate": "badge-danger",
	"urgent":    "badge-danger",
	"high":      "badge-warning",
	"normal":    "badge-info",
	"low":       "badge-muted",
}

func funcMap(locale Locale) template.FuncMap {
	printer := message.NewPrinter(locale.Language)
	return template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.In(locale.Location).Format("02 Jan 2006")
		},
		"formatDateTime": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.In(locale.Location).Format("02 Jan 2006 15:04")
		},
		"isoDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.In(locale.Location).Format("2006-01-02")
		},
		"number": func(v any) string {
			return printer.Sprint(number.Decimal(v))
		},
		"percent": func(v float64) string {
			return printer.Sprintf("%.1f%%", v)
		},
		"statusClass": func(status string) string {
			return classFor(statusClasses, status)
		},
		"priorityClass": func(priority string) string {
			return classFor(priorityClasses, priority)
		},
		"add": func(a, b int) int { return a + b },
		"sub": func(a, b int) int { return a - b },
		"deref": func(p *int64) int64 {
			if p == nil {
				return 0
			}
			return *p
		},
		"withQuery": withQuery,
		"selected": func(current, value string) template.HTMLAttr {
			if current == value {
				return "selected"
			}
			return ""
		},
		"checked": func(v bool) template.HTMLAttr {
			if v {
				return "checked"
			}
			return ""
		},
		"hasRole": func(role string, roles ...string) bool {
			for _, r := range roles {
				if r == role {
					return true
				}
			}
			return false
		},
	}
}

func classFor(table map[string]string, key string) string {
	if class, ok := table[strings.ToLower(strings.TrimSpace(key))]; ok {
		return class
	}
	return "badge-default"
}

// withQuery rewrites one query parameter of path, keeping the others.
func withQuery(path string, key string, value any) string {
	u, err := url.Parse(path)
	if err != nil {
		return path
	}
	q := u.Query()
	s := fmt.Sprint(value)
	if s == "" {
		q.Del(key)
	} else {
		q.Set(key, s)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
