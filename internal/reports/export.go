package reports

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

// WriteCSV writes the SLA summary followed by the productivity table. The
// output starts with a UTF-8 BOM so spreadsheet tools pick the encoding.
func WriteCSV(w io.Writer, b Bundle) error {
	if _, err := io.WriteString(w, "\ufeff"); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	rows := [][]string{
		{"Report", "SLA"},
		{"From", b.Filters.From.Format(time.DateOnly)},
		{"To", b.Filters.To.Format(time.DateOnly)},
		{"Total", strconv.Itoa(b.SLA.Metrics.Total)},
		{"On Time", strconv.Itoa(b.SLA.Metrics.OnTime)},
		{"Overdue", strconv.Itoa(b.SLA.Metrics.Overdue)},
		{"SLA %", strconv.FormatFloat(b.SLA.Metrics.SLAPercentage, 'f', 2, 64)},
		{},
		{groupHeading(b.Productivity.GroupBy), "Total", "Completed", "In Progress", "Overdue", "Completion %"},
	}
	for _, r := range b.Productivity.Data {
		rows = append(rows, []string{
			r.Name,
			strconv.Itoa(r.Total),
			strconv.Itoa(r.Completed),
			strconv.Itoa(r.InProgress),
			strconv.Itoa(r.Overdue),
			strconv.FormatFloat(r.CompletionRate(), 'f', 1, 64),
		})
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func groupHeading(groupBy string) string {
	if groupBy == GroupByProject {
		return "Project"
	}
	return "Assignee"
}
