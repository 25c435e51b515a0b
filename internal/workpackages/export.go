package workpackages

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"
)

// utf8BOM lets spreadsheet tools detect UTF-8 for Thai text.
const utf8BOM = "\ufeff"

// WriteListCSV serialises work packages in display order.
func WriteListCSV(w io.Writer, items []WorkPackage, loc *time.Location) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"ID", "Subject", "Status", "Priority", "Type", "Assignee", "Project", "Start Date", "Due Date", "Done %", "Created", "Updated"}); err != nil {
		return err
	}
	for _, wp := range items {
		if err := writer.Write([]string{
			strconv.FormatInt(wp.ID, 10),
			wp.Subject,
			wp.Status,
			wp.Priority,
			wp.Type,
			wp.AssigneeName,
			wp.ProjectName,
			formatCSVDate(wp.StartDate, loc),
			formatCSVDate(wp.DueDate, loc),
			strconv.Itoa(wp.Progress()),
			formatCSVTime(wp.CreatedAt, loc),
			formatCSVTime(wp.UpdatedAt, loc),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteActivitiesCSV serialises the activity history with plain-text notes.
func WriteActivitiesCSV(w io.Writer, activities []Activity, loc *time.Location) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"#", "Date", "User", "Kind", "Status From", "Status To", "Changes", "Notes"}); err != nil {
		return err
	}
	for _, act := range activities {
		from, to := "", ""
		if act.StatusChange != nil {
			from, to = act.StatusChange.From, act.StatusChange.To
		}
		if err := writer.Write([]string{
			strconv.Itoa(act.Index),
			formatCSVTime(act.Record.CreatedAt, loc),
			act.Record.UserName,
			string(act.Kind),
			from,
			to,
			describeDetails(act.Record.Details),
			act.NotesText,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func describeDetails(details []ActivityDetail) string {
	parts := make([]string, 0, len(details))
	for _, d := range details {
		switch {
		case d.OldValue != nil && d.NewValue != nil:
			parts = append(parts, d.Property+": "+d.Old()+" -> "+d.New())
		case d.NewValue != nil:
			parts = append(parts, d.Property+": "+d.New())
		case d.OldValue != nil:
			parts = append(parts, d.Property+": "+d.Old()+" -> (none)")
		default:
			parts = append(parts, d.Property)
		}
	}
	return strings.Join(parts, "; ")
}

func formatCSVDate(t Timestamp, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(locOrUTC(loc)).Format("2006-01-02")
}

func formatCSVTime(t Timestamp, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(locOrUTC(loc)).Format("2006-01-02 15:04:05")
}

func locOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
