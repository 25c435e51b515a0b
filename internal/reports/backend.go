package reports

import (
	"context"
	"net/url"
	"strconv"

	"github.com/worksla/worksla-web/internal/apiclient"
)

// Backend fetches report payloads.
type Backend interface {
	SLA(ctx context.Context, creds *apiclient.Credentials, f Filters) (SLAReport, error)
	Productivity(ctx context.Context, creds *apiclient.Credentials, f Filters) (ProductivityReport, error)
}

// APIBackend implements Backend over the HTTP client.
type APIBackend struct {
	client *apiclient.Client
}

// NewAPIBackend builds the report backend.
func NewAPIBackend(client *apiclient.Client) *APIBackend {
	return &APIBackend{client: client}
}

const backendTimeLayout = "2006-01-02T15:04:05"

// SLA implements Backend.
func (b *APIBackend) SLA(ctx context.Context, creds *apiclient.Credentials, f Filters) (SLAReport, error) {
	q := url.Values{}
	q.Set("from", f.From.UTC().Format(backendTimeLayout))
	q.Set("to", f.RangeEnd().UTC().Format(backendTimeLayout))
	if f.AssigneeID > 0 {
		q.Set("assignee_id", strconv.FormatInt(f.AssigneeID, 10))
	}
	if f.ProjectID > 0 {
		q.Set("project_id", strconv.FormatInt(f.ProjectID, 10))
	}
	var out SLAReport
	err := b.client.GetJSON(ctx, creds, "/reports/sla", q, &out)
	return out, err
}

// Productivity implements Backend.
func (b *APIBackend) Productivity(ctx context.Context, creds *apiclient.Credentials, f Filters) (ProductivityReport, error) {
	q := url.Values{}
	q.Set("start_date", f.From.UTC().Format(backendTimeLayout))
	q.Set("end_date", f.RangeEnd().UTC().Format(backendTimeLayout))
	q.Set("group_by", f.GroupBy)
	var out ProductivityReport
	err := b.client.GetJSON(ctx, creds, "/reports/productivity", q, &out)
	return out, err
}

