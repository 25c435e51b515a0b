package workpackages

import (
	"context"
	"net/url"
	"strconv"

	"github.com/worksla/worksla-web/internal/apiclient"
)

// ListQuery carries the server-side list parameters.
type ListQuery struct {
	Page       int
	PageSize   int
	Status     string
	Priority   string
	Type       string
	AssigneeID int64
	ProjectID  int64
	Search     string
	SortBy     string
	SortOrder  string
}

func (q ListQuery) values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(q.PageSize))
	}
	setIf(v, "status", q.Status)
	setIf(v, "priority", q.Priority)
	setIf(v, "type", q.Type)
	setIf(v, "search", q.Search)
	setIf(v, "sort_by", q.SortBy)
	setIf(v, "sort_order", q.SortOrder)
	if q.AssigneeID > 0 {
		v.Set("assignee_id", strconv.FormatInt(q.AssigneeID, 10))
	}
	if q.ProjectID > 0 {
		v.Set("project_id", strconv.FormatInt(q.ProjectID, 10))
	}
	return v
}

func setIf(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

// Backend is the subset of the WorkSLA API used for work packages.
type Backend interface {
	List(ctx context.Context, creds *apiclient.Credentials, q ListQuery) (ListResponse, error)
	Get(ctx context.Context, creds *apiclient.Credentials, id int64) (WorkPackage, error)
	JournalPage(ctx context.Context, creds *apiclient.Credentials, id int64, offset, pageSize int) (JournalPage, error)
	Dashboard(ctx context.Context, creds *apiclient.Credentials) (Dashboard, error)
	Refresh(ctx context.Context, creds *apiclient.Credentials) (RefreshResult, error)
	Search(ctx context.Context, creds *apiclient.Credentials, q string, limit int) ([]WorkPackage, error)
}

// APIBackend implements Backend over the HTTP client.
type APIBackend struct {
	client          *apiclient.Client
	journalResource string
}

// NewAPIBackend builds the backend adapter. journalResource names the paged
// history sub-resource, "journals" unless the deployment exposes "activities".
func NewAPIBackend(client *apiclient.Client, journalResource string) *APIBackend {
	if journalResource == "" {
		journalResource = "journals"
	}
	return &APIBackend{client: client, journalResource: journalResource}
}

// List implements Backend.
func (b *APIBackend) List(ctx context.Context, creds *apiclient.Credentials, q ListQuery) (ListResponse, error) {
	var out ListResponse
	err := b.client.GetJSON(ctx, creds, "/workpackages/", q.values(), &out)
	return out, err
}

// Get implements Backend.
func (b *APIBackend) Get(ctx context.Context, creds *apiclient.Credentials, id int64) (WorkPackage, error) {
	var out WorkPackage
	err := b.client.GetJSON(ctx, creds, "/workpackages/"+strconv.FormatInt(id, 10), nil, &out)
	return out, err
}

// JournalPage implements Backend.
func (b *APIBackend) JournalPage(ctx context.Context, creds *apiclient.Credentials, id int64, offset, pageSize int) (JournalPage, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("page_size", strconv.Itoa(pageSize))
	var out JournalPage
	err := b.client.GetJSON(ctx, creds, "/workpackages/"+strconv.FormatInt(id, 10)+"/"+b.journalResource, q, &out)
	return out, err
}

// Dashboard implements Backend.
func (b *APIBackend) Dashboard(ctx context.Context, creds *apiclient.Credentials) (Dashboard, error) {
	var out Dashboard
	err := b.client.GetJSON(ctx, creds, "/workpackages/dashboard", nil, &out)
	return out, err
}

// Refresh implements Backend.
func (b *APIBackend) Refresh(ctx context.Context, creds *apiclient.Credentials) (RefreshResult, error) {
	var out RefreshResult
	err := b.client.PostJSON(ctx, creds, "/workpackages/refresh", nil, &out)
	return out, err
}

// Search implements Backend.
func (b *APIBackend) Search(ctx context.Context, creds *apiclient.Credentials, q string, limit int) ([]WorkPackage, error) {
	v := url.Values{}
	v.Set("q", q)
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	var out []WorkPackage
	err := b.client.GetJSON(ctx, creds, "/search/", v, &out)
	return out, err
}
