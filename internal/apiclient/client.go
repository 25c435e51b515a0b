// Package apiclient talks to the WorkSLA backend REST API on behalf of a
// signed-in dashboard user.
package apiclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"
)

const (
	// LoginPath authenticates a user.
	LoginPath = "/auth/login"
	// RefreshPath renews an expired access cookie.
	RefreshPath = "/auth/refresh"
	// LogoutPath clears backend cookies.
	LogoutPath = "/auth/logout"
	// MePath describes the current user.
	MePath = "/auth/me"
	// HealthPath reports backend liveness.
	HealthPath = "/health"
)

// Refresh outcomes reported to the Observer.
const (
	RefreshOK      = "ok"
	RefreshFailed  = "failed"
	RefreshShared  = "shared"
	RefreshSkipped = "skipped"
)

// Observer receives outbound call instrumentation.
type Observer interface {
	ObserveUpstream(endpoint string, status int, err error, elapsed time.Duration)
	ObserveRefresh(result string)
	ObserveAuthExpired()
}

// Options configure a Client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	Logger    *slog.Logger
	Observer  Observer
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Request describes one backend call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
}

// Response is a successful backend reply.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Client issues authenticated requests and recovers from one expired access
// cookie per request by refreshing and retrying once.
type Client struct {
	http     *resty.Client
	logger   *slog.Logger
	observer Observer
	refresh  singleflight.Group
}

// New constructs a Client.
func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetLogger(restyLogger{logger: logger})
	// Cookies are attached per request from Credentials; a shared jar would
	// mix users.
	rc.SetCookieJar(nil)
	if opts.UserAgent != "" {
		rc.SetHeader("User-Agent", opts.UserAgent)
	}
	if opts.Transport != nil {
		rc.SetTransport(opts.Transport)
	}
	return &Client{http: rc, logger: logger, observer: opts.Observer}
}

// Do sends req with creds attached. On a 401 for anything but the login and
// refresh endpoints it refreshes the credentials once and retries once.
func (c *Client) Do(ctx context.Context, creds *Credentials, req Request) (*Response, error) {
	var seen uint64
	var cookies []*http.Cookie
	if creds != nil {
		seen = creds.Version()
		cookies = creds.Cookies()
		// Cleared credentials stay expired; only a new login restores them.
		if len(cookies) == 0 && refreshable(req.Path) {
			return nil, fmt.Errorf("%w: no credentials", ErrAuthExpired)
		}
	}
	resp, err := c.send(ctx, cookies, req)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusUnauthorized || creds == nil || !refreshable(req.Path) {
		if creds != nil {
			creds.Merge(resp.cookies)
		}
		return resp.result(req)
	}

	if err := c.refreshOnce(ctx, creds, seen); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.expire(creds)
		return nil, fmt.Errorf("%w: %w", ErrAuthExpired, err)
	}
	if !creds.Valid() {
		return nil, fmt.Errorf("%w: credentials cleared", ErrAuthExpired)
	}

	retry, err := c.send(ctx, creds.Cookies(), req)
	if err != nil {
		return nil, err
	}
	if retry.status == http.StatusUnauthorized {
		c.expire(creds)
		return nil, fmt.Errorf("%w: %w", ErrAuthExpired, retry.httpError(req))
	}
	creds.Merge(retry.cookies)
	return retry.result(req)
}

// refreshOnce renews creds unless they already changed since version seen.
// Concurrent callers holding the same credential generation share one call.
func (c *Client) refreshOnce(ctx context.Context, creds *Credentials, seen uint64) error {
	if creds.Version() != seen {
		c.observeRefresh(RefreshSkipped)
		return nil
	}
	key := creds.Key() + "#" + strconv.FormatUint(seen, 10)
	flight := c.refresh.DoChan(key, func() (any, error) {
		if creds.Version() != seen {
			return nil, nil
		}
		resp, err := c.send(context.WithoutCancel(ctx), creds.Cookies(), Request{Method: http.MethodPost, Path: RefreshPath})
		if err == nil && (resp.status < 200 || resp.status > 299) {
			err = resp.httpError(Request{Method: http.MethodPost, Path: RefreshPath})
		}
		if err != nil {
			// Cleared before the flight ends so late callers of this
			// generation skip instead of refreshing again.
			creds.Clear()
			return nil, err
		}
		creds.Merge(resp.cookies)
		return resp.cookies, nil
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-flight:
		if res.Err != nil {
			c.observeRefresh(RefreshFailed)
			c.logger.Warn("backend credential refresh failed", slog.String("key", creds.Key()), slog.Any("error", res.Err))
			return res.Err
		}
		if res.Shared {
			c.observeRefresh(RefreshShared)
		} else {
			c.observeRefresh(RefreshOK)
		}
		if cookies, ok := res.Val.([]*http.Cookie); ok {
			creds.Merge(cookies)
		}
		return nil
	}
}

func (c *Client) expire(creds *Credentials) {
	creds.Clear()
	if c.observer != nil {
		c.observer.ObserveAuthExpired()
	}
}

func (c *Client) observeRefresh(result string) {
	if c.observer != nil {
		c.observer.ObserveRefresh(result)
	}
}

type rawResponse struct {
	status  int
	header  http.Header
	body    []byte
	cookies []*http.Cookie
}

func (r *rawResponse) result(req Request) (*Response, error) {
	if r.status < 200 || r.status > 299 {
		return nil, r.httpError(req)
	}
	return &Response{Status: r.status, Header: r.header, Body: r.body}, nil
}

func (r *rawResponse) httpError(req Request) *HTTPError {
	return &HTTPError{Method: req.Method, Path: req.Path, Status: r.status, Body: r.body}
}

func (c *Client) send(ctx context.Context, cookies []*http.Cookie, req Request) (*rawResponse, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	r := c.http.R().SetContext(ctx)
	if len(cookies) > 0 {
		r.SetCookies(cookies)
	}
	if len(req.Query) > 0 {
		r.SetQueryParamsFromValues(req.Query)
	}
	if req.Body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(req.Body)
	}

	start := time.Now()
	resp, err := r.Execute(method, req.Path)
	elapsed := time.Since(start)
	if err != nil {
		netErr := &NetworkError{Method: method, Path: req.Path, Err: err}
		c.observeUpstream(req.Path, 0, netErr, elapsed)
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			return nil, fmt.Errorf("%w: %w", netErr, ctxErr)
		}
		return nil, netErr
	}
	c.observeUpstream(req.Path, resp.StatusCode(), nil, elapsed)
	return &rawResponse{
		status:  resp.StatusCode(),
		header:  resp.Header(),
		body:    resp.Body(),
		cookies: resp.Cookies(),
	}, nil
}

func (c *Client) observeUpstream(path string, status int, err error, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveUpstream(EndpointGroup(path), status, err, elapsed)
	}
}

func refreshable(path string) bool {
	clean := strings.TrimRight(path, "/")
	return clean != LoginPath && clean != RefreshPath
}

// EndpointGroup reduces a path to a low-cardinality label such as
// "workpackages" or "auth/login".
func EndpointGroup(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "root"
	}
	switch segments[0] {
	case "auth", "admin", "reports":
		if len(segments) > 1 {
			return segments[0] + "/" + segments[1]
		}
	case "workpackages":
		if len(segments) > 2 {
			return "workpackages/" + segments[2]
		}
		if len(segments) == 2 {
			if _, err := strconv.Atoi(segments[1]); err == nil {
				return "workpackages/detail"
			}
			return "workpackages/" + segments[1]
		}
	}
	return segments[0]
}

type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "resty"))
}

func (l restyLogger) Warnf(format string, v ...any) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "resty"))
}

func (l restyLogger) Debugf(format string, v ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "resty"))
}

// CloseIdleConnections releases pooled connections to the backend.
func (c *Client) CloseIdleConnections() {
	c.http.GetClient().CloseIdleConnections()
}
