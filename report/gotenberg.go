// Package report converts rendered HTML into PDF documents through Gotenberg.
package report

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client wraps interactions with the Gotenberg API.
type Client struct {
	http *resty.Client
}

// PageOptions control paper layout of a conversion.
type PageOptions struct {
	Landscape bool
	// PaperWidth and PaperHeight are in inches; zero keeps A4.
	PaperWidth  float64
	PaperHeight float64
	// WaitDelay lets inline SVG settle before printing.
	WaitDelay time.Duration
}

// A4 portrait defaults.
var A4 = PageOptions{PaperWidth: 8.27, PaperHeight: 11.7}

// NewClient constructs a new client.
func NewClient(baseURL string) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(30 * time.Second)
	return &Client{http: rc}
}

// Ping checks if the remote Gotenberg service is available.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/health")
	if err != nil {
		return fmt.Errorf("report: gotenberg health: %w", err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("report: gotenberg health returned status %d", resp.StatusCode())
	}
	return nil
}

// RenderHTML converts a complete HTML document into a PDF.
func (c *Client) RenderHTML(ctx context.Context, html string, opts PageOptions) ([]byte, error) {
	form := map[string]string{}
	if opts.PaperWidth > 0 && opts.PaperHeight > 0 {
		form["paperWidth"] = strconv.FormatFloat(opts.PaperWidth, 'f', 2, 64)
		form["paperHeight"] = strconv.FormatFloat(opts.PaperHeight, 'f', 2, 64)
	}
	if opts.Landscape {
		form["landscape"] = "true"
	}
	if opts.WaitDelay > 0 {
		form["waitDelay"] = opts.WaitDelay.String()
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("files", "index.html", strings.NewReader(html)).
		SetFormData(form).
		Post("/forms/chromium/convert/html")
	if err != nil {
		return nil, fmt.Errorf("report: gotenberg convert: %w", err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		body := resp.Body()
		if len(body) > 512 {
			body = body[:512]
		}
		return nil, fmt.Errorf("report: render failed with status %d: %s", resp.StatusCode(), strings.TrimSpace(string(body)))
	}
	return resp.Body(), nil
}
