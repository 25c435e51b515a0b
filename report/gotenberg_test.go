package report

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderHTMLPostsIndexFile(t *testing.T) {
	var gotHTML, gotLandscape string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/forms/chromium/convert/html" {
			http.NotFound(w, r)
			return
		}
		file, header, err := r.FormFile("files")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer file.Close()
		if header.Filename != "index.html" {
			t.Errorf("filename = %q", header.Filename)
		}
		body, _ := io.ReadAll(file)
		gotHTML = string(body)
		gotLandscape = r.FormValue("landscape")
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	defer srv.Close()

	pdf, err := NewClient(srv.URL+"/").RenderHTML(context.Background(), "<h1>SLA</h1>", PageOptions{Landscape: true})
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(pdf))
	assert.Equal(t, "<h1>SLA</h1>", gotHTML)
	assert.Equal(t, "true", gotLandscape)
}

func TestRenderHTMLReportsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "chromium crashed", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).RenderHTML(context.Background(), "<p></p>", A4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "chromium crashed")

	require.Error(t, NewClient(srv.URL).Ping(context.Background()))
}
