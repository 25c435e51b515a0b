// Package paging assembles server-paginated collections into one ordered sequence.
package paging

import (
	"context"
	"errors"
	"fmt"
)

const (
	// DefaultPageSize is the page size used for journal history.
	DefaultPageSize = 50
	// DefaultMaxPages bounds the number of pages one aggregation may request.
	DefaultMaxPages = 20
)

// ErrInvalidPageSize is returned when the page size is not positive.
var ErrInvalidPageSize = errors.New("paging: page size must be positive")

// Status tags how an aggregation ended.
type Status int

const (
	// StatusComplete means the server reported no further data.
	StatusComplete Status = iota
	// StatusCappedIncomplete means the page cap was reached while the server still reported more data.
	StatusCappedIncomplete
)

func (s Status) String() string {
	switch s {
	case StatusComplete:
		return "complete"
	case StatusCappedIncomplete:
		return "capped_incomplete"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// PageRequest identifies one page.
type PageRequest struct {
	Offset   int
	PageSize int
}

// Page is one server response.
type Page[T any] struct {
	Items   []T
	HasMore bool
}

// Fetcher requests a single page.
type Fetcher[T any] func(ctx context.Context, req PageRequest) (Page[T], error)

// Options tune an aggregation.
type Options struct {
	PageSize int
	MaxPages int
	// OnPage is invoked after each successful page, mainly for instrumentation.
	OnPage func(req PageRequest, items int)
}

// Result is the assembled collection.
type Result[T any] struct {
	Items   []T
	Total   int
	HasMore bool
	Pages   int
	Status  Status
}

// Complete reports whether the full collection was loaded.
func (r Result[T]) Complete() bool {
	return r.Status == StatusComplete
}

// Collect requests pages sequentially starting at offset zero until a page
// reports no more data or MaxPages pages have been fetched. Any page error
// fails the whole call; no partial result is returned.
func Collect[T any](ctx context.Context, fetch Fetcher[T], opts Options) (Result[T], error) {
	if opts.PageSize <= 0 {
		return Result[T]{}, ErrInvalidPageSize
	}
	if fetch == nil {
		return Result[T]{}, errors.New("paging: fetcher required")
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	var (
		items   []T
		offset  int
		pages   int
		hasMore = true
	)
	for hasMore && pages < maxPages {
		if err := ctx.Err(); err != nil {
			return Result[T]{}, err
		}
		req := PageRequest{Offset: offset, PageSize: opts.PageSize}
		page, err := fetch(ctx, req)
		if err != nil {
			return Result[T]{}, fmt.Errorf("paging: fetch offset %d: %w", offset, err)
		}
		items = append(items, page.Items...)
		hasMore = page.HasMore
		offset += opts.PageSize
		pages++
		if opts.OnPage != nil {
			opts.OnPage(req, len(page.Items))
		}
	}

	status := StatusComplete
	if hasMore {
		status = StatusCappedIncomplete
	}
	if items == nil {
		items = []T{}
	}
	return Result[T]{
		Items:   items,
		Total:   len(items),
		HasMore: hasMore,
		Pages:   pages,
		Status:  status,
	}, nil
}
