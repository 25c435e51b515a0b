package shared

// Pagination describes one window over a filtered listing.
type Pagination struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// NewPagination computes pagination metadata. The requested page is kept even
// when it lies past the last page so callers can render an empty window.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = 12
	}
	if page <= 0 {
		page = 1
	}
	totalPages := 0
	if total > 0 {
		totalPages = (total + perPage - 1) / perPage
	}
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// HasPrev reports whether a previous page exists.
func (p Pagination) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a following page exists.
func (p Pagination) HasNext() bool { return p.Page < p.TotalPages }

// Prev returns the previous page number.
func (p Pagination) Prev() int { return max(p.Page-1, 1) }

// Next returns the following page number.
func (p Pagination) Next() int { return p.Page + 1 }

// First is the 1-based index of the first item shown, or 0 when empty.
func (p Pagination) First() int {
	if p.Total == 0 || p.Page > p.TotalPages {
		return 0
	}
	return (p.Page-1)*p.PerPage + 1
}

// Last is the 1-based index of the last item shown, or 0 when empty.
func (p Pagination) Last() int {
	if p.First() == 0 {
		return 0
	}
	return min(p.Page*p.PerPage, p.Total)
}

// Pages lists page numbers around the current page for a pager, with 0
// marking a gap.
func (p Pagination) Pages() []int {
	if p.TotalPages <= 1 {
		return nil
	}
	const radius = 2
	var out []int
	last := 0
	for n := 1; n <= p.TotalPages; n++ {
		if n == 1 || n == p.TotalPages || (n >= p.Page-radius && n <= p.Page+radius) {
			if last != 0 && n-last > 1 {
				out = append(out, 0)
			}
			out = append(out, n)
			last = n
		}
	}
	return out
}
