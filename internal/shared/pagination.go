package shared

import "math"

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
	From       int
	To         int
}

// NewPagination computes pagination metadata. Page is clamped to the
// available range.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = 20
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	if page > totalPages {
		page = totalPages
	}
	if page <= 0 {
		page = 1
	}
	p := Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
	if total > 0 {
		p.From = (page-1)*perPage + 1
		p.To = min(page*perPage, total)
	}
	return p
}

// HasPrev reports whether a previous page exists.
func (p Pagination) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a following page exists.
func (p Pagination) HasNext() bool { return p.Page < p.TotalPages }

// PrevPage returns the previous page number.
func (p Pagination) PrevPage() int { return max(p.Page-1, 1) }

// NextPage returns the following page number.
func (p Pagination) NextPage() int { return min(p.Page+1, max(p.TotalPages, 1)) }

// Pages lists every page number for the pager.
func (p Pagination) Pages() []int {
	out := make([]int, 0, p.TotalPages)
	for i := 1; i <= p.TotalPages; i++ {
		out = append(out, i)
	}
	return out
}

// Paginate slices items to the requested page.
func Paginate[T any](items []T, page, perPage int) ([]T, Pagination) {
	p := NewPagination(page, perPage, len(items))
	if p.Total == 0 {
		return nil, p
	}
	return items[p.From-1 : p.To], p
}
