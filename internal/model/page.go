package model

// Default and maximum page sizes for list endpoints.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is a 1-based pagination request.
type Page struct {
	Page     int
	PageSize int
}

// Normalize clamps the request into the supported range.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset is the number of rows to skip.
func (p Page) Offset() int { return (p.Page - 1) * p.PageSize }

// PageResult is one page of a listing together with its totals.
type PageResult[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// NewPageResult assembles a page; a nil items slice is reported as empty.
func NewPageResult[T any](items []T, total int, p Page) PageResult[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if p.PageSize > 0 {
		pages = (total + p.PageSize - 1) / p.PageSize
	}
	return PageResult[T]{Items: items, Total: total, Page: p.Page, PageSize: p.PageSize, TotalPages: pages}
}
