package models

// DefaultPageSize is used when no page size is configured.
const DefaultPageSize = 10

// PageRequest is a 1-based page number with a fixed page size.
type PageRequest struct {
	Page int
	Size int
}

// NewPageRequest clamps page and size into a usable range.
func NewPageRequest(page, size int) PageRequest {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > 100 {
		size = 100
	}
	return PageRequest{Page: page, Size: size}
}

// Offset is the number of rows skipped before this page.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Size
}

// FetchLimit is one more than the page size; the extra row signals a next page.
func (p PageRequest) FetchLimit() int {
	return p.Size + 1
}

// Page is a page-number based result window.
type Page[T any] struct {
	Page     int  `json:"page"`
	Next     *int `json:"next"`
	Previous *int `json:"previous"`
	Results  []T  `json:"results"`
}

// NewPage builds a Page from rows fetched with req.FetchLimit().
func NewPage[T any](req PageRequest, rows []T) Page[T] {
	page := Page[T]{Page: req.Page, Results: rows}
	if len(rows) > req.Size {
		page.Results = rows[:req.Size]
		next := req.Page + 1
		page.Next = &next
	}
	if req.Page > 1 {
		prev := req.Page - 1
		page.Previous = &prev
	}
	if page.Results == nil {
		page.Results = []T{}
	}
	return page
}

// MapPage converts the results of a page while keeping its cursors.
func MapPage[T, U any](in Page[T], fn func(T) U) Page[U] {
	out := Page[U]{Page: in.Page, Next: in.Next, Previous: in.Previous, Results: make([]U, 0, len(in.Results))}
	for _, item := range in.Results {
		out.Results = append(out.Results, fn(item))
	}
	return out
}
