// Package paging holds the page envelope shared by the listing endpoints.
package paging

import "math"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps every offset within the int32 range the queries bind.
	MaxPage = math.MaxInt32/MaxPageSize + 1
)

// Page is one page of a listing.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// Normalize clamps page to 1..MaxPage and size to 1..MaxPageSize,
// substituting DefaultPageSize for a non-positive size. Pages past the end of
// a listing are simply empty.
func Normalize(page, size int) (int, int) {
	page = min(max(page, 1), MaxPage)
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

// Offset returns the number of rows to skip for page.
func Offset(page, size int) int {
	return (page - 1) * size
}

// TotalPages returns ceil(total/size). An empty result has 0 pages.
func TotalPages(total int64, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

// TotalPagesAtLeastOne is TotalPages floored at 1, for listings that always
// render a first (possibly empty) page.
func TotalPagesAtLeastOne(total int64, size int) int {
	return max(TotalPages(total, size), 1)
}
