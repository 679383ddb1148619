// Package utils provides small helpers shared across layers. Nothing here
// knows about the catalog domain.
package utils

import "strconv"

// AtoiDefault converts s with strconv.Atoi, returning def when s is empty
// or not an integer.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Window describes one page of a listing. Page is clamped to >= 1; Pages is
// 0 when there is nothing to list.
type Window struct {
	Page   int
	Size   int
	Offset int
	Pages  int
}

// Paginate computes the window for page of total rows at size per page.
func Paginate(page, size int, total int64) Window {
	if size < 1 {
		size = 1
	}
	if page < 1 {
		page = 1
	}
	return Window{
		Page:   page,
		Size:   size,
		Offset: (page - 1) * size,
		Pages:  int((total + int64(size) - 1) / int64(size)),
	}
}

// Exists reports whether the window's page is within range.
func (w Window) Exists() bool { return w.Page <= w.Pages }

// HasNext reports whether a later page exists.
func (w Window) HasNext() bool { return w.Page < w.Pages }
