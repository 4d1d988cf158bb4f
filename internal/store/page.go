package store

import (
	"strings"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ListParams selects one page of a listing. Page is 1-based.
type ListParams struct {
	Page    int
	Size    int
	Query   string
	Sort    string
	Desc    bool
	Filters map[string]string
}

// Normalized clamps page and size and trims the query.
func (p ListParams) Normalized() ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	p.Query = strings.TrimSpace(p.Query)
	p.Sort = strings.ToLower(strings.TrimSpace(p.Sort))
	return p
}

func (p ListParams) Offset() int {
	p = p.Normalized()
	return (p.Page - 1) * p.Size
}

// Filter returns a trimmed filter value, "" when unset.
func (p ListParams) Filter(key string) string {
	if p.Filters == nil {
		return ""
	}
	return strings.TrimSpace(p.Filters[key])
}

// WithFilter returns a copy of p with key set.
func (p ListParams) WithFilter(key, value string) ListParams {
	filters := make(map[string]string, len(p.Filters)+1)
	for k, v := range p.Filters {
		filters[k] = v
	}
	filters[key] = value
	p.Filters = filters
	return p
}

// ParseSort reads "field,asc" or "field,desc" (a bare field sorts ascending).
func ParseSort(raw string) (field string, desc bool) {
	field, dir, _ := strings.Cut(strings.TrimSpace(raw), ",")
	field = strings.ToLower(strings.TrimSpace(field))
	desc = strings.EqualFold(strings.TrimSpace(dir), "desc")
	return field, desc
}

// Page is one slice of a listing plus the totals needed to render pagination.
// Number is 1-based.
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Number        int   `json:"number"`
	Size          int   `json:"size"`
}

// TotalPages is ceil(total/size), never less than one.
func TotalPages(total int64, size int) int {
	if size < 1 {
		size = 1
	}
	pages := int((total + int64(size) - 1) / int64(size))
	if pages < 1 {
		return 1
	}
	return pages
}

// NewPage wraps an already-sliced result.
func NewPage[T any](content []T, total int64, params ListParams) Page[T] {
	params = params.Normalized()
	if content == nil {
		content = []T{}
	}
	return Page[T]{
		Content:       content,
		TotalElements: total,
		TotalPages:    TotalPages(total, params.Size),
		Number:        params.Page,
		Size:          params.Size,
	}
}

// Paginate slices a full in-memory result. Pages past the end are empty.
func Paginate[T any](items []T, params ListParams) Page[T] {
	params = params.Normalized()
	total := int64(len(items))
	start := (params.Page - 1) * params.Size
	if start > len(items) {
		start = len(items)
	}
	end := start + params.Size
	if end > len(items) {
		end = len(items)
	}
	content := make([]T, end-start)
	copy(content, items[start:end])
	return NewPage(content, total, params)
}

// Map converts a page's content while keeping its totals.
func Map[T, U any](p Page[T], fn func(T) U) Page[U] {
	out := Page[U]{
		Content:       make([]U, 0, len(p.Content)),
		TotalElements: p.TotalElements,
		TotalPages:    p.TotalPages,
		Number:        p.Number,
		Size:          p.Size,
	}
	for _, item := range p.Content {
		out.Content = append(out.Content, fn(item))
	}
	return out
}
