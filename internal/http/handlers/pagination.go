package handlers

import (
	"net/url"
	"strconv"

	"github.com/labstack/echo/v5"
	"github.com/stackspend/stackspend/internal/http/viewmodels"
	"github.com/stackspend/stackspend/internal/http/views"
	"github.com/stackspend/stackspend/internal/store"
)

// pageParam reads the 1-based ?page, defaulting to the first page.
func pageParam(c *echo.Context) int {
	if n, err := strconv.Atoi(c.QueryParam("page")); err == nil && n > 0 {
		return n
	}
	return 1
}

// paginationFor builds the pager for a store page, keeping filters in the prev/next links.
// A page number past the end is shown as the last page.
func paginationFor[T any](path string, filters url.Values, p store.Page[T]) viewmodels.Pagination {
	size := max(p.Size, 1)
	pages := store.TotalPages(p.TotalElements, size)
	out := viewmodels.Pagination{
		Page:       min(max(p.Number, 1), pages),
		PerPage:    p.Size,
		TotalPages: pages,
		TotalCount: p.TotalElements,
	}
	if n := len(p.Content); n > 0 {
		out.ShowingFrom = (out.Page-1)*size + 1
		out.ShowingTo = min(out.ShowingFrom+n-1, int(p.TotalElements))
	}
	if out.Page > 1 {
		out.PrevURL = views.ListURL(path, filters, out.Page-1)
	}
	if out.Page < pages {
		out.NextURL = views.ListURL(path, filters, out.Page+1)
	}
	return out
}
