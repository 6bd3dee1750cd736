// Package paging parses the page/pageSize query parameters shared by every list
// endpoint and builds the pagination block returned in list responses.
package paging

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Params is a parsed page request.
type Params struct {
	Page     int
	PageSize int
}

// Parse reads page and pageSize from the query string, clamping both to sane
// bounds. A limit/offset pair is also accepted for callers that paginate manually.
func Parse(c *gin.Context) Params {
	p := Params{Page: 1, PageSize: defaultPageSize}

	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(c.Query("pageSize")); err == nil && v > 0 {
		p.PageSize = v
	}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		p.PageSize = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v >= 0 && p.PageSize > 0 {
		p.Page = v/p.PageSize + 1
	}

	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	return p
}

// Limit returns the SQL LIMIT for the page.
func (p Params) Limit() int { return p.PageSize }

// Offset returns the SQL OFFSET for the page.
func (p Params) Offset() int { return (p.Page - 1) * p.PageSize }

// Meta builds the pagination object included in list responses.
func (p Params) Meta(totalCount int) gin.H {
	totalPages := 0
	if p.PageSize > 0 {
		totalPages = (totalCount + p.PageSize - 1) / p.PageSize
	}
	return gin.H{
		"page":            p.Page,
		"pageSize":        p.PageSize,
		"totalPages":      totalPages,
		"totalCount":      totalCount,
		"hasNextPage":     p.Page < totalPages,
		"hasPreviousPage": p.Page > 1,
	}
}
