// Package api holds the list-endpoint conventions shared by the handlers:
// page/pageSize paging and from/to time windows.
package api

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

type PageRequest struct {
	Page     int64 `json:"page"`
	PageSize int64 `json:"pageSize"`
}

// Skip is the number of documents before the page
func (p PageRequest) Skip() int64 {
	return (p.Page - 1) * p.PageSize
}

// PageResponse is the envelope of every list endpoint. data is never null.
type PageResponse[T any] struct {
	Data       []T   `json:"data"`
	Page       int64 `json:"page"`
	PageSize   int64 `json:"pageSize"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int64 `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

func NewPageResponse[T any](data []T, page, pageSize, totalItems int64) PageResponse[T] {
	if data == nil {
		data = []T{}
	}
	pages := int64(1)
	if pageSize > 0 && totalItems > pageSize {
		pages = (totalItems + pageSize - 1) / pageSize
	}
	return PageResponse[T]{
		Data:       data,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: totalItems,
		TotalPages: pages,
		HasNext:    page < pages,
		HasPrev:    page > 1,
	}
}

// ParsePagination never fails: unparsable or out of range values fall back
// to page 1 and the default size, and sizes above MaxPageSize are capped.
func ParsePagination(c *gin.Context) PageRequest {
	req := PageRequest{
		Page:     positiveQuery(c, "page", 1),
		PageSize: positiveQuery(c, "pageSize", DefaultPageSize),
	}
	if req.PageSize > MaxPageSize {
		req.PageSize = MaxPageSize
	}
	return req
}

func positiveQuery(c *gin.Context, name string, fallback int64) int64 {
	n, err := strconv.ParseInt(c.Query(name), 10, 64)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

// ParseTimeRange reads the optional RFC3339 from and to bounds, in UTC
func ParseTimeRange(c *gin.Context) (from, to *time.Time, err error) {
	if from, err = timeQuery(c, "from"); err != nil {
		return nil, nil, err
	}
	if to, err = timeQuery(c, "to"); err != nil {
		return nil, nil, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, errors.New("to must not be before from")
	}
	return from, to, nil
}

func timeQuery(c *gin.Context, name string) (*time.Time, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be an RFC3339 timestamp", name)
	}
	t = t.UTC()
	return &t, nil
}
