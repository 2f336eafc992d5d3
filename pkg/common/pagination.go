package common

import (
	"net/http"
	"strconv"
)

const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100
)

// PaginationParams carries the page window for list endpoints such as
// story listings and comment feeds.
type PaginationParams struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Sort     string `json:"sort,omitempty"`
	Order    string `json:"order,omitempty"`
}

// DefaultPaginationParams returns the window used when the request
// carries no paging query parameters
func DefaultPaginationParams() PaginationParams {
	return PaginationParams{
		Page:     defaultPage,
		PageSize: defaultPageSize,
		Order:    "desc",
	}
}

// ExtractPaginationParams reads page, page_size, sort and order from
// the query string. Out-of-range values fall back to the defaults and
// page_size is clamped so a single request cannot ask for the whole
// table.
func ExtractPaginationParams(r *http.Request) PaginationParams {
	params := DefaultPaginationParams()
	q := r.URL.Query()

	if p := positiveInt(q.Get("page")); p > 0 {
		params.Page = p
	}
	if ps := positiveInt(q.Get("page_size")); ps > 0 {
		if ps > maxPageSize {
			ps = maxPageSize
		}
		params.PageSize = ps
	}
	if sort := q.Get("sort"); sort != "" {
		params.Sort = sort
	}
	if order := q.Get("order"); order == "asc" || order == "desc" {
		params.Order = order
	}

	return params
}

func positiveInt(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// CalculateOffset converts the page window into a row offset
func (p PaginationParams) CalculateOffset() int {
	return (p.Page - 1) * p.PageSize
}

// CalculateTotalPages reports how many pages a result set spans
func CalculateTotalPages(total, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	pages := total / pageSize
	if total%pageSize > 0 {
		pages++
	}
	return pages
}

// BuildPaginationMeta fills the pagination block attached to list
// responses
func BuildPaginationMeta(page, pageSize, total int) *PaginationInfo {
	totalPages := CalculateTotalPages(total, pageSize)
	return &PaginationInfo{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// PaginatedResult pairs one page of items with its pagination metadata
type PaginatedResult struct {
	Items      interface{}     `json:"items"`
	Pagination *PaginationInfo `json:"pagination"`
}

// NewPaginatedResult wraps a page of items for the response envelope
func NewPaginatedResult(items interface{}, page, pageSize, total int) *PaginatedResult {
	return &PaginatedResult{
		Items:      items,
		Pagination: BuildPaginationMeta(page, pageSize, total),
	}
}
