// Package abstractions holds database-agnostic listing criteria shared
// by the persistence implementations. Filtering and ordering happen
// in-process so the DynamoDB and in-memory repositories behave the
// same way.
package abstractions

import (
	"sort"
	"strings"
	"time"

	"storyloom-backend/application/ports"
)

// SortField names a sortable attribute of a story listing
type SortField string

const (
	SortByUpdatedAt SortField = "updated_at"
	SortByTitle     SortField = "title"
	SortByNodeCount SortField = "node_count"
)

// SortOrder defines the sorting direction
type SortOrder string

const (
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// ListCriteria represents database-agnostic story listing parameters
type ListCriteria struct {
	// TitleContains filters to titles containing the substring,
	// case-insensitively. Empty means no title filter.
	TitleContains string

	// MinNodes and MaxNodes bound the node count. Zero means unbounded.
	MinNodes int
	MaxNodes int

	// UpdatedAfter keeps only stories touched after the instant.
	UpdatedAfter time.Time

	// Sort and Order control result ordering. The zero values sort by
	// most recently updated first.
	Sort  SortField
	Order SortOrder

	// Limit and Offset paginate the result. Zero limit means no cap.
	Limit  int
	Offset int
}

// ApplySummaries filters, orders, and paginates story summaries
// according to the criteria.
func ApplySummaries(items []ports.StorySummary, c ListCriteria) []ports.StorySummary {
	filtered := make([]ports.StorySummary, 0, len(items))
	needle := strings.ToLower(c.TitleContains)
	for _, item := range items {
		if needle != "" && !strings.Contains(strings.ToLower(item.Title), needle) {
			continue
		}
		if c.MinNodes > 0 && item.NodeCount < c.MinNodes {
			continue
		}
		if c.MaxNodes > 0 && item.NodeCount > c.MaxNodes {
			continue
		}
		if !c.UpdatedAfter.IsZero() && !item.UpdatedAt.After(c.UpdatedAfter) {
			continue
		}
		filtered = append(filtered, item)
	}

	field := c.Sort
	if field == "" {
		field = SortByUpdatedAt
	}
	order := c.Order
	if order == "" {
		if field == SortByUpdatedAt {
			order = SortDescending
		} else {
			order = SortAscending
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		less := false
		switch field {
		case SortByTitle:
			less = strings.ToLower(filtered[i].Title) < strings.ToLower(filtered[j].Title)
		case SortByNodeCount:
			less = filtered[i].NodeCount < filtered[j].NodeCount
		default:
			less = filtered[i].UpdatedAt.Before(filtered[j].UpdatedAt)
		}
		if order == SortDescending {
			return !less && !equalOn(field, filtered[i], filtered[j])
		}
		return less
	})

	return paginate(filtered, c.Limit, c.Offset)
}

func equalOn(field SortField, a, b ports.StorySummary) bool {
	switch field {
	case SortByTitle:
		return strings.EqualFold(a.Title, b.Title)
	case SortByNodeCount:
		return a.NodeCount == b.NodeCount
	default:
		return a.UpdatedAt.Equal(b.UpdatedAt)
	}
}

func paginate(items []ports.StorySummary, limit, offset int) []ports.StorySummary {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
