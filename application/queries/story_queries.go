// Package queries holds the read-side query types and their DTOs.
// Queries never mutate state; handlers assemble results from the
// repositories and the page mapper.
package queries

import (
	"storyloom-backend/pkg/utils"
)

// GetStoryQuery retrieves a full story with its page mapping
type GetStoryQuery struct {
	StoryID string `json:"story_id" validate:"required"`
	UserID  string `json:"user_id" validate:"required"`
}

// Validate validates the query
func (q *GetStoryQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// GetStoryResult is the full story read model
type GetStoryResult struct {
	StoryID     string            `json:"story_id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	AuthorID    string            `json:"author_id"`
	TotalPages  int               `json:"total_pages"`
	Nodes       []NodeDTO         `json:"nodes"`
	Bookkeeping map[string]string `json:"bookkeeping,omitempty"`
	Version     int               `json:"version"`
	UpdatedAt   string            `json:"updated_at"`
}

// NodeDTO is a data transfer object for story nodes
type NodeDTO struct {
	Key      string      `json:"key"`
	Page     int         `json:"page"`
	Body     string      `json:"body"`
	Format   string      `json:"format"`
	IsEnding bool        `json:"is_ending"`
	Choices  []ChoiceDTO `json:"choices,omitempty"`
}

// ChoiceDTO is a data transfer object for outgoing choices
type ChoiceDTO struct {
	Label  string `json:"label"`
	Target string `json:"target"`
	Page   int    `json:"page,omitempty"`
}

// GetPageQuery retrieves one page of a story
type GetPageQuery struct {
	StoryID string `json:"story_id" validate:"required"`
	UserID  string `json:"user_id" validate:"required"`
	Page    int    `json:"page" validate:"required,min=1"`
}

// Validate validates the query
func (q *GetPageQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// GetPageResult is the single-page read model
type GetPageResult struct {
	StoryID    string       `json:"story_id"`
	Page       int          `json:"page"`
	TotalPages int          `json:"total_pages"`
	Node       NodeDTO      `json:"node"`
	Comments   []CommentDTO `json:"comments"`
}

// ListStoriesQuery lists the stories a user owns. Filtering and
// ordering are optional; the default is most recently updated first.
type ListStoriesQuery struct {
	UserID        string `json:"user_id" validate:"required"`
	TitleContains string `json:"title_contains,omitempty"`
	Sort          string `json:"sort,omitempty" validate:"omitempty,oneof=updated_at title node_count"`
	Order         string `json:"order,omitempty" validate:"omitempty,oneof=asc desc"`
	Limit         int    `json:"limit,omitempty" validate:"omitempty,min=1,max=100"`
	Offset        int    `json:"offset,omitempty" validate:"omitempty,min=0"`
}

// Validate validates the query
func (q *ListStoriesQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// StoryListItem is one entry of a story listing
type StoryListItem struct {
	StoryID   string `json:"story_id"`
	Title     string `json:"title"`
	NodeCount int    `json:"node_count"`
	UpdatedAt string `json:"updated_at"`
}

// ListStoriesResult is the story listing read model
type ListStoriesResult struct {
	Stories []StoryListItem `json:"stories"`
	Total   int             `json:"total"`
}

// ListCommentsQuery lists the comments on one page of a story
type ListCommentsQuery struct {
	StoryID string `json:"story_id" validate:"required"`
	Page    int    `json:"page" validate:"required,min=1"`
}

// Validate validates the query
func (q *ListCommentsQuery) Validate() error {
	return utils.ValidateStruct(q)
}

// CommentDTO is a data transfer object for comments
type CommentDTO struct {
	ID        string `json:"id"`
	Page      int    `json:"page"`
	NodeKey   string `json:"node_key"`
	AuthorID  string `json:"author_id"`
	Text      string `json:"text"`
	Category  string `json:"category"`
	CreatedAt string `json:"created_at"`
}

// ListCommentsResult is the comment listing read model, newest first
type ListCommentsResult struct {
	StoryID  string       `json:"story_id"`
	Page     int          `json:"page"`
	Comments []CommentDTO `json:"comments"`
	Total    int          `json:"total"`
}
