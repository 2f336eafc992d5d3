// Package handlers contains the read-side handlers that resolve
// queries against the repositories and the page mapper.
package handlers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storyloom-backend/application/ports"
	"storyloom-backend/application/queries"
	"storyloom-backend/domain/core/aggregates"
	"storyloom-backend/domain/core/entities"
	"storyloom-backend/domain/paging"
	"storyloom-backend/infrastructure/persistence/abstractions"
	pkgerrors "storyloom-backend/pkg/errors"
)

// GetStoryHandler resolves full-story reads
type GetStoryHandler struct {
	storyRepo ports.StoryRepository
	logger    *zap.Logger
}

// NewGetStoryHandler creates a new handler instance
func NewGetStoryHandler(storyRepo ports.StoryRepository, logger *zap.Logger) *GetStoryHandler {
	return &GetStoryHandler{storyRepo: storyRepo, logger: logger}
}

// Handle executes the get story query
func (h *GetStoryHandler) Handle(ctx context.Context, q queries.GetStoryQuery) (*queries.GetStoryResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	graph, err := h.storyRepo.LoadStory(ctx, aggregates.StoryID(q.StoryID))
	if err != nil {
		return nil, err
	}

	mapping, err := paging.ComputeMapping(graph)
	if err != nil {
		return nil, err
	}

	result := &queries.GetStoryResult{
		StoryID:     graph.ID().String(),
		Title:       graph.Title(),
		Description: graph.Description(),
		AuthorID:    graph.AuthorID(),
		TotalPages:  mapping.TotalPages(),
		Bookkeeping: graph.Bookkeeping(),
		Version:     graph.Version(),
		UpdatedAt:   graph.UpdatedAt().Format(time.RFC3339),
	}

	for _, node := range graph.Nodes() {
		result.Nodes = append(result.Nodes, toNodeDTO(node, mapping))
	}

	return result, nil
}

// GetPageHandler resolves single-page reads, comments included
type GetPageHandler struct {
	storyRepo   ports.StoryRepository
	commentRepo ports.CommentRepository
	logger      *zap.Logger
}

// NewGetPageHandler creates a new handler instance
func NewGetPageHandler(storyRepo ports.StoryRepository, commentRepo ports.CommentRepository, logger *zap.Logger) *GetPageHandler {
	return &GetPageHandler{storyRepo: storyRepo, commentRepo: commentRepo, logger: logger}
}

// Handle executes the get page query
func (h *GetPageHandler) Handle(ctx context.Context, q queries.GetPageQuery) (*queries.GetPageResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	graph, err := h.storyRepo.LoadStory(ctx, aggregates.StoryID(q.StoryID))
	if err != nil {
		return nil, err
	}

	mapping, err := paging.ComputeMapping(graph)
	if err != nil {
		return nil, err
	}

	key, ok := mapping.NodeFor(q.Page)
	if !ok {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("page %d", q.Page))
	}
	node, err := graph.GetNode(key)
	if err != nil {
		return nil, err
	}

	result := &queries.GetPageResult{
		StoryID:    graph.ID().String(),
		Page:       q.Page,
		TotalPages: mapping.TotalPages(),
		Node:       toNodeDTO(node, mapping),
		Comments:   []queries.CommentDTO{},
	}

	comments, err := h.commentRepo.FetchComments(ctx, q.StoryID, q.Page)
	if err != nil {
		// The page itself is still a valid answer without comments
		h.logger.Warn("comment fetch failed for page read",
			zap.String("story_id", q.StoryID),
			zap.Int("page", q.Page),
			zap.Error(err))
	} else {
		for _, c := range comments {
			result.Comments = append(result.Comments, toCommentDTO(c))
		}
	}

	return result, nil
}

// ListStoriesHandler resolves story listings
type ListStoriesHandler struct {
	storyRepo ports.StoryRepository
	logger    *zap.Logger
}

// NewListStoriesHandler creates a new handler instance
func NewListStoriesHandler(storyRepo ports.StoryRepository, logger *zap.Logger) *ListStoriesHandler {
	return &ListStoriesHandler{storyRepo: storyRepo, logger: logger}
}

// Handle executes the list stories query
func (h *ListStoriesHandler) Handle(ctx context.Context, q queries.ListStoriesQuery) (*queries.ListStoriesResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	summaries, err := h.storyRepo.ListStories(ctx, q.UserID)
	if err != nil {
		return nil, err
	}

	summaries = abstractions.ApplySummaries(summaries, abstractions.ListCriteria{
		TitleContains: q.TitleContains,
		Sort:          abstractions.SortField(q.Sort),
		Order:         abstractions.SortOrder(q.Order),
		Limit:         q.Limit,
		Offset:        q.Offset,
	})

	result := &queries.ListStoriesResult{Total: len(summaries)}
	for _, s := range summaries {
		result.Stories = append(result.Stories, queries.StoryListItem{
			StoryID:   s.StoryID,
			Title:     s.Title,
			NodeCount: s.NodeCount,
			UpdatedAt: s.UpdatedAt.Format(time.RFC3339),
		})
	}
	return result, nil
}

// ListCommentsHandler resolves comment listings for a page
type ListCommentsHandler struct {
	commentRepo ports.CommentRepository
	logger      *zap.Logger
}

// NewListCommentsHandler creates a new handler instance
func NewListCommentsHandler(commentRepo ports.CommentRepository, logger *zap.Logger) *ListCommentsHandler {
	return &ListCommentsHandler{commentRepo: commentRepo, logger: logger}
}

// Handle executes the list comments query
func (h *ListCommentsHandler) Handle(ctx context.Context, q queries.ListCommentsQuery) (*queries.ListCommentsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	comments, err := h.commentRepo.FetchComments(ctx, q.StoryID, q.Page)
	if err != nil {
		return nil, err
	}

	result := &queries.ListCommentsResult{
		StoryID:  q.StoryID,
		Page:     q.Page,
		Comments: []queries.CommentDTO{},
		Total:    len(comments),
	}
	for _, c := range comments {
		result.Comments = append(result.Comments, toCommentDTO(c))
	}
	return result, nil
}

func toNodeDTO(node *entities.StoryNode, mapping *paging.NodeMapping) queries.NodeDTO {
	page, _ := mapping.PageFor(node.Key())
	dto := queries.NodeDTO{
		Key:      node.Key().String(),
		Page:     page,
		Body:     node.Passage().Body(),
		Format:   string(node.Passage().Format()),
		IsEnding: node.IsEnding(),
	}
	for _, choice := range node.Choices() {
		targetPage, _ := mapping.PageFor(choice.Target)
		dto.Choices = append(dto.Choices, queries.ChoiceDTO{
			Label:  choice.Label,
			Target: choice.Target.String(),
			Page:   targetPage,
		})
	}
	return dto
}

func toCommentDTO(c *entities.Comment) queries.CommentDTO {
	return queries.CommentDTO{
		ID:        c.ID(),
		Page:      c.Page(),
		NodeKey:   c.NodeKey().String(),
		AuthorID:  c.AuthorID(),
		Text:      c.Text(),
		Category:  string(c.Category()),
		CreatedAt: c.CreatedAt().Format(time.RFC3339),
	}
}
