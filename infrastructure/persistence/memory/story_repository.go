// Package memory provides in-process implementations of the
// persistence ports. They back local development and tests; production
// wiring uses the dynamodb package.
package memory

import (
	"context"
	"sync"

	"storyloom-backend/application/ports"
	"storyloom-backend/domain/core/aggregates"
	"storyloom-backend/domain/core/entities"
	pkgerrors "storyloom-backend/pkg/errors"
)

// StoryRepository keeps story graphs in a map. Stored graphs are deep
// copied on both save and load so callers never share node pointers
// with the store.
type StoryRepository struct {
	mu      sync.RWMutex
	stories map[aggregates.StoryID]*aggregates.StoryGraph

	// SaveErr, when set, is returned by the next SaveStory call. Tests
	// use it to exercise failure paths.
	SaveErr error

	saveCount int
}

var _ ports.StoryRepository = (*StoryRepository)(nil)

// NewStoryRepository creates an empty in-memory story repository
func NewStoryRepository() *StoryRepository {
	return &StoryRepository{
		stories: make(map[aggregates.StoryID]*aggregates.StoryGraph),
	}
}

// LoadStory retrieves a full story graph by ID
func (r *StoryRepository) LoadStory(ctx context.Context, storyID aggregates.StoryID) (*aggregates.StoryGraph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	graph, ok := r.stories[storyID]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("story " + storyID.String())
	}
	return copyGraph(graph)
}

// SaveStory persists a story graph
func (r *StoryRepository) SaveStory(ctx context.Context, graph *aggregates.StoryGraph) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.SaveErr != nil {
		err := r.SaveErr
		r.SaveErr = nil
		return err
	}

	stored, err := copyGraph(graph)
	if err != nil {
		return err
	}
	r.stories[graph.ID()] = stored
	r.saveCount++
	return nil
}

// ListStories returns summaries of the stories a user owns
func (r *StoryRepository) ListStories(ctx context.Context, authorID string) ([]ports.StorySummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []ports.StorySummary
	for _, graph := range r.stories {
		if graph.AuthorID() != authorID {
			continue
		}
		out = append(out, ports.StorySummary{
			StoryID:   graph.ID().String(),
			Title:     graph.Title(),
			AuthorID:  graph.AuthorID(),
			NodeCount: graph.NodeCount(),
			UpdatedAt: graph.UpdatedAt(),
		})
	}
	return out, nil
}

// DeleteStory removes a story
func (r *StoryRepository) DeleteStory(ctx context.Context, storyID aggregates.StoryID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.stories[storyID]; !ok {
		return pkgerrors.NewNotFoundError("story " + storyID.String())
	}
	delete(r.stories, storyID)
	return nil
}

// SaveCount returns how many saves have landed
func (r *StoryRepository) SaveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.saveCount
}

func copyGraph(graph *aggregates.StoryGraph) (*aggregates.StoryGraph, error) {
	nodes := graph.Nodes()
	copied := make([]*entities.StoryNode, 0, len(nodes))
	for _, node := range nodes {
		choices := node.Choices()
		targets := make([]entities.Choice, len(choices))
		copy(targets, choices)
		clone, err := entities.ReconstructStoryNode(
			node.Key(),
			node.Passage(),
			targets,
			node.IsEnding(),
			node.Metadata(),
			node.CreatedAt(),
			node.UpdatedAt(),
		)
		if err != nil {
			return nil, err
		}
		copied = append(copied, clone)
	}

	return aggregates.ReconstructStoryGraph(
		graph.ID(),
		graph.AuthorID(),
		graph.Title(),
		graph.Description(),
		copied,
		graph.Bookkeeping(),
		graph.CreatedAt(),
		graph.UpdatedAt(),
		graph.Version(),
	)
}
