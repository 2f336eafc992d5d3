package abstractions

import (
	"context"

	"storyloom-backend/application/ports"
	"storyloom-backend/domain/core/aggregates"
	"storyloom-backend/pkg/observability"
)

// TracedStoryRepository decorates a story repository with X-Ray
// subsegments around every persistence call
type TracedStoryRepository struct {
	inner  ports.StoryRepository
	tracer *observability.Tracer
}

// TraceStoryRepository wraps a repository so its calls appear as
// subsegments in the request trace
func TraceStoryRepository(inner ports.StoryRepository, tracer *observability.Tracer) ports.StoryRepository {
	return &TracedStoryRepository{inner: inner, tracer: tracer}
}

func (r *TracedStoryRepository) LoadStory(ctx context.Context, storyID aggregates.StoryID) (*aggregates.StoryGraph, error) {
	var graph *aggregates.StoryGraph
	err := r.tracer.TraceFunction(ctx, "StoryRepository.LoadStory", func(ctx context.Context) error {
		r.tracer.AddAnnotation(ctx, "story_id", string(storyID))
		var innerErr error
		graph, innerErr = r.inner.LoadStory(ctx, storyID)
		return innerErr
	})
	return graph, err
}

func (r *TracedStoryRepository) SaveStory(ctx context.Context, graph *aggregates.StoryGraph) error {
	return r.tracer.TraceFunction(ctx, "StoryRepository.SaveStory", func(ctx context.Context) error {
		r.tracer.AddAnnotation(ctx, "story_id", string(graph.ID()))
		return r.inner.SaveStory(ctx, graph)
	})
}

func (r *TracedStoryRepository) ListStories(ctx context.Context, authorID string) ([]ports.StorySummary, error) {
	var summaries []ports.StorySummary
	err := r.tracer.TraceFunction(ctx, "StoryRepository.ListStories", func(ctx context.Context) error {
		var innerErr error
		summaries, innerErr = r.inner.ListStories(ctx, authorID)
		return innerErr
	})
	return summaries, err
}

func (r *TracedStoryRepository) DeleteStory(ctx context.Context, storyID aggregates.StoryID) error {
	return r.tracer.TraceFunction(ctx, "StoryRepository.DeleteStory", func(ctx context.Context) error {
		r.tracer.AddAnnotation(ctx, "story_id", string(storyID))
		return r.inner.DeleteStory(ctx, storyID)
	})
}
