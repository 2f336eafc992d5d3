// Package handlers contains the write-side handlers that execute
// commands against the story domain.
package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"storyloom-backend/application/commands"
	"storyloom-backend/application/ports"
	"storyloom-backend/domain/core/aggregates"
)

// CreateStoryHandler handles story creation
type CreateStoryHandler struct {
	storyRepo  ports.StoryRepository
	eventStore ports.EventStore
	eventBus   ports.EventBus
	logger     *zap.Logger
}

// NewCreateStoryHandler creates a new handler instance
func NewCreateStoryHandler(
	storyRepo ports.StoryRepository,
	eventStore ports.EventStore,
	eventBus ports.EventBus,
	logger *zap.Logger,
) *CreateStoryHandler {
	return &CreateStoryHandler{
		storyRepo:  storyRepo,
		eventStore: eventStore,
		eventBus:   eventBus,
		logger:     logger,
	}
}

// Handle executes the create story command and returns the new graph
func (h *CreateStoryHandler) Handle(ctx context.Context, cmd commands.CreateStoryCommand) (*aggregates.StoryGraph, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("invalid command: %w", err)
	}

	graph, err := aggregates.NewStoryGraph(cmd.AuthorID, cmd.Title)
	if err != nil {
		return nil, err
	}
	if cmd.Description != "" {
		graph.Describe(cmd.Description)
	}

	if err := h.storyRepo.SaveStory(ctx, graph); err != nil {
		return nil, fmt.Errorf("failed to save story: %w", err)
	}

	h.dispatchEvents(ctx, graph)

	h.logger.Info("story created",
		zap.String("story_id", graph.ID().String()),
		zap.String("author_id", cmd.AuthorID))
	return graph, nil
}

func (h *CreateStoryHandler) dispatchEvents(ctx context.Context, graph *aggregates.StoryGraph) {
	events := graph.GetUncommittedEvents()
	if len(events) == 0 {
		return
	}

	if h.eventStore != nil {
		if err := h.eventStore.SaveEvents(ctx, events); err != nil {
			h.logger.Warn("failed to store events", zap.Error(err))
		}
	}
	if h.eventBus != nil {
		if err := h.eventBus.PublishBatch(ctx, events); err != nil {
			h.logger.Warn("failed to publish events", zap.Error(err))
		}
	}
	graph.MarkEventsAsCommitted()
}
