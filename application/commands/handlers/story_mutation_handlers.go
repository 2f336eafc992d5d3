package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"storyloom-backend/application/commands"
	"storyloom-backend/application/ports"
	"storyloom-backend/domain/core/aggregates"
	"storyloom-backend/domain/core/entities"
	"storyloom-backend/domain/core/valueobjects"
	pkgerrors "storyloom-backend/pkg/errors"
)

// AddStoryNodeHandler appends nodes to stored stories outside of a
// live session, such as from batch tooling
type AddStoryNodeHandler struct {
	storyRepo ports.StoryRepository
	eventBus  ports.EventBus
	logger    *zap.Logger
}

// NewAddStoryNodeHandler creates a new handler instance
func NewAddStoryNodeHandler(storyRepo ports.StoryRepository, eventBus ports.EventBus, logger *zap.Logger) *AddStoryNodeHandler {
	return &AddStoryNodeHandler{storyRepo: storyRepo, eventBus: eventBus, logger: logger}
}

// Handle executes the add node command
func (h *AddStoryNodeHandler) Handle(ctx context.Context, cmd commands.AddStoryNodeCommand) error {
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("invalid command: %w", err)
	}

	graph, err := h.loadOwned(ctx, cmd.StoryID, cmd.UserID)
	if err != nil {
		return err
	}

	key, err := valueobjects.NewNodeKey(cmd.NodeKey)
	if err != nil {
		return err
	}

	format := valueobjects.PassageFormat(cmd.Format)
	if cmd.Format == "" {
		format = valueobjects.FormatPlainText
	}
	passage, err := valueobjects.NewPassage(cmd.Body, format)
	if err != nil {
		return err
	}

	node, err := entities.NewStoryNode(key, passage)
	if err != nil {
		return err
	}
	for _, choice := range cmd.Choices {
		target, err := valueobjects.NewNodeKey(choice.Target)
		if err != nil {
			return err
		}
		if err := node.AddChoice(choice.Label, target); err != nil {
			return err
		}
	}
	if cmd.IsEnding {
		if err := node.MarkEnding(); err != nil {
			return err
		}
	}

	if err := graph.AddNode(node); err != nil {
		return err
	}

	if err := h.storyRepo.SaveStory(ctx, graph); err != nil {
		return fmt.Errorf("failed to save story: %w", err)
	}

	if h.eventBus != nil {
		if err := h.eventBus.PublishBatch(ctx, graph.GetUncommittedEvents()); err != nil {
			h.logger.Warn("failed to publish events", zap.Error(err))
		}
	}
	graph.MarkEventsAsCommitted()

	h.logger.Info("node added",
		zap.String("story_id", cmd.StoryID),
		zap.String("node_key", cmd.NodeKey))
	return nil
}

func (h *AddStoryNodeHandler) loadOwned(ctx context.Context, storyID, userID string) (*aggregates.StoryGraph, error) {
	return loadOwnedStory(ctx, h.storyRepo, storyID, userID)
}

// UpdatePassageHandler replaces one node's passage in a stored story
type UpdatePassageHandler struct {
	storyRepo ports.StoryRepository
	logger    *zap.Logger
}

// NewUpdatePassageHandler creates a new handler instance
func NewUpdatePassageHandler(storyRepo ports.StoryRepository, logger *zap.Logger) *UpdatePassageHandler {
	return &UpdatePassageHandler{storyRepo: storyRepo, logger: logger}
}

// Handle executes the update passage command
func (h *UpdatePassageHandler) Handle(ctx context.Context, cmd commands.UpdatePassageCommand) error {
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("invalid command: %w", err)
	}

	graph, err := loadOwnedStory(ctx, h.storyRepo, cmd.StoryID, cmd.UserID)
	if err != nil {
		return err
	}

	key, err := valueobjects.NewNodeKey(cmd.NodeKey)
	if err != nil {
		return err
	}
	node, err := graph.GetNode(key)
	if err != nil {
		return err
	}

	format := valueobjects.PassageFormat(cmd.Format)
	if cmd.Format == "" {
		format = node.Passage().Format()
	}
	passage, err := valueobjects.NewPassage(cmd.Body, format)
	if err != nil {
		return err
	}
	if err := node.UpdatePassage(passage); err != nil {
		return err
	}

	if err := h.storyRepo.SaveStory(ctx, graph); err != nil {
		return fmt.Errorf("failed to save story: %w", err)
	}

	h.logger.Info("passage updated",
		zap.String("story_id", cmd.StoryID),
		zap.String("node_key", cmd.NodeKey))
	return nil
}

// DeleteStoryHandler removes a story
type DeleteStoryHandler struct {
	storyRepo ports.StoryRepository
	logger    *zap.Logger
}

// NewDeleteStoryHandler creates a new handler instance
func NewDeleteStoryHandler(storyRepo ports.StoryRepository, logger *zap.Logger) *DeleteStoryHandler {
	return &DeleteStoryHandler{storyRepo: storyRepo, logger: logger}
}

// Handle executes the delete story command
func (h *DeleteStoryHandler) Handle(ctx context.Context, cmd commands.DeleteStoryCommand) error {
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("invalid command: %w", err)
	}

	if _, err := loadOwnedStory(ctx, h.storyRepo, cmd.StoryID, cmd.UserID); err != nil {
		return err
	}

	if err := h.storyRepo.DeleteStory(ctx, aggregates.StoryID(cmd.StoryID)); err != nil {
		return fmt.Errorf("failed to delete story: %w", err)
	}

	h.logger.Info("story deleted",
		zap.String("story_id", cmd.StoryID),
		zap.String("user_id", cmd.UserID))
	return nil
}

// loadOwnedStory fetches a story and verifies the caller owns it
func loadOwnedStory(ctx context.Context, repo ports.StoryRepository, storyID, userID string) (*aggregates.StoryGraph, error) {
	graph, err := repo.LoadStory(ctx, aggregates.StoryID(storyID))
	if err != nil {
		return nil, err
	}
	if graph.AuthorID() != userID {
		return nil, pkgerrors.NewForbiddenError("story does not belong to user")
	}
	return graph, nil
}
