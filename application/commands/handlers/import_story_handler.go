package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"storyloom-backend/application/commands"
	"storyloom-backend/application/ports"
	"storyloom-backend/domain/core/aggregates"
	"storyloom-backend/domain/core/entities"
	"storyloom-backend/domain/core/validators"
	"storyloom-backend/domain/core/valueobjects"
	"storyloom-backend/domain/paging"
	"storyloom-backend/infrastructure/persistence/schema"
)

// ImportStoryHandler ingests authored story sources. The pipeline is:
// migrate the source to the current format version, split bookkeeping
// entries from node entries, build the aggregate in declaration order,
// validate the graph, and prove a page mapping exists before anything
// is persisted.
type ImportStoryHandler struct {
	storyRepo ports.StoryRepository
	evolution *schema.FormatEvolution
	validator *validators.GraphValidator
	eventBus  ports.EventBus
	logger    *zap.Logger
}

// NewImportStoryHandler creates a new handler instance
func NewImportStoryHandler(
	storyRepo ports.StoryRepository,
	evolution *schema.FormatEvolution,
	validator *validators.GraphValidator,
	eventBus ports.EventBus,
	logger *zap.Logger,
) *ImportStoryHandler {
	return &ImportStoryHandler{
		storyRepo: storyRepo,
		evolution: evolution,
		validator: validator,
		eventBus:  eventBus,
		logger:    logger,
	}
}

// ImportResult reports what an import produced
type ImportResult struct {
	Story      *aggregates.StoryGraph
	TotalPages int
	Warnings   []string
	Migrations []schema.AppliedMigration
}

// Handle executes the import story command
func (h *ImportStoryHandler) Handle(ctx context.Context, cmd commands.ImportStoryCommand) (*ImportResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("invalid command: %w", err)
	}

	raw := &schema.RawStory{
		Title:         cmd.Title,
		FormatVersion: cmd.FormatVersion,
		Entries:       toRawEntries(cmd.Entries),
	}

	applied, err := h.evolution.MigrateToCurrent(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("source migration failed: %w", err)
	}

	graph, err := aggregates.NewStoryGraph(cmd.AuthorID, raw.Title)
	if err != nil {
		return nil, err
	}

	for _, entry := range raw.Entries {
		if aggregates.IsBookkeepingKey(entry.Key) {
			if err := graph.SetBookkeeping(entry.Key, entry.Body); err != nil {
				return nil, err
			}
			continue
		}

		node, err := buildNode(entry)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", entry.Key, err)
		}
		if err := graph.AddNode(node); err != nil {
			return nil, err
		}
	}

	report, err := h.validator.ValidateGraph(graph)
	if err != nil {
		return nil, err
	}

	mapping, err := paging.ComputeMapping(graph)
	if err != nil {
		return nil, err
	}

	if err := h.storyRepo.SaveStory(ctx, graph); err != nil {
		return nil, fmt.Errorf("failed to save imported story: %w", err)
	}

	if h.eventBus != nil {
		if err := h.eventBus.PublishBatch(ctx, graph.GetUncommittedEvents()); err != nil {
			h.logger.Warn("failed to publish import events", zap.Error(err))
		}
	}
	graph.MarkEventsAsCommitted()

	h.logger.Info("story imported",
		zap.String("story_id", graph.ID().String()),
		zap.String("author_id", cmd.AuthorID),
		zap.Int("nodes", graph.NodeCount()),
		zap.Int("total_pages", mapping.TotalPages()),
		zap.Int("migrations_applied", len(applied)),
		zap.Int("warnings", len(report.Warnings)))

	return &ImportResult{
		Story:      graph,
		TotalPages: mapping.TotalPages(),
		Warnings:   report.Warnings,
		Migrations: applied,
	}, nil
}

func toRawEntries(entries []commands.RawSourceEntry) []schema.RawEntry {
	out := make([]schema.RawEntry, 0, len(entries))
	for _, e := range entries {
		raw := schema.RawEntry{
			Key:      e.Key,
			Body:     e.Body,
			Format:   e.Format,
			IsEnding: e.IsEnding,
		}
		for _, c := range e.Choices {
			raw.Choices = append(raw.Choices, schema.RawChoice{Label: c.Label, Target: c.Target})
		}
		out = append(out, raw)
	}
	return out
}

func buildNode(entry schema.RawEntry) (*entities.StoryNode, error) {
	key, err := valueobjects.NewNodeKey(entry.Key)
	if err != nil {
		return nil, err
	}

	format := valueobjects.PassageFormat(entry.Format)
	if entry.Format == "" {
		format = valueobjects.FormatPlainText
	}
	passage, err := valueobjects.NewPassage(entry.Body, format)
	if err != nil {
		return nil, err
	}

	node, err := entities.NewStoryNode(key, passage)
	if err != nil {
		return nil, err
	}

	for _, choice := range entry.Choices {
		target, err := valueobjects.NewNodeKey(choice.Target)
		if err != nil {
			return nil, fmt.Errorf("choice target %q: %w", choice.Target, err)
		}
		if err := node.AddChoice(choice.Label, target); err != nil {
			return nil, err
		}
	}

	if entry.IsEnding {
		if err := node.MarkEnding(); err != nil {
			return nil, err
		}
	}

	return node, nil
}
