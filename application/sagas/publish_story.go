package sagas

import (
	"context"
	"time"

	"go.uber.org/zap"

	"storyloom-backend/application/ports"
	"storyloom-backend/domain/core/aggregates"
	"storyloom-backend/domain/core/validators"
	"storyloom-backend/domain/events"
	"storyloom-backend/domain/paging"
	"storyloom-backend/domain/versioning"
	pkgerrors "storyloom-backend/pkg/errors"
)

// PublishStorySaga takes a draft story live: validate the graph, prove
// a page mapping exists, record the published revision in the event
// store, then announce it. If the announcement fails, the recorded
// revision is rolled back so a retry starts clean.
type PublishStorySaga struct {
	storyRepo  ports.StoryRepository
	eventStore ports.EventStore
	eventBus   ports.EventBus
	validator  *validators.GraphValidator
	revisions  *versioning.RevisionService
	lock       ports.DistributedLock
	logger     *zap.Logger
}

// NewPublishStorySaga creates the saga's dependencies holder
func NewPublishStorySaga(
	storyRepo ports.StoryRepository,
	eventStore ports.EventStore,
	eventBus ports.EventBus,
	validator *validators.GraphValidator,
	lock ports.DistributedLock,
	logger *zap.Logger,
) *PublishStorySaga {
	return &PublishStorySaga{
		storyRepo:  storyRepo,
		eventStore: eventStore,
		eventBus:   eventBus,
		validator:  validator,
		revisions:  versioning.NewRevisionService(),
		lock:       lock,
		logger:     logger,
	}
}

// PublishResult reports the outcome of a publish
type PublishResult struct {
	StoryID    string
	Checksum   string
	TotalPages int
	Warnings   []string
}

// Publish runs the publish workflow for one story
func (s *PublishStorySaga) Publish(ctx context.Context, storyID, userID string) (*PublishResult, error) {
	release, err := s.lock.Acquire(ctx, "publish:"+storyID, 30*time.Second)
	if err != nil {
		return nil, pkgerrors.NewConflictError("story is being published by another request")
	}
	defer func() {
		if err := release(ctx); err != nil {
			s.logger.Warn("failed to release publish lock",
				zap.String("story_id", storyID),
				zap.Error(err))
		}
	}()

	result := &PublishResult{StoryID: storyID}
	var graph *aggregates.StoryGraph

	saga := New("publish_story", s.logger).
		AddStep(Step{
			Name: "load_and_validate",
			Execute: func(ctx context.Context, _ interface{}) (interface{}, error) {
				loaded, err := s.storyRepo.LoadStory(ctx, aggregates.StoryID(storyID))
				if err != nil {
					return nil, err
				}
				if loaded.AuthorID() != userID {
					return nil, pkgerrors.NewForbiddenError("story does not belong to user")
				}

				report, err := s.validator.ValidateGraph(loaded)
				if err != nil {
					return nil, err
				}
				result.Warnings = report.Warnings
				graph = loaded
				return loaded, nil
			},
		}).
		AddStep(Step{
			Name: "prove_mapping",
			Execute: func(ctx context.Context, _ interface{}) (interface{}, error) {
				mapping, err := paging.ComputeMapping(graph)
				if err != nil {
					return nil, err
				}
				result.TotalPages = mapping.TotalPages()
				return mapping, nil
			},
		}).
		AddStep(Step{
			Name: "record_revision",
			Execute: func(ctx context.Context, _ interface{}) (interface{}, error) {
				checksum, err := s.revisions.Checksum(graph)
				if err != nil {
					return nil, err
				}
				result.Checksum = checksum

				event := events.NewStorySaved(storyID, userID, graph.NodeCount(), checksum, time.Now())
				if err := s.eventStore.SaveEvents(ctx, []events.DomainEvent{event}); err != nil {
					return nil, err
				}
				return event, nil
			},
			Compensate: func(ctx context.Context, _ interface{}) error {
				return s.eventStore.DeleteEvents(ctx, storyID)
			},
		}).
		AddStep(Step{
			Name:       "announce",
			MaxRetries: 3,
			RetryDelay: 500 * time.Millisecond,
			Execute: func(ctx context.Context, data interface{}) (interface{}, error) {
				event := data.(events.DomainEvent)
				if err := s.eventBus.Publish(ctx, event); err != nil {
					return nil, err
				}
				return event, nil
			},
		})

	if _, err := saga.Execute(ctx, nil); err != nil {
		return nil, err
	}

	s.logger.Info("story published",
		zap.String("story_id", storyID),
		zap.String("checksum", result.Checksum),
		zap.Int("total_pages", result.TotalPages))
	return result, nil
}
