package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"storyloom-backend/application/ports"
	"storyloom-backend/domain/core/aggregates"
	"storyloom-backend/domain/events"
	"storyloom-backend/domain/versioning"
	pkgerrors "storyloom-backend/pkg/errors"
	"storyloom-backend/pkg/throttle"
)

// SaveResult describes how a save request ended
type SaveResult string

const (
	// SaveCompleted means the story was persisted
	SaveCompleted SaveResult = "completed"

	// SaveSkipped means the request was coalesced away: a save was
	// already running, the minimum interval had not elapsed, or the
	// content was unchanged since the last persisted revision
	SaveSkipped SaveResult = "skipped"

	// SaveFailed means persistence was attempted and errored
	SaveFailed SaveResult = "failed"
)

// SaveCoordinator serializes persistence of one session's story graph.
// Dirty tracking is explicit: mutations call MarkDirty, and the flag is
// cleared only after a save actually lands. Skipped and failed saves
// leave it set so the changes are retried later.
type SaveCoordinator struct {
	sessionID string
	repo      ports.StoryRepository
	revisions *versioning.RevisionService
	guard     *throttle.Guard
	publisher ports.EventPublisher
	logger    *zap.Logger

	minInterval time.Duration

	mu           sync.Mutex
	dirty        bool
	lastRevision *versioning.StoryRevision
}

// NewSaveCoordinator creates a coordinator for one session. The guard
// may be shared across sessions; the throttle key is derived from the
// session ID so sessions never block each other.
func NewSaveCoordinator(
	sessionID string,
	repo ports.StoryRepository,
	revisions *versioning.RevisionService,
	guard *throttle.Guard,
	publisher ports.EventPublisher,
	minInterval time.Duration,
	logger *zap.Logger,
) *SaveCoordinator {
	return &SaveCoordinator{
		sessionID:   sessionID,
		repo:        repo,
		revisions:   revisions,
		guard:       guard,
		publisher:   publisher,
		minInterval: minInterval,
		logger:      logger,
	}
}

// MarkDirty records that the in-memory graph diverged from storage
func (c *SaveCoordinator) MarkDirty() {
	c.mu.Lock()
	c.dirty = true
	c.mu.Unlock()
}

// HasUnsavedChanges reports whether a mutation is awaiting persistence
func (c *SaveCoordinator) HasUnsavedChanges() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// LastRevision returns the most recently persisted revision, if any
func (c *SaveCoordinator) LastRevision() *versioning.StoryRevision {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRevision
}

// Save persists the graph unless the throttle coalesces the request.
// An unchanged checksum also counts as a skip: the dirty flag is
// cleared in that case because storage already matches memory.
func (c *SaveCoordinator) Save(ctx context.Context, graph *aggregates.StoryGraph, userID string) (SaveResult, error) {
	if graph == nil {
		return SaveFailed, pkgerrors.NewValidationError("cannot save a nil graph")
	}

	var opErr error
	outcome := c.guard.Do(ctx, c.throttleKey(), throttle.Options{
		MinInterval: c.minInterval,
	}, func(ctx context.Context) error {
		opErr = c.persist(ctx, graph, userID)
		return opErr
	})

	switch outcome {
	case throttle.OutcomeSkipped:
		c.logger.Debug("save request coalesced",
			zap.String("session_id", c.sessionID),
			zap.String("story_id", graph.ID().String()))
		return SaveSkipped, nil
	case throttle.OutcomeFailed:
		return SaveFailed, opErr
	default:
		return SaveCompleted, nil
	}
}

// Flush persists unconditionally, bypassing the interval check. Used
// on session teardown so no dirty state is abandoned.
func (c *SaveCoordinator) Flush(ctx context.Context, graph *aggregates.StoryGraph, userID string) error {
	if graph == nil {
		return pkgerrors.NewValidationError("cannot save a nil graph")
	}

	var opErr error
	outcome := c.guard.Do(ctx, c.throttleKey(), throttle.Options{}, func(ctx context.Context) error {
		opErr = c.persist(ctx, graph, userID)
		return opErr
	})

	if outcome == throttle.OutcomeSkipped {
		// Another save is mid-flight for this session; it carries the
		// same graph, so there is nothing left to flush
		return nil
	}
	return opErr
}

func (c *SaveCoordinator) persist(ctx context.Context, graph *aggregates.StoryGraph, userID string) error {
	checksum, err := c.revisions.Checksum(graph)
	if err != nil {
		return err
	}

	c.mu.Lock()
	last := c.lastRevision
	c.mu.Unlock()

	if last != nil && last.Checksum == checksum {
		c.logger.Debug("content unchanged since last save",
			zap.String("session_id", c.sessionID),
			zap.String("checksum", checksum))
		c.mu.Lock()
		c.dirty = false
		c.mu.Unlock()
		return nil
	}

	if err := c.repo.SaveStory(ctx, graph); err != nil {
		c.logger.Error("story save failed",
			zap.String("session_id", c.sessionID),
			zap.String("story_id", graph.ID().String()),
			zap.Error(err))
		return err
	}

	revision := &versioning.StoryRevision{
		StoryID:   graph.ID().String(),
		Version:   graph.Version(),
		Checksum:  checksum,
		NodeCount: graph.NodeCount(),
		CreatedAt: time.Now(),
		CreatedBy: userID,
	}

	c.mu.Lock()
	c.dirty = false
	c.lastRevision = revision
	c.mu.Unlock()

	if c.publisher != nil {
		event := events.NewStorySaved(graph.ID().String(), userID, graph.NodeCount(), checksum, time.Now())
		if err := c.publisher.Publish(ctx, event); err != nil {
			// The write already landed; event delivery is best effort
			c.logger.Warn("failed to publish save event",
				zap.String("story_id", graph.ID().String()),
				zap.Error(err))
		}
	}

	c.logger.Info("story saved",
		zap.String("session_id", c.sessionID),
		zap.String("story_id", graph.ID().String()),
		zap.Int("version", revision.Version),
		zap.String("checksum", checksum))
	return nil
}

func (c *SaveCoordinator) throttleKey() string {
	return "save:" + c.sessionID
}
