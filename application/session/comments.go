package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"storyloom-backend/application/ports"
	"storyloom-backend/domain/config"
	"storyloom-backend/domain/core/entities"
	"storyloom-backend/domain/core/valueobjects"
	"storyloom-backend/domain/events"
	pkgerrors "storyloom-backend/pkg/errors"
	"storyloom-backend/pkg/throttle"
)

// CommentSlice is the session's view of the comments attached to the
// current page. The repository stays the source of truth: every
// mutation writes through and then refetches, so the cached slice is
// never patched locally and cannot drift.
type CommentSlice struct {
	sessionID string
	storyID   string
	repo      ports.CommentRepository
	guard     *throttle.Guard
	publisher ports.EventPublisher
	cfg       *config.DomainConfig
	logger    *zap.Logger

	mu       sync.RWMutex
	page     int
	comments []*entities.Comment
	loaded   bool
}

// NewCommentSlice creates an empty slice bound to one story
func NewCommentSlice(
	sessionID, storyID string,
	repo ports.CommentRepository,
	guard *throttle.Guard,
	publisher ports.EventPublisher,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *CommentSlice {
	return &CommentSlice{
		sessionID: sessionID,
		storyID:   storyID,
		repo:      repo,
		guard:     guard,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Page returns the page the slice currently tracks
func (s *CommentSlice) Page() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page
}

// Comments returns the cached comments for the tracked page, newest
// first. The slice is a copy; callers cannot mutate the cache.
func (s *CommentSlice) Comments() []*entities.Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entities.Comment, len(s.comments))
	copy(out, s.comments)
	return out
}

// Loaded reports whether the slice has fetched at least once
func (s *CommentSlice) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// SwitchPage repoints the slice at a new page and refetches. Called on
// every navigation transition so the cache always matches the page on
// screen.
func (s *CommentSlice) SwitchPage(ctx context.Context, page int) error {
	s.mu.Lock()
	s.page = page
	s.comments = nil
	s.loaded = false
	s.mu.Unlock()

	return s.refresh(ctx)
}

// Refresh refetches the tracked page from the repository
func (s *CommentSlice) Refresh(ctx context.Context) error {
	return s.refresh(ctx)
}

// Add submits a new comment for the tracked page. Submissions are
// throttled per session; a coalesced submission returns a rate limit
// error rather than silently dropping the text.
func (s *CommentSlice) Add(ctx context.Context, nodeKey valueobjects.NodeKey, authorID, text string, category entities.CommentCategory) (*entities.Comment, error) {
	s.mu.RLock()
	page := s.page
	s.mu.RUnlock()

	comment, err := entities.NewCommentWithConfig(s.storyID, page, nodeKey, authorID, text, category, s.cfg)
	if err != nil {
		return nil, err
	}

	var opErr error
	outcome := s.guard.Do(ctx, s.throttleKey(), throttle.Options{
		MinInterval: s.cfg.CommentMinInterval,
	}, func(ctx context.Context) error {
		opErr = s.repo.InsertComment(ctx, comment)
		return opErr
	})

	switch outcome {
	case throttle.OutcomeSkipped:
		return nil, pkgerrors.NewRateLimitError(1, s.cfg.CommentMinInterval.String())
	case throttle.OutcomeFailed:
		return nil, opErr
	}

	s.publish(ctx, events.NewCommentAdded(comment.ID(), s.storyID, page, authorID, string(comment.Category()), time.Now()))

	if err := s.refresh(ctx); err != nil {
		return comment, err
	}
	return comment, nil
}

// Update amends an existing comment's text and category. Only the
// comment's author may amend it. The cached comment is never patched
// in place: the amendment is validated, persisted, and then the
// refetch installs the new state, so a failed write leaves the cache
// exactly as it was.
func (s *CommentSlice) Update(ctx context.Context, commentID, authorID, text string, category entities.CommentCategory) error {
	existing, page, ok := s.find(commentID)
	if !ok {
		return pkgerrors.NewNotFoundError("comment " + commentID)
	}
	if !existing.IsOwnedBy(authorID) {
		return pkgerrors.NewForbiddenError("only the comment author can edit it")
	}
	if err := existing.ValidateAmendment(text, category); err != nil {
		return err
	}

	if err := s.repo.UpdateComment(ctx, commentID, text, category); err != nil {
		return err
	}

	s.publish(ctx, events.NewCommentUpdated(commentID, s.storyID, page, time.Now()))
	return s.refresh(ctx)
}

// Delete removes a comment. Only the comment's author may delete it.
func (s *CommentSlice) Delete(ctx context.Context, commentID, authorID string) error {
	existing, page, ok := s.find(commentID)
	if !ok {
		return pkgerrors.NewNotFoundError("comment " + commentID)
	}
	if !existing.IsOwnedBy(authorID) {
		return pkgerrors.NewForbiddenError("only the comment author can delete it")
	}

	if err := s.repo.DeleteComment(ctx, commentID); err != nil {
		return err
	}

	s.publish(ctx, events.NewCommentDeleted(commentID, s.storyID, page, time.Now()))
	return s.refresh(ctx)
}

func (s *CommentSlice) refresh(ctx context.Context) error {
	s.mu.RLock()
	page := s.page
	s.mu.RUnlock()

	comments, err := s.repo.FetchComments(ctx, s.storyID, page)
	if err != nil {
		s.logger.Warn("comment fetch failed",
			zap.String("story_id", s.storyID),
			zap.Int("page", page),
			zap.Error(err))
		return err
	}

	if max := s.cfg.MaxCommentsPerFetch; max > 0 && len(comments) > max {
		comments = comments[:max]
	}

	s.mu.Lock()
	// A SwitchPage may have raced the fetch; only install results that
	// still belong to the tracked page
	if s.page == page {
		s.comments = comments
		s.loaded = true
	}
	s.mu.Unlock()
	return nil
}

func (s *CommentSlice) find(commentID string) (*entities.Comment, int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.comments {
		if c.ID() == commentID {
			return c, s.page, true
		}
	}
	return nil, 0, false
}

func (s *CommentSlice) throttleKey() string {
	return "comment:" + s.sessionID
}

func (s *CommentSlice) publish(ctx context.Context, event events.DomainEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish comment event",
			zap.String("event_type", event.GetEventType()),
			zap.Error(err))
	}
}
