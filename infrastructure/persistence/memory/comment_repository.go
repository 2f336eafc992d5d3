package memory

import (
	"context"
	"sort"
	"sync"

	"storyloom-backend/application/ports"
	"storyloom-backend/domain/core/entities"
	pkgerrors "storyloom-backend/pkg/errors"
)

// CommentRepository keeps comments in a map keyed by comment ID.
// Stored comments are copies; callers never share a pointer with the
// repository, matching how a real store behaves.
type CommentRepository struct {
	mu       sync.RWMutex
	comments map[string]*entities.Comment

	// FetchErr, InsertErr, and UpdateErr, when set, are returned by the
	// next call of the matching operation
	FetchErr  error
	InsertErr error
	UpdateErr error
}

var _ ports.CommentRepository = (*CommentRepository)(nil)

// NewCommentRepository creates an empty in-memory comment repository
func NewCommentRepository() *CommentRepository {
	return &CommentRepository{comments: make(map[string]*entities.Comment)}
}

// FetchComments retrieves all comments for one page, newest first
func (r *CommentRepository) FetchComments(ctx context.Context, storyID string, page int) ([]*entities.Comment, error) {
	r.mu.Lock()
	if r.FetchErr != nil {
		err := r.FetchErr
		r.FetchErr = nil
		r.mu.Unlock()
		return nil, err
	}
	r.mu.Unlock()

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.Comment
	for _, c := range r.comments {
		if c.StoryID() == storyID && c.Page() == page {
			dup := *c
			out = append(out, &dup)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt().Equal(out[j].CreatedAt()) {
			return out[i].ID() > out[j].ID()
		}
		return out[i].CreatedAt().After(out[j].CreatedAt())
	})
	return out, nil
}

// InsertComment persists a new comment
func (r *CommentRepository) InsertComment(ctx context.Context, comment *entities.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.InsertErr != nil {
		err := r.InsertErr
		r.InsertErr = nil
		return err
	}

	if _, exists := r.comments[comment.ID()]; exists {
		return pkgerrors.NewConflictError("comment already exists: " + comment.ID())
	}
	dup := *comment
	r.comments[comment.ID()] = &dup
	return nil
}

// UpdateComment amends an existing comment's text and category
func (r *CommentRepository) UpdateComment(ctx context.Context, commentID, text string, category entities.CommentCategory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.UpdateErr != nil {
		err := r.UpdateErr
		r.UpdateErr = nil
		return err
	}

	existing, ok := r.comments[commentID]
	if !ok {
		return pkgerrors.NewNotFoundError("comment " + commentID)
	}
	return existing.Amend(text, category)
}

// DeleteComment removes a comment
func (r *CommentRepository) DeleteComment(ctx context.Context, commentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.comments[commentID]; !ok {
		return pkgerrors.NewNotFoundError("comment " + commentID)
	}
	delete(r.comments, commentID)
	return nil
}

// Count returns the number of stored comments
func (r *CommentRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.comments)
}
