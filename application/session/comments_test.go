package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storyloom-backend/domain/config"
	"storyloom-backend/domain/core/entities"
	"storyloom-backend/domain/core/valueobjects"
	"storyloom-backend/infrastructure/persistence/memory"
	pkgerrors "storyloom-backend/pkg/errors"
	"storyloom-backend/pkg/throttle"
)

func newTestSlice(t *testing.T, repo *memory.CommentRepository, cfg *config.DomainConfig) *CommentSlice {
	t.Helper()
	if cfg == nil {
		cfg = config.DevelopmentDomainConfig()
	}
	return NewCommentSlice("session-1", "story-1", repo, throttle.NewGuard(), nil, cfg, zap.NewNop())
}

func TestSwitchPageFetchesComments(t *testing.T) {
	repo := memory.NewCommentRepository()
	seed, err := entities.NewComment("story-1", 2, valueobjects.MustNodeKey("left"), "user-1", "Typo here", entities.CategorySpelling)
	require.NoError(t, err)
	require.NoError(t, repo.InsertComment(context.Background(), seed))

	slice := newTestSlice(t, repo, nil)
	require.NoError(t, slice.SwitchPage(context.Background(), 2))

	assert.True(t, slice.Loaded())
	assert.Equal(t, 2, slice.Page())
	require.Len(t, slice.Comments(), 1)
	assert.Equal(t, "Typo here", slice.Comments()[0].Text())
}

func TestAddRefetchesFromRepository(t *testing.T) {
	repo := memory.NewCommentRepository()
	slice := newTestSlice(t, repo, nil)
	require.NoError(t, slice.SwitchPage(context.Background(), 1))

	// Another writer lands a comment between our write and the fetch
	other, err := entities.NewComment("story-1", 1, valueobjects.MustNodeKey("root"), "user-2", "Nice opening", entities.CategoryOther)
	require.NoError(t, err)
	require.NoError(t, repo.InsertComment(context.Background(), other))

	added, err := slice.Add(context.Background(), valueobjects.MustNodeKey("root"), "user-1", "Consider a hook", entities.CategorySuggestion)
	require.NoError(t, err)
	require.NotNil(t, added)

	// The cache holds the repository's view, both comments included
	assert.Len(t, slice.Comments(), 2)
	assert.Equal(t, 2, repo.Count())
}

func TestAddIsThrottledPerSession(t *testing.T) {
	cfg := config.DevelopmentDomainConfig()
	cfg.CommentMinInterval = time.Hour

	repo := memory.NewCommentRepository()
	slice := newTestSlice(t, repo, cfg)
	require.NoError(t, slice.SwitchPage(context.Background(), 1))

	_, err := slice.Add(context.Background(), valueobjects.MustNodeKey("root"), "user-1", "First", entities.CategoryEdit)
	require.NoError(t, err)

	_, err = slice.Add(context.Background(), valueobjects.MustNodeKey("root"), "user-1", "Second too soon", entities.CategoryEdit)

	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeRateLimit))
	assert.Equal(t, 1, repo.Count())
}

func TestCommentThrottleKeyIsIndependentOfSaves(t *testing.T) {
	cfg := config.DevelopmentDomainConfig()
	cfg.CommentMinInterval = time.Hour
	guard := throttle.NewGuard()

	// Exhaust this session's save key on the shared guard; comments run
	// under their own key and must not be blocked by it
	outcome := guard.Do(context.Background(), "save:session-1", throttle.Options{
		MinInterval: time.Hour,
	}, func(ctx context.Context) error { return nil })
	require.Equal(t, throttle.OutcomeRan, outcome)

	repo := memory.NewCommentRepository()
	slice := NewCommentSlice("session-1", "story-1", repo, guard, nil, cfg, zap.NewNop())
	require.NoError(t, slice.SwitchPage(context.Background(), 1))

	_, err := slice.Add(context.Background(), valueobjects.MustNodeKey("root"), "user-1", "Unthrottled", entities.CategoryOther)

	require.NoError(t, err)
	assert.Equal(t, 1, repo.Count())
}

func TestUpdateRequiresOwnership(t *testing.T) {
	repo := memory.NewCommentRepository()
	slice := newTestSlice(t, repo, nil)
	require.NoError(t, slice.SwitchPage(context.Background(), 1))

	added, err := slice.Add(context.Background(), valueobjects.MustNodeKey("root"), "user-1", "Original", entities.CategoryEdit)
	require.NoError(t, err)

	err = slice.Update(context.Background(), added.ID(), "user-2", "Hijacked", entities.CategoryEdit)

	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeForbidden))
	assert.Equal(t, "Original", slice.Comments()[0].Text())
}

func TestUpdateWritesThroughAndRefetches(t *testing.T) {
	repo := memory.NewCommentRepository()
	slice := newTestSlice(t, repo, nil)
	require.NoError(t, slice.SwitchPage(context.Background(), 1))

	added, err := slice.Add(context.Background(), valueobjects.MustNodeKey("root"), "user-1", "Original", entities.CategoryEdit)
	require.NoError(t, err)

	require.NoError(t, slice.Update(context.Background(), added.ID(), "user-1", "Revised", entities.CategorySuggestion))

	comments := slice.Comments()
	require.Len(t, comments, 1)
	assert.Equal(t, "Revised", comments[0].Text())
	assert.Equal(t, entities.CategorySuggestion, comments[0].Category())
}

func TestDeleteRemovesFromCacheAndRepository(t *testing.T) {
	repo := memory.NewCommentRepository()
	slice := newTestSlice(t, repo, nil)
	require.NoError(t, slice.SwitchPage(context.Background(), 1))

	added, err := slice.Add(context.Background(), valueobjects.MustNodeKey("root"), "user-1", "Remove me", entities.CategoryOther)
	require.NoError(t, err)

	require.NoError(t, slice.Delete(context.Background(), added.ID(), "user-1"))

	assert.Empty(t, slice.Comments())
	assert.Equal(t, 0, repo.Count())
}

func TestDeleteUnknownCommentFails(t *testing.T) {
	slice := newTestSlice(t, memory.NewCommentRepository(), nil)
	require.NoError(t, slice.SwitchPage(context.Background(), 1))

	err := slice.Delete(context.Background(), "missing-id", "user-1")

	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestAddFailureLeavesCacheUntouched(t *testing.T) {
	repo := memory.NewCommentRepository()
	slice := newTestSlice(t, repo, nil)
	require.NoError(t, slice.SwitchPage(context.Background(), 1))

	seeded, err := slice.Add(context.Background(), valueobjects.MustNodeKey("root"), "user-1", "Kept", entities.CategoryOther)
	require.NoError(t, err)

	repo.InsertErr = pkgerrors.NewDatabaseError("insert_comment", assert.AnError)
	_, err = slice.Add(context.Background(), valueobjects.MustNodeKey("root"), "user-1", "Lost to the outage", entities.CategoryEdit)

	require.Error(t, err)
	comments := slice.Comments()
	require.Len(t, comments, 1)
	assert.Equal(t, seeded.ID(), comments[0].ID())
	assert.Equal(t, 1, repo.Count())
}

func TestUpdateFailureLeavesCacheUntouched(t *testing.T) {
	repo := memory.NewCommentRepository()
	slice := newTestSlice(t, repo, nil)
	require.NoError(t, slice.SwitchPage(context.Background(), 1))

	added, err := slice.Add(context.Background(), valueobjects.MustNodeKey("root"), "user-1", "Original", entities.CategoryEdit)
	require.NoError(t, err)

	repo.UpdateErr = pkgerrors.NewDatabaseError("update_comment", assert.AnError)
	err = slice.Update(context.Background(), added.ID(), "user-1", "Never lands", entities.CategorySuggestion)

	require.Error(t, err)
	comments := slice.Comments()
	require.Len(t, comments, 1)
	assert.Equal(t, "Original", comments[0].Text())
	assert.Equal(t, entities.CategoryEdit, comments[0].Category())
}

func TestUpdateAfterConcurrentDeleteLeavesCacheUntouched(t *testing.T) {
	repo := memory.NewCommentRepository()
	slice := newTestSlice(t, repo, nil)
	require.NoError(t, slice.SwitchPage(context.Background(), 1))

	added, err := slice.Add(context.Background(), valueobjects.MustNodeKey("root"), "user-1", "Original", entities.CategoryEdit)
	require.NoError(t, err)

	// Another session deletes the comment out from under the cache
	require.NoError(t, repo.DeleteComment(context.Background(), added.ID()))

	err = slice.Update(context.Background(), added.ID(), "user-1", "Mutated despite failure", entities.CategorySuggestion)

	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
	comments := slice.Comments()
	require.Len(t, comments, 1)
	assert.Equal(t, "Original", comments[0].Text())
}

func TestFetchFailureKeepsPreviousCache(t *testing.T) {
	repo := memory.NewCommentRepository()
	slice := newTestSlice(t, repo, nil)

	seed, err := entities.NewComment("story-1", 1, valueobjects.MustNodeKey("root"), "user-1", "Kept", entities.CategoryOther)
	require.NoError(t, err)
	require.NoError(t, repo.InsertComment(context.Background(), seed))
	require.NoError(t, slice.SwitchPage(context.Background(), 1))
	require.Len(t, slice.Comments(), 1)

	repo.FetchErr = pkgerrors.NewDatabaseError("query_comments", assert.AnError)
	err = slice.Refresh(context.Background())

	require.Error(t, err)
	assert.Len(t, slice.Comments(), 1, "stale cache is better than a wiped one")
}
