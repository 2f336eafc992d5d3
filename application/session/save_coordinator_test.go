package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storyloom-backend/domain/core/valueobjects"
	"storyloom-backend/domain/versioning"
	"storyloom-backend/infrastructure/persistence/memory"
	pkgerrors "storyloom-backend/pkg/errors"
	"storyloom-backend/pkg/throttle"
)

func newTestCoordinator(repo *memory.StoryRepository, minInterval time.Duration) *SaveCoordinator {
	return NewSaveCoordinator(
		"session-1",
		repo,
		versioning.NewRevisionService(),
		throttle.NewGuard(),
		nil,
		minInterval,
		zap.NewNop(),
	)
}

func TestSaveClearsDirtyFlag(t *testing.T) {
	repo := memory.NewStoryRepository()
	coord := newTestCoordinator(repo, 0)
	graph := branchingGraph(t)

	coord.MarkDirty()
	require.True(t, coord.HasUnsavedChanges())

	result, err := coord.Save(context.Background(), graph, "user-1")

	require.NoError(t, err)
	assert.Equal(t, SaveCompleted, result)
	assert.False(t, coord.HasUnsavedChanges())
	assert.Equal(t, 1, repo.SaveCount())
}

func TestFailedSavePreservesDirtyFlag(t *testing.T) {
	repo := memory.NewStoryRepository()
	repo.SaveErr = pkgerrors.NewDatabaseError("put_story", assert.AnError)
	coord := newTestCoordinator(repo, 0)
	graph := branchingGraph(t)

	coord.MarkDirty()
	result, err := coord.Save(context.Background(), graph, "user-1")

	require.Error(t, err)
	assert.Equal(t, SaveFailed, result)
	assert.True(t, coord.HasUnsavedChanges())

	// The next attempt succeeds and clears the flag
	result, err = coord.Save(context.Background(), graph, "user-1")
	require.NoError(t, err)
	assert.Equal(t, SaveCompleted, result)
	assert.False(t, coord.HasUnsavedChanges())
}

func TestSaveWithinIntervalIsSkipped(t *testing.T) {
	repo := memory.NewStoryRepository()
	coord := newTestCoordinator(repo, time.Hour)
	graph := branchingGraph(t)

	coord.MarkDirty()
	result, err := coord.Save(context.Background(), graph, "user-1")
	require.NoError(t, err)
	require.Equal(t, SaveCompleted, result)

	coord.MarkDirty()
	result, err = coord.Save(context.Background(), graph, "user-1")

	require.NoError(t, err)
	assert.Equal(t, SaveSkipped, result)
	assert.True(t, coord.HasUnsavedChanges(), "skipped save must keep changes pending")
	assert.Equal(t, 1, repo.SaveCount())
}

func TestUnchangedContentSkipsRepositoryWrite(t *testing.T) {
	repo := memory.NewStoryRepository()
	coord := newTestCoordinator(repo, 0)
	graph := branchingGraph(t)

	coord.MarkDirty()
	_, err := coord.Save(context.Background(), graph, "user-1")
	require.NoError(t, err)
	require.Equal(t, 1, repo.SaveCount())

	// Nothing changed; the save runs but writes nothing
	coord.MarkDirty()
	result, err := coord.Save(context.Background(), graph, "user-1")

	require.NoError(t, err)
	assert.Equal(t, SaveCompleted, result)
	assert.False(t, coord.HasUnsavedChanges())
	assert.Equal(t, 1, repo.SaveCount())
}

func TestChangedContentWritesAgain(t *testing.T) {
	repo := memory.NewStoryRepository()
	coord := newTestCoordinator(repo, 0)
	graph := branchingGraph(t)

	_, err := coord.Save(context.Background(), graph, "user-1")
	require.NoError(t, err)

	node, err := graph.GetNode(valueobjects.MustNodeKey("root"))
	require.NoError(t, err)
	passage, err := valueobjects.NewPassage("A different opening.", valueobjects.FormatPlainText)
	require.NoError(t, err)
	require.NoError(t, node.UpdatePassage(passage))

	coord.MarkDirty()
	result, err := coord.Save(context.Background(), graph, "user-1")

	require.NoError(t, err)
	assert.Equal(t, SaveCompleted, result)
	assert.Equal(t, 2, repo.SaveCount())
}

func TestFlushBypassesInterval(t *testing.T) {
	repo := memory.NewStoryRepository()
	coord := newTestCoordinator(repo, time.Hour)
	graph := branchingGraph(t)

	_, err := coord.Save(context.Background(), graph, "user-1")
	require.NoError(t, err)

	node, err := graph.GetNode(valueobjects.MustNodeKey("left"))
	require.NoError(t, err)
	passage, err := valueobjects.NewPassage("An edited ending.", valueobjects.FormatPlainText)
	require.NoError(t, err)
	require.NoError(t, node.UpdatePassage(passage))
	coord.MarkDirty()

	require.NoError(t, coord.Flush(context.Background(), graph, "user-1"))

	assert.False(t, coord.HasUnsavedChanges())
	assert.Equal(t, 2, repo.SaveCount())
}

func TestLastRevisionTracksPersistedChecksum(t *testing.T) {
	repo := memory.NewStoryRepository()
	coord := newTestCoordinator(repo, 0)
	graph := branchingGraph(t)

	require.Nil(t, coord.LastRevision())

	_, err := coord.Save(context.Background(), graph, "user-1")
	require.NoError(t, err)

	rev := coord.LastRevision()
	require.NotNil(t, rev)
	assert.Equal(t, graph.ID().String(), rev.StoryID)
	assert.Equal(t, "user-1", rev.CreatedBy)
	assert.NotEmpty(t, rev.Checksum)
	assert.Equal(t, graph.NodeCount(), rev.NodeCount)
}
