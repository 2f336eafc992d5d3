package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storyloom-backend/application/ports"
	"storyloom-backend/domain/config"
	"storyloom-backend/domain/core/entities"
	"storyloom-backend/domain/core/valueobjects"
	"storyloom-backend/infrastructure/persistence/memory"
	pkgerrors "storyloom-backend/pkg/errors"
	"storyloom-backend/pkg/throttle"
)

type stubGenerator struct {
	calls  int
	result string
	err    error
}

func (g *stubGenerator) Generate(ctx context.Context, req ports.GenerationRequest) (string, error) {
	g.calls++
	return g.result, g.err
}

type sessionFixture struct {
	stories   *memory.StoryRepository
	comments  *memory.CommentRepository
	generator *stubGenerator
	cfg       *config.DomainConfig
	session   *Session
	storyID   string
}

func newSessionFixture(t *testing.T, cfg *config.DomainConfig) *sessionFixture {
	t.Helper()
	if cfg == nil {
		cfg = config.DevelopmentDomainConfig()
	}

	stories := memory.NewStoryRepository()
	graph := branchingGraph(t)
	require.NoError(t, stories.SaveStory(context.Background(), graph))

	f := &sessionFixture{
		stories:   stories,
		comments:  memory.NewCommentRepository(),
		generator: &stubGenerator{result: "A generated passage."},
		cfg:       cfg,
		storyID:   graph.ID().String(),
	}
	f.session = NewSession("session-1", "user-1", Dependencies{
		Stories:   f.stories,
		Comments:  f.comments,
		Generator: f.generator,
		Guard:     throttle.NewGuard(),
		Config:    cfg,
		Logger:    zap.NewNop(),
	})
	return f
}

func TestOpenPositionsOnEntryPage(t *testing.T) {
	f := newSessionFixture(t, nil)

	require.NoError(t, f.session.Open(context.Background(), f.storyID))

	pos, err := f.session.CurrentPosition()
	require.NoError(t, err)
	assert.Equal(t, 1, pos.Page)
	assert.Equal(t, "root", pos.NodeKey)
	assert.Equal(t, 3, pos.TotalPages)
	assert.Len(t, pos.Choices, 2)
	assert.False(t, f.session.HasUnsavedChanges())
}

func TestOpenUnknownStoryFails(t *testing.T) {
	f := newSessionFixture(t, nil)

	err := f.session.Open(context.Background(), "no-such-story")

	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))

	_, err = f.session.CurrentPosition()
	assert.True(t, pkgerrors.IsNavigationRejection(err))
}

func TestNavigationMovesCommentSliceWithPage(t *testing.T) {
	f := newSessionFixture(t, nil)
	require.NoError(t, f.session.Open(context.Background(), f.storyID))

	seed, err := entities.NewComment(f.storyID, 2, valueobjects.MustNodeKey("left"), "user-2", "Too abrupt", entities.CategorySuggestion)
	require.NoError(t, err)
	require.NoError(t, f.comments.InsertComment(context.Background(), seed))

	pos, err := f.session.GoToPage(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, 2, pos.Page)
	require.Len(t, pos.Comments, 1)
	assert.Equal(t, "Too abrupt", pos.Comments[0].Text())

	pos, err = f.session.GoToPage(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, pos.Comments)
}

func TestFollowChoiceUsesDeclaredOrder(t *testing.T) {
	f := newSessionFixture(t, nil)
	require.NoError(t, f.session.Open(context.Background(), f.storyID))

	pos, err := f.session.FollowChoice(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "right", pos.NodeKey)

	_, err = f.session.FollowChoice(context.Background(), 5)
	assert.True(t, pkgerrors.IsNavigationRejection(err))
}

func TestFollowChoiceOnEndingNodeRejected(t *testing.T) {
	f := newSessionFixture(t, nil)
	require.NoError(t, f.session.Open(context.Background(), f.storyID))

	pos, err := f.session.FollowChoice(context.Background(), 0)
	require.NoError(t, err)
	require.True(t, pos.IsEnding)

	_, err = f.session.FollowChoice(context.Background(), 0)
	assert.True(t, pkgerrors.IsNavigationRejection(err))
}

func TestUpdatePassageMarksDirty(t *testing.T) {
	f := newSessionFixture(t, nil)
	require.NoError(t, f.session.Open(context.Background(), f.storyID))

	err := f.session.UpdatePassage(context.Background(), valueobjects.MustNodeKey("root"), "A sharper opening.", valueobjects.FormatPlainText)

	require.NoError(t, err)
	assert.True(t, f.session.HasUnsavedChanges())

	result, err := f.session.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SaveCompleted, result)
	assert.False(t, f.session.HasUnsavedChanges())
}

func TestAddNodeKeepsExistingPagesStable(t *testing.T) {
	f := newSessionFixture(t, nil)
	require.NoError(t, f.session.Open(context.Background(), f.storyID))

	before, err := f.session.GoToPage(context.Background(), 2)
	require.NoError(t, err)
	beforeKey := before.NodeKey

	passage, err := valueobjects.NewPassage("A new branch.", valueobjects.FormatPlainText)
	require.NoError(t, err)
	node, err := entities.NewStoryNode(valueobjects.MustNodeKey("cave"), passage)
	require.NoError(t, err)
	require.NoError(t, f.session.AddNode(context.Background(), node))

	after, err := f.session.GoToPage(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, beforeKey, after.NodeKey)
	assert.True(t, f.session.HasUnsavedChanges())
}

func TestGeneratePassageIsThrottled(t *testing.T) {
	cfg := config.DevelopmentDomainConfig()
	cfg.GenerateMinInterval = time.Hour

	f := newSessionFixture(t, cfg)
	require.NoError(t, f.session.Open(context.Background(), f.storyID))

	req := ports.GenerationRequest{
		UserPrompt:  "Continue the scene",
		ContentType: ports.GenerationPassage,
		Model:       "medium",
	}

	text, err := f.session.GeneratePassage(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "A generated passage.", text)

	_, err = f.session.GeneratePassage(context.Background(), req)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeRateLimit))
	assert.Equal(t, 1, f.generator.calls)
}

func TestGenerateFailureSurfacesError(t *testing.T) {
	f := newSessionFixture(t, nil)
	f.generator.err = pkgerrors.NewExternalError("generation", assert.AnError)
	require.NoError(t, f.session.Open(context.Background(), f.storyID))

	_, err := f.session.GeneratePassage(context.Background(), ports.GenerationRequest{
		UserPrompt:  "Continue",
		ContentType: ports.GenerationPassage,
	})

	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeExternal))
}

func TestCloseFlushesUnsavedChanges(t *testing.T) {
	cfg := config.DevelopmentDomainConfig()
	cfg.SaveMinInterval = time.Hour

	f := newSessionFixture(t, cfg)
	require.NoError(t, f.session.Open(context.Background(), f.storyID))

	require.NoError(t, f.session.UpdatePassage(context.Background(), valueobjects.MustNodeKey("root"), "Changed before close.", valueobjects.FormatPlainText))
	savesBefore := f.stories.SaveCount()

	require.NoError(t, f.session.Close(context.Background()))

	assert.Equal(t, savesBefore+1, f.stories.SaveCount())

	_, err := f.session.CurrentPosition()
	assert.True(t, pkgerrors.IsNavigationRejection(err))
}

func TestManagerCreateGetClose(t *testing.T) {
	f := newSessionFixture(t, nil)
	mgr := NewManager(Dependencies{
		Stories:   f.stories,
		Comments:  f.comments,
		Generator: f.generator,
		Guard:     throttle.NewGuard(),
		Config:    f.cfg,
		Logger:    zap.NewNop(),
	})
	defer mgr.Shutdown(context.Background())

	sess, err := mgr.Create(context.Background(), "user-1", f.storyID)
	require.NoError(t, err)
	require.Equal(t, 1, mgr.Count())

	got, err := mgr.Get(sess.ID(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, sess, got)

	_, err = mgr.Get(sess.ID(), "user-2")
	assert.True(t, pkgerrors.IsNotFound(err), "other users must not see the session")

	require.NoError(t, mgr.Close(context.Background(), sess.ID(), "user-1"))
	assert.Equal(t, 0, mgr.Count())
}
