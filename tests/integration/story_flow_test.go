// Package integration exercises the full authoring flow across the
// command handlers, the session layer, and the read side, using the
// in-memory persistence implementations.
package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storyloom-backend/application/commands"
	commandhandlers "storyloom-backend/application/commands/handlers"
	"storyloom-backend/application/ports"
	"storyloom-backend/application/queries"
	queryhandlers "storyloom-backend/application/queries/handlers"
	"storyloom-backend/application/session"
	domainconfig "storyloom-backend/domain/config"
	"storyloom-backend/domain/core/entities"
	"storyloom-backend/domain/core/validators"
	"storyloom-backend/domain/core/valueobjects"
	"storyloom-backend/domain/events"
	"storyloom-backend/infrastructure/persistence/memory"
	"storyloom-backend/infrastructure/persistence/schema"
	pkgerrors "storyloom-backend/pkg/errors"
	"storyloom-backend/pkg/throttle"
)

// recordingBus captures published events so tests can assert on them.
type recordingBus struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

func (b *recordingBus) Publish(ctx context.Context, event events.DomainEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBus) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, batch...)
	return nil
}

func (b *recordingBus) eventTypes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.GetEventType())
	}
	return out
}

type stubGenerator struct {
	result string
}

func (g *stubGenerator) Generate(ctx context.Context, req ports.GenerationRequest) (string, error) {
	return g.result, nil
}

type flowFixture struct {
	stories  *memory.StoryRepository
	comments *memory.CommentRepository
	bus      *recordingBus
	cfg      *domainconfig.DomainConfig
	importer *commandhandlers.ImportStoryHandler
	manager  *session.Manager
}

func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()

	cfg := domainconfig.DevelopmentDomainConfig()
	stories := memory.NewStoryRepository()
	comments := memory.NewCommentRepository()
	bus := &recordingBus{}
	logger := zap.NewNop()

	f := &flowFixture{
		stories:  stories,
		comments: comments,
		bus:      bus,
		cfg:      cfg,
		importer: commandhandlers.NewImportStoryHandler(
			stories,
			schema.NewFormatEvolution(),
			validators.NewGraphValidatorWithConfig(cfg),
			bus,
			logger,
		),
		manager: session.NewManager(session.Dependencies{
			Stories:   stories,
			Comments:  comments,
			Generator: &stubGenerator{result: "And so the loom spun on."},
			Publisher: bus,
			Guard:     throttle.NewGuard(),
			Config:    cfg,
			Logger:    logger,
		}),
	}
	t.Cleanup(func() { f.manager.Shutdown(context.Background()) })
	return f
}

// importLegacySource imports a version 1 source with a branch and two
// endings and returns the new story's ID.
func (f *flowFixture) importLegacySource(t *testing.T) string {
	t.Helper()

	result, err := f.importer.Handle(context.Background(), commands.ImportStoryCommand{
		AuthorID:      "author-1",
		Title:         "The Lantern Road",
		FormatVersion: 1,
		Entries: []commands.RawSourceEntry{
			{Key: "StoryTitle", Body: "The Lantern Road"},
			{Key: "start", Body: "Two paths open before you.", Choices: []commands.RawChoice{
				{Label: "  Take the bridge ", Target: "bridge"},
				{Label: "Follow the river", Target: "river"},
			}},
			{Key: "bridge", Body: "The bridge holds. You cross at dusk."},
			{Key: "river", Body: "The river carries you home."},
		},
	})
	require.NoError(t, err)
	return result.Story.ID().String()
}

func TestImportMigratesLegacySource(t *testing.T) {
	f := newFlowFixture(t)

	result, err := f.importer.Handle(context.Background(), commands.ImportStoryCommand{
		AuthorID:      "author-1",
		Title:         "The Lantern Road",
		FormatVersion: 1,
		Entries: []commands.RawSourceEntry{
			{Key: "start", Body: "Two paths open.", Choices: []commands.RawChoice{
				{Label: "  Cross ", Target: "bridge"},
			}},
			{Key: "bridge", Body: "You cross."},
		},
	})
	require.NoError(t, err)

	// Two steps: v1 -> v2 -> v3
	require.Len(t, result.Migrations, 2)
	assert.Equal(t, 1, result.Migrations[0].FromVersion)
	assert.Equal(t, 3, result.Migrations[1].ToVersion)
	assert.Equal(t, 2, result.TotalPages)

	// The v2 migration trims choice labels
	start, err := result.Story.GetNode(valueobjects.MustNodeKey("start"))
	require.NoError(t, err)
	require.Len(t, start.Choices(), 1)
	assert.Equal(t, "Cross", start.Choices()[0].Label)

	// The v1 migration marks choice-less entries as endings
	bridge, err := result.Story.GetNode(valueobjects.MustNodeKey("bridge"))
	require.NoError(t, err)
	assert.True(t, bridge.IsEnding())
}

func TestImportPreservesDeclarationOrderInPages(t *testing.T) {
	f := newFlowFixture(t)
	storyID := f.importLegacySource(t)

	read := queryhandlers.NewGetStoryHandler(f.stories, zap.NewNop())
	result, err := read.Handle(context.Background(), queries.GetStoryQuery{
		StoryID: storyID,
		UserID:  "author-1",
	})
	require.NoError(t, err)

	require.Len(t, result.Nodes, 3)
	assert.Equal(t, "start", result.Nodes[0].Key)
	assert.Equal(t, 1, result.Nodes[0].Page)
	assert.Equal(t, "bridge", result.Nodes[1].Key)
	assert.Equal(t, 2, result.Nodes[1].Page)
	assert.Equal(t, "river", result.Nodes[2].Key)
	assert.Equal(t, 3, result.Nodes[2].Page)
}

func TestReadingSessionFlow(t *testing.T) {
	f := newFlowFixture(t)
	storyID := f.importLegacySource(t)

	sess, err := f.manager.Create(context.Background(), "author-1", storyID)
	require.NoError(t, err)

	pos, err := sess.CurrentPosition()
	require.NoError(t, err)
	assert.Equal(t, 1, pos.Page)
	assert.Equal(t, "start", pos.NodeKey)
	require.Len(t, pos.Choices, 2)

	// Follow the second declared choice, then back out
	pos, err = sess.FollowChoice(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "river", pos.NodeKey)
	assert.True(t, pos.IsEnding)

	pos, err = sess.GoBack(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "start", pos.NodeKey)
	assert.False(t, pos.CanGoBack)
}

func TestEditCommentSaveFlow(t *testing.T) {
	f := newFlowFixture(t)
	storyID := f.importLegacySource(t)

	sess, err := f.manager.Create(context.Background(), "author-1", storyID)
	require.NoError(t, err)

	// Edit the opening passage
	require.NoError(t, sess.UpdatePassage(
		context.Background(),
		valueobjects.MustNodeKey("start"),
		"Three paths open before you.",
		valueobjects.FormatPlainText,
	))
	require.True(t, sess.HasUnsavedChanges())

	// Leave a comment on the current page
	comment, err := sess.Comments().Add(
		context.Background(),
		valueobjects.MustNodeKey("start"),
		"reader-2",
		"Should this say three?",
		entities.CategorySuggestion,
	)
	require.NoError(t, err)
	assert.Equal(t, 1, comment.Page())

	// Persist the edit
	result, err := sess.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, session.SaveCompleted, result)
	assert.False(t, sess.HasUnsavedChanges())

	// The saved body survives a fresh read
	read := queryhandlers.NewGetPageHandler(f.stories, f.comments, zap.NewNop())
	page, err := read.Handle(context.Background(), queries.GetPageQuery{
		StoryID: storyID,
		UserID:  "author-1",
		Page:    1,
	})
	require.NoError(t, err)
	assert.Equal(t, "Three paths open before you.", page.Node.Body)
	require.Len(t, page.Comments, 1)
	assert.Equal(t, "Should this say three?", page.Comments[0].Text)

	// Domain events flowed out for the import, the comment, and the save
	types := f.bus.eventTypes()
	assert.Contains(t, types, "story.created")
	assert.Contains(t, types, "comment.added")
	assert.Contains(t, types, "story.saved")
}

func TestSaveThrottleAcrossSessions(t *testing.T) {
	f := newFlowFixture(t)
	f.cfg.SaveMinInterval = time.Hour
	storyID := f.importLegacySource(t)

	sess, err := f.manager.Create(context.Background(), "author-1", storyID)
	require.NoError(t, err)

	require.NoError(t, sess.UpdatePassage(
		context.Background(),
		valueobjects.MustNodeKey("start"),
		"First edit.",
		valueobjects.FormatPlainText,
	))

	result, err := sess.Save(context.Background())
	require.NoError(t, err)
	require.Equal(t, session.SaveCompleted, result)

	// A second save inside the window is coalesced, not lost
	require.NoError(t, sess.UpdatePassage(
		context.Background(),
		valueobjects.MustNodeKey("start"),
		"Second edit.",
		valueobjects.FormatPlainText,
	))
	result, err = sess.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, session.SaveSkipped, result)
	assert.True(t, sess.HasUnsavedChanges())

	// Closing the session flushes the deferred edit
	saves := f.stories.SaveCount()
	require.NoError(t, f.manager.Close(context.Background(), sess.ID(), "author-1"))
	assert.Equal(t, saves+1, f.stories.SaveCount())
}

func TestListStoriesFiltersAndSorts(t *testing.T) {
	f := newFlowFixture(t)
	f.importLegacySource(t)

	_, err := f.importer.Handle(context.Background(), commands.ImportStoryCommand{
		AuthorID:      "author-1",
		Title:         "A Quiet Harbor",
		FormatVersion: 3,
		Entries: []commands.RawSourceEntry{
			{Key: "only", Body: "The harbor sleeps.", Format: "text", IsEnding: true},
		},
	})
	require.NoError(t, err)

	list := queryhandlers.NewListStoriesHandler(f.stories, zap.NewNop())

	result, err := list.Handle(context.Background(), queries.ListStoriesQuery{
		UserID: "author-1",
		Sort:   "title",
		Order:  "asc",
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.Total)
	assert.Equal(t, "A Quiet Harbor", result.Stories[0].Title)
	assert.Equal(t, "The Lantern Road", result.Stories[1].Title)

	result, err = list.Handle(context.Background(), queries.ListStoriesQuery{
		UserID:        "author-1",
		TitleContains: "lantern",
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Total)
	assert.Equal(t, "The Lantern Road", result.Stories[0].Title)
}

func TestSessionIsolationBetweenUsers(t *testing.T) {
	f := newFlowFixture(t)
	storyID := f.importLegacySource(t)

	sess, err := f.manager.Create(context.Background(), "author-1", storyID)
	require.NoError(t, err)

	_, err = f.manager.Get(sess.ID(), "someone-else")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}
