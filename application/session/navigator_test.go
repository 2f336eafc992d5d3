package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyloom-backend/domain/core/aggregates"
	"storyloom-backend/domain/core/entities"
	"storyloom-backend/domain/core/valueobjects"
	"storyloom-backend/domain/paging"
	pkgerrors "storyloom-backend/pkg/errors"
)

type nodeSpec struct {
	key     string
	body    string
	ending  bool
	choices [][2]string // label, target
}

func buildTestGraph(t *testing.T, specs []nodeSpec) *aggregates.StoryGraph {
	t.Helper()

	nodes := make([]*entities.StoryNode, 0, len(specs))
	for _, spec := range specs {
		key := valueobjects.MustNodeKey(spec.key)
		passage, err := valueobjects.NewPassage(spec.body, valueobjects.FormatPlainText)
		require.NoError(t, err)

		var choices []entities.Choice
		for _, c := range spec.choices {
			choices = append(choices, entities.Choice{
				Label:  c[0],
				Target: valueobjects.MustNodeKey(c[1]),
			})
		}

		node, err := entities.ReconstructStoryNode(key, passage, choices, spec.ending, nil, time.Now(), time.Now())
		require.NoError(t, err)
		nodes = append(nodes, node)
	}

	graph, err := aggregates.ReconstructStoryGraph(
		aggregates.NewStoryID(), "author-1", "Test Story", "",
		nodes, nil, time.Now(), time.Now(), 1,
	)
	require.NoError(t, err)
	return graph
}

func branchingGraph(t *testing.T) *aggregates.StoryGraph {
	t.Helper()
	return buildTestGraph(t, []nodeSpec{
		{key: "root", body: "You wake up.", choices: [][2]string{{"Go left", "left"}, {"Go right", "right"}}},
		{key: "left", body: "A dead end.", ending: true},
		{key: "right", body: "Back to the start.", choices: [][2]string{{"Return", "root"}}},
	})
}

func TestNavigatorStartsIdle(t *testing.T) {
	nav := NewNavigator()

	assert.Equal(t, StateIdle, nav.State())
	err := nav.GoToPage(1)
	assert.True(t, pkgerrors.IsNavigationRejection(err))
}

func TestInitializePositionsOnPageOne(t *testing.T) {
	nav := NewNavigator()
	require.NoError(t, nav.Initialize(branchingGraph(t)))

	assert.Equal(t, StateReady, nav.State())
	assert.Equal(t, 1, nav.CurrentPage())
	assert.Equal(t, "root", nav.CurrentNode().String())
	assert.Equal(t, 3, nav.TotalPages())
	assert.False(t, nav.CanGoBack())
}

func TestInitializeFailsWithoutEntryNode(t *testing.T) {
	graph := buildTestGraph(t, []nodeSpec{
		{key: "intro", body: "No entry key here.", ending: true},
	})

	nav := NewNavigator()
	err := nav.Initialize(graph)

	require.Error(t, err)
	assert.True(t, pkgerrors.IsMapping(err))
	assert.Equal(t, StateIdle, nav.State())
}

func TestPageAndNodeNavigationAgree(t *testing.T) {
	nav := NewNavigator()
	require.NoError(t, nav.Initialize(branchingGraph(t)))

	require.NoError(t, nav.GoToPage(2))
	byPageNode := nav.CurrentNode()

	require.NoError(t, nav.Restart())
	require.NoError(t, nav.GoToNode(byPageNode))

	assert.Equal(t, 2, nav.CurrentPage())
	assert.Equal(t, byPageNode, nav.CurrentNode())
}

func TestGoToPageRejectsOutOfRange(t *testing.T) {
	nav := NewNavigator()
	require.NoError(t, nav.Initialize(branchingGraph(t)))

	for _, page := range []int{0, -1, 4, 100} {
		err := nav.GoToPage(page)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsNavigationRejection(err))
		assert.Equal(t, 1, nav.CurrentPage())
		assert.Equal(t, "root", nav.CurrentNode().String())
	}
}

func TestGoToNodeRejectsUnknownKey(t *testing.T) {
	nav := NewNavigator()
	require.NoError(t, nav.Initialize(branchingGraph(t)))

	err := nav.GoToNode(valueobjects.MustNodeKey("nowhere"))

	require.Error(t, err)
	assert.True(t, pkgerrors.IsNavigationRejection(err))
	assert.Equal(t, "root", nav.CurrentNode().String())
	assert.False(t, nav.CanGoBack())
}

func TestGoBackRetracesHistory(t *testing.T) {
	nav := NewNavigator()
	require.NoError(t, nav.Initialize(branchingGraph(t)))

	require.NoError(t, nav.GoToPage(2))
	require.NoError(t, nav.GoToPage(3))
	require.True(t, nav.CanGoBack())

	require.NoError(t, nav.GoBack())
	assert.Equal(t, 2, nav.CurrentPage())

	require.NoError(t, nav.GoBack())
	assert.Equal(t, 1, nav.CurrentPage())
	assert.False(t, nav.CanGoBack())

	err := nav.GoBack()
	assert.True(t, pkgerrors.IsNavigationRejection(err))
}

func TestNavigatingToCurrentPageDoesNotGrowHistory(t *testing.T) {
	nav := NewNavigator()
	require.NoError(t, nav.Initialize(branchingGraph(t)))

	require.NoError(t, nav.GoToPage(1))
	require.NoError(t, nav.GoToPage(1))

	assert.False(t, nav.CanGoBack())
	assert.Empty(t, nav.History())
}

func TestRestartClearsHistory(t *testing.T) {
	nav := NewNavigator()
	require.NoError(t, nav.Initialize(branchingGraph(t)))

	require.NoError(t, nav.GoToPage(3))
	require.NoError(t, nav.GoToPage(2))
	require.NoError(t, nav.Restart())

	assert.Equal(t, 1, nav.CurrentPage())
	assert.Equal(t, "root", nav.CurrentNode().String())
	assert.False(t, nav.CanGoBack())
}

func TestRejectedNavigationLeavesHistoryIntact(t *testing.T) {
	nav := NewNavigator()
	require.NoError(t, nav.Initialize(branchingGraph(t)))

	require.NoError(t, nav.GoToPage(2))
	before := nav.History()

	require.Error(t, nav.GoToPage(99))
	require.Error(t, nav.GoToNode(valueobjects.MustNodeKey("missing")))

	assert.Equal(t, before, nav.History())
	assert.Equal(t, 2, nav.CurrentPage())
}

func TestGoBackRejectionLeavesHistoryIntact(t *testing.T) {
	nav := NewNavigator()
	require.NoError(t, nav.Initialize(branchingGraph(t)))
	require.NoError(t, nav.GoToPage(2))
	before := nav.History()

	// Force the history entry out of the active mapping to hit the
	// broken-invariant rejection path
	other := buildTestGraph(t, []nodeSpec{
		{key: "start", body: "Elsewhere.", ending: true},
	})
	replacement, err := paging.ComputeMapping(other)
	require.NoError(t, err)
	nav.mapping = replacement

	err = nav.GoBack()

	require.Error(t, err)
	assert.True(t, pkgerrors.IsNavigationRejection(err))
	assert.Equal(t, before, nav.History())
	assert.Equal(t, "left", nav.CurrentNode().String())
}

func TestTeardownReturnsToIdle(t *testing.T) {
	nav := NewNavigator()
	require.NoError(t, nav.Initialize(branchingGraph(t)))
	require.NoError(t, nav.GoToPage(2))

	nav.Teardown()

	assert.Equal(t, StateIdle, nav.State())
	assert.Equal(t, 0, nav.TotalPages())
	assert.True(t, pkgerrors.IsNavigationRejection(nav.GoToPage(1)))
}
