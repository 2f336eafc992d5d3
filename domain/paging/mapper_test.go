package paging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyloom-backend/domain/core/aggregates"
	"storyloom-backend/domain/core/entities"
	"storyloom-backend/domain/core/valueobjects"
	pkgerrors "storyloom-backend/pkg/errors"
)

type nodeSpec struct {
	key     string
	targets []string
	ending  bool
}

func buildGraph(t *testing.T, specs ...nodeSpec) *aggregates.StoryGraph {
	t.Helper()

	graph, err := aggregates.NewStoryGraph("author-1", "Test Story")
	require.NoError(t, err)

	for _, spec := range specs {
		passage, err := valueobjects.NewPassage("Passage for "+spec.key, valueobjects.FormatPlainText)
		require.NoError(t, err)

		node, err := entities.NewStoryNode(valueobjects.MustNodeKey(spec.key), passage)
		require.NoError(t, err)

		for _, target := range spec.targets {
			require.NoError(t, node.AddChoice("go to "+target, valueobjects.MustNodeKey(target)))
		}
		if spec.ending {
			require.NoError(t, node.MarkEnding())
		}

		require.NoError(t, graph.AddNode(node))
	}

	return graph
}

func pageOf(t *testing.T, m *NodeMapping, key string) int {
	t.Helper()
	page, ok := m.PageFor(valueobjects.MustNodeKey(key))
	require.True(t, ok, "node %q has no page", key)
	return page
}

func TestComputeMapping_LinearStory(t *testing.T) {
	graph := buildGraph(t,
		nodeSpec{key: "root", targets: []string{"middle"}},
		nodeSpec{key: "middle", targets: []string{"end"}},
		nodeSpec{key: "end", ending: true},
	)

	mapping, err := ComputeMapping(graph)
	require.NoError(t, err)

	assert.Equal(t, 3, mapping.TotalPages())
	assert.Equal(t, 1, pageOf(t, mapping, "root"))
	assert.Equal(t, 2, pageOf(t, mapping, "middle"))
	assert.Equal(t, 3, pageOf(t, mapping, "end"))
}

func TestComputeMapping_BijectionOverAllPages(t *testing.T) {
	graph := buildGraph(t,
		nodeSpec{key: "root", targets: []string{"a", "b", "c"}},
		nodeSpec{key: "a", targets: []string{"d"}},
		nodeSpec{key: "b", targets: []string{"d"}},
		nodeSpec{key: "c", ending: true},
		nodeSpec{key: "d", ending: true},
	)

	mapping, err := ComputeMapping(graph)
	require.NoError(t, err)
	require.Equal(t, graph.NodeCount(), mapping.TotalPages())

	for page := 1; page <= mapping.TotalPages(); page++ {
		key, ok := mapping.NodeFor(page)
		require.True(t, ok)

		back, ok := mapping.PageFor(key)
		require.True(t, ok)
		assert.Equal(t, page, back)
	}
}

func TestComputeMapping_BreadthFirstOrder(t *testing.T) {
	// Siblings of the entry node's choices come before anything deeper
	graph := buildGraph(t,
		nodeSpec{key: "root", targets: []string{"a", "b"}},
		nodeSpec{key: "a", targets: []string{"deep"}},
		nodeSpec{key: "b", ending: true},
		nodeSpec{key: "deep", ending: true},
	)

	mapping, err := ComputeMapping(graph)
	require.NoError(t, err)

	assert.Equal(t, 1, pageOf(t, mapping, "root"))
	assert.Equal(t, 2, pageOf(t, mapping, "a"))
	assert.Equal(t, 3, pageOf(t, mapping, "b"))
	assert.Equal(t, 4, pageOf(t, mapping, "deep"))
}

func TestComputeMapping_CycleTerminatesWithOnePagePerNode(t *testing.T) {
	graph := buildGraph(t,
		nodeSpec{key: "root", targets: []string{"a"}},
		nodeSpec{key: "a", targets: []string{"b"}},
		nodeSpec{key: "b", targets: []string{"root"}},
	)

	mapping, err := ComputeMapping(graph)
	require.NoError(t, err)

	assert.Equal(t, 3, mapping.TotalPages())
	seen := make(map[int]bool)
	for _, node := range graph.Nodes() {
		page := pageOf(t, mapping, node.Key().String())
		assert.False(t, seen[page], "page %d assigned twice", page)
		seen[page] = true
	}
}

func TestComputeMapping_SelfReferencingChoice(t *testing.T) {
	graph := buildGraph(t,
		nodeSpec{key: "root", targets: []string{"root", "a"}},
		nodeSpec{key: "a", ending: true},
	)

	mapping, err := ComputeMapping(graph)
	require.NoError(t, err)

	assert.Equal(t, 2, mapping.TotalPages())
	assert.Equal(t, 1, pageOf(t, mapping, "root"))
	assert.Equal(t, 2, pageOf(t, mapping, "a"))
}

func TestComputeMapping_UnreachableNodesAppendedInDeclarationOrder(t *testing.T) {
	graph := buildGraph(t,
		nodeSpec{key: "orphan2", ending: true},
		nodeSpec{key: "root", targets: []string{"a"}},
		nodeSpec{key: "a", ending: true},
		nodeSpec{key: "orphan1", ending: true},
	)

	mapping, err := ComputeMapping(graph)
	require.NoError(t, err)

	// Reachable nodes first, then unreachable in declared order
	assert.Equal(t, 1, pageOf(t, mapping, "root"))
	assert.Equal(t, 2, pageOf(t, mapping, "a"))
	assert.Equal(t, 3, pageOf(t, mapping, "orphan2"))
	assert.Equal(t, 4, pageOf(t, mapping, "orphan1"))
}

func TestComputeMapping_DanglingTargetsIgnored(t *testing.T) {
	graph := buildGraph(t,
		nodeSpec{key: "root", targets: []string{"missing", "a"}},
		nodeSpec{key: "a", ending: true},
	)

	mapping, err := ComputeMapping(graph)
	require.NoError(t, err)

	assert.Equal(t, 2, mapping.TotalPages())
	assert.False(t, mapping.Contains(valueobjects.MustNodeKey("missing")))
}

func TestComputeMapping_MissingEntryNode(t *testing.T) {
	graph := buildGraph(t,
		nodeSpec{key: "somewhere", targets: []string{"else"}},
		nodeSpec{key: "else", ending: true},
	)

	_, err := ComputeMapping(graph)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsMapping(err))
}

func TestComputeMapping_StartAcceptedAsEntry(t *testing.T) {
	graph := buildGraph(t,
		nodeSpec{key: "start", targets: []string{"a"}},
		nodeSpec{key: "a", ending: true},
	)

	mapping, err := ComputeMapping(graph)
	require.NoError(t, err)
	assert.Equal(t, 1, pageOf(t, mapping, "start"))
}

func TestComputeMapping_DeterministicAcrossRuns(t *testing.T) {
	build := func() *aggregates.StoryGraph {
		return buildGraph(t,
			nodeSpec{key: "root", targets: []string{"b", "a"}},
			nodeSpec{key: "a", targets: []string{"c"}},
			nodeSpec{key: "b", targets: []string{"c"}},
			nodeSpec{key: "c", ending: true},
		)
	}

	first, err := ComputeMapping(build())
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := ComputeMapping(build())
		require.NoError(t, err)
		assert.Equal(t, first.Pages(), again.Pages())
	}
}

func TestDeclarationOrderMapping_PassesValidation(t *testing.T) {
	graph := buildGraph(t,
		nodeSpec{key: "root", targets: []string{"a"}},
		nodeSpec{key: "a", ending: true},
		nodeSpec{key: "orphan", ending: true},
	)

	mapping := declarationOrderMapping(graph)
	assert.True(t, Validate(graph, mapping))
	assert.Equal(t, 1, pageOf(t, mapping, "root"))
	assert.Equal(t, 2, pageOf(t, mapping, "a"))
	assert.Equal(t, 3, pageOf(t, mapping, "orphan"))
}

func TestValidate_RejectsIncompleteMapping(t *testing.T) {
	graph := buildGraph(t,
		nodeSpec{key: "root", targets: []string{"a"}},
		nodeSpec{key: "a", ending: true},
	)

	partial := newNodeMapping(2)
	partial.assign(valueobjects.MustNodeKey("root"))

	assert.False(t, Validate(graph, partial))
}

func TestValidate_NilArguments(t *testing.T) {
	graph := buildGraph(t, nodeSpec{key: "root", ending: true})

	assert.False(t, Validate(nil, newNodeMapping(0)))
	assert.False(t, Validate(graph, nil))
}

func TestComputeMapping_BranchingScenario(t *testing.T) {
	// root branches to A and B; B loops back to root
	graph := buildGraph(t,
		nodeSpec{key: "root", targets: []string{"A", "B"}},
		nodeSpec{key: "A", ending: true},
		nodeSpec{key: "B", targets: []string{"root"}},
	)

	mapping, err := ComputeMapping(graph)
	require.NoError(t, err)

	assert.Equal(t, 3, mapping.TotalPages())
	assert.Equal(t, 1, pageOf(t, mapping, "root"))
	assert.Equal(t, 2, pageOf(t, mapping, "A"))
	assert.Equal(t, 3, pageOf(t, mapping, "B"))
}
