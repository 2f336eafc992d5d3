// Package session owns the mutable state of one active reading/editing
// session: where the reader is in the story, what has not been saved
// yet, and the cached comments for the current page. All mutation goes
// through the transition methods here; no caller touches fields
// directly, which is what keeps the page/node coordinates consistent.
package session

import (
	"fmt"

	"storyloom-backend/domain/core/aggregates"
	"storyloom-backend/domain/core/valueobjects"
	"storyloom-backend/domain/paging"
	pkgerrors "storyloom-backend/pkg/errors"
)

// NavState is the navigator's lifecycle state
type NavState string

const (
	// StateIdle means no story is loaded
	StateIdle NavState = "idle"

	// StateReady means a mapping is computed and navigation is live
	StateReady NavState = "ready"
)

// Navigator tracks the current position in a story and the back
// history. Page and node are two coordinates of one position; every
// transition keeps them consistent with the active mapping or is
// rejected without side effects.
type Navigator struct {
	state       NavState
	graph       *aggregates.StoryGraph
	mapping     *paging.NodeMapping
	currentNode valueobjects.NodeKey
	currentPage int
	// history holds previously visited node keys, most recent last
	history []valueobjects.NodeKey
}

// NewNavigator creates a navigator with no story loaded
func NewNavigator() *Navigator {
	return &Navigator{state: StateIdle}
}

// State returns the navigator's lifecycle state
func (n *Navigator) State() NavState {
	return n.state
}

// Initialize computes the page mapping for a graph and positions the
// reader on page 1. On any failure the navigator stays Idle.
func (n *Navigator) Initialize(graph *aggregates.StoryGraph) error {
	if graph == nil {
		return pkgerrors.NewMappingError("graph cannot be nil")
	}

	mapping, err := paging.ComputeMapping(graph)
	if err != nil {
		return err
	}

	entry, err := graph.EntryNode()
	if err != nil {
		return err
	}

	entryPage, ok := mapping.PageFor(entry.Key())
	if !ok {
		return pkgerrors.NewMappingError("entry node has no page assignment")
	}

	n.graph = graph
	n.mapping = mapping
	n.currentNode = entry.Key()
	n.currentPage = entryPage
	n.history = nil
	n.state = StateReady
	return nil
}

// Teardown unloads the story and returns to Idle
func (n *Navigator) Teardown() {
	*n = Navigator{state: StateIdle}
}

// CurrentNode returns the node key of the current position
func (n *Navigator) CurrentNode() valueobjects.NodeKey {
	return n.currentNode
}

// CurrentPage returns the page number of the current position
func (n *Navigator) CurrentPage() int {
	return n.currentPage
}

// TotalPages returns the page count of the active mapping
func (n *Navigator) TotalPages() int {
	if n.mapping == nil {
		return 0
	}
	return n.mapping.TotalPages()
}

// CanGoBack reports whether the history stack is non-empty
func (n *Navigator) CanGoBack() bool {
	return len(n.history) > 0
}

// History returns a copy of the visited node keys, most recent last
func (n *Navigator) History() []valueobjects.NodeKey {
	out := make([]valueobjects.NodeKey, len(n.history))
	copy(out, n.history)
	return out
}

// Mapping returns the active node mapping
func (n *Navigator) Mapping() *paging.NodeMapping {
	return n.mapping
}

// GoToPage jumps directly to a page number. This is page-flip
// navigation, distinct from following a choice; out-of-range pages are
// rejected and the state is left unchanged.
func (n *Navigator) GoToPage(page int) error {
	if err := n.requireReady(); err != nil {
		return err
	}

	if page < 1 || page > n.mapping.TotalPages() {
		return pkgerrors.NewNavigationRejection(
			fmt.Sprintf("page %d outside range [1, %d]", page, n.mapping.TotalPages()))
	}

	target, ok := n.mapping.NodeFor(page)
	if !ok {
		return pkgerrors.NewNavigationRejection(fmt.Sprintf("no node mapped to page %d", page))
	}

	n.moveTo(target, page)
	return nil
}

// GoToNode jumps to a node by identity. Page and node addressing must
// agree for the same position, so this shares GoToPage's semantics.
func (n *Navigator) GoToNode(key valueobjects.NodeKey) error {
	if err := n.requireReady(); err != nil {
		return err
	}

	page, ok := n.mapping.PageFor(key)
	if !ok {
		return pkgerrors.NewNavigationRejection("unknown node key: " + key.String())
	}

	n.moveTo(key, page)
	return nil
}

// GoBack pops the most recent history entry and makes it current
func (n *Navigator) GoBack() error {
	if err := n.requireReady(); err != nil {
		return err
	}

	if len(n.history) == 0 {
		return pkgerrors.NewNavigationRejection("history is empty")
	}

	last := n.history[len(n.history)-1]
	page, ok := n.mapping.PageFor(last)
	if !ok {
		// History only ever holds mapped keys; reject without mutating
		// if that invariant is somehow broken
		return pkgerrors.NewNavigationRejection("history entry no longer mapped: " + last.String())
	}

	n.history = n.history[:len(n.history)-1]
	n.currentNode = last
	n.currentPage = page
	return nil
}

// Restart clears history and returns to the entry node. The mapping is
// not recomputed: the graph is assumed unchanged.
func (n *Navigator) Restart() error {
	if err := n.requireReady(); err != nil {
		return err
	}

	entry, err := n.graph.EntryNode()
	if err != nil {
		return err
	}

	page, ok := n.mapping.PageFor(entry.Key())
	if !ok {
		return pkgerrors.NewMappingError("entry node has no page assignment")
	}

	n.history = nil
	n.currentNode = entry.Key()
	n.currentPage = page
	return nil
}

// moveTo pushes the departing position onto history when it differs
// from the target, then sets the new coordinates
func (n *Navigator) moveTo(target valueobjects.NodeKey, page int) {
	if !n.currentNode.Equals(target) {
		n.history = append(n.history, n.currentNode)
	}
	n.currentNode = target
	n.currentPage = page
}

func (n *Navigator) requireReady() error {
	if n.state != StateReady {
		return pkgerrors.NewNavigationRejection("no story loaded")
	}
	return nil
}
