package aggregates

import (
	"time"

	"github.com/google/uuid"

	"storyloom-backend/domain/core/entities"
	"storyloom-backend/domain/core/valueobjects"
	"storyloom-backend/domain/events"
	pkgerrors "storyloom-backend/pkg/errors"
)

// StoryID represents a unique story identifier
type StoryID string

// NewStoryID creates a new random StoryID
func NewStoryID() StoryID {
	return StoryID(uuid.New().String())
}

// String returns the string representation
func (id StoryID) String() string {
	return string(id)
}

// Bookkeeping keys carried alongside nodes in authored story sources.
// They hold format/version markers, never story content, and must be
// excluded from node enumeration.
var bookkeepingKeys = map[string]bool{
	"StoryTitle":    true,
	"StoryData":     true,
	"StoryFormat":   true,
	"FormatVersion": true,
}

// IsBookkeepingKey reports whether a raw source key is a non-node
// bookkeeping entry
func IsBookkeepingKey(key string) bool {
	return bookkeepingKeys[key]
}

// StoryGraph is the aggregate root for a branching story. It owns the
// set of story nodes and their outgoing choices and preserves the
// authored declaration order, which the fallback page mapper depends on.
type StoryGraph struct {
	id          StoryID
	authorID    string
	title       string
	description string
	nodes       map[string]*entities.StoryNode
	// order holds node keys in declaration order
	order       []string
	bookkeeping map[string]string
	createdAt   time.Time
	updatedAt   time.Time
	version     int
	events      []events.DomainEvent
}

// NewStoryGraph creates an empty story graph
func NewStoryGraph(authorID, title string) (*StoryGraph, error) {
	if authorID == "" {
		return nil, pkgerrors.NewValidationError("authorID cannot be empty")
	}
	if title == "" {
		return nil, pkgerrors.NewValidationError("title cannot be empty")
	}

	now := time.Now()
	g := &StoryGraph{
		id:          NewStoryID(),
		authorID:    authorID,
		title:       title,
		nodes:       make(map[string]*entities.StoryNode),
		order:       []string{},
		bookkeeping: make(map[string]string),
		createdAt:   now,
		updatedAt:   now,
		version:     1,
		events:      []events.DomainEvent{},
	}

	g.addEvent(events.NewStoryCreated(g.id.String(), authorID, title, now))
	return g, nil
}

// ReconstructStoryGraph rebuilds a graph from repository data. Nodes
// must be supplied in their authored declaration order.
func ReconstructStoryGraph(
	id StoryID,
	authorID, title, description string,
	nodes []*entities.StoryNode,
	bookkeeping map[string]string,
	createdAt, updatedAt time.Time,
	version int,
) (*StoryGraph, error) {
	if authorID == "" {
		return nil, pkgerrors.NewValidationError("authorID cannot be empty")
	}

	if bookkeeping == nil {
		bookkeeping = make(map[string]string)
	}

	g := &StoryGraph{
		id:          id,
		authorID:    authorID,
		title:       title,
		description: description,
		nodes:       make(map[string]*entities.StoryNode, len(nodes)),
		order:       make([]string, 0, len(nodes)),
		bookkeeping: bookkeeping,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
		version:     version,
		events:      []events.DomainEvent{},
	}

	for _, node := range nodes {
		key := node.Key().String()
		if IsBookkeepingKey(key) {
			return nil, pkgerrors.NewValidationError("bookkeeping key used as node key: " + key)
		}
		if _, exists := g.nodes[key]; exists {
			return nil, pkgerrors.NewConflictError("duplicate node key: " + key)
		}
		g.nodes[key] = node
		g.order = append(g.order, key)
	}

	return g, nil
}

// ID returns the story's unique identifier
func (g *StoryGraph) ID() StoryID {
	return g.id
}

// AuthorID returns the owning author's ID
func (g *StoryGraph) AuthorID() string {
	return g.authorID
}

// Title returns the story title
func (g *StoryGraph) Title() string {
	return g.title
}

// Description returns the story description
func (g *StoryGraph) Description() string {
	return g.description
}

// Version returns the aggregate version for optimistic locking
func (g *StoryGraph) Version() int {
	return g.version
}

// CreatedAt returns when the story was created
func (g *StoryGraph) CreatedAt() time.Time {
	return g.createdAt
}

// UpdatedAt returns when the story was last modified
func (g *StoryGraph) UpdatedAt() time.Time {
	return g.updatedAt
}

// Bookkeeping returns the story's format/version markers
func (g *StoryGraph) Bookkeeping() map[string]string {
	out := make(map[string]string, len(g.bookkeeping))
	for k, v := range g.bookkeeping {
		out[k] = v
	}
	return out
}

// SetBookkeeping records a format/version marker
func (g *StoryGraph) SetBookkeeping(key, value string) error {
	if !IsBookkeepingKey(key) {
		return pkgerrors.NewValidationError("not a bookkeeping key: " + key)
	}
	g.bookkeeping[key] = value
	g.updatedAt = time.Now()
	return nil
}

// AddNode appends a node to the graph, preserving declaration order
func (g *StoryGraph) AddNode(node *entities.StoryNode) error {
	key := node.Key().String()

	if IsBookkeepingKey(key) {
		return pkgerrors.NewValidationError("bookkeeping key used as node key: " + key)
	}

	if _, exists := g.nodes[key]; exists {
		return pkgerrors.NewConflictError("duplicate node key: " + key)
	}

	g.nodes[key] = node
	g.order = append(g.order, key)
	g.updatedAt = time.Now()
	g.version++

	g.addEvent(events.NewNodeAdded(g.id.String(), node.Key(), g.updatedAt))
	return nil
}

// GetNode retrieves a node by key
func (g *StoryGraph) GetNode(key valueobjects.NodeKey) (*entities.StoryNode, error) {
	node, exists := g.nodes[key.String()]
	if !exists {
		return nil, pkgerrors.NewNotFoundError("node " + key.String())
	}
	return node, nil
}

// HasNode reports whether a node exists for the key
func (g *StoryGraph) HasNode(key valueobjects.NodeKey) bool {
	_, exists := g.nodes[key.String()]
	return exists
}

// Nodes returns the enumerable story nodes in declaration order.
// Bookkeeping entries never appear here.
func (g *StoryGraph) Nodes() []*entities.StoryNode {
	out := make([]*entities.StoryNode, 0, len(g.order))
	for _, key := range g.order {
		out = append(out, g.nodes[key])
	}
	return out
}

// NodeCount returns the number of enumerable nodes
func (g *StoryGraph) NodeCount() int {
	return len(g.nodes)
}

// EntryNode returns the designated starting node: "root" if present,
// otherwise "start". A graph with neither is unusable.
func (g *StoryGraph) EntryNode() (*entities.StoryNode, error) {
	if node, exists := g.nodes[valueobjects.EntryKeyRoot]; exists {
		return node, nil
	}
	if node, exists := g.nodes[valueobjects.EntryKeyStart]; exists {
		return node, nil
	}
	return nil, pkgerrors.NewMappingError("story has no entry node (expected 'root' or 'start')")
}

// DanglingTargets returns the choice targets that resolve to no node in
// the graph. Dangling targets are tolerated but should be surfaced to
// the author.
func (g *StoryGraph) DanglingTargets() []valueobjects.NodeKey {
	var dangling []valueobjects.NodeKey
	seen := make(map[string]bool)

	for _, key := range g.order {
		for _, choice := range g.nodes[key].Choices() {
			if choice.Target.IsZero() {
				continue
			}
			target := choice.Target.String()
			if _, exists := g.nodes[target]; !exists && !seen[target] {
				seen[target] = true
				dangling = append(dangling, choice.Target)
			}
		}
	}

	return dangling
}

// Rename updates the story title
func (g *StoryGraph) Rename(title string) error {
	if title == "" {
		return pkgerrors.NewValidationError("title cannot be empty")
	}
	g.title = title
	g.updatedAt = time.Now()
	g.version++
	return nil
}

// Describe updates the story description
func (g *StoryGraph) Describe(description string) {
	g.description = description
	g.updatedAt = time.Now()
	g.version++
}

// GetUncommittedEvents returns all uncommitted domain events
func (g *StoryGraph) GetUncommittedEvents() []events.DomainEvent {
	return g.events
}

// MarkEventsAsCommitted clears all uncommitted events
func (g *StoryGraph) MarkEventsAsCommitted() {
	g.events = []events.DomainEvent{}
}

func (g *StoryGraph) addEvent(event events.DomainEvent) {
	g.events = append(g.events, event)
}
