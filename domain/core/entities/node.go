package entities

import (
	"time"

	"storyloom-backend/domain/config"
	"storyloom-backend/domain/core/valueobjects"
	pkgerrors "storyloom-backend/pkg/errors"
)

// Choice is a labeled edge from one story node to another. The target
// key may dangle (point at no node in the graph); that is an authoring
// mistake flagged by validation, not a fatal condition.
type Choice struct {
	Label  string
	Target valueobjects.NodeKey
}

// StoryNode is a single unit of story content with outgoing choices.
// It carries the passage shown to the reader, the ordered choices that
// lead out of it, and opaque authoring metadata.
type StoryNode struct {
	// Private fields ensure encapsulation
	key       valueobjects.NodeKey
	passage   valueobjects.Passage
	choices   []Choice
	isEnding  bool
	metadata  map[string]interface{}
	createdAt time.Time
	updatedAt time.Time
}

// NewStoryNode creates a new story node with business rule validation
func NewStoryNode(key valueobjects.NodeKey, passage valueobjects.Passage) (*StoryNode, error) {
	return NewStoryNodeWithConfig(key, passage, config.DefaultDomainConfig())
}

// NewStoryNodeWithConfig creates a new story node against a specific configuration
func NewStoryNodeWithConfig(key valueobjects.NodeKey, passage valueobjects.Passage, cfg *config.DomainConfig) (*StoryNode, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	if key.IsZero() {
		return nil, pkgerrors.NewValidationError("node key cannot be empty")
	}

	if passage.IsEmpty() && !cfg.AllowEmptyBody {
		return nil, pkgerrors.NewValidationError("passage cannot be empty")
	}

	now := time.Now()
	return &StoryNode{
		key:       key,
		passage:   passage,
		choices:   []Choice{},
		metadata:  make(map[string]interface{}),
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructStoryNode reconstructs a node from repository data with
// preserved timestamps
func ReconstructStoryNode(
	key valueobjects.NodeKey,
	passage valueobjects.Passage,
	choices []Choice,
	isEnding bool,
	metadata map[string]interface{},
	createdAt, updatedAt time.Time,
) (*StoryNode, error) {
	if key.IsZero() {
		return nil, pkgerrors.NewValidationError("node key cannot be empty")
	}

	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	if choices == nil {
		choices = []Choice{}
	}

	return &StoryNode{
		key:       key,
		passage:   passage,
		choices:   choices,
		isEnding:  isEnding,
		metadata:  metadata,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}, nil
}

// Key returns the node's identifier within its graph
func (n *StoryNode) Key() valueobjects.NodeKey {
	return n.key
}

// Passage returns the node's readable content
func (n *StoryNode) Passage() valueobjects.Passage {
	return n.passage
}

// Choices returns a copy of the node's outgoing choices in declared order
func (n *StoryNode) Choices() []Choice {
	out := make([]Choice, len(n.choices))
	copy(out, n.choices)
	return out
}

// IsEnding reports whether this node terminates the story
func (n *StoryNode) IsEnding() bool {
	return n.isEnding
}

// Metadata returns the node's opaque metadata
func (n *StoryNode) Metadata() map[string]interface{} {
	return n.metadata
}

// CreatedAt returns when the node was created
func (n *StoryNode) CreatedAt() time.Time {
	return n.createdAt
}

// UpdatedAt returns when the node was last modified
func (n *StoryNode) UpdatedAt() time.Time {
	return n.updatedAt
}

// UpdatePassage replaces the node's passage with validation
func (n *StoryNode) UpdatePassage(passage valueobjects.Passage) error {
	if passage.IsEmpty() {
		return pkgerrors.NewValidationError("passage cannot be empty")
	}

	if passage.Equals(n.passage) {
		return nil // No change needed
	}

	n.passage = passage
	n.updatedAt = time.Now()
	return nil
}

// AddChoice appends an outgoing choice. Self-referencing targets are
// legal; the page mapper's visited-set keeps them from looping.
func (n *StoryNode) AddChoice(label string, target valueobjects.NodeKey) error {
	return n.AddChoiceWithConfig(label, target, config.DefaultDomainConfig())
}

// AddChoiceWithConfig appends an outgoing choice against a specific configuration
func (n *StoryNode) AddChoiceWithConfig(label string, target valueobjects.NodeKey, cfg *config.DomainConfig) error {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	if len(n.choices) >= cfg.MaxChoicesPerNode {
		return pkgerrors.NewValidationError("node has reached the maximum number of choices")
	}

	if len(label) > cfg.MaxLabelLength {
		return pkgerrors.NewValidationError("choice label exceeds maximum length")
	}

	if n.isEnding {
		return pkgerrors.NewValidationError("ending nodes cannot have choices")
	}

	n.choices = append(n.choices, Choice{Label: label, Target: target})
	n.updatedAt = time.Now()
	return nil
}

// MarkEnding flags the node as a story ending. Existing choices are
// rejected rather than dropped so no authored content is silently lost.
func (n *StoryNode) MarkEnding() error {
	if len(n.choices) > 0 {
		return pkgerrors.NewValidationError("cannot mark a node with choices as an ending")
	}

	n.isEnding = true
	n.updatedAt = time.Now()
	return nil
}

// SetMetadata stores an opaque metadata value
func (n *StoryNode) SetMetadata(key string, value interface{}) {
	n.metadata[key] = value
	n.updatedAt = time.Now()
}
