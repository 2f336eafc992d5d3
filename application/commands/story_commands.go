// Package commands holds the write-side command types of the
// application layer. Commands carry raw request data; handlers turn
// them into domain operations.
package commands

import (
	"storyloom-backend/pkg/utils"
)

// CreateStoryCommand creates an empty story owned by a user
type CreateStoryCommand struct {
	AuthorID    string `json:"author_id" validate:"required"`
	Title       string `json:"title" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

// Validate validates the command
func (c *CreateStoryCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// ImportStoryCommand ingests an authored story source: an ordered list
// of keyed entries, possibly including bookkeeping entries and an
// older format version. Entry order is the authored declaration order
// and is preserved through import.
type ImportStoryCommand struct {
	AuthorID      string           `json:"author_id" validate:"required"`
	Title         string           `json:"title" validate:"required,min=1,max=200"`
	FormatVersion int              `json:"format_version" validate:"min=0"`
	Entries       []RawSourceEntry `json:"entries" validate:"required,min=1,dive"`
}

// RawSourceEntry is one keyed entry of an authored story source before
// format migration. Entries whose key is a bookkeeping key carry their
// value in Body and produce no node.
type RawSourceEntry struct {
	Key      string      `json:"key" validate:"required"`
	Body     string      `json:"body"`
	Format   string      `json:"format"`
	IsEnding bool        `json:"is_ending"`
	Choices  []RawChoice `json:"choices"`
}

// RawChoice is one outgoing choice in an authored story source
type RawChoice struct {
	Label  string `json:"label" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// Validate validates the command
func (c *ImportStoryCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// AddStoryNodeCommand appends a node to an existing story
type AddStoryNodeCommand struct {
	StoryID  string      `json:"story_id" validate:"required"`
	UserID   string      `json:"user_id" validate:"required"`
	NodeKey  string      `json:"node_key" validate:"required,min=1,max=100"`
	Body     string      `json:"body"`
	Format   string      `json:"format" validate:"omitempty,oneof=text markdown html"`
	IsEnding bool        `json:"is_ending"`
	Choices  []RawChoice `json:"choices" validate:"dive"`
}

// Validate validates the command
func (c *AddStoryNodeCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// UpdatePassageCommand replaces the body of one node
type UpdatePassageCommand struct {
	StoryID string `json:"story_id" validate:"required"`
	UserID  string `json:"user_id" validate:"required"`
	NodeKey string `json:"node_key" validate:"required"`
	Body    string `json:"body"`
	Format  string `json:"format" validate:"omitempty,oneof=text markdown html"`
}

// Validate validates the command
func (c *UpdatePassageCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// DeleteStoryCommand removes a story and everything attached to it
type DeleteStoryCommand struct {
	StoryID string `json:"story_id" validate:"required"`
	UserID  string `json:"user_id" validate:"required"`
}

// Validate validates the command
func (c *DeleteStoryCommand) Validate() error {
	return utils.ValidateStruct(c)
}
