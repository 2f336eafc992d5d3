package entities

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"storyloom-backend/domain/config"
	"storyloom-backend/domain/core/valueobjects"
	pkgerrors "storyloom-backend/pkg/errors"
)

// CommentCategory is the closed set of comment tags. Keeping the set
// closed lets callers switch exhaustively instead of matching strings.
type CommentCategory string

const (
	CategoryEdit       CommentCategory = "edit"
	CategorySuggestion CommentCategory = "suggestion"
	CategorySpelling   CommentCategory = "spelling"
	CategoryError      CommentCategory = "error"
	CategoryOther      CommentCategory = "other"
)

// ParseCommentCategory validates a raw category string
func ParseCommentCategory(raw string) (CommentCategory, error) {
	switch CommentCategory(raw) {
	case CategoryEdit, CategorySuggestion, CategorySpelling, CategoryError, CategoryOther:
		return CommentCategory(raw), nil
	default:
		return "", pkgerrors.NewValidationError("unknown comment category: " + raw)
	}
}

// Comment is reader/editor feedback anchored to one page of one story.
// The authoritative copy lives in persistence; in-memory collections
// are caches refreshed after every mutation.
type Comment struct {
	id        string
	storyID   string
	page      int
	nodeKey   valueobjects.NodeKey
	authorID  string
	// positionLegacy carries the pre-mapping page position string some
	// stored comments still use; new comments mirror the page number
	positionLegacy string
	text           string
	category       CommentCategory
	createdAt      time.Time
}

// NewComment creates a comment with validation
func NewComment(storyID string, page int, nodeKey valueobjects.NodeKey, authorID, text string, category CommentCategory) (*Comment, error) {
	return NewCommentWithConfig(storyID, page, nodeKey, authorID, text, category, config.DefaultDomainConfig())
}

// NewCommentWithConfig creates a comment against a specific configuration
func NewCommentWithConfig(storyID string, page int, nodeKey valueobjects.NodeKey, authorID, text string, category CommentCategory, cfg *config.DomainConfig) (*Comment, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	if storyID == "" {
		return nil, pkgerrors.NewValidationError("storyID cannot be empty")
	}
	if page < 1 {
		return nil, pkgerrors.NewValidationError("page must be positive")
	}
	if authorID == "" {
		return nil, pkgerrors.NewValidationError("authorID cannot be empty")
	}
	if text == "" {
		return nil, pkgerrors.NewValidationError("comment text cannot be empty")
	}
	if len(text) > cfg.MaxCommentLength {
		return nil, pkgerrors.NewValidationError("comment text exceeds maximum length")
	}
	if _, err := ParseCommentCategory(string(category)); err != nil {
		return nil, err
	}

	return &Comment{
		id:             uuid.New().String(),
		storyID:        storyID,
		page:           page,
		nodeKey:        nodeKey,
		authorID:       authorID,
		positionLegacy: legacyPosition(page),
		text:           text,
		category:       category,
		createdAt:      time.Now(),
	}, nil
}

// ReconstructComment rebuilds a comment from repository data
func ReconstructComment(id, storyID string, page int, nodeKey valueobjects.NodeKey, authorID, positionLegacy, text string, category CommentCategory, createdAt time.Time) *Comment {
	return &Comment{
		id:             id,
		storyID:        storyID,
		page:           page,
		nodeKey:        nodeKey,
		authorID:       authorID,
		positionLegacy: positionLegacy,
		text:           text,
		category:       category,
		createdAt:      createdAt,
	}
}

// ID returns the comment's identifier
func (c *Comment) ID() string { return c.id }

// StoryID returns the story the comment belongs to
func (c *Comment) StoryID() string { return c.storyID }

// Page returns the page the comment is anchored to
func (c *Comment) Page() int { return c.page }

// NodeKey returns the node the comment's page mapped to when written
func (c *Comment) NodeKey() valueobjects.NodeKey { return c.nodeKey }

// AuthorID returns the comment author's identity
func (c *Comment) AuthorID() string { return c.authorID }

// PositionLegacy returns the legacy position string
func (c *Comment) PositionLegacy() string { return c.positionLegacy }

// Text returns the comment body
func (c *Comment) Text() string { return c.text }

// Category returns the comment's category tag
func (c *Comment) Category() CommentCategory { return c.category }

// CreatedAt returns when the comment was created
func (c *Comment) CreatedAt() time.Time { return c.createdAt }

// IsOwnedBy reports whether the given user authored the comment.
// Comments are mutable and deletable only by their author.
func (c *Comment) IsOwnedBy(userID string) bool {
	return c.authorID == userID
}

// ValidateAmendment checks a proposed text/category change without
// applying it. Callers that treat their copy as a cache use this before
// persisting, then refetch rather than patching in place.
func (c *Comment) ValidateAmendment(text string, category CommentCategory) error {
	if text == "" {
		return pkgerrors.NewValidationError("comment text cannot be empty")
	}
	if _, err := ParseCommentCategory(string(category)); err != nil {
		return err
	}
	return nil
}

// Amend replaces the comment's text and category. Only the author may
// amend; callers check ownership via IsOwnedBy before persisting.
func (c *Comment) Amend(text string, category CommentCategory) error {
	if err := c.ValidateAmendment(text, category); err != nil {
		return err
	}

	c.text = text
	c.category = category
	return nil
}

func legacyPosition(page int) string {
	// Older clients stored the page position as a string
	return "page-" + strconv.Itoa(page)
}
