package ports

import (
	"context"
	"time"

	"storyloom-backend/domain/core/aggregates"
	"storyloom-backend/domain/core/entities"
	"storyloom-backend/domain/events"
)

// StoryRepository defines the interface for story persistence
// This is a port in hexagonal architecture - the application doesn't
// know about the implementation
type StoryRepository interface {
	// LoadStory retrieves a full story graph by ID
	LoadStory(ctx context.Context, storyID aggregates.StoryID) (*aggregates.StoryGraph, error)

	// SaveStory persists a story graph (create or update)
	SaveStory(ctx context.Context, graph *aggregates.StoryGraph) error

	// ListStories retrieves summaries of an author's stories
	ListStories(ctx context.Context, authorID string) ([]StorySummary, error)

	// DeleteStory removes a story and its nodes
	DeleteStory(ctx context.Context, storyID aggregates.StoryID) error
}

// StorySummary is a lightweight story listing entry
type StorySummary struct {
	StoryID   string    `json:"story_id"`
	Title     string    `json:"title"`
	AuthorID  string    `json:"author_id"`
	NodeCount int       `json:"node_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CommentRepository defines the interface for comment persistence.
// Results are ordered by recency, newest first.
type CommentRepository interface {
	// FetchComments retrieves all comments for one page of one story
	FetchComments(ctx context.Context, storyID string, page int) ([]*entities.Comment, error)

	// InsertComment persists a new comment
	InsertComment(ctx context.Context, comment *entities.Comment) error

	// UpdateComment amends an existing comment's text and category
	UpdateComment(ctx context.Context, commentID, text string, category entities.CommentCategory) error

	// DeleteComment removes a comment
	DeleteComment(ctx context.Context, commentID string) error
}

// GenerationContentType is the closed set of content the generation
// collaborator may be asked for
type GenerationContentType string

const (
	GenerationPassage  GenerationContentType = "passage"
	GenerationChoices  GenerationContentType = "choices"
	GenerationSynopsis GenerationContentType = "synopsis"
)

// GenerationRequest describes one generation call
type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
	ContentType  GenerationContentType
	Model        string
	// Temperature is clamped to [0,1] by implementations
	Temperature float64
}

// PassageGenerator defines the interface to the content-generation
// collaborator. It is just another throttled, fallible async operation
// as far as the core is concerned.
type PassageGenerator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// EventStore defines the interface for event persistence
type EventStore interface {
	// SaveEvents persists domain events
	SaveEvents(ctx context.Context, events []events.DomainEvent) error

	// GetEvents retrieves events for an aggregate
	GetEvents(ctx context.Context, aggregateID string) ([]events.DomainEvent, error)

	// DeleteEvents removes all events for an aggregate
	DeleteEvents(ctx context.Context, aggregateID string) error
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// EventBus defines the interface for publishing domain events
type EventBus interface {
	EventPublisher
}

// DistributedLock guards multi-instance critical sections, such as two
// API instances saving the same story
type DistributedLock interface {
	// Acquire takes the named lock, or fails if another holder exists
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// Cache defines the interface for caching
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores a value that expires after ttl
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// Clear removes all values from cache
	Clear(ctx context.Context) error
}
