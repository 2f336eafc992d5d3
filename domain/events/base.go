package events

import (
	"time"

	"storyloom-backend/domain/core/valueobjects"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// Story events

// StoryCreated is raised when a new story graph is created
type StoryCreated struct {
	BaseEvent
	StoryID  string `json:"story_id"`
	AuthorID string `json:"author_id"`
	Title    string `json:"title"`
}

// NewStoryCreated creates a StoryCreated event
func NewStoryCreated(storyID, authorID, title string, timestamp time.Time) StoryCreated {
	return StoryCreated{
		BaseEvent: BaseEvent{
			AggregateID: storyID,
			EventType:   "story.created",
			Timestamp:   timestamp,
			Version:     1,
		},
		StoryID:  storyID,
		AuthorID: authorID,
		Title:    title,
	}
}

// StorySaved is raised after a story's content is persisted
type StorySaved struct {
	BaseEvent
	StoryID   string `json:"story_id"`
	AuthorID  string `json:"author_id"`
	NodeCount int    `json:"node_count"`
	Checksum  string `json:"checksum"`
}

// NewStorySaved creates a StorySaved event
func NewStorySaved(storyID, authorID string, nodeCount int, checksum string, timestamp time.Time) StorySaved {
	return StorySaved{
		BaseEvent: BaseEvent{
			AggregateID: storyID,
			EventType:   "story.saved",
			Timestamp:   timestamp,
			Version:     1,
		},
		StoryID:   storyID,
		AuthorID:  authorID,
		NodeCount: nodeCount,
		Checksum:  checksum,
	}
}

// NodeAdded is raised when a node is added to a story graph
type NodeAdded struct {
	BaseEvent
	StoryID string               `json:"story_id"`
	NodeKey valueobjects.NodeKey `json:"node_key"`
}

// NewNodeAdded creates a NodeAdded event
func NewNodeAdded(storyID string, nodeKey valueobjects.NodeKey, timestamp time.Time) NodeAdded {
	return NodeAdded{
		BaseEvent: BaseEvent{
			AggregateID: storyID,
			EventType:   "story.node_added",
			Timestamp:   timestamp,
			Version:     1,
		},
		StoryID: storyID,
		NodeKey: nodeKey,
	}
}

// Comment events

// CommentAdded is raised when a comment is persisted
type CommentAdded struct {
	BaseEvent
	CommentID string `json:"comment_id"`
	StoryID   string `json:"story_id"`
	Page      int    `json:"page"`
	AuthorID  string `json:"author_id"`
	Category  string `json:"category"`
}

// NewCommentAdded creates a CommentAdded event
func NewCommentAdded(commentID, storyID string, page int, authorID, category string, timestamp time.Time) CommentAdded {
	return CommentAdded{
		BaseEvent: BaseEvent{
			AggregateID: storyID,
			EventType:   "comment.added",
			Timestamp:   timestamp,
			Version:     1,
		},
		CommentID: commentID,
		StoryID:   storyID,
		Page:      page,
		AuthorID:  authorID,
		Category:  category,
	}
}

// CommentUpdated is raised when a comment's text or category changes
type CommentUpdated struct {
	BaseEvent
	CommentID string `json:"comment_id"`
	StoryID   string `json:"story_id"`
	Page      int    `json:"page"`
}

// NewCommentUpdated creates a CommentUpdated event
func NewCommentUpdated(commentID, storyID string, page int, timestamp time.Time) CommentUpdated {
	return CommentUpdated{
		BaseEvent: BaseEvent{
			AggregateID: storyID,
			EventType:   "comment.updated",
			Timestamp:   timestamp,
			Version:     1,
		},
		CommentID: commentID,
		StoryID:   storyID,
		Page:      page,
	}
}

// CommentDeleted is raised when a comment is removed
type CommentDeleted struct {
	BaseEvent
	CommentID string `json:"comment_id"`
	StoryID   string `json:"story_id"`
	Page      int    `json:"page"`
}

// NewCommentDeleted creates a CommentDeleted event
func NewCommentDeleted(commentID, storyID string, page int, timestamp time.Time) CommentDeleted {
	return CommentDeleted{
		BaseEvent: BaseEvent{
			AggregateID: storyID,
			EventType:   "comment.deleted",
			Timestamp:   timestamp,
			Version:     1,
		},
		CommentID: commentID,
		StoryID:   storyID,
		Page:      page,
	}
}

// PassageGenerated is raised when the generation collaborator produces
// a passage draft for a story
type PassageGenerated struct {
	BaseEvent
	StoryID     string `json:"story_id"`
	ContentType string `json:"content_type"`
	Model       string `json:"model"`
}

// NewPassageGenerated creates a PassageGenerated event
func NewPassageGenerated(storyID, contentType, model string, timestamp time.Time) PassageGenerated {
	return PassageGenerated{
		BaseEvent: BaseEvent{
			AggregateID: storyID,
			EventType:   "story.passage_generated",
			Timestamp:   timestamp,
			Version:     1,
		},
		StoryID:     storyID,
		ContentType: contentType,
		Model:       model,
	}
}
