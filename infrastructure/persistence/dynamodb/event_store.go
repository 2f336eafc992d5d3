package dynamodb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"storyloom-backend/domain/events"
	pkgerrors "storyloom-backend/pkg/errors"
	"storyloom-backend/pkg/utils"
)

// EventStore implements ports.EventStore on DynamoDB with an outbox:
// events are written as pending and a separate processor publishes
// them, so a publish failure never loses an event.
type EventStore struct {
	client    *dynamodb.Client
	tableName string
}

// PublishStatus represents the publishing status of an event
type PublishStatus string

const (
	PublishStatusPending   PublishStatus = "pending"
	PublishStatusPublished PublishStatus = "published"
	PublishStatusFailed    PublishStatus = "failed"
)

// EventRecord is the DynamoDB item for one stored event
type EventRecord struct {
	PK          string `dynamodbav:"PK"` // EVENTS#<story_id>
	SK          string `dynamodbav:"SK"` // EVENT#<timestamp>#<event_id>
	EventID     string `dynamodbav:"EventID"`
	EventType   string `dynamodbav:"EventType"`
	AggregateID string `dynamodbav:"AggregateID"`
	EventData   string `dynamodbav:"EventData"` // JSON payload
	Timestamp   string `dynamodbav:"Timestamp"`
	Version     int    `dynamodbav:"Version"`

	PublishStatus   string `dynamodbav:"PublishStatus"`
	PublishAttempts int    `dynamodbav:"PublishAttempts"`
	LastPublishTry  string `dynamodbav:"LastPublishTry,omitempty"`
	PublishedAt     string `dynamodbav:"PublishedAt,omitempty"`
	ErrorMessage    string `dynamodbav:"ErrorMessage,omitempty"`

	// GSI2 indexes pending events for the outbox processor
	GSI2PK string `dynamodbav:"GSI2PK"` // OUTBOX#<status>
	GSI2SK string `dynamodbav:"GSI2SK"` // EVENT#<timestamp>

	TTL int64 `dynamodbav:"TTL,omitempty"`
}

const gsi2Name = "GSI2"

// NewEventStore creates a new DynamoDB event store
func NewEventStore(client *dynamodb.Client, tableName string) *EventStore {
	return &EventStore{
		client:    client,
		tableName: tableName,
	}
}

// SaveEvents persists domain events as pending outbox entries
func (es *EventStore) SaveEvents(ctx context.Context, domainEvents []events.DomainEvent) error {
	if len(domainEvents) == 0 {
		return nil
	}

	writes := make([]types.WriteRequest, 0, len(domainEvents))
	for _, event := range domainEvents {
		record, err := es.eventToRecord(event)
		if err != nil {
			return fmt.Errorf("failed to convert event to record: %w", err)
		}

		item, err := attributevalue.MarshalMap(record)
		if err != nil {
			return fmt.Errorf("failed to marshal event record: %w", err)
		}
		writes = append(writes, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: item},
		})
	}

	for i := 0; i < len(writes); i += 25 {
		end := i + 25
		if end > len(writes) {
			end = len(writes)
		}

		result, err := es.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{es.tableName: writes[i:end]},
		})
		if err != nil {
			return pkgerrors.NewDatabaseError("put_events", err)
		}
		if len(result.UnprocessedItems[es.tableName]) > 0 {
			return fmt.Errorf("failed to write %d events", len(result.UnprocessedItems[es.tableName]))
		}
	}

	return nil
}

// GetEvents retrieves all events for an aggregate, oldest first
func (es *EventStore) GetEvents(ctx context.Context, aggregateID string) ([]events.DomainEvent, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(es.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: eventsPK(aggregateID)},
		},
		ScanIndexForward: aws.Bool(true),
	}

	var out []events.DomainEvent
	paginator := dynamodb.NewQueryPaginator(es.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("query_events", err)
		}
		for _, raw := range page.Items {
			var record EventRecord
			if err := attributevalue.UnmarshalMap(raw, &record); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event record: %w", err)
			}
			event, err := recordToEvent(record)
			if err != nil {
				return nil, err
			}
			out = append(out, event)
		}
	}
	return out, nil
}

// DeleteEvents removes all events for an aggregate
func (es *EventStore) DeleteEvents(ctx context.Context, aggregateID string) error {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(es.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: eventsPK(aggregateID)},
		},
		ProjectionExpression: aws.String("PK, SK"),
	}

	var deletes []types.WriteRequest
	paginator := dynamodb.NewQueryPaginator(es.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return pkgerrors.NewDatabaseError("query_events", err)
		}
		for _, raw := range page.Items {
			deletes = append(deletes, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: raw},
			})
		}
	}

	for i := 0; i < len(deletes); i += 25 {
		end := i + 25
		if end > len(deletes) {
			end = len(deletes)
		}
		if _, err := es.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{es.tableName: deletes[i:end]},
		}); err != nil {
			return pkgerrors.NewDatabaseError("delete_events", err)
		}
	}
	return nil
}

// GetPendingEvents retrieves unpublished events for the outbox
// processor, oldest first
func (es *EventStore) GetPendingEvents(ctx context.Context, limit int32) ([]*EventRecord, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(es.tableName),
		IndexName:              aws.String(gsi2Name),
		KeyConditionExpression: aws.String("GSI2PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: outboxPK(PublishStatusPending)},
		},
		ScanIndexForward: aws.Bool(true),
		Limit:            aws.Int32(limit),
	}

	result, err := es.client.Query(ctx, input)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("query_pending_events", err)
	}

	records := make([]*EventRecord, 0, len(result.Items))
	for _, raw := range result.Items {
		var record EventRecord
		if err := attributevalue.UnmarshalMap(raw, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event record: %w", err)
		}
		records = append(records, &record)
	}
	return records, nil
}

// MarkEventAsPublished transitions an outbox entry to published
func (es *EventStore) MarkEventAsPublished(ctx context.Context, eventPK, eventSK string) error {
	now := utils.NowRFC3339()
	_, err := es.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(es.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: eventPK},
			"SK": &types.AttributeValueMemberS{Value: eventSK},
		},
		UpdateExpression: aws.String("SET PublishStatus = :status, PublishedAt = :at, GSI2PK = :gsi"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(PublishStatusPublished)},
			":at":     &types.AttributeValueMemberS{Value: now},
			":gsi":    &types.AttributeValueMemberS{Value: outboxPK(PublishStatusPublished)},
		},
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("mark_event_published", err)
	}
	return nil
}

// MarkEventAsFailed records a failed publish attempt. The entry stays
// in pending until attempts are exhausted, then moves to failed.
func (es *EventStore) MarkEventAsFailed(ctx context.Context, eventPK, eventSK, errorMsg string, attempts, maxAttempts int) error {
	status := PublishStatusPending
	if attempts >= maxAttempts {
		status = PublishStatusFailed
	}

	_, err := es.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(es.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: eventPK},
			"SK": &types.AttributeValueMemberS{Value: eventSK},
		},
		UpdateExpression: aws.String("SET PublishStatus = :status, PublishAttempts = :attempts, LastPublishTry = :at, ErrorMessage = :msg, GSI2PK = :gsi"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":   &types.AttributeValueMemberS{Value: string(status)},
			":attempts": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", attempts)},
			":at":       &types.AttributeValueMemberS{Value: utils.NowRFC3339()},
			":msg":      &types.AttributeValueMemberS{Value: errorMsg},
			":gsi":      &types.AttributeValueMemberS{Value: outboxPK(status)},
		},
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("mark_event_failed", err)
	}
	return nil
}

func (es *EventStore) eventToRecord(event events.DomainEvent) (*EventRecord, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	eventID := uuid.New().String()
	timestamp := event.GetTimestamp().UTC().Format(time.RFC3339Nano)

	return &EventRecord{
		PK:            eventsPK(event.GetAggregateID()),
		SK:            fmt.Sprintf("EVENT#%s#%s", timestamp, eventID),
		EventID:       eventID,
		EventType:     event.GetEventType(),
		AggregateID:   event.GetAggregateID(),
		EventData:     string(payload),
		Timestamp:     timestamp,
		Version:       event.GetVersion(),
		PublishStatus: string(PublishStatusPending),
		GSI2PK:        outboxPK(PublishStatusPending),
		GSI2SK:        fmt.Sprintf("EVENT#%s", timestamp),
		// Events are operational history, not the source of truth;
		// expire them after 90 days
		TTL: time.Now().Add(90 * 24 * time.Hour).Unix(),
	}, nil
}

// recordToEvent rebuilds the typed event from its stored payload
func recordToEvent(record EventRecord) (events.DomainEvent, error) {
	data := []byte(record.EventData)

	switch record.EventType {
	case "story.created":
		var e events.StoryCreated
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case "story.saved":
		var e events.StorySaved
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case "story.node_added":
		var e events.NodeAdded
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case "story.passage_generated":
		var e events.PassageGenerated
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case "comment.added":
		var e events.CommentAdded
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case "comment.updated":
		var e events.CommentUpdated
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	case "comment.deleted":
		var e events.CommentDeleted
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown event type: %s", record.EventType)
	}
}

func eventsPK(aggregateID string) string {
	return fmt.Sprintf("EVENTS#%s", aggregateID)
}

func outboxPK(status PublishStatus) string {
	return fmt.Sprintf("OUTBOX#%s", status)
}
