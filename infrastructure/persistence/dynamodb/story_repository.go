// Package dynamodb implements the persistence ports on a single
// DynamoDB table. Key layout:
//
//	USER#<author>   / STORY#<id>          story metadata (GSI1: STORYID#<id> / METADATA)
//	STORY#<id>      / NODE#<key>          one item per story node
//	STORY#<id>      / COMMENT#<page>#...  one item per comment (GSI1: COMMENTID#<id>)
//
// Node declaration order lives in the metadata item, not in the node
// item keys, so key naming never constrains authored order.
package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"storyloom-backend/application/ports"
	"storyloom-backend/domain/core/aggregates"
	"storyloom-backend/domain/core/entities"
	"storyloom-backend/domain/core/valueobjects"
	pkgerrors "storyloom-backend/pkg/errors"
	"storyloom-backend/pkg/utils"
)

const gsi1Name = "GSI1"

// StoryRepository implements ports.StoryRepository on DynamoDB
type StoryRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewStoryRepository creates a new StoryRepository
func NewStoryRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) ports.StoryRepository {
	return &StoryRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// storyItem is the DynamoDB item for story metadata
type storyItem struct {
	PK          string            `dynamodbav:"PK"`
	SK          string            `dynamodbav:"SK"`
	GSI1PK      string            `dynamodbav:"GSI1PK"`
	GSI1SK      string            `dynamodbav:"GSI1SK"`
	EntityType  string            `dynamodbav:"EntityType"`
	StoryID     string            `dynamodbav:"StoryID"`
	AuthorID    string            `dynamodbav:"AuthorID"`
	Title       string            `dynamodbav:"Title"`
	Description string            `dynamodbav:"Description"`
	NodeOrder   []string          `dynamodbav:"NodeOrder"`
	Bookkeeping map[string]string `dynamodbav:"Bookkeeping,omitempty"`
	NodeCount   int               `dynamodbav:"NodeCount"`
	CreatedAt   string            `dynamodbav:"CreatedAt"`
	UpdatedAt   string            `dynamodbav:"UpdatedAt"`
	Version     int               `dynamodbav:"Version"`
}

// nodeItem is the DynamoDB item for one story node
type nodeItem struct {
	PK        string       `dynamodbav:"PK"`
	SK        string       `dynamodbav:"SK"`
	EntityType string      `dynamodbav:"EntityType"`
	NodeKey   string       `dynamodbav:"NodeKey"`
	Body      string       `dynamodbav:"Body"`
	Format    string       `dynamodbav:"Format"`
	IsEnding  bool         `dynamodbav:"IsEnding"`
	Choices   []choiceItem `dynamodbav:"Choices,omitempty"`
	CreatedAt string       `dynamodbav:"CreatedAt"`
	UpdatedAt string       `dynamodbav:"UpdatedAt"`
}

type choiceItem struct {
	Label  string `dynamodbav:"Label"`
	Target string `dynamodbav:"Target"`
}

// SaveStory persists a story graph: the metadata item plus one item
// per node, written in batches
func (r *StoryRepository) SaveStory(ctx context.Context, graph *aggregates.StoryGraph) error {
	nodes := graph.Nodes()
	order := make([]string, 0, len(nodes))
	for _, node := range nodes {
		order = append(order, node.Key().String())
	}

	meta := storyItem{
		PK:          userPK(graph.AuthorID()),
		SK:          storySK(graph.ID().String()),
		GSI1PK:      storyGSI1PK(graph.ID().String()),
		GSI1SK:      "METADATA",
		EntityType:  "STORY",
		StoryID:     graph.ID().String(),
		AuthorID:    graph.AuthorID(),
		Title:       graph.Title(),
		Description: graph.Description(),
		NodeOrder:   order,
		Bookkeeping: graph.Bookkeeping(),
		NodeCount:   graph.NodeCount(),
		CreatedAt:   graph.CreatedAt().Format(time.RFC3339),
		UpdatedAt:   graph.UpdatedAt().Format(time.RFC3339),
		Version:     graph.Version(),
	}

	av, err := attributevalue.MarshalMap(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal story: %w", err)
	}

	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	}); err != nil {
		r.logger.Error("failed to save story metadata",
			zap.Error(err),
			zap.String("story_id", graph.ID().String()))
		return pkgerrors.NewDatabaseError("put_story", err)
	}

	writes := make([]types.WriteRequest, 0, len(nodes))
	for _, node := range nodes {
		item := nodeItem{
			PK:         storyPK(graph.ID().String()),
			SK:         nodeSK(node.Key().String()),
			EntityType: "NODE",
			NodeKey:    node.Key().String(),
			Body:       node.Passage().Body(),
			Format:     string(node.Passage().Format()),
			IsEnding:   node.IsEnding(),
			CreatedAt:  node.CreatedAt().Format(time.RFC3339),
			UpdatedAt:  node.UpdatedAt().Format(time.RFC3339),
		}
		for _, choice := range node.Choices() {
			item.Choices = append(item.Choices, choiceItem{
				Label:  choice.Label,
				Target: choice.Target.String(),
			})
		}

		nodeAV, err := attributevalue.MarshalMap(item)
		if err != nil {
			return fmt.Errorf("failed to marshal node %s: %w", node.Key().String(), err)
		}
		writes = append(writes, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: nodeAV},
		})
	}

	if err := r.batchWrite(ctx, writes); err != nil {
		return pkgerrors.NewDatabaseError("put_story_nodes", err)
	}

	r.logger.Info("story saved",
		zap.String("story_id", graph.ID().String()),
		zap.String("author_id", graph.AuthorID()),
		zap.Int("node_count", len(nodes)))
	return nil
}

// LoadStory retrieves a full story graph by ID
func (r *StoryRepository) LoadStory(ctx context.Context, storyID aggregates.StoryID) (*aggregates.StoryGraph, error) {
	meta, err := r.loadMetadata(ctx, storyID.String())
	if err != nil {
		return nil, err
	}

	nodeItems, err := r.loadNodes(ctx, storyID.String())
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]*entities.StoryNode, len(nodeItems))
	for _, item := range nodeItems {
		node, err := reconstructNode(item)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", item.NodeKey, err)
		}
		byKey[item.NodeKey] = node
	}

	// Rebuild declaration order from the metadata item; nodes missing
	// from the order list (partial writes) are appended at the end
	ordered := make([]*entities.StoryNode, 0, len(byKey))
	seen := make(map[string]bool, len(byKey))
	for _, key := range meta.NodeOrder {
		if node, ok := byKey[key]; ok {
			ordered = append(ordered, node)
			seen[key] = true
		}
	}
	for _, item := range nodeItems {
		if !seen[item.NodeKey] {
			ordered = append(ordered, byKey[item.NodeKey])
		}
	}

	createdAt, _ := utils.ParseRFC3339(meta.CreatedAt)
	updatedAt, _ := utils.ParseRFC3339(meta.UpdatedAt)

	graph, err := aggregates.ReconstructStoryGraph(
		aggregates.StoryID(meta.StoryID),
		meta.AuthorID,
		meta.Title,
		meta.Description,
		ordered,
		meta.Bookkeeping,
		createdAt,
		updatedAt,
		meta.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct story: %w", err)
	}
	return graph, nil
}

// ListStories retrieves summaries of an author's stories
func (r *StoryRepository) ListStories(ctx context.Context, authorID string) ([]ports.StorySummary, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: userPK(authorID)},
			":sk": &types.AttributeValueMemberS{Value: "STORY#"},
		},
	}

	var summaries []ports.StorySummary
	paginator := dynamodb.NewQueryPaginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("list_stories", err)
		}
		for _, raw := range page.Items {
			var item storyItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("failed to unmarshal story: %w", err)
			}
			updatedAt, _ := utils.ParseRFC3339(item.UpdatedAt)
			summaries = append(summaries, ports.StorySummary{
				StoryID:   item.StoryID,
				Title:     item.Title,
				AuthorID:  item.AuthorID,
				NodeCount: item.NodeCount,
				UpdatedAt: updatedAt,
			})
		}
	}
	return summaries, nil
}

// DeleteStory removes a story's metadata, nodes, and comments
func (r *StoryRepository) DeleteStory(ctx context.Context, storyID aggregates.StoryID) error {
	meta, err := r.loadMetadata(ctx, storyID.String())
	if err != nil {
		return err
	}

	// Collect every item under the story partition (nodes and comments)
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: storyPK(storyID.String())},
		},
		ProjectionExpression: aws.String("PK, SK"),
	}

	var deletes []types.WriteRequest
	paginator := dynamodb.NewQueryPaginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return pkgerrors.NewDatabaseError("query_story_items", err)
		}
		for _, raw := range page.Items {
			deletes = append(deletes, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: raw},
			})
		}
	}

	deletes = append(deletes, types.WriteRequest{
		DeleteRequest: &types.DeleteRequest{
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: userPK(meta.AuthorID)},
				"SK": &types.AttributeValueMemberS{Value: storySK(storyID.String())},
			},
		},
	})

	if err := r.batchWrite(ctx, deletes); err != nil {
		return pkgerrors.NewDatabaseError("delete_story", err)
	}

	r.logger.Info("story deleted",
		zap.String("story_id", storyID.String()),
		zap.Int("items_removed", len(deletes)))
	return nil
}

func (r *StoryRepository) loadMetadata(ctx context.Context, storyID string) (*storyItem, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(gsi1Name),
		KeyConditionExpression: aws.String("GSI1PK = :pk AND GSI1SK = :sk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: storyGSI1PK(storyID)},
			":sk": &types.AttributeValueMemberS{Value: "METADATA"},
		},
		Limit: aws.Int32(1),
	}

	result, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("query_story", err)
	}
	if len(result.Items) == 0 {
		return nil, pkgerrors.NewNotFoundError("story " + storyID)
	}

	var item storyItem
	if err := attributevalue.UnmarshalMap(result.Items[0], &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal story: %w", err)
	}
	return &item, nil
}

func (r *StoryRepository) loadNodes(ctx context.Context, storyID string) ([]nodeItem, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: storyPK(storyID)},
			":sk": &types.AttributeValueMemberS{Value: "NODE#"},
		},
	}

	var items []nodeItem
	paginator := dynamodb.NewQueryPaginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("query_story_nodes", err)
		}
		for _, raw := range page.Items {
			var item nodeItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("failed to unmarshal node: %w", err)
			}
			items = append(items, item)
		}
	}
	return items, nil
}

// batchWrite flushes write requests in chunks of 25, retrying
// unprocessed items once
func (r *StoryRepository) batchWrite(ctx context.Context, writes []types.WriteRequest) error {
	const batchSize = 25
	for start := 0; start < len(writes); start += batchSize {
		end := start + batchSize
		if end > len(writes) {
			end = len(writes)
		}

		batch := writes[start:end]
		out, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{r.tableName: batch},
		})
		if err != nil {
			return err
		}

		if unprocessed := out.UnprocessedItems[r.tableName]; len(unprocessed) > 0 {
			retry, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{r.tableName: unprocessed},
			})
			if err != nil {
				return err
			}
			if len(retry.UnprocessedItems[r.tableName]) > 0 {
				return fmt.Errorf("%d items remained unprocessed after retry",
					len(retry.UnprocessedItems[r.tableName]))
			}
		}
	}
	return nil
}

func reconstructNode(item nodeItem) (*entities.StoryNode, error) {
	key, err := valueobjects.NewNodeKey(item.NodeKey)
	if err != nil {
		return nil, err
	}
	passage := valueobjects.ReconstructPassage(item.Body, valueobjects.PassageFormat(item.Format))

	choices := make([]entities.Choice, 0, len(item.Choices))
	for _, c := range item.Choices {
		target, err := valueobjects.NewNodeKey(c.Target)
		if err != nil {
			return nil, err
		}
		choices = append(choices, entities.Choice{Label: c.Label, Target: target})
	}

	createdAt, _ := utils.ParseRFC3339(item.CreatedAt)
	updatedAt, _ := utils.ParseRFC3339(item.UpdatedAt)

	return entities.ReconstructStoryNode(key, passage, choices, item.IsEnding, nil, createdAt, updatedAt)
}

func userPK(authorID string) string   { return fmt.Sprintf("USER#%s", authorID) }
func storySK(storyID string) string   { return fmt.Sprintf("STORY#%s", storyID) }
func storyPK(storyID string) string   { return fmt.Sprintf("STORY#%s", storyID) }
func nodeSK(nodeKey string) string    { return fmt.Sprintf("NODE#%s", nodeKey) }
func storyGSI1PK(storyID string) string { return fmt.Sprintf("STORYID#%s", storyID) }
