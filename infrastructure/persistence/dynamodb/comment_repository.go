package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"storyloom-backend/application/ports"
	"storyloom-backend/domain/core/entities"
	"storyloom-backend/domain/core/valueobjects"
	pkgerrors "storyloom-backend/pkg/errors"
)

// CommentRepository implements ports.CommentRepository on DynamoDB.
// Comments live in the story's partition sorted by page and creation
// time, so a page's comments are one contiguous query, newest first.
type CommentRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) ports.CommentRepository {
	return &CommentRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// commentItem is the DynamoDB item for one comment
type commentItem struct {
	PK             string `dynamodbav:"PK"`
	SK             string `dynamodbav:"SK"`
	GSI1PK         string `dynamodbav:"GSI1PK"`
	GSI1SK         string `dynamodbav:"GSI1SK"`
	EntityType     string `dynamodbav:"EntityType"`
	CommentID      string `dynamodbav:"CommentID"`
	StoryID        string `dynamodbav:"StoryID"`
	Page           int    `dynamodbav:"Page"`
	NodeKey        string `dynamodbav:"NodeKey"`
	AuthorID       string `dynamodbav:"AuthorID"`
	PositionLegacy string `dynamodbav:"PositionLegacy"`
	Text           string `dynamodbav:"Text"`
	Category       string `dynamodbav:"Category"`
	CreatedAt      string `dynamodbav:"CreatedAt"`
}

// FetchComments retrieves all comments for one page, newest first
func (r *CommentRepository) FetchComments(ctx context.Context, storyID string, page int) ([]*entities.Comment, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: storyPK(storyID)},
			":sk": &types.AttributeValueMemberS{Value: commentPagePrefix(page)},
		},
		// SK embeds the creation timestamp; descending scan gives
		// newest first without a client-side sort
		ScanIndexForward: aws.Bool(false),
	}

	var comments []*entities.Comment
	paginator := dynamodb.NewQueryPaginator(r.client, input)
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("query_comments", err)
		}
		for _, raw := range out.Items {
			var item commentItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("failed to unmarshal comment: %w", err)
			}
			comments = append(comments, reconstructComment(item))
		}
	}
	return comments, nil
}

// InsertComment persists a new comment
func (r *CommentRepository) InsertComment(ctx context.Context, comment *entities.Comment) error {
	item := commentItem{
		PK:             storyPK(comment.StoryID()),
		SK:             commentSK(comment.Page(), comment.CreatedAt(), comment.ID()),
		GSI1PK:         commentGSI1PK(comment.ID()),
		GSI1SK:         "COMMENT",
		EntityType:     "COMMENT",
		CommentID:      comment.ID(),
		StoryID:        comment.StoryID(),
		Page:           comment.Page(),
		NodeKey:        comment.NodeKey().String(),
		AuthorID:       comment.AuthorID(),
		PositionLegacy: comment.PositionLegacy(),
		Text:           comment.Text(),
		Category:       string(comment.Category()),
		CreatedAt:      comment.CreatedAt().Format(time.RFC3339Nano),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal comment: %w", err)
	}

	cond := expression.AttributeNotExists(expression.Name("PK"))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("failed to build condition: %w", err)
	}

	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tableName),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}); err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return pkgerrors.NewConflictError("comment already exists: " + comment.ID())
		}
		return pkgerrors.NewDatabaseError("put_comment", err)
	}

	r.logger.Debug("comment inserted",
		zap.String("comment_id", comment.ID()),
		zap.String("story_id", comment.StoryID()),
		zap.Int("page", comment.Page()))
	return nil
}

// UpdateComment amends an existing comment's text and category
func (r *CommentRepository) UpdateComment(ctx context.Context, commentID, text string, category entities.CommentCategory) error {
	key, err := r.lookupKey(ctx, commentID)
	if err != nil {
		return err
	}

	update := expression.Set(expression.Name("Text"), expression.Value(text)).
		Set(expression.Name("Category"), expression.Value(string(category)))
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	if _, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       key,
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}); err != nil {
		return pkgerrors.NewDatabaseError("update_comment", err)
	}
	return nil
}

// DeleteComment removes a comment
func (r *CommentRepository) DeleteComment(ctx context.Context, commentID string) error {
	key, err := r.lookupKey(ctx, commentID)
	if err != nil {
		return err
	}

	if _, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       key,
	}); err != nil {
		return pkgerrors.NewDatabaseError("delete_comment", err)
	}
	return nil
}

// lookupKey resolves a comment ID to its primary key via GSI1
func (r *CommentRepository) lookupKey(ctx context.Context, commentID string) (map[string]types.AttributeValue, error) {
	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(gsi1Name),
		KeyConditionExpression: aws.String("GSI1PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: commentGSI1PK(commentID)},
		},
		ProjectionExpression: aws.String("PK, SK"),
		Limit:                aws.Int32(1),
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("query_comment", err)
	}
	if len(result.Items) == 0 {
		return nil, pkgerrors.NewNotFoundError("comment " + commentID)
	}
	return result.Items[0], nil
}

func reconstructComment(item commentItem) *entities.Comment {
	createdAt, _ := time.Parse(time.RFC3339Nano, item.CreatedAt)
	return entities.ReconstructComment(
		item.CommentID,
		item.StoryID,
		item.Page,
		valueobjects.MustNodeKey(item.NodeKey),
		item.AuthorID,
		item.PositionLegacy,
		item.Text,
		entities.CommentCategory(item.Category),
		createdAt,
	)
}

func commentPagePrefix(page int) string {
	return fmt.Sprintf("COMMENT#%08d#", page)
}

func commentSK(page int, createdAt time.Time, commentID string) string {
	return fmt.Sprintf("COMMENT#%08d#%s#%s", page, createdAt.UTC().Format(time.RFC3339Nano), commentID)
}

func commentGSI1PK(commentID string) string {
	return fmt.Sprintf("COMMENTID#%s", commentID)
}
