package auth

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DistributedRateLimiter counts requests in DynamoDB so limits hold
// across Lambda invocations, where the in-memory limiters reset on
// every cold start. Counters are bucketed per fixed window and expire
// via TTL; the increment and the limit check happen in one conditional
// update, so concurrent invocations cannot both sneak past the limit.
type DistributedRateLimiter struct {
	client    *dynamodb.Client
	tableName string
	limit     int
	window    time.Duration
	keyPrefix string
}

type rateLimitItem struct {
	PK        string    `dynamodbav:"PK"`
	Count     int       `dynamodbav:"Count"`
	WindowEnd time.Time `dynamodbav:"WindowEnd"`
	TTL       int64     `dynamodbav:"TTL"`
}

// NewDistributedRateLimiter creates a limiter for one class of keys.
// The prefix keeps IP and user counters from colliding in the shared
// table.
func NewDistributedRateLimiter(client *dynamodb.Client, tableName string, limit int, window time.Duration, keyPrefix string) *DistributedRateLimiter {
	return &DistributedRateLimiter{
		client:    client,
		tableName: tableName,
		limit:     limit,
		window:    window,
		keyPrefix: keyPrefix,
	}
}

// Allow atomically counts the request against the current window. A
// nil client (local development without DynamoDB) allows everything.
// Store errors fail open: blocking readers on a limiter outage would
// be worse than briefly losing the limit.
func (r *DistributedRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if r.client == nil {
		return true, nil
	}

	windowStart := time.Now().Truncate(r.window)
	windowEnd := windowStart.Add(r.window)

	update := &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: r.windowKey(key, windowStart)},
		},
		UpdateExpression:    aws.String("SET #count = if_not_exists(#count, :zero) + :one, WindowEnd = :end, #ttl = :ttl"),
		ConditionExpression: aws.String("attribute_not_exists(#count) OR #count < :limit"),
		ExpressionAttributeNames: map[string]string{
			"#count": "Count",
			"#ttl":   "TTL",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero":  &types.AttributeValueMemberN{Value: "0"},
			":one":   &types.AttributeValueMemberN{Value: "1"},
			":limit": &types.AttributeValueMemberN{Value: strconv.Itoa(r.limit)},
			":end":   &types.AttributeValueMemberS{Value: windowEnd.Format(time.RFC3339)},
			":ttl":   &types.AttributeValueMemberN{Value: strconv.FormatInt(windowEnd.Add(time.Hour).Unix(), 10)},
		},
	}

	if _, err := r.client.UpdateItem(ctx, update); err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return false, nil
		}
		return true, err
	}
	return true, nil
}

// Remaining reports how many requests are left in the current window
// and when it rolls over
func (r *DistributedRateLimiter) Remaining(ctx context.Context, key string) (int, time.Duration, error) {
	windowStart := time.Now().Truncate(r.window)
	windowEnd := windowStart.Add(r.window)

	if r.client == nil {
		return r.limit, time.Until(windowEnd), nil
	}

	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: r.windowKey(key, windowStart)},
		},
	})
	if err != nil || result.Item == nil {
		return r.limit, time.Until(windowEnd), err
	}

	var item rateLimitItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return r.limit, time.Until(windowEnd), err
	}

	remaining := r.limit - item.Count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, time.Until(windowEnd), nil
}

// Reset deletes the current window's counter for a key
func (r *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	if r.client == nil {
		return nil
	}

	windowStart := time.Now().Truncate(r.window)
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: r.windowKey(key, windowStart)},
		},
	})
	return err
}

// Limit returns the configured request budget per window
func (r *DistributedRateLimiter) Limit() int { return r.limit }

// Window returns the configured window length
func (r *DistributedRateLimiter) Window() time.Duration { return r.window }

// WriteHeaders exposes the limiter state as standard rate limit
// response headers
func (r *DistributedRateLimiter) WriteHeaders(ctx context.Context, key string, w http.ResponseWriter) error {
	remaining, resetIn, err := r.Remaining(ctx, key)
	if err != nil {
		return err
	}

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(r.limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(resetIn).Unix(), 10))
	return nil
}

func (r *DistributedRateLimiter) windowKey(key string, windowStart time.Time) string {
	return "RATELIMIT#" + r.keyPrefix + "#" + key + "#" + strconv.FormatInt(windowStart.Unix(), 10)
}
