package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyloom-backend/application/ports"
	pkgerrors "storyloom-backend/pkg/errors"
)

// DistributedLock implements ports.DistributedLock with DynamoDB
// conditional writes. A lock is a single item keyed by the resource
// name; expired locks are reclaimable and swept by the table TTL.
type DistributedLock struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

var _ ports.DistributedLock = (*DistributedLock)(nil)

type lockItem struct {
	PK         string `dynamodbav:"PK"` // LOCK#<key>
	SK         string `dynamodbav:"SK"` // LOCK
	LockID     string `dynamodbav:"LockID"`
	AcquiredAt string `dynamodbav:"AcquiredAt"`
	ExpiresAt  string `dynamodbav:"ExpiresAt"`
	TTL        int64  `dynamodbav:"TTL"`
}

// NewDistributedLock creates a DynamoDB-backed distributed lock
func NewDistributedLock(client *dynamodb.Client, tableName string, logger *zap.Logger) *DistributedLock {
	return &DistributedLock{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// Acquire takes the lock for key, or returns a conflict error if it is
// held. The returned release function deletes the lock only if this
// holder still owns it, so a reclaimed-after-expiry lock is never
// released by a stale holder.
func (dl *DistributedLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	lockID := uuid.New().String()
	now := time.Now()
	expiresAt := now.Add(ttl)

	item := lockItem{
		PK:         lockPK(key),
		SK:         "LOCK",
		LockID:     lockID,
		AcquiredAt: now.Format(time.RFC3339),
		ExpiresAt:  expiresAt.Format(time.RFC3339),
		TTL:        expiresAt.Unix(),
	}

	_, err := dl.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(dl.tableName),
		Item: map[string]types.AttributeValue{
			"PK":         &types.AttributeValueMemberS{Value: item.PK},
			"SK":         &types.AttributeValueMemberS{Value: item.SK},
			"LockID":     &types.AttributeValueMemberS{Value: item.LockID},
			"AcquiredAt": &types.AttributeValueMemberS{Value: item.AcquiredAt},
			"ExpiresAt":  &types.AttributeValueMemberS{Value: item.ExpiresAt},
			"TTL":        &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", item.TTL)},
		},
		ConditionExpression: aws.String("attribute_not_exists(PK) OR ExpiresAt < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			dl.logger.Debug("Lock already held",
				zap.String("key", key),
			)
			return nil, pkgerrors.NewConflictError(fmt.Sprintf("lock already held: %s", key))
		}
		return nil, pkgerrors.NewDatabaseError("acquire_lock", err)
	}

	dl.logger.Debug("Lock acquired",
		zap.String("key", key),
		zap.String("lockID", lockID),
		zap.Duration("ttl", ttl),
	)

	release := func(ctx context.Context) error {
		return dl.release(ctx, key, lockID)
	}
	return release, nil
}

func (dl *DistributedLock) release(ctx context.Context, key, lockID string) error {
	_, err := dl.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(dl.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: lockPK(key)},
			"SK": &types.AttributeValueMemberS{Value: "LOCK"},
		},
		ConditionExpression: aws.String("LockID = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: lockID},
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			// Already expired and reclaimed; nothing left to release
			dl.logger.Warn("Lock no longer owned at release",
				zap.String("key", key),
				zap.String("lockID", lockID),
			)
			return nil
		}
		return pkgerrors.NewDatabaseError("release_lock", err)
	}

	dl.logger.Debug("Lock released",
		zap.String("key", key),
		zap.String("lockID", lockID),
	)
	return nil
}

func lockPK(key string) string {
	return fmt.Sprintf("LOCK#%s", key)
}
