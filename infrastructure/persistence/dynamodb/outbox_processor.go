package dynamodb

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storyloom-backend/application/ports"
)

// OutboxProcessor drains pending events from the event store and
// publishes them on the event bus. It runs until Stop or context
// cancellation.
type OutboxProcessor struct {
	eventStore *EventStore
	publisher  ports.EventPublisher
	logger     *zap.Logger

	batchSize   int32
	interval    time.Duration
	maxAttempts int

	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewOutboxProcessor creates an outbox processor with default batching
func NewOutboxProcessor(eventStore *EventStore, publisher ports.EventPublisher, logger *zap.Logger) *OutboxProcessor {
	return &OutboxProcessor{
		eventStore:  eventStore,
		publisher:   publisher,
		logger:      logger,
		batchSize:   50,
		interval:    5 * time.Second,
		maxAttempts: 3,
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start begins background processing
func (op *OutboxProcessor) Start(ctx context.Context) {
	op.logger.Info("Starting outbox processor",
		zap.Int32("batchSize", op.batchSize),
		zap.Duration("interval", op.interval),
	)
	go op.run(ctx)
}

// Stop shuts the processor down and waits for the loop to exit
func (op *OutboxProcessor) Stop() {
	close(op.stopChan)
	<-op.stoppedChan
	op.logger.Info("Outbox processor stopped")
}

func (op *OutboxProcessor) run(ctx context.Context) {
	defer close(op.stoppedChan)

	ticker := time.NewTicker(op.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-op.stopChan:
			return
		case <-ticker.C:
			if err := op.processBatch(ctx); err != nil {
				op.logger.Error("Outbox batch failed", zap.Error(err))
			}
		}
	}
}

func (op *OutboxProcessor) processBatch(ctx context.Context) error {
	pending, err := op.eventStore.GetPendingEvents(ctx, op.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending events: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	published := 0
	for _, record := range pending {
		if err := op.processRecord(ctx, record); err != nil {
			op.logger.Warn("Event publish failed",
				zap.String("eventID", record.EventID),
				zap.String("eventType", record.EventType),
				zap.Error(err),
			)
			continue
		}
		published++
	}

	op.logger.Debug("Outbox batch processed",
		zap.Int("pending", len(pending)),
		zap.Int("published", published),
	)
	return nil
}

func (op *OutboxProcessor) processRecord(ctx context.Context, record *EventRecord) error {
	event, err := recordToEvent(*record)
	if err != nil {
		// Malformed payloads never succeed; send straight to failed
		return op.markFailed(ctx, record, op.maxAttempts, fmt.Sprintf("decode: %v", err))
	}

	if err := op.publisher.Publish(ctx, event); err != nil {
		return op.markFailed(ctx, record, record.PublishAttempts+1, fmt.Sprintf("publish: %v", err))
	}

	if err := op.eventStore.MarkEventAsPublished(ctx, record.PK, record.SK); err != nil {
		return err
	}
	return nil
}

func (op *OutboxProcessor) markFailed(ctx context.Context, record *EventRecord, attempts int, errorMsg string) error {
	if err := op.eventStore.MarkEventAsFailed(ctx, record.PK, record.SK, errorMsg, attempts, op.maxAttempts); err != nil {
		return err
	}
	if attempts >= op.maxAttempts {
		op.logger.Warn("Event permanently failed",
			zap.String("eventID", record.EventID),
			zap.String("eventType", record.EventType),
			zap.Int("attempts", attempts),
		)
	}
	return fmt.Errorf("event processing failed: %s", errorMsg)
}
