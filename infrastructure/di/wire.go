//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"storyloom-backend/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideDomainConfig,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
	ProvideStoryRepository,
	ProvideCommentRepository,
	ProvideEventBus,
	ProvideEventPublisher,
	ProvideEventStore,
	ProvideEventStorePort,
	ProvideOutboxProcessor,
	ProvideDistributedLock,
	ProvideMetrics,
	ProvideTracer,
	ProvideDistributedRateLimiter,
	ProvideThrottleGuard,
	ProvideGenerator,
	ProvideGraphValidator,
	ProvideFormatEvolution,
	ProvideHookManager,
	ProvideSessionManager,
	ProvideChoiceService,
	ProvidePublishSaga,
	ProvideCreateStoryHandler,
	ProvideImportStoryHandler,
	ProvideCommandBus,
	ProvideQueryBus,
	ProvideInMemoryCache,
	ProvideStoryHandler,
	ProvideSessionHandler,
	ProvideCommentHandler,
	ProvideChoiceHandler,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
