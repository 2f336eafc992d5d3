package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"

	"storyloom-backend/application/commands"
	"storyloom-backend/application/commands/bus"
	commandhandlers "storyloom-backend/application/commands/handlers"
	"storyloom-backend/application/ports"
	"storyloom-backend/application/queries"
	querybus "storyloom-backend/application/queries/bus"
	queryhandlers "storyloom-backend/application/queries/handlers"
	"storyloom-backend/application/sagas"
	"storyloom-backend/application/services"
	"storyloom-backend/application/session"
	domainconfig "storyloom-backend/domain/config"
	"storyloom-backend/domain/core/validators"
	"storyloom-backend/domain/events"
	"storyloom-backend/infrastructure/config"
	"storyloom-backend/infrastructure/genai"
	"storyloom-backend/infrastructure/messaging/eventbridge"
	"storyloom-backend/infrastructure/persistence/abstractions"
	"storyloom-backend/infrastructure/persistence/dynamodb"
	"storyloom-backend/infrastructure/persistence/schema"
	"storyloom-backend/interfaces/http/rest"
	"storyloom-backend/interfaces/http/rest/handlers"
	"storyloom-backend/pkg/auth"
	"storyloom-backend/pkg/extensions"
	"storyloom-backend/pkg/observability"
	"storyloom-backend/pkg/throttle"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideDomainConfig loads the domain tuning for the environment
func ProvideDomainConfig(cfg *config.Config) *domainconfig.DomainConfig {
	return domainconfig.LoadDomainConfig(cfg.Environment)
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideStoryRepository creates the story repository
func ProvideStoryRepository(client *awsdynamodb.Client, cfg *config.Config, tracer *observability.Tracer, logger *zap.Logger) ports.StoryRepository {
	repo := dynamodb.NewStoryRepository(client, cfg.DynamoDBTable, logger)
	if !cfg.EnableTracing {
		return repo
	}
	return abstractions.TraceStoryRepository(repo, tracer)
}

// ProvideCommentRepository creates the comment repository
func ProvideCommentRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.CommentRepository {
	return dynamodb.NewCommentRepository(client, cfg.DynamoDBTable, logger)
}

// ProvideEventBus creates an event bus
func ProvideEventBus(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventBus {
	return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
}

// ProvideEventPublisher adapts the event bus to the publisher port
func ProvideEventPublisher(eventBus ports.EventBus) ports.EventPublisher {
	return &eventPublisherAdapter{eventBus: eventBus}
}

type eventPublisherAdapter struct {
	eventBus ports.EventBus
}

func (a *eventPublisherAdapter) Publish(ctx context.Context, event events.DomainEvent) error {
	return a.eventBus.Publish(ctx, event)
}

func (a *eventPublisherAdapter) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	return a.eventBus.PublishBatch(ctx, batch)
}

// ProvideEventStore creates the DynamoDB event store
func ProvideEventStore(client *awsdynamodb.Client, cfg *config.Config) *dynamodb.EventStore {
	return dynamodb.NewEventStore(client, cfg.DynamoDBTable)
}

// ProvideEventStorePort exposes the event store through its port
func ProvideEventStorePort(store *dynamodb.EventStore) ports.EventStore {
	return store
}

// ProvideOutboxProcessor creates the outbox processor
func ProvideOutboxProcessor(store *dynamodb.EventStore, publisher ports.EventPublisher, logger *zap.Logger) *dynamodb.OutboxProcessor {
	return dynamodb.NewOutboxProcessor(store, publisher, logger)
}

// ProvideDistributedLock creates a distributed lock instance
func ProvideDistributedLock(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.DistributedLock {
	return dynamodb.NewDistributedLock(client, cfg.DynamoDBTable, logger)
}

// ProvideMetrics creates the metrics recorder
func ProvideMetrics(client *awscloudwatch.Client, cfg *config.Config) *observability.Metrics {
	namespace := fmt.Sprintf("StoryLoom/%s", cfg.Environment)
	return observability.NewMetrics(namespace, client)
}

// ProvideTracer creates the X-Ray tracer
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer("storyloom-" + cfg.Environment)
}

// ProvideDistributedRateLimiter creates a distributed rate limiter
func ProvideDistributedRateLimiter(client *awsdynamodb.Client, cfg *config.Config) *auth.DistributedRateLimiter {
	return auth.NewDistributedRateLimiter(
		client,
		cfg.DynamoDBTable,
		100,
		time.Minute,
		"API",
	)
}

// ProvideThrottleGuard creates the shared action throttle
func ProvideThrottleGuard() *throttle.Guard {
	return throttle.NewGuard()
}

// ProvideGenerator creates the passage generation client
func ProvideGenerator(cfg *config.Config, logger *zap.Logger) ports.PassageGenerator {
	return genai.NewClient(genai.Config{
		Endpoint:      cfg.GenAIEndpoint,
		APIKey:        cfg.GenAIAPIKey,
		AllowedModels: cfg.GenAIAllowedModels,
		DefaultModel:  cfg.GenAIDefaultModel,
		Timeout:       cfg.GenAITimeout,
	}, logger)
}

// ProvideGraphValidator creates the story graph validator
func ProvideGraphValidator(domainCfg *domainconfig.DomainConfig) *validators.GraphValidator {
	return validators.NewGraphValidatorWithConfig(domainCfg)
}

// ProvideFormatEvolution creates the story format migration chain
func ProvideFormatEvolution() *schema.FormatEvolution {
	return schema.NewFormatEvolution()
}

// ProvideHookManager creates the lifecycle hook registry with the
// default metric-emitting observers
func ProvideHookManager(metrics *observability.Metrics) *extensions.HookManager {
	hooks := extensions.NewHookManager()
	hooks.Register(extensions.HookSessionOpened, func(ctx context.Context, data extensions.HookData) error {
		metrics.Increment("SessionOpened", "session")
		return nil
	})
	hooks.Register(extensions.HookSessionClosed, func(ctx context.Context, data extensions.HookData) error {
		metrics.Increment("SessionClosed", "session")
		return nil
	})
	hooks.Register(extensions.HookSessionEvicted, func(ctx context.Context, data extensions.HookData) error {
		metrics.Increment("SessionEvicted", "session")
		return nil
	})
	return hooks
}

// ProvideSessionManager creates the reading-session manager
func ProvideSessionManager(
	stories ports.StoryRepository,
	comments ports.CommentRepository,
	generator ports.PassageGenerator,
	publisher ports.EventPublisher,
	guard *throttle.Guard,
	domainCfg *domainconfig.DomainConfig,
	hooks *extensions.HookManager,
	logger *zap.Logger,
) *session.Manager {
	return session.NewManager(session.Dependencies{
		Stories:   stories,
		Comments:  comments,
		Generator: generator,
		Publisher: publisher,
		Guard:     guard,
		Config:    domainCfg,
		Logger:    logger,
		Hooks:     hooks,
	})
}

// ProvideChoiceService creates the choice-linking service
func ProvideChoiceService(stories ports.StoryRepository, logger *zap.Logger) *services.ChoiceService {
	return services.NewChoiceService(stories, logger)
}

// ProvidePublishSaga creates the story publish saga
func ProvidePublishSaga(
	stories ports.StoryRepository,
	eventStore ports.EventStore,
	eventBus ports.EventBus,
	validator *validators.GraphValidator,
	lock ports.DistributedLock,
	logger *zap.Logger,
) *sagas.PublishStorySaga {
	return sagas.NewPublishStorySaga(stories, eventStore, eventBus, validator, lock, logger)
}

// ProvideCreateStoryHandler creates the create-story command handler
func ProvideCreateStoryHandler(
	stories ports.StoryRepository,
	eventStore ports.EventStore,
	eventBus ports.EventBus,
	logger *zap.Logger,
) *commandhandlers.CreateStoryHandler {
	return commandhandlers.NewCreateStoryHandler(stories, eventStore, eventBus, logger)
}

// ProvideImportStoryHandler creates the import-story command handler
func ProvideImportStoryHandler(
	stories ports.StoryRepository,
	evolution *schema.FormatEvolution,
	validator *validators.GraphValidator,
	eventBus ports.EventBus,
	logger *zap.Logger,
) *commandhandlers.ImportStoryHandler {
	return commandhandlers.NewImportStoryHandler(stories, evolution, validator, eventBus, logger)
}

// CommandHandlerAdapter adapts typed command handlers to the bus
type CommandHandlerAdapter struct {
	handler func(context.Context, bus.Command) error
}

func (a *CommandHandlerAdapter) Handle(ctx context.Context, cmd bus.Command) error {
	return a.handler(ctx, cmd)
}

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(
	stories ports.StoryRepository,
	eventBus ports.EventBus,
	logger *zap.Logger,
) *bus.CommandBus {
	commandBus := bus.NewCommandBus()
	pipeline := bus.NewPipeline(bus.LoggingMiddleware(logger))

	addNode := commandhandlers.NewAddStoryNodeHandler(stories, eventBus, logger)
	commandBus.Register(&commands.AddStoryNodeCommand{}, pipeline.Execute(&CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd bus.Command) error {
			addCmd, ok := cmd.(*commands.AddStoryNodeCommand)
			if !ok {
				return fmt.Errorf("invalid command type")
			}
			return addNode.Handle(ctx, *addCmd)
		},
	}))

	updatePassage := commandhandlers.NewUpdatePassageHandler(stories, logger)
	commandBus.Register(&commands.UpdatePassageCommand{}, pipeline.Execute(&CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd bus.Command) error {
			updateCmd, ok := cmd.(*commands.UpdatePassageCommand)
			if !ok {
				return fmt.Errorf("invalid command type")
			}
			return updatePassage.Handle(ctx, *updateCmd)
		},
	}))

	deleteStory := commandhandlers.NewDeleteStoryHandler(stories, logger)
	commandBus.Register(&commands.DeleteStoryCommand{}, pipeline.Execute(&CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd bus.Command) error {
			deleteCmd, ok := cmd.(*commands.DeleteStoryCommand)
			if !ok {
				return fmt.Errorf("invalid command type")
			}
			return deleteStory.Handle(ctx, *deleteCmd)
		},
	}))

	return commandBus
}

// QueryHandlerAdapter adapts typed query handlers to the bus
type QueryHandlerAdapter struct {
	handler func(context.Context, querybus.Query) (interface{}, error)
}

func (a *QueryHandlerAdapter) Handle(ctx context.Context, query querybus.Query) (interface{}, error) {
	return a.handler(ctx, query)
}

// queryMetricsAdapter bridges the observability recorder to the query
// bus metrics contract
type queryMetricsAdapter struct {
	metrics *observability.Metrics
}

func (a queryMetricsAdapter) StartTimer(metric, label string) querybus.Timer {
	return a.metrics.StartTimer(metric, label)
}

func (a queryMetricsAdapter) Increment(metric, label string) {
	a.metrics.Increment(metric, label)
}

// ProvideQueryBus creates a query bus with registered handlers. Story
// reads are cached briefly; everything is measured.
func ProvideQueryBus(
	stories ports.StoryRepository,
	comments ports.CommentRepository,
	cache ports.Cache,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *querybus.QueryBus {
	queryBus := querybus.NewQueryBus()

	caching := querybus.NewCachingMiddleware(cache, 30*time.Second)
	measured := querybus.NewMetricsMiddleware(queryMetricsAdapter{metrics: metrics})

	getStory := queryhandlers.NewGetStoryHandler(stories, logger)
	queryBus.Register(&queries.GetStoryQuery{}, measured.Wrap(caching.Wrap(&QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			q, ok := query.(*queries.GetStoryQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return getStory.Handle(ctx, *q)
		},
	})))

	getPage := queryhandlers.NewGetPageHandler(stories, comments, logger)
	queryBus.Register(&queries.GetPageQuery{}, measured.Wrap(&QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			q, ok := query.(*queries.GetPageQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return getPage.Handle(ctx, *q)
		},
	}))

	listStories := queryhandlers.NewListStoriesHandler(stories, logger)
	queryBus.Register(&queries.ListStoriesQuery{}, measured.Wrap(&QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			q, ok := query.(*queries.ListStoriesQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return listStories.Handle(ctx, *q)
		},
	}))

	listComments := queryhandlers.NewListCommentsHandler(comments, logger)
	queryBus.Register(&queries.ListCommentsQuery{}, measured.Wrap(&QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			q, ok := query.(*queries.ListCommentsQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return listComments.Handle(ctx, *q)
		},
	}))

	return queryBus
}

// ProvideInMemoryCache creates a simple in-memory cache
func ProvideInMemoryCache() ports.Cache {
	return NewInMemoryCache()
}

// ProvideStoryHandler creates the story HTTP handler
func ProvideStoryHandler(
	createStory *commandhandlers.CreateStoryHandler,
	importStory *commandhandlers.ImportStoryHandler,
	publishSaga *sagas.PublishStorySaga,
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	logger *zap.Logger,
) *handlers.StoryHandler {
	return handlers.NewStoryHandler(createStory, importStory, publishSaga, commandBus, queryBus, logger)
}

// ProvideSessionHandler creates the session HTTP handler
func ProvideSessionHandler(manager *session.Manager, logger *zap.Logger) *handlers.SessionHandler {
	return handlers.NewSessionHandler(manager, logger)
}

// ProvideCommentHandler creates the comment HTTP handler
func ProvideCommentHandler(manager *session.Manager, logger *zap.Logger) *handlers.CommentHandler {
	return handlers.NewCommentHandler(manager, logger)
}

// ProvideChoiceHandler creates the choice HTTP handler
func ProvideChoiceHandler(choices *services.ChoiceService, logger *zap.Logger) *handlers.ChoiceHandler {
	return handlers.NewChoiceHandler(choices, logger)
}

// ProvideRouter creates the HTTP router
func ProvideRouter(
	stories *handlers.StoryHandler,
	sessions *handlers.SessionHandler,
	comments *handlers.CommentHandler,
	choices *handlers.ChoiceHandler,
	logger *zap.Logger,
) *rest.Router {
	return rest.NewRouter(stories, sessions, comments, choices, logger)
}
