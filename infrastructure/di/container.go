package di

import (
	"go.uber.org/zap"

	"storyloom-backend/application/commands/bus"
	"storyloom-backend/application/ports"
	querybus "storyloom-backend/application/queries/bus"
	"storyloom-backend/application/session"
	domainconfig "storyloom-backend/domain/config"
	"storyloom-backend/infrastructure/config"
	"storyloom-backend/infrastructure/persistence/dynamodb"
	"storyloom-backend/interfaces/http/rest"
	"storyloom-backend/pkg/auth"
	"storyloom-backend/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config          *config.Config
	DomainConfig    *domainconfig.DomainConfig
	Logger          *zap.Logger
	StoryRepo       ports.StoryRepository
	CommentRepo     ports.CommentRepository
	EventBus        ports.EventBus
	EventStore      ports.EventStore
	OutboxProcessor *dynamodb.OutboxProcessor
	DistributedLock ports.DistributedLock
	CommandBus      *bus.CommandBus
	QueryBus        *querybus.QueryBus
	Cache           ports.Cache
	Metrics         *observability.Metrics
	RateLimiter     *auth.DistributedRateLimiter
	SessionManager  *session.Manager
	Router          *rest.Router
}
