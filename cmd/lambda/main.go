package main

import (
	"context"
	"log"
	"time"

	"storyloom-backend/infrastructure/config"
	"storyloom-backend/infrastructure/di"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Global variables for Lambda lifecycle management
var (
	// chiLambda wraps the Chi router for AWS Lambda integration
	chiLambda *chiadapter.ChiLambdaV2

	// container holds the dependency injection container
	container *di.Container

	// coldStart tracks whether this is a cold start invocation
	coldStart = true

	// coldStartTime records when the cold start began
	coldStartTime time.Time
)

// init runs during cold start
func init() {
	coldStartTime = time.Now()
	log.Println("Lambda cold start initiated")

	// Initialize context
	ctx := context.Background()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize dependency container
	container, err = di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	// Setup routes
	handler := container.Router.Setup()

	// Create Lambda adapter - need to type assert to *chi.Mux
	chiRouter, ok := handler.(*chi.Mux)
	if !ok {
		log.Fatal("Failed to cast handler to chi.Mux")
	}
	chiLambda = chiadapter.NewV2(chiRouter)

	// Log cold start duration
	coldStartDuration := time.Since(coldStartTime)
	log.Printf("Lambda cold start completed in %v", coldStartDuration)
}

// Handler is the Lambda function handler
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if container != nil && container.Logger != nil {
		container.Logger.Info("Lambda received request",
			zap.String("path", req.RequestContext.HTTP.Path),
			zap.String("method", req.RequestContext.HTTP.Method),
			zap.String("request_id", req.RequestContext.RequestID),
		)
	}

	// API Gateway's JWT authorizer already validated the token. Forward the
	// verified claims to the router as trusted identity headers so the
	// in-process auth middleware does not re-validate.
	if req.RequestContext.Authorizer != nil && req.RequestContext.Authorizer.JWT != nil {
		claims := req.RequestContext.Authorizer.JWT.Claims
		if req.Headers == nil {
			req.Headers = make(map[string]string)
		}
		req.Headers["X-API-Gateway-Authorized"] = "true"
		if sub, ok := claims["sub"]; ok {
			req.Headers["X-User-ID"] = sub
		}
		if email, ok := claims["email"]; ok {
			req.Headers["X-User-Email"] = email
		}
		if roles, ok := claims["roles"]; ok {
			req.Headers["X-User-Roles"] = roles
		}
	}

	// Process the request through the Chi router
	proxyReq, err := chiLambda.ProxyWithContextV2(ctx, req)

	// Add custom headers for monitoring
	if proxyReq.Headers == nil {
		proxyReq.Headers = make(map[string]string)
	}

	if coldStart {
		proxyReq.Headers["X-Cold-Start"] = "true"
		proxyReq.Headers["X-Cold-Start-Duration"] = time.Since(coldStartTime).String()
		coldStart = false
	} else {
		proxyReq.Headers["X-Cold-Start"] = "false"
	}

	// Add request ID for tracing
	if req.RequestContext.RequestID != "" {
		proxyReq.Headers["X-Request-ID"] = req.RequestContext.RequestID
	}

	// Add Lambda context headers
	proxyReq.Headers["X-Lambda-Request-ID"] = req.RequestContext.RequestID
	proxyReq.Headers["X-Lambda-Stage"] = req.RequestContext.Stage

	if container != nil && container.Logger != nil {
		container.Logger.Info("Lambda response",
			zap.String("method", req.RequestContext.HTTP.Method),
			zap.String("path", req.RequestContext.HTTP.Path),
			zap.String("request_id", req.RequestContext.RequestID),
			zap.Int("status_code", proxyReq.StatusCode),
		)

		// Log response body if it's an error
		if proxyReq.StatusCode >= 400 && proxyReq.StatusCode < 600 {
			container.Logger.Error("Lambda error response",
				zap.String("body", proxyReq.Body),
				zap.Int("status_code", proxyReq.StatusCode),
			)
		}
	}

	return proxyReq, err
}

// main is the entry point for the Lambda function
func main() {
	// Start the Lambda handler
	lambda.Start(Handler)
}
