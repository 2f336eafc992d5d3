// Package main implements the Lambda handler for choice target discovery.
// This handler ranks candidate choice targets for a node and optionally
// links the best matches.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"storyloom-backend/application/services"
	"storyloom-backend/infrastructure/config"
	"storyloom-backend/infrastructure/di"
)

// Global dependencies for Lambda performance optimization
var (
	choiceService *services.ChoiceService
)

func init() {
	// Initialize dependencies using Wire
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	container, err := di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize dependency container: %v", err)
	}

	choiceService = services.NewChoiceService(container.StoryRepo, container.Logger)

	log.Println("Suggest-choices handler initialized successfully")
}

// SuggestionRequest represents the input for choice target discovery
type SuggestionRequest struct {
	StoryID      string  `json:"story_id"`
	NodeKey      string  `json:"node_key"`
	UserID       string  `json:"user_id"`
	MaxTargets   int     `json:"max_targets,omitempty"`
	MinScore     float64 `json:"min_score,omitempty"`
	AutoLink     bool    `json:"auto_link,omitempty"`
	ChoiceLabel  string  `json:"choice_label,omitempty"`
}

// SuggestionResponse represents the discovered choice targets
type SuggestionResponse struct {
	StoryID    string                `json:"story_id"`
	NodeKey    string                `json:"node_key"`
	Targets    []services.Suggestion `json:"targets"`
	TotalFound int                   `json:"total_found"`
	Linked     int                   `json:"linked"`
}

// HandleSuggestion processes choice target discovery requests
func HandleSuggestion(ctx context.Context, request SuggestionRequest) (*SuggestionResponse, error) {
	log.Printf("Discovering choice targets for node %s in story %s", request.NodeKey, request.StoryID)

	// Set defaults
	if request.MaxTargets == 0 {
		request.MaxTargets = 5
	}
	if request.MinScore == 0 {
		request.MinScore = 0.3
	}
	if request.ChoiceLabel == "" {
		request.ChoiceLabel = "Continue"
	}

	targets, err := choiceService.SuggestTargets(ctx, request.StoryID, request.NodeKey, request.MaxTargets)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest targets: %w", err)
	}

	linked := 0
	if request.AutoLink {
		for _, target := range targets {
			if target.Score < request.MinScore {
				continue
			}
			err := choiceService.LinkNodes(ctx, request.StoryID, request.UserID, request.NodeKey, request.ChoiceLabel, target.NodeKey)
			if err != nil {
				log.Printf("Failed to link %s to %s: %v", request.NodeKey, target.NodeKey, err)
				continue
			}
			linked++
		}
	}

	response := &SuggestionResponse{
		StoryID:    request.StoryID,
		NodeKey:    request.NodeKey,
		Targets:    targets,
		TotalFound: len(targets),
		Linked:     linked,
	}

	log.Printf("Found %d targets, linked %d for node %s",
		len(targets), linked, request.NodeKey)

	return response, nil
}

// handler is the main Lambda handler for different invocation types
func handler(ctx context.Context, event json.RawMessage) error {
	log.Printf("Received event: %s", string(event))

	// Try to parse as API Gateway event (direct invocation)
	var apiEvent awsevents.APIGatewayProxyRequest
	if err := json.Unmarshal(event, &apiEvent); err == nil && apiEvent.Body != "" {
		var request SuggestionRequest
		if err := json.Unmarshal([]byte(apiEvent.Body), &request); err != nil {
			log.Printf("Failed to parse request body: %v", err)
			return err
		}

		response, err := HandleSuggestion(ctx, request)
		if err != nil {
			return err
		}

		responseJSON, _ := json.Marshal(response)
		log.Printf("Response: %s", responseJSON)
		return nil
	}

	// Try to parse as EventBridge event (async invocation)
	var cloudWatchEvent awsevents.CloudWatchEvent
	if err := json.Unmarshal(event, &cloudWatchEvent); err == nil {
		if cloudWatchEvent.DetailType == "story.node_added" {
			var nodeAdded struct {
				StoryID string `json:"aggregate_id"`
				NodeKey string `json:"node_key"`
			}

			if err := json.Unmarshal(cloudWatchEvent.Detail, &nodeAdded); err != nil {
				return fmt.Errorf("failed to parse node added event: %w", err)
			}

			request := SuggestionRequest{
				StoryID:    nodeAdded.StoryID,
				NodeKey:    nodeAdded.NodeKey,
				MaxTargets: 5,
			}

			_, err := HandleSuggestion(ctx, request)
			return err
		}
	}

	// Try to parse as direct invocation
	var request SuggestionRequest
	if err := json.Unmarshal(event, &request); err == nil {
		_, err := HandleSuggestion(ctx, request)
		return err
	}

	return fmt.Errorf("unable to parse event")
}

func main() {
	// Check if running in Lambda environment
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		log.Println("Starting suggest-choices Lambda")
		lambda.Start(handler)
	} else {
		// Local testing mode
		log.Println("Running in local test mode")

		testRequest := SuggestionRequest{
			StoryID:    "test-story-123",
			NodeKey:    "chapter-one",
			UserID:     "test-user-456",
			MaxTargets: 3,
		}

		response, err := HandleSuggestion(context.Background(), testRequest)
		if err != nil {
			log.Fatalf("Test request processing failed: %v", err)
		}

		responseJSON, _ := json.MarshalIndent(response, "", "  ")
		log.Printf("Test response:\n%s", responseJSON)
	}
}
