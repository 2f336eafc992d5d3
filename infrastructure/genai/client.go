// Package genai calls an external text-generation service over HTTP.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"storyloom-backend/application/ports"
	pkgerrors "storyloom-backend/pkg/errors"
)

const serviceName = "genai"

// Client implements ports.PassageGenerator against a JSON completion
// endpoint. Requests outside the model allow-list or content-type enum
// are rejected before the wire call.
type Client struct {
	httpClient    *http.Client
	endpoint      string
	apiKey        string
	allowedModels map[string]bool
	defaultModel  string
	logger        *zap.Logger
}

var _ ports.PassageGenerator = (*Client)(nil)

// Config holds the generation service settings
type Config struct {
	Endpoint      string
	APIKey        string
	AllowedModels []string
	DefaultModel  string
	Timeout       time.Duration
}

// NewClient creates a generation client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	allowed := make(map[string]bool, len(cfg.AllowedModels))
	for _, m := range cfg.AllowedModels {
		allowed[m] = true
	}

	return &Client{
		httpClient:    &http.Client{Timeout: timeout},
		endpoint:      cfg.Endpoint,
		apiKey:        cfg.APIKey,
		allowedModels: allowed,
		defaultModel:  cfg.DefaultModel,
		logger:        logger,
	}
}

type generateRequest struct {
	Model        string  `json:"model"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	UserPrompt   string  `json:"user_prompt"`
	ContentType  string  `json:"content_type"`
	Temperature  float64 `json:"temperature"`
}

type generateResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Generate asks the service for content and returns the generated text
func (c *Client) Generate(ctx context.Context, req ports.GenerationRequest) (string, error) {
	switch req.ContentType {
	case ports.GenerationPassage, ports.GenerationChoices, ports.GenerationSynopsis:
	default:
		return "", pkgerrors.NewValidationError(fmt.Sprintf("unsupported content type: %s", req.ContentType))
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	if len(c.allowedModels) > 0 && !c.allowedModels[model] {
		return "", pkgerrors.NewValidationError(fmt.Sprintf("model not allowed: %s", model))
	}

	temperature := req.Temperature
	if temperature < 0 {
		temperature = 0
	}
	if temperature > 1 {
		temperature = 1
	}

	body, err := json.Marshal(generateRequest{
		Model:        model,
		SystemPrompt: req.SystemPrompt,
		UserPrompt:   req.UserPrompt,
		ContentType:  string(req.ContentType),
		Temperature:  temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal generation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build generation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", pkgerrors.NewExternalError(serviceName, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", pkgerrors.NewExternalError(serviceName, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Generation service returned error",
			zap.Int("status", resp.StatusCode),
			zap.String("contentType", string(req.ContentType)),
		)
		return "", pkgerrors.NewExternalError(serviceName, fmt.Errorf("status %d", resp.StatusCode))
	}

	var out generateResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", pkgerrors.NewExternalError(serviceName, fmt.Errorf("malformed response: %w", err))
	}
	if out.Error != "" {
		return "", pkgerrors.NewExternalError(serviceName, fmt.Errorf("%s", out.Error))
	}
	if out.Text == "" {
		return "", pkgerrors.NewExternalError(serviceName, fmt.Errorf("empty generation result"))
	}

	c.logger.Debug("Generation completed",
		zap.String("model", model),
		zap.String("contentType", string(req.ContentType)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out.Text, nil
}
