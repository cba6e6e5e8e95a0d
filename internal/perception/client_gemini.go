package perception

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"briefer/internal/logging"
)

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey          string
	Model           string
	MaxOutputTokens int
	Temperature     float32
	Timeout         time.Duration
	BaseURL         string // empty = Google's endpoint
}

// DefaultGeminiConfig returns sensible defaults.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:          apiKey,
		Model:           "gemini-2.5-flash",
		MaxOutputTokens: 8192,
		Temperature:     0.2,
		Timeout:         120 * time.Second,
	}
}

// GeminiClient implements LLMClient on the Google GenAI SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
	gen    *genai.GenerateContentConfig
	timeout time.Duration
}

// NewGeminiClient creates a Gemini client. The underlying genai client is
// safe for concurrent use, so one GeminiClient serves every run.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiConfig("").Model
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	gen := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(cfg.Temperature),
	}
	if cfg.MaxOutputTokens > 0 {
		gen.MaxOutputTokens = int32(cfg.MaxOutputTokens)
	}

	return &GeminiClient{
		client: client,
		model:  cfg.Model,
		gen:    gen,
		timeout: cfg.Timeout,
	}, nil
}

// Model returns the configured model name.
func (c *GeminiClient) Model() string {
	return c.model
}

// Complete sends a prompt and returns the completion text.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := withCallTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	logging.PerceptionDebug("[Gemini] Complete: model=%s prompt_len=%d", c.model, len(prompt))

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), c.gen)
	if err != nil {
		logging.PerceptionError("[Gemini] Complete failed after %v: %v", time.Since(start), err)
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	logging.PerceptionDebug("[Gemini] Complete: completed in %v response_len=%d", time.Since(start), len(text))
	return text, nil
}
