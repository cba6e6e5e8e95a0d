package perception

import (
	"context"
	"fmt"
	"strings"
	"time"

	"briefer/internal/config"
)

// Per-provider defaults for the two handles.
var defaultModels = map[string][2]string{
	"gemini": {"gemini-2.5-flash", "gemini-2.5-pro"},
	"openai": {"gpt-4o-mini", "gpt-4o"},
}

// NewModelsFromConfig builds the fast and deep handles for the configured
// provider, each wrapped in a TracingClient.
func NewModelsFromConfig(ctx context.Context, cfg config.LLMConfig, timeout time.Duration) (Models, error) {
	defaults := defaultModels[strings.ToLower(cfg.Provider)]
	fastModel, deepModel := cfg.FastModel, cfg.DeepModel
	if fastModel == "" {
		fastModel = defaults[0]
	}
	if deepModel == "" {
		deepModel = defaults[1]
	}

	fast, err := newClient(ctx, cfg, fastModel, timeout)
	if err != nil {
		return Models{}, fmt.Errorf("fast model: %w", err)
	}
	deep, err := newClient(ctx, cfg, deepModel, timeout)
	if err != nil {
		return Models{}, fmt.Errorf("deep model: %w", err)
	}
	return Models{
		Fast: NewTracingClient("fast", fast),
		Deep: NewTracingClient("deep", deep),
	}, nil
}

func newClient(ctx context.Context, cfg config.LLMConfig, model string, timeout time.Duration) (LLMClient, error) {
	switch strings.ToLower(cfg.Provider) {
	case "gemini":
		gc := DefaultGeminiConfig(cfg.APIKey)
		if model != "" {
			gc.Model = model
		}
		if cfg.MaxOutputTokens > 0 {
			gc.MaxOutputTokens = cfg.MaxOutputTokens
		}
		gc.BaseURL = cfg.BaseURL
		gc.Timeout = timeout
		return NewGeminiClient(ctx, gc)
	case "openai":
		oc := DefaultOpenAIConfig(cfg.APIKey)
		if model != "" {
			oc.Model = model
		}
		if cfg.BaseURL != "" {
			oc.BaseURL = cfg.BaseURL
		}
		if cfg.MaxOutputTokens > 0 {
			oc.MaxTokens = cfg.MaxOutputTokens
		}
		oc.Timeout = timeout
		return NewOpenAIClient(oc), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %q", cfg.Provider)
	}
}
