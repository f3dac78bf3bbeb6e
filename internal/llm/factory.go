package llm

import (
	"context"
	"fmt"

	"github.com/Theekshana-Gimhan/ai-persona-simulator/internal/config"
)

// NewModel picks the provider named by cfg.LLMProvider.
func NewModel(cfg config.Config) (Model, error) {
	switch cfg.LLMProvider {
	case "", "gemini":
		c, err := NewGeminiClient(context.Background(), cfg.GeminiKey, cfg.GeminiModelID, cfg.GeminiBaseURL)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "cerebras":
		return NewCerebrasClient(cfg.CerebrasKey, cfg.CerebrasModelID), nil
	case "mock":
		return MockClient{}, nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}
