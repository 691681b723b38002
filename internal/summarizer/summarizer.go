package summarizer

import (
	"context"
	"fmt"

	"github.com/prepdhq/prepd/internal/config"
)

// Summarizer turns gathered meeting context into a short briefing. One
// provider is selected at startup from configuration.
type Summarizer interface {
	Name() string
	Summarize(ctx context.Context, instructions, content string) (string, error)
}

// New builds the configured provider.
func New(cfg config.SummarizerConfig) (Summarizer, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case "anthropic":
		return NewAnthropic(cfg.APIKey, cfg.Model), nil
	case "gemini":
		return NewGemini(cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown summarizer provider: %s", cfg.Provider)
	}
}
