// Package llm holds the text-generation clients used to rewrite resumes.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Providers accepted by New.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

type Client interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Close() error
}

type Config struct {
	Provider      string
	GeminiKey     string
	GeminiModel   string
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
}

// New builds the client for cfg.Provider. ProviderNone has no client and
// returns an error; callers switch to a passthrough rewriter instead.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderGemini:
		return NewGemini(ctx, cfg.GeminiKey, cfg.GeminiModel)
	case ProviderOpenAI:
		return NewOpenAI(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	case ProviderNone:
		return nil, fmt.Errorf("provider %q has no client", cfg.Provider)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
