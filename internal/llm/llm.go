// Package llm wraps the text-generation backends used for enrichment behind
// a single Generator interface.
package llm

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/jobinsight/internal/config"
)

// Providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderLlamaCpp  = "llamacpp"
)

// Request is one completion call.
type Request struct {
	Prompt       string
	MaxNewTokens int
	Temperature  float64
}

// Generator produces a continuation for a prompt. Only newly generated text
// is returned, never an echo of the prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Model() string
	Close() error
}

// Config selects and tunes a backend.
type Config struct {
	Provider          string
	Model             string
	MaxNewTokens      int
	Temperature       float64
	RequestsPerMinute int
	MaxRetries        int
	Timeout           time.Duration

	AnthropicKey string
	GeminiKey    string
	LlamaCppURL  string
}

// ConfigFrom extracts the generation settings from the app config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Provider:          cfg.Generation.Provider,
		Model:             cfg.Generation.Model,
		MaxNewTokens:      cfg.Generation.MaxNewTokens,
		Temperature:       cfg.Generation.Temperature,
		RequestsPerMinute: cfg.Generation.RequestsPerMinute,
		MaxRetries:        cfg.Generation.MaxRetries,
		Timeout:           time.Duration(cfg.Generation.TimeoutSecs) * time.Second,
		AnthropicKey:      cfg.Anthropic.Key,
		GeminiKey:         cfg.Gemini.Key,
		LlamaCppURL:       cfg.LlamaCpp.BaseURL,
	}
}

// Open acquires the configured backend and layers retries and the rate
// ceiling on top. The caller owns the result and must Close it.
func Open(ctx context.Context, cfg Config) (Generator, error) {
	var (
		g   Generator
		err error
	)
	switch cfg.Provider {
	case ProviderAnthropic:
		g, err = NewAnthropic(cfg.AnthropicKey, cfg.Model)
	case ProviderGemini:
		g, err = NewGemini(ctx, cfg.GeminiKey, cfg.Model, "")
	case ProviderLlamaCpp, "":
		g, err = NewLlamaCpp(ctx, cfg.LlamaCppURL, cfg.Model)
	default:
		return nil, eris.Errorf("llm: unknown provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	g = NewRetrying(g, cfg.MaxRetries+1, cfg.Timeout)
	if cfg.RequestsPerMinute > 0 {
		g = NewLimited(g, cfg.RequestsPerMinute)
	}

	zap.L().Info("llm: generator ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", g.Model()),
		zap.Int("requests_per_minute", cfg.RequestsPerMinute),
	)
	return g, nil
}

// StripEcho removes a leading copy of prompt from out, as some completion
// servers return the prompt together with the continuation.
func StripEcho(prompt, out string) string {
	if prompt != "" && strings.HasPrefix(out, prompt) {
		out = out[len(prompt):]
	}
	return strings.TrimSpace(out)
}
