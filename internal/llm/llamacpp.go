package llm

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/jobinsight/pkg/llamacpp"
)

// LlamaCpp generates with a local llama.cpp server hosting the model.
type LlamaCpp struct {
	client llamacpp.Client
	model  string
}

// NewLlamaCpp connects to the server at baseURL and verifies it has finished
// loading its model.
func NewLlamaCpp(ctx context.Context, baseURL, model string, opts ...llamacpp.Option) (*LlamaCpp, error) {
	client := llamacpp.NewClient(baseURL, opts...)

	hctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Health(hctx); err != nil {
		return nil, eris.Wrapf(err, "llm: llama.cpp server at %s not ready", baseURL)
	}
	return &LlamaCpp{client: client, model: model}, nil
}

// Generate implements Generator.
func (l *LlamaCpp) Generate(ctx context.Context, req Request) (string, error) {
	temp := req.Temperature
	resp, err := l.client.Completion(ctx, llamacpp.CompletionRequest{
		Prompt:      req.Prompt,
		NPredict:    req.MaxNewTokens,
		Temperature: &temp,
		CachePrompt: true,
	})
	if err != nil {
		return "", err
	}
	return StripEcho(req.Prompt, resp.Content), nil
}

// Model implements Generator. The configured name wins over whatever the
// server reports.
func (l *LlamaCpp) Model() string { return l.model }

// Close implements Generator.
func (l *LlamaCpp) Close() error { return nil }
