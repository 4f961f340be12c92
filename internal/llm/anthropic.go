package llm

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/sells-group/jobinsight/internal/resilience"
	"github.com/sells-group/jobinsight/pkg/anthropic"
)

const anthropicSystem = "You extract structured data from job postings. Reply with a single JSON object and nothing else."

// Anthropic generates with the Messages API.
type Anthropic struct {
	client anthropic.Client
	model  string
}

// NewAnthropic builds the backend. opts are passed to the SDK client.
func NewAnthropic(apiKey, model string, opts ...option.RequestOption) (*Anthropic, error) {
	if apiKey == "" {
		return nil, eris.New("llm: anthropic key is required")
	}
	if model == "" {
		return nil, eris.New("llm: anthropic model is required")
	}
	return &Anthropic{client: anthropic.NewClient(apiKey, opts...), model: model}, nil
}

// Generate implements Generator.
func (a *Anthropic) Generate(ctx context.Context, req Request) (string, error) {
	temp := req.Temperature
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   int64(req.MaxNewTokens),
		System:      anthropicSystem,
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Temperature: &temp,
	})
	if err != nil {
		if code := anthropic.StatusCode(err); resilience.RetryableStatus(code) {
			return "", resilience.Transient(err, code)
		}
		return "", err
	}
	resp.Usage.LogCost(a.model)
	return StripEcho(req.Prompt, resp.Text()), nil
}

// Model implements Generator.
func (a *Anthropic) Model() string { return a.model }

// Close implements Generator.
func (a *Anthropic) Close() error { return nil }
