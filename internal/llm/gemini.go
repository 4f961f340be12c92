package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"

	"github.com/sells-group/jobinsight/internal/resilience"
)

// Gemini generates with the Google Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini builds the backend. baseURL overrides the API endpoint when set.
func NewGemini(ctx context.Context, apiKey, model, baseURL string) (*Gemini, error) {
	if apiKey == "" {
		return nil, eris.New("llm: gemini key is required")
	}
	if model == "" {
		return nil, eris.New("llm: gemini model is required")
	}
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, eris.Wrap(err, "llm: gemini client")
	}
	return &Gemini{client: client, model: model}, nil
}

// Generate implements Generator.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens: int32(req.MaxNewTokens),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && resilience.RetryableStatus(apiErr.Code) {
			return "", resilience.Transient(eris.Wrap(err, "llm: gemini generate"), apiErr.Code)
		}
		return "", eris.Wrap(err, "llm: gemini generate")
	}

	var out strings.Builder
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			out.WriteString(p.Text)
		}
		if out.Len() > 0 {
			break
		}
	}
	if out.Len() == 0 {
		return "", eris.New("llm: gemini returned no text")
	}
	return StripEcho(req.Prompt, out.String()), nil
}

// Model implements Generator.
func (g *Gemini) Model() string { return g.model }

// Close implements Generator. The genai client holds no resources.
func (g *Gemini) Close() error { return nil }
