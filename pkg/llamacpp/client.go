// Package llamacpp is a client for the HTTP server bundled with llama.cpp.
package llamacpp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/jobinsight/internal/resilience"
)

const defaultBaseURL = "http://127.0.0.1:8080"

// Client calls a llama.cpp server.
type Client interface {
	Completion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	Health(ctx context.Context) error
}

// CompletionRequest is the request body for POST /completion.
type CompletionRequest struct {
	Prompt      string   `json:"prompt"`
	NPredict    int      `json:"n_predict,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	CachePrompt bool     `json:"cache_prompt"`
	Stream      bool     `json:"stream"`
}

// CompletionResponse is the response from POST /completion.
type CompletionResponse struct {
	Content         string  `json:"content"`
	Model           string  `json:"model"`
	Stop            bool    `json:"stop"`
	StoppedLimit    bool    `json:"stopped_limit"`
	TokensPredicted int     `json:"tokens_predicted"`
	TokensEvaluated int     `json:"tokens_evaluated"`
	Timings         Timings `json:"timings"`
}

// Timings reports server-side generation speed.
type Timings struct {
	PredictedMS        float64 `json:"predicted_ms"`
	PredictedPerSecond float64 `json:"predicted_per_second"`
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL, or the default
// local address when empty.
func NewClient(baseURL string, opts ...Option) Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &httpClient{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Completion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "llamacpp: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/completion", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "llamacpp: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, sendError(err, "llamacpp: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "llamacpp: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.StatusError("llamacpp", resp.StatusCode, string(respBody))
	}

	var result CompletionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "llamacpp: unmarshal response")
	}

	return &result, nil
}

// Health succeeds once the server has loaded its model. A server still
// loading answers 503.
func (c *httpClient) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return eris.Wrap(err, "llamacpp: create request")
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return sendError(err, "llamacpp: health check")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resilience.StatusError("llamacpp health", resp.StatusCode, string(b))
	}
	return nil
}

// sendError keeps a transport failure retryable after wrapping.
func sendError(err error, msg string) error {
	wrapped := eris.Wrap(err, msg)
	if resilience.IsTransient(err) {
		return resilience.Transient(wrapped, 0)
	}
	return wrapped
}
