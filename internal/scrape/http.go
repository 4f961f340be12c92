package scrape

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPFetcher issues a single GET per page, with no retries.
type HTTPFetcher struct {
	client   *http.Client
	ua       string
	encoding string
	maxBody  int64
}

// NewHTTPFetcher creates an HTTPFetcher with opts applied over defaults.
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxBody := opts.MaxBodySize
	if maxBody <= 0 {
		maxBody = defaultMaxBodySize
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: timeout,
				}).DialContext,
				TLSHandshakeTimeout: timeout,
			},
		},
		ua:       opts.UserAgent,
		encoding: opts.Encoding,
		maxBody:  maxBody,
	}
}

func (f *HTTPFetcher) Name() string { return "http" }
func (f *HTTPFetcher) Close() error { f.client.CloseIdleConnections(); return nil }

// Fetch returns the decoded page body, or "" on any failure.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) string {
	log := zap.L().With(zap.String("fetcher", "http"), zap.String("url", url))
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.Warn("scrape: build request", zap.Error(err))
		return ""
	}
	ua := f.ua
	if ua == "" {
		ua = RandomUserAgent()
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		log.Warn("scrape: request failed", zap.Error(err))
		return ""
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		log.Warn("scrape: read body", zap.Error(err))
		return ""
	}

	if bt := DetectBlock(resp.StatusCode, resp.Header, body); bt != BlockNone {
		log.Warn("scrape: blocked", zap.String("block", string(bt)), zap.Int("status", resp.StatusCode))
		return ""
	}
	if resp.StatusCode >= 400 {
		log.Warn("scrape: bad status", zap.Int("status", resp.StatusCode))
		return ""
	}

	html, err := decodeBody(body, resp.Header.Get("Content-Type"), f.encoding)
	if err != nil {
		log.Warn("scrape: decode", zap.Error(err))
		return ""
	}

	log.Debug("scrape: fetched",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(html)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return html
}
