// Package scrape retrieves raw HTML for a URL, either with a plain HTTP
// client or through a headless browser.
package scrape

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// Fetcher returns the HTML of a page. Fetch never fails loudly: any problem
// (network, timeout, status, block page, browser error) is logged and yields
// an empty string.
type Fetcher interface {
	Fetch(ctx context.Context, url string) string
	Name() string
	Close() error
}

// Mode selects a Fetcher implementation.
type Mode string

const (
	ModeHTTP    Mode = "http"
	ModeBrowser Mode = "browser"
)

// Options configures fetchers. Zero values select defaults.
type Options struct {
	Timeout     time.Duration // HTTP request timeout or browser wait timeout
	UserAgent   string        // fixed UA; empty rotates through DefaultUserAgents
	Encoding    string        // force a page encoding (WHATWG label), e.g. "gbk"
	Headless    bool
	NoSandbox   bool
	MaxBodySize int64
}

const (
	defaultTimeout     = 10 * time.Second
	defaultMaxBodySize = 4 << 20
)

// New builds the fetcher for mode. A browser fetcher launches its browser
// immediately; callers must Close it.
func New(ctx context.Context, mode Mode, opts Options) (Fetcher, error) {
	switch mode {
	case ModeHTTP, "":
		return NewHTTPFetcher(opts), nil
	case ModeBrowser:
		return NewBrowserFetcher(ctx, opts)
	default:
		return nil, eris.Errorf("scrape: unknown mode %q", mode)
	}
}
