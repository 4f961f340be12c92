package scrape

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BrowserFetcher renders pages in one long-lived headless Chrome. The browser
// starts in NewBrowserFetcher and stops in Close.
type BrowserFetcher struct {
	browserCtx  context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	wait        time.Duration
	closeOnce   sync.Once
}

// NewBrowserFetcher launches Chrome. The browser is detached from ctx so it
// survives until Close.
func NewBrowserFetcher(ctx context.Context, opts Options) (*BrowserFetcher, error) {
	wait := opts.Timeout
	if wait <= 0 {
		wait = defaultTimeout
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = RandomUserAgent()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", opts.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1366, 900),
		chromedp.UserAgent(ua),
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, cancelTab := chromedp.NewContext(allocCtx)

	// The first Run allocates the browser and must not carry a deadline,
	// since cancelling it would kill the process.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, eris.Wrap(err, "scrape: launch browser")
	}

	return &BrowserFetcher{
		browserCtx:  browserCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		wait:        wait,
	}, nil
}

func (b *BrowserFetcher) Name() string { return "browser" }

// Close shuts the browser down. It is safe to call more than once.
func (b *BrowserFetcher) Close() error {
	b.closeOnce.Do(func() {
		b.cancelTab()
		b.cancelAlloc()
	})
	return nil
}

// Fetch navigates to url, waits up to the configured timeout for the body to
// be ready and returns the rendered document, or "" on failure.
func (b *BrowserFetcher) Fetch(ctx context.Context, url string) string {
	log := zap.L().With(zap.String("fetcher", "browser"), zap.String("url", url))
	if err := b.browserCtx.Err(); err != nil {
		log.Warn("scrape: browser closed", zap.Error(err))
		return ""
	}
	start := time.Now()

	runCtx, cancel := context.WithTimeout(b.browserCtx, b.wait)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		log.Warn("scrape: render failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return ""
	}

	if bt := DetectBlock(0, nil, []byte(html)); bt != BlockNone {
		log.Warn("scrape: blocked", zap.String("block", string(bt)))
		return ""
	}

	log.Debug("scrape: rendered", zap.Int("bytes", len(html)), zap.Duration("elapsed", time.Since(start)))
	return html
}
