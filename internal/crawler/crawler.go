// Package crawler searches recruiting sites by keyword, parses the listings
// with fallback selector chains and keeps the postings relevant to Web3.
package crawler

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/jobinsight/internal/model"
)

// Counts tallies one CrawlJobs call.
type Counts struct {
	Pages      int // pages fetched
	EmptyPages int // fetches that returned nothing or failed to parse
	Items      int // listing items parsed
	Relevant   int
}

// Crawler crawls one Source within one Session.
type Crawler struct {
	source  Source
	session *Session
	filter  *Filter
	log     *zap.Logger
	fetched bool
}

// New builds a crawler. A nil filter uses DefaultVocabulary.
func New(source Source, session *Session, filter *Filter) *Crawler {
	if filter == nil {
		filter = NewFilter(nil)
	}
	return &Crawler{
		source:  source,
		session: session,
		filter:  filter,
		log:     session.Log.With(zap.String("platform", source.Platform())),
	}
}

// Platform returns the source's platform label.
func (c *Crawler) Platform() string { return c.source.Platform() }

// CrawlJobs searches every keyword over pages 1..pages and returns the
// relevant postings in discovery order. Failed pages are logged and skipped.
// It stops early, returning what it has, when ctx is cancelled.
func (c *Crawler) CrawlJobs(ctx context.Context, keywords []string, pages int) ([]model.Posting, Counts) {
	var (
		out    []model.Posting
		counts Counts
	)

	for _, kw := range keywords {
		c.log.Info("crawler: keyword", zap.String("keyword", kw), zap.Int("pages", pages))
		for page := 1; page <= pages; page++ {
			if ctx.Err() != nil {
				c.log.Info("crawler: cancelled", zap.Int("relevant", len(out)))
				return out, counts
			}

			url := c.source.SearchURL(kw, page)
			html, ok := c.fetch(ctx, c.session.PagePacer, url)
			if !ok {
				return out, counts
			}
			counts.Pages++
			if html == "" {
				counts.EmptyPages++
				c.session.Metrics.EmptyFetch(c.Platform(), "listing")
				c.log.Warn("crawler: empty page", zap.String("keyword", kw), zap.Int("page", page))
				continue
			}

			items, err := c.parseListings(html)
			if err != nil {
				counts.EmptyPages++
				c.log.Error("crawler: page parse failed", zap.String("url", url), zap.Error(err))
				continue
			}

			relevant := 0
			for i := range items {
				if c.filter.Mark(&items[i]) {
					out = append(out, items[i])
					relevant++
				}
			}
			counts.Items += len(items)
			counts.Relevant += relevant
			c.session.Metrics.Postings(c.Platform(), "crawled", len(items))
			c.session.Metrics.Postings(c.Platform(), "relevant", relevant)

			c.log.Info("crawler: page done",
				zap.String("keyword", kw),
				zap.Int("page", page),
				zap.Int("items", len(items)),
				zap.Int("relevant", relevant),
			)
		}
	}

	c.log.Info("crawler: listings done", zap.Int("relevant", len(out)), zap.Int("pages", counts.Pages))
	return out, counts
}

// JobDetail fetches and parses a posting's detail page. Any failure yields
// an empty detail.
func (c *Crawler) JobDetail(ctx context.Context, url string) model.PostingDetail {
	if url == "" {
		return model.PostingDetail{}
	}
	html, ok := c.fetch(ctx, c.session.DetailPacer, url)
	if !ok || html == "" {
		if ok {
			c.session.Metrics.EmptyFetch(c.Platform(), "detail")
		}
		return model.PostingDetail{}
	}
	return c.source.ParseDetail(html)
}

// Close releases the session's fetcher.
func (c *Crawler) Close() error {
	return c.session.Close()
}

// fetch paces every request after the first. ok is false only when ctx was
// cancelled while waiting.
func (c *Crawler) fetch(ctx context.Context, pacer Pacer, url string) (string, bool) {
	if c.fetched {
		if err := pacer.Wait(ctx); err != nil {
			return "", false
		}
	}
	c.fetched = true
	return c.session.Fetcher.Fetch(ctx, url), true
}

func (c *Crawler) parseListings(html string) (items []model.Posting, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("crawler: panic parsing listings: %v", r)
		}
	}()
	return c.source.ParseListings(html), nil
}
