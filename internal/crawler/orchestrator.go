package crawler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/jobinsight/internal/metrics"
	"github.com/sells-group/jobinsight/internal/store"
)

// Summary reports what a crawl run did.
type Summary struct {
	Crawled    int `json:"crawled"`    // listing items parsed
	Relevant   int `json:"relevant"`   // items that passed the filter
	Stored     int `json:"stored"`     // new rows
	Duplicates int `json:"duplicates"` // source URL already present
	Failed     int `json:"failed"`     // storage errors
}

// Orchestrator runs each crawler, enriches relevant postings with their
// detail pages and saves them one at a time.
type Orchestrator struct {
	crawlers []*Crawler
	store    store.PostingWriter
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewOrchestrator builds an orchestrator writing to w.
func NewOrchestrator(w store.PostingWriter, m *metrics.Metrics, crawlers ...*Crawler) *Orchestrator {
	return &Orchestrator{
		crawlers: crawlers,
		store:    w,
		metrics:  m,
		now:      time.Now,
	}
}

// Run crawls keywords over pages for every crawler. Storage failures are
// logged and counted; the run always finishes and returns its summary.
// Cancellation stops it between pages and between records.
func (o *Orchestrator) Run(ctx context.Context, keywords []string, pages int) Summary {
	var sum Summary
	start := o.now()

	for _, c := range o.crawlers {
		if ctx.Err() != nil {
			break
		}
		s := o.runOne(ctx, c, keywords, pages)
		sum.Crawled += s.Crawled
		sum.Relevant += s.Relevant
		sum.Stored += s.Stored
		sum.Duplicates += s.Duplicates
		sum.Failed += s.Failed
	}

	zap.L().Info("crawl run complete",
		zap.Int("crawled", sum.Crawled),
		zap.Int("relevant", sum.Relevant),
		zap.Int("stored", sum.Stored),
		zap.Int("duplicates", sum.Duplicates),
		zap.Int("failed", sum.Failed),
		zap.Duration("elapsed", o.now().Sub(start)),
	)
	return sum
}

func (o *Orchestrator) runOne(ctx context.Context, c *Crawler, keywords []string, pages int) Summary {
	log := c.log
	postings, counts := c.CrawlJobs(ctx, keywords, pages)
	sum := Summary{Crawled: counts.Items, Relevant: counts.Relevant}

	for i := range postings {
		if ctx.Err() != nil {
			log.Info("crawler: stopping before record", zap.Int("remaining", len(postings)-i))
			break
		}
		p := &postings[i]
		log.Info("crawler: detail",
			zap.Int("n", i+1),
			zap.Int("of", len(postings)),
			zap.String("title", p.Title),
		)

		if p.SourceURL != "" {
			p.ApplyDetail(c.JobDetail(ctx, p.SourceURL))
		}
		p.CrawledAt = o.now().UTC()

		_, inserted, err := store.SavePosting(ctx, o.store, p)
		switch {
		case err != nil:
			sum.Failed++
			o.metrics.Postings(c.Platform(), "failed", 1)
			log.Error("crawler: save posting failed", zap.String("url", p.SourceURL), zap.Error(err))
		case inserted:
			sum.Stored++
			o.metrics.Postings(c.Platform(), "stored", 1)
		default:
			sum.Duplicates++
			o.metrics.Postings(c.Platform(), "duplicate", 1)
			log.Debug("crawler: duplicate posting", zap.String("url", p.SourceURL))
		}
	}
	return sum
}

// Close releases every crawler's fetcher.
func (o *Orchestrator) Close() error {
	var errs []error
	for _, c := range o.crawlers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
