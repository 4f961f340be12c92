package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/jobinsight/internal/crawler"
	"github.com/sells-group/jobinsight/internal/metrics"
	"github.com/sells-group/jobinsight/internal/scrape"
	"github.com/sells-group/jobinsight/internal/store"
)

var crawlPages int

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl job boards for Web3 postings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("crawl"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		m := metrics.New()
		sum, err := runCrawl(ctx, st, m, crawlPages)
		pushMetrics(ctx, m)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Crawled %d, relevant %d, stored %d, duplicates %d, failed %d\n",
			sum.Crawled, sum.Relevant, sum.Stored, sum.Duplicates, sum.Failed)
		return nil
	},
}

func init() {
	crawlCmd.Flags().IntVar(&crawlPages, "pages", 0, "pages per keyword (default from config)")
	rootCmd.AddCommand(crawlCmd)
}

// loadSites returns the configured sources: Boss Zhipin unless skipped,
// followed by any sites declared in the sources file.
func loadSites() ([]*crawler.Site, error) {
	var sites []*crawler.Site
	if !cfg.Crawl.SkipBoss {
		sites = append(sites, crawler.NewBoss())
	}
	if cfg.Crawl.SourcesFile != "" {
		extra, err := crawler.LoadSources(cfg.Crawl.SourcesFile)
		if err != nil {
			return nil, err
		}
		sites = append(sites, extra...)
	}
	if len(sites) == 0 {
		return nil, eris.New("crawl: no sources configured")
	}
	return sites, nil
}

func fetchOptions(site *crawler.Site) scrape.Options {
	timeout := time.Duration(cfg.Crawl.HTTPTimeoutSecs) * time.Second
	if scrape.Mode(cfg.Crawl.Mode) == scrape.ModeBrowser {
		timeout = time.Duration(cfg.Browser.WaitTimeoutSecs) * time.Second
	}
	return scrape.Options{
		Timeout:   timeout,
		UserAgent: cfg.Browser.UserAgent,
		Encoding:  site.Spec().Encoding,
		Headless:  cfg.Browser.Headless,
		NoSandbox: cfg.Browser.NoSandbox,
	}
}

// buildCrawlers gives each site its own fetcher and session.
func buildCrawlers(ctx context.Context, m *metrics.Metrics) ([]*crawler.Crawler, error) {
	sites, err := loadSites()
	if err != nil {
		return nil, err
	}
	filter := crawler.NewFilter(cfg.Crawl.Vocabulary)

	var crawlers []*crawler.Crawler
	for _, site := range sites {
		f, err := scrape.New(ctx, scrape.Mode(cfg.Crawl.Mode), fetchOptions(site))
		if err != nil {
			for _, c := range crawlers {
				_ = c.Close()
			}
			return nil, eris.Wrapf(err, "crawl: fetcher for %s", site.Platform())
		}
		session := crawler.NewSession(f,
			crawler.NewRandomPacer(cfg.Crawl.DelayMin, cfg.Crawl.DelayMax),
			crawler.NewRandomPacer(cfg.Crawl.DetailDelayMin, cfg.Crawl.DetailDelayMax),
			nil,
		)
		session.Metrics = m
		crawlers = append(crawlers, crawler.New(site, session, filter))
	}
	return crawlers, nil
}

// runCrawl crawls every configured source into w. pages <= 0 uses the
// configured pages per keyword.
func runCrawl(ctx context.Context, w store.PostingWriter, m *metrics.Metrics, pages int) (crawler.Summary, error) {
	if pages <= 0 {
		pages = cfg.Crawl.PagesPerKeyword
	}
	crawlers, err := buildCrawlers(ctx, m)
	if err != nil {
		return crawler.Summary{}, err
	}

	orch := crawler.NewOrchestrator(w, m, crawlers...)
	defer func() {
		if err := orch.Close(); err != nil {
			zap.L().Warn("crawl: close fetchers", zap.Error(err))
		}
	}()

	return orch.Run(ctx, cfg.Crawl.Keywords, pages), nil
}

// pushMetrics sends run metrics to the Pushgateway, if configured. It runs
// after cancellation too, so the push gets its own deadline.
func pushMetrics(ctx context.Context, m *metrics.Metrics) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := m.Push(pctx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
		zap.L().Warn("metrics push failed", zap.Error(err))
	}
}
