package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/jobinsight/internal/metrics"
	"github.com/sells-group/jobinsight/internal/store"
)

var (
	pipelinePages int
	pipelineXLSX  string
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Crawl, process and analyze in one run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("pipeline"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		m := metrics.New()
		err = runPipeline(ctx, st, m, cmd.OutOrStdout(), pipelinePages, pipelineXLSX)
		pushMetrics(ctx, m)
		return err
	},
}

func init() {
	pipelineCmd.Flags().IntVar(&pipelinePages, "pages", 0, "pages per keyword (default from config)")
	pipelineCmd.Flags().StringVar(&pipelineXLSX, "xlsx", "", "write the final report to this .xlsx file")
	rootCmd.AddCommand(pipelineCmd)
}

// runPipeline runs the three stages in order. A signal during the crawl
// stops the run before processing; stored postings stay unprocessed for the
// next process run.
func runPipeline(ctx context.Context, st store.Store, m *metrics.Metrics, out io.Writer, pages int, xlsxPath string) error {
	log := zap.L().With(zap.String("command", "pipeline"))

	log.Info("pipeline: crawl")
	crawled, err := runCrawl(ctx, st, m, pages)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Crawled %d, relevant %d, stored %d, duplicates %d, failed %d\n",
		crawled.Crawled, crawled.Relevant, crawled.Stored, crawled.Duplicates, crawled.Failed)
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "pipeline: interrupted after crawl")
	}

	log.Info("pipeline: process")
	processed, err := runProcess(ctx, st, m, nil, false, 0)
	printProcessSummary(out, processed)
	if err != nil {
		return err
	}

	log.Info("pipeline: analyze")
	if err := runAnalyze(ctx, st, out, analyzeOptions{ShowStats: true, XLSXPath: xlsxPath}); err != nil {
		return err
	}

	log.Info("pipeline complete",
		zap.Int("crawled", crawled.Crawled),
		zap.Int("relevant", crawled.Relevant),
		zap.Int("stored", crawled.Stored),
		zap.Int("processed", processed.Total),
		zap.Int("fallbacks", processed.Fallbacks),
	)
	return nil
}
