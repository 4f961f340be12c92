package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/jobinsight/internal/enrich"
	"github.com/sells-group/jobinsight/internal/llm"
	"github.com/sells-group/jobinsight/internal/metrics"
)

var (
	processBatchSize int
	processJobIDs    []int64
	processReprocess bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Enrich unprocessed postings with the configured model",
	Long: "Extracts skills, seniority and Web3 features from stored postings. " +
		"With --job-id only those postings are processed; --reprocess redoes processed ones.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("process"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		m := metrics.New()
		sum, err := runProcess(ctx, st, m, processJobIDs, processReprocess, processBatchSize)
		pushMetrics(ctx, m)
		printProcessSummary(cmd.OutOrStdout(), sum)
		return err
	},
}

func init() {
	processCmd.Flags().IntVar(&processBatchSize, "batch-size", 0, "postings per batch (default from config)")
	processCmd.Flags().Int64SliceVar(&processJobIDs, "job-id", nil, "process only these posting ids (repeatable)")
	processCmd.Flags().BoolVar(&processReprocess, "reprocess", false, "redo postings that were already processed")
	rootCmd.AddCommand(processCmd)
}

func newProcessor(st enrich.Store, gen llm.Generator, m *metrics.Metrics) *enrich.Processor {
	return enrich.NewProcessor(st, gen, enrich.Config{
		BatchSize:      cfg.Process.BatchSize,
		MaxUnprocessed: cfg.Process.MaxUnprocessed,
		MaxNewTokens:   cfg.Generation.MaxNewTokens,
		Temperature:    cfg.Generation.Temperature,
	}, enrich.WithMetrics(m))
}

// runProcess opens the generator for the duration of one run. Without ids
// it processes the unprocessed backlog, or everything with reprocess.
func runProcess(ctx context.Context, st enrich.Store, m *metrics.Metrics, ids []int64, reprocess bool, batchSize int) (enrich.Summary, error) {
	gen, err := llm.Open(ctx, llm.ConfigFrom(cfg))
	if err != nil {
		return enrich.Summary{}, err
	}
	defer func() {
		if err := gen.Close(); err != nil {
			zap.L().Warn("process: close generator", zap.Error(err))
		}
	}()

	p := newProcessor(st, gen, m)
	switch {
	case reprocess || len(ids) > 0:
		return p.Reprocess(ctx, ids, batchSize)
	default:
		return p.ProcessUnprocessed(ctx, batchSize)
	}
}

func printProcessSummary(out io.Writer, s enrich.Summary) {
	fmt.Fprintf(out, "Processed %d: enriched %d, fallbacks %d, failed %d\n",
		s.Total, s.Enriched, s.Fallbacks, s.Failed)
}
