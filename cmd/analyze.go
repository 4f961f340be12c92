package main

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/jobinsight/internal/report"
	"github.com/sells-group/jobinsight/internal/store"
)

var (
	analyzeShowStats bool
	analyzeXLSX      string
	analyzeJSON      bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Report on stored and enriched postings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("analyze"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return runAnalyze(ctx, st, cmd.OutOrStdout(), analyzeOptions{
			ShowStats: analyzeShowStats,
			XLSXPath:  analyzeXLSX,
			JSON:      analyzeJSON,
		})
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeShowStats, "show-stats", false, "print store counters before the report")
	analyzeCmd.Flags().StringVar(&analyzeXLSX, "xlsx", "", "also write the report to this .xlsx file")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(analyzeCmd)
}

type analyzeOptions struct {
	ShowStats bool
	XLSXPath  string
	JSON      bool
}

func runAnalyze(ctx context.Context, st store.Store, out io.Writer, opts analyzeOptions) error {
	if opts.ShowStats {
		stats, err := st.CountStats(ctx)
		if err != nil {
			return eris.Wrap(err, "analyze: stats")
		}
		report.WriteStats(out, stats)
		_, _ = io.WriteString(out, "\n")
	}

	rows, err := st.ListReportRows(ctx)
	if err != nil {
		return eris.Wrap(err, "analyze: load rows")
	}
	r := report.Build(rows, time.Now())

	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return eris.Wrap(err, "analyze: encode")
		}
	} else {
		report.WriteText(out, r)
	}

	if opts.XLSXPath != "" {
		if err := report.WriteXLSX(r, rows, opts.XLSXPath); err != nil {
			return err
		}
		zap.L().Info("report written", zap.String("path", opts.XLSXPath), zap.Int("postings", len(rows)))
	}
	return nil
}
