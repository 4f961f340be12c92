package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/sells-group/jobinsight/internal/model"
)

// textTop limits ranked lists in the console summary.
const textTop = 10

// WriteText prints a console summary of r.
func WriteText(out io.Writer, r *Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Generated:\t%s\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))
	_, _ = fmt.Fprintf(w, "Postings:\t%d\n", r.Total)
	_, _ = fmt.Fprintf(w, "  Relevant:\t%d\n", r.Relevant)
	_, _ = fmt.Fprintf(w, "  Processed:\t%d\n", r.Processed)
	_, _ = fmt.Fprintf(w, "  Enriched:\t%d\n", r.Enriched)
	if r.Enriched > 0 {
		_, _ = fmt.Fprintf(w, "Remote share:\t%.1f%%\n", r.RemoteShare*100)
		_, _ = fmt.Fprintf(w, "Mean confidence:\t%.2f\n", r.MeanConfidence)
	}

	s := r.Salary
	_, _ = fmt.Fprintf(w, "\nSalary (monthly, %d postings)\n", s.Count)
	if s.Count > 0 {
		_, _ = fmt.Fprintf(w, "  Mean min / max:\t%.0f / %.0f\n", s.MeanMin, s.MeanMax)
		_, _ = fmt.Fprintf(w, "  Median midpoint:\t%.0f\n", s.Median)
		_, _ = fmt.Fprintf(w, "  P25 / P75 / P90:\t%.0f / %.0f / %.0f\n", s.P25, s.P75, s.P90)
		for _, b := range s.Buckets {
			_, _ = fmt.Fprintf(w, "  %s:\t%d\n", b.Key, b.Count)
		}
	}

	writeCounts(w, "Web3 features (model)", r.Features)
	writeCounts(w, "Web3 features (keywords)", r.KeywordHits)
	writeCounts(w, "Categories", r.Categories)
	writeCounts(w, "Seniority", r.Seniority)
	writeCounts(w, "Skills", r.Skills)
	writeCounts(w, "Locations", r.Locations)
	writeCounts(w, "Companies", r.Companies)
	writeCounts(w, "Platforms", r.Platforms)

	if len(r.TopPaying) > 0 {
		_, _ = fmt.Fprintln(w, "\nTop paying companies")
		for _, a := range r.TopPaying[:min(textTop, len(r.TopPaying))] {
			_, _ = fmt.Fprintf(w, "  %s:\t%.0f\n", a.Key, a.Value)
		}
	}
	_ = w.Flush()
}

func writeCounts(w io.Writer, title string, counts []Count) {
	if len(counts) == 0 {
		return
	}
	_, _ = fmt.Fprintf(w, "\n%s\n", title)
	for _, c := range counts[:min(textTop, len(counts))] {
		_, _ = fmt.Fprintf(w, "  %s:\t%d\n", c.Key, c.Count)
	}
}

// WriteStats prints store counters.
func WriteStats(out io.Writer, s *model.Stats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total postings:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Relevant:\t%d\n", s.Relevant)
	_, _ = fmt.Fprintf(w, "Crawled today:\t%d\n", s.Today)
	_, _ = fmt.Fprintf(w, "Processed:\t%d\n", s.Processed)
	_, _ = fmt.Fprintf(w, "Unprocessed:\t%d\n", s.Unprocessed)
	if s.Total > 0 {
		_, _ = fmt.Fprintf(w, "Processing rate:\t%.1f%%\n", float64(s.Processed)/float64(s.Total)*100)
	}
	_ = w.Flush()
}
