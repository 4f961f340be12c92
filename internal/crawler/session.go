package crawler

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/jobinsight/internal/metrics"
	"github.com/sells-group/jobinsight/internal/scrape"
)

// Session is the execution context of one crawler: the fetcher it owns, its
// pacing between requests, a run-scoped logger and optional metrics.
type Session struct {
	RunID       string
	Fetcher     scrape.Fetcher
	PagePacer   Pacer
	DetailPacer Pacer
	Log         *zap.Logger
	Metrics     *metrics.Metrics
}

// NewSession assigns a fresh run id. Nil pacers default to NoPacer and a nil
// logger to the global one.
func NewSession(f scrape.Fetcher, page, detail Pacer, log *zap.Logger) *Session {
	if page == nil {
		page = NoPacer{}
	}
	if detail == nil {
		detail = NoPacer{}
	}
	if log == nil {
		log = zap.L()
	}
	id := uuid.NewString()
	return &Session{
		RunID:       id,
		Fetcher:     f,
		PagePacer:   page,
		DetailPacer: detail,
		Log:         log.With(zap.String("run_id", id), zap.String("fetcher", f.Name())),
	}
}

// Close releases the fetcher.
func (s *Session) Close() error {
	return s.Fetcher.Close()
}
