// Package enrich turns stored postings into structured enrichment records
// with a text-generation model.
package enrich

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/jobinsight/internal/llm"
	"github.com/sells-group/jobinsight/internal/metrics"
	"github.com/sells-group/jobinsight/internal/model"
)

// DefaultMaxUnprocessed caps how many postings one run pulls.
const DefaultMaxUnprocessed = 1000

// Store is the part of store.Store the processor needs.
type Store interface {
	GetPosting(ctx context.Context, id int64) (*model.Posting, error)
	GetUnprocessed(ctx context.Context, limit int) ([]model.Posting, error)
	ResetProcessed(ctx context.Context) (int64, error)
	UpsertEnrichment(ctx context.Context, postingID int64, e model.Enrichment) error
}

// Config controls generation and batching.
type Config struct {
	BatchSize      int
	MaxUnprocessed int
	MaxNewTokens   int
	Temperature    float64
}

// Summary counts the records a run touched. Fallbacks were stored with the
// default enrichment; Failed were not stored at all.
type Summary struct {
	Total     int `json:"total"`
	Enriched  int `json:"enriched"`
	Fallbacks int `json:"fallbacks"`
	Failed    int `json:"failed"`
}

func (s *Summary) add(o Summary) {
	s.Total += o.Total
	s.Enriched += o.Enriched
	s.Fallbacks += o.Fallbacks
	s.Failed += o.Failed
}

// Option configures a Processor.
type Option func(*Processor)

// WithClock overrides the time source stamped on enrichments.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// WithMetrics records outcomes and generation latency on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// Processor enriches unprocessed postings one at a time.
type Processor struct {
	store     Store
	generator llm.Generator
	cfg       Config
	now       func() time.Time
	metrics   *metrics.Metrics
}

// NewProcessor creates a Processor. Zero config values take the defaults:
// batches of 10, 1000 postings per run, 512 new tokens.
func NewProcessor(st Store, gen llm.Generator, cfg Config, opts ...Option) *Processor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.MaxUnprocessed <= 0 {
		cfg.MaxUnprocessed = DefaultMaxUnprocessed
	}
	if cfg.MaxNewTokens <= 0 {
		cfg.MaxNewTokens = 512
	}
	p := &Processor{store: st, generator: gen, cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ProcessUnprocessed enriches every unprocessed posting, up to the run cap,
// in batches of batchSize (the configured size when <= 0). A failed record
// is logged and skipped. Cancellation stops the run after the record in
// flight.
func (p *Processor) ProcessUnprocessed(ctx context.Context, batchSize int) (Summary, error) {
	if batchSize <= 0 {
		batchSize = p.cfg.BatchSize
	}
	log := zap.L().With(zap.String("model", p.generator.Model()))

	postings, err := p.store.GetUnprocessed(ctx, p.cfg.MaxUnprocessed)
	if err != nil {
		return Summary{}, eris.Wrap(err, "enrich: load unprocessed")
	}
	if len(postings) == 0 {
		log.Info("no unprocessed postings")
		return Summary{}, nil
	}
	log.Info("processing postings", zap.Int("count", len(postings)), zap.Int("batch_size", batchSize))

	var total Summary
	for start := 0; start < len(postings); start += batchSize {
		if ctx.Err() != nil {
			break
		}
		end := min(start+batchSize, len(postings))
		batch := p.processBatch(ctx, postings[start:end])
		total.add(batch)
		log.Info("batch complete",
			zap.Int("batch", start/batchSize+1),
			zap.Int("done", end),
			zap.Int("of", len(postings)),
			zap.Int("enriched", batch.Enriched),
			zap.Int("fallbacks", batch.Fallbacks),
			zap.Int("failed", batch.Failed),
		)
	}

	log.Info("processing run complete",
		zap.Int("total", total.Total),
		zap.Int("enriched", total.Enriched),
		zap.Int("fallbacks", total.Fallbacks),
		zap.Int("failed", total.Failed),
	)
	return total, ctx.Err()
}

func (p *Processor) processBatch(ctx context.Context, postings []model.Posting) Summary {
	var s Summary
	for i := range postings {
		if ctx.Err() != nil {
			break
		}
		posting := &postings[i]
		s.Total++
		e, err := p.process(ctx, posting)
		switch {
		case err != nil:
			s.Failed++
			zap.L().Warn("enrich: posting failed",
				zap.Int64("posting_id", posting.ID),
				zap.String("title", posting.Title),
				zap.Error(err),
			)
		case e.IsDefault():
			s.Fallbacks++
		default:
			s.Enriched++
		}
	}
	return s
}

// ProcessSingle enriches one posting by id, whether or not it was processed
// before.
func (p *Processor) ProcessSingle(ctx context.Context, id int64) (model.Enrichment, error) {
	posting, err := p.store.GetPosting(ctx, id)
	if err != nil {
		return model.Enrichment{}, eris.Wrapf(err, "enrich: load posting %d", id)
	}
	return p.process(ctx, posting)
}

// Reprocess re-enriches the given postings. With no ids it clears every
// processed flag and runs ProcessUnprocessed.
func (p *Processor) Reprocess(ctx context.Context, ids []int64, batchSize int) (Summary, error) {
	if len(ids) == 0 {
		n, err := p.store.ResetProcessed(ctx)
		if err != nil {
			return Summary{}, eris.Wrap(err, "enrich: reset processed")
		}
		zap.L().Info("reset processed flags", zap.Int64("postings", n))
		return p.ProcessUnprocessed(ctx, batchSize)
	}

	var s Summary
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		s.Total++
		e, err := p.ProcessSingle(ctx, id)
		switch {
		case err != nil:
			s.Failed++
			zap.L().Warn("enrich: reprocess failed", zap.Int64("posting_id", id), zap.Error(err))
		case e.IsDefault():
			s.Fallbacks++
		default:
			s.Enriched++
		}
	}
	return s, ctx.Err()
}

// process generates, parses and stores one enrichment. Generation failures
// and unparseable output store the default enrichment. Nothing is stored
// when the context ends during generation.
func (p *Processor) process(ctx context.Context, posting *model.Posting) (model.Enrichment, error) {
	prompt := BuildPrompt(posting.Title, PostingText(posting))

	start := time.Now()
	raw, err := p.generator.Generate(ctx, llm.Request{
		Prompt:       prompt,
		MaxNewTokens: p.cfg.MaxNewTokens,
		Temperature:  p.cfg.Temperature,
	})
	p.metrics.Generation(time.Since(start))

	e := model.DefaultEnrichment()
	switch {
	case err != nil && ctx.Err() != nil:
		p.metrics.Enrichment(metrics.OutcomeFailed)
		return model.Enrichment{}, eris.Wrapf(ctx.Err(), "enrich: posting %d interrupted", posting.ID)
	case err != nil:
		zap.L().Warn("enrich: generation failed, storing default",
			zap.Int64("posting_id", posting.ID), zap.Error(err))
	default:
		parsed, ok := ParseResponse(raw)
		if ok {
			e = parsed
		} else {
			zap.L().Warn("enrich: unparseable response, storing default",
				zap.Int64("posting_id", posting.ID), zap.Int("response_len", len(raw)))
		}
	}

	e.PostingID = posting.ID
	e.Model = p.generator.Model()
	e.GeneratedAt = p.now().UTC()

	if err := p.store.UpsertEnrichment(ctx, posting.ID, e); err != nil {
		p.metrics.Enrichment(metrics.OutcomeFailed)
		return model.Enrichment{}, eris.Wrapf(err, "enrich: store posting %d", posting.ID)
	}
	if e.IsDefault() {
		p.metrics.Enrichment(metrics.OutcomeFallback)
	} else {
		p.metrics.Enrichment(metrics.OutcomeEnriched)
	}
	return e, nil
}
