package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/jobinsight/internal/model"
)

// PostingWriter is the part of Store the crawler needs.
type PostingWriter interface {
	FindBySourceURL(ctx context.Context, sourceURL string) (*model.Posting, error)
	InsertPosting(ctx context.Context, p *model.Posting) (int64, error)
}

// Store defines the persistence interface for postings and their enrichments.
type Store interface {
	PostingWriter

	// Postings
	GetPosting(ctx context.Context, id int64) (*model.Posting, error)
	GetUnprocessed(ctx context.Context, limit int) ([]model.Posting, error)
	MarkProcessed(ctx context.Context, id int64) error
	ResetProcessed(ctx context.Context) (int64, error)

	// Enrichments. UpsertEnrichment also marks the posting processed, in
	// the same transaction.
	UpsertEnrichment(ctx context.Context, postingID int64, e model.Enrichment) error
	GetEnrichment(ctx context.Context, postingID int64) (*model.Enrichment, error)

	// Reporting
	CountStats(ctx context.Context) (*model.Stats, error)
	ListReportRows(ctx context.Context) ([]model.ReportRow, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// ErrNotFound is returned when a posting id does not exist.
var ErrNotFound = eris.New("store: not found")

// SavePosting stores p unless a posting with the same source URL already
// exists, in which case the existing id is returned and inserted is false.
// Postings without a source URL are always inserted.
func SavePosting(ctx context.Context, w PostingWriter, p *model.Posting) (id int64, inserted bool, err error) {
	if p.SourceURL != "" {
		existing, err := w.FindBySourceURL(ctx, p.SourceURL)
		if err != nil {
			return 0, false, err
		}
		if existing != nil {
			p.ID = existing.ID
			return existing.ID, false, nil
		}
	}

	if p.CrawledAt.IsZero() {
		p.CrawledAt = time.Now().UTC()
	}
	id, err = w.InsertPosting(ctx, p)
	if err != nil {
		return 0, false, err
	}
	p.ID = id
	return id, true, nil
}

// startOfDay is the UTC midnight that opens the day containing t.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func encodeList(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", eris.Wrap(err, "store: encode list")
	}
	return string(b), nil
}

func decodeList(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, eris.Wrap(err, "store: decode list")
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func joinReportRows(postings []model.Posting, enrichments map[int64]*model.Enrichment) []model.ReportRow {
	rows := make([]model.ReportRow, 0, len(postings))
	for _, p := range postings {
		rows = append(rows, model.ReportRow{Posting: p, Enrichment: enrichments[p.ID]})
	}
	return rows
}

const postingColumns = `id, title, company, location, salary_text, salary_min, salary_max, currency,
	experience_level, tags, source_url, source_platform, is_relevant, matched_keywords,
	description, requirements, company_size, company_industry, processed, crawled_at`

const enrichmentColumns = `posting_id, skills, experience, education, responsibilities, category,
	seniority, remote, defi, nft, dao, smart_contract, confidence, model, generated_at`
