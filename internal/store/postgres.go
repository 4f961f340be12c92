package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/jobinsight/internal/db"
	"github.com/sells-group/jobinsight/internal/model"
)

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool db.Pool
	now  func() time.Time
}

// NewPostgres connects to Postgres and returns a store over the pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return NewPostgresFromPool(pool), nil
}

// NewPostgresFromPool wraps an existing pool.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, now: time.Now}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS job_postings (
	id               BIGSERIAL PRIMARY KEY,
	title            TEXT NOT NULL,
	company          TEXT NOT NULL DEFAULT '',
	location         TEXT NOT NULL DEFAULT '',
	salary_text      TEXT NOT NULL DEFAULT '',
	salary_min       INTEGER,
	salary_max       INTEGER,
	currency         TEXT NOT NULL DEFAULT 'CNY',
	experience_level TEXT NOT NULL DEFAULT '',
	tags             JSONB NOT NULL DEFAULT '[]',
	source_url       TEXT UNIQUE,
	source_platform  TEXT NOT NULL DEFAULT '',
	is_relevant      BOOLEAN NOT NULL DEFAULT false,
	matched_keywords JSONB NOT NULL DEFAULT '[]',
	description      TEXT NOT NULL DEFAULT '',
	requirements     TEXT NOT NULL DEFAULT '',
	company_size     TEXT NOT NULL DEFAULT '',
	company_industry TEXT NOT NULL DEFAULT '',
	processed        BOOLEAN NOT NULL DEFAULT false,
	crawled_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS job_enrichments (
	posting_id       BIGINT PRIMARY KEY REFERENCES job_postings(id),
	skills           JSONB NOT NULL DEFAULT '[]',
	experience       TEXT NOT NULL DEFAULT '',
	education        TEXT NOT NULL DEFAULT '',
	responsibilities JSONB NOT NULL DEFAULT '[]',
	category         TEXT NOT NULL DEFAULT '',
	seniority        TEXT NOT NULL DEFAULT '',
	remote           BOOLEAN NOT NULL DEFAULT false,
	defi             BOOLEAN NOT NULL DEFAULT false,
	nft              BOOLEAN NOT NULL DEFAULT false,
	dao              BOOLEAN NOT NULL DEFAULT false,
	smart_contract   BOOLEAN NOT NULL DEFAULT false,
	confidence       DOUBLE PRECISION NOT NULL DEFAULT 0,
	model            TEXT NOT NULL DEFAULT '',
	generated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_job_postings_unprocessed ON job_postings(id) WHERE NOT processed;
CREATE INDEX IF NOT EXISTS idx_job_postings_crawled_at ON job_postings(crawled_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) FindBySourceURL(ctx context.Context, sourceURL string) (*model.Posting, error) {
	if sourceURL == "" {
		return nil, nil
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+postingColumns+` FROM job_postings WHERE source_url = $1`, sourceURL)
	p, err := scanPgPosting(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find posting by url %s", sourceURL)
	}
	return p, nil
}

func (s *PostgresStore) InsertPosting(ctx context.Context, p *model.Posting) (int64, error) {
	tags, err := encodeList(p.Tags)
	if err != nil {
		return 0, err
	}
	matched, err := encodeList(p.MatchedKeywords)
	if err != nil {
		return 0, err
	}
	crawledAt := p.CrawledAt
	if crawledAt.IsZero() {
		crawledAt = s.now()
	}

	var id int64
	err = s.pool.QueryRow(ctx,
		`INSERT INTO job_postings (title, company, location, salary_text, salary_min, salary_max,
			currency, experience_level, tags, source_url, source_platform, is_relevant, matched_keywords,
			description, requirements, company_size, company_industry, processed, crawled_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		 ON CONFLICT (source_url) DO UPDATE SET source_url = EXCLUDED.source_url
		 RETURNING id`,
		p.Title, p.Company, p.Location, p.SalaryText, nullableInt(p.SalaryMin), nullableInt(p.SalaryMax),
		currencyOrDefault(p.Currency), p.ExperienceLevel, tags, nullIfEmpty(p.SourceURL), p.SourcePlatform,
		p.IsRelevant, matched, p.Description, p.Requirements, p.CompanyInfo.Size, p.CompanyInfo.Industry,
		p.Processed, crawledAt.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: insert posting %q", p.Title)
	}
	return id, nil
}

func (s *PostgresStore) GetPosting(ctx context.Context, id int64) (*model.Posting, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+postingColumns+` FROM job_postings WHERE id = $1`, id)
	p, err := scanPgPosting(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: posting %d", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get posting %d", id)
	}
	return p, nil
}

func (s *PostgresStore) GetUnprocessed(ctx context.Context, limit int) ([]model.Posting, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+postingColumns+` FROM job_postings WHERE NOT processed ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get unprocessed")
	}
	defer rows.Close()

	var out []model.Posting
	for rows.Next() {
		p, err := scanPgPosting(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan unprocessed")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: get unprocessed iterate")
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE job_postings SET processed = true WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark processed %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "posting %d", id)
	}
	return nil
}

func (s *PostgresStore) ResetProcessed(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE job_postings SET processed = false WHERE processed`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: reset processed")
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) UpsertEnrichment(ctx context.Context, postingID int64, e model.Enrichment) error {
	skills, err := encodeList(e.Skills)
	if err != nil {
		return err
	}
	resp, err := encodeList(e.Responsibilities)
	if err != nil {
		return err
	}
	generatedAt := e.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = s.now()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin enrichment tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO job_enrichments (`+enrichmentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		 ON CONFLICT (posting_id) DO UPDATE SET
			skills = EXCLUDED.skills, experience = EXCLUDED.experience, education = EXCLUDED.education,
			responsibilities = EXCLUDED.responsibilities, category = EXCLUDED.category,
			seniority = EXCLUDED.seniority, remote = EXCLUDED.remote, defi = EXCLUDED.defi,
			nft = EXCLUDED.nft, dao = EXCLUDED.dao, smart_contract = EXCLUDED.smart_contract,
			confidence = EXCLUDED.confidence, model = EXCLUDED.model, generated_at = EXCLUDED.generated_at`,
		postingID, skills, e.Experience, e.Education, resp, e.Category, e.Seniority,
		e.Remote, e.DeFi, e.NFT, e.DAO, e.SmartContract, e.Confidence, e.Model, generatedAt.UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert enrichment %d", postingID)
	}

	tag, err := tx.Exec(ctx, `UPDATE job_postings SET processed = true WHERE id = $1`, postingID)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark processed %d", postingID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "posting %d", postingID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit enrichment")
}

func (s *PostgresStore) GetEnrichment(ctx context.Context, postingID int64) (*model.Enrichment, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+enrichmentColumns+` FROM job_enrichments WHERE posting_id = $1`, postingID)
	e, err := scanPgEnrichment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get enrichment %d", postingID)
	}
	return e, nil
}

func (s *PostgresStore) CountStats(ctx context.Context) (*model.Stats, error) {
	var st model.Stats
	err := s.pool.QueryRow(ctx,
		`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_relevant),
			COUNT(*) FILTER (WHERE crawled_at >= $1),
			COUNT(*) FILTER (WHERE NOT processed),
			COUNT(*) FILTER (WHERE processed)
		 FROM job_postings`,
		startOfDay(s.now()),
	).Scan(&st.Total, &st.Relevant, &st.Today, &st.Unprocessed, &st.Processed)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count stats")
	}
	return &st, nil
}

func (s *PostgresStore) ListReportRows(ctx context.Context) ([]model.ReportRow, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+postingColumns+` FROM job_postings ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list postings")
	}
	var postings []model.Posting
	for rows.Next() {
		p, err := scanPgPosting(rows)
		if err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "postgres: scan posting")
		}
		postings = append(postings, *p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list postings iterate")
	}

	erows, err := s.pool.Query(ctx, `SELECT `+enrichmentColumns+` FROM job_enrichments`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list enrichments")
	}
	defer erows.Close()

	enrichments := make(map[int64]*model.Enrichment)
	for erows.Next() {
		e, err := scanPgEnrichment(erows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan enrichment")
		}
		enrichments[e.PostingID] = e
	}
	if err := erows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list enrichments iterate")
	}

	return joinReportRows(postings, enrichments), nil
}

func scanPgPosting(row scannable) (*model.Posting, error) {
	var p model.Posting
	var salaryMin, salaryMax *int32
	var sourceURL *string
	var tags, matched []byte

	err := row.Scan(&p.ID, &p.Title, &p.Company, &p.Location, &p.SalaryText, &salaryMin, &salaryMax,
		&p.Currency, &p.ExperienceLevel, &tags, &sourceURL, &p.SourcePlatform, &p.IsRelevant, &matched,
		&p.Description, &p.Requirements, &p.CompanyInfo.Size, &p.CompanyInfo.Industry, &p.Processed,
		&p.CrawledAt)
	if err != nil {
		return nil, err
	}

	if salaryMin != nil {
		v := int(*salaryMin)
		p.SalaryMin = &v
	}
	if salaryMax != nil {
		v := int(*salaryMax)
		p.SalaryMax = &v
	}
	if sourceURL != nil {
		p.SourceURL = *sourceURL
	}
	if p.Tags, err = decodeList(tags); err != nil {
		return nil, err
	}
	if p.MatchedKeywords, err = decodeList(matched); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPgEnrichment(row scannable) (*model.Enrichment, error) {
	var e model.Enrichment
	var skills, resp []byte

	err := row.Scan(&e.PostingID, &skills, &e.Experience, &e.Education, &resp, &e.Category,
		&e.Seniority, &e.Remote, &e.DeFi, &e.NFT, &e.DAO, &e.SmartContract, &e.Confidence, &e.Model,
		&e.GeneratedAt)
	if err != nil {
		return nil, err
	}
	if e.Skills, err = decodeList(skills); err != nil {
		return nil, err
	}
	if e.Responsibilities, err = decodeList(resp); err != nil {
		return nil, err
	}
	return &e, nil
}
