package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/jobinsight/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// A single connection serializes writers and keeps pragmas in effect.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS job_postings (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	title            TEXT NOT NULL,
	company          TEXT NOT NULL DEFAULT '',
	location         TEXT NOT NULL DEFAULT '',
	salary_text      TEXT NOT NULL DEFAULT '',
	salary_min       INTEGER,
	salary_max       INTEGER,
	currency         TEXT NOT NULL DEFAULT 'CNY',
	experience_level TEXT NOT NULL DEFAULT '',
	tags             TEXT NOT NULL DEFAULT '[]',
	source_url       TEXT UNIQUE,
	source_platform  TEXT NOT NULL DEFAULT '',
	is_relevant      INTEGER NOT NULL DEFAULT 0,
	matched_keywords TEXT NOT NULL DEFAULT '[]',
	description      TEXT NOT NULL DEFAULT '',
	requirements     TEXT NOT NULL DEFAULT '',
	company_size     TEXT NOT NULL DEFAULT '',
	company_industry TEXT NOT NULL DEFAULT '',
	processed        INTEGER NOT NULL DEFAULT 0,
	crawled_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS job_enrichments (
	posting_id       INTEGER PRIMARY KEY REFERENCES job_postings(id),
	skills           TEXT NOT NULL DEFAULT '[]',
	experience       TEXT NOT NULL DEFAULT '',
	education        TEXT NOT NULL DEFAULT '',
	responsibilities TEXT NOT NULL DEFAULT '[]',
	category         TEXT NOT NULL DEFAULT '',
	seniority        TEXT NOT NULL DEFAULT '',
	remote           INTEGER NOT NULL DEFAULT 0,
	defi             INTEGER NOT NULL DEFAULT 0,
	nft              INTEGER NOT NULL DEFAULT 0,
	dao              INTEGER NOT NULL DEFAULT 0,
	smart_contract   INTEGER NOT NULL DEFAULT 0,
	confidence       REAL NOT NULL DEFAULT 0,
	model            TEXT NOT NULL DEFAULT '',
	generated_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_job_postings_processed ON job_postings(processed);
CREATE INDEX IF NOT EXISTS idx_job_postings_crawled_at ON job_postings(crawled_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) FindBySourceURL(ctx context.Context, sourceURL string) (*model.Posting, error) {
	if sourceURL == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+postingColumns+` FROM job_postings WHERE source_url = ?`, sourceURL)
	p, err := scanSQLitePosting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find posting by url %s", sourceURL)
	}
	return p, nil
}

func (s *SQLiteStore) InsertPosting(ctx context.Context, p *model.Posting) (int64, error) {
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

	// A concurrent insert of the same URL yields the existing row's id.
	var id int64
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO job_postings (title, company, location, salary_text, salary_min, salary_max,
			currency, experience_level, tags, source_url, source_platform, is_relevant, matched_keywords,
			description, requirements, company_size, company_industry, processed, crawled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(source_url) DO UPDATE SET source_url = excluded.source_url
		 RETURNING id`,
		p.Title, p.Company, p.Location, p.SalaryText, nullableInt(p.SalaryMin), nullableInt(p.SalaryMax),
		currencyOrDefault(p.Currency), p.ExperienceLevel, tags, nullIfEmpty(p.SourceURL), p.SourcePlatform,
		p.IsRelevant, matched, p.Description, p.Requirements, p.CompanyInfo.Size, p.CompanyInfo.Industry,
		p.Processed, crawledAt.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: insert posting %q", p.Title)
	}
	return id, nil
}

func (s *SQLiteStore) GetPosting(ctx context.Context, id int64) (*model.Posting, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+postingColumns+` FROM job_postings WHERE id = ?`, id)
	p, err := scanSQLitePosting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: posting %d", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get posting %d", id)
	}
	return p, nil
}

func (s *SQLiteStore) GetUnprocessed(ctx context.Context, limit int) ([]model.Posting, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+postingColumns+` FROM job_postings WHERE processed = 0 ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get unprocessed")
	}
	defer rows.Close()

	var out []model.Posting
	for rows.Next() {
		p, err := scanSQLitePosting(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan unprocessed")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: get unprocessed iterate")
}

func (s *SQLiteStore) MarkProcessed(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE job_postings SET processed = 1 WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark processed %d", id)
	}
	return checkRowsAffected(res, id)
}

func (s *SQLiteStore) ResetProcessed(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE job_postings SET processed = 0 WHERE processed = 1`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: reset processed")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) UpsertEnrichment(ctx context.Context, postingID int64, e model.Enrichment) error {
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin enrichment tx")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO job_enrichments (`+enrichmentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(posting_id) DO UPDATE SET
			skills = excluded.skills, experience = excluded.experience, education = excluded.education,
			responsibilities = excluded.responsibilities, category = excluded.category,
			seniority = excluded.seniority, remote = excluded.remote, defi = excluded.defi,
			nft = excluded.nft, dao = excluded.dao, smart_contract = excluded.smart_contract,
			confidence = excluded.confidence, model = excluded.model, generated_at = excluded.generated_at`,
		postingID, skills, e.Experience, e.Education, resp, e.Category, e.Seniority,
		e.Remote, e.DeFi, e.NFT, e.DAO, e.SmartContract, e.Confidence, e.Model, generatedAt.UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert enrichment %d", postingID)
	}

	res, err := tx.ExecContext(ctx, `UPDATE job_postings SET processed = 1 WHERE id = ?`, postingID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark processed %d", postingID)
	}
	if err := checkRowsAffected(res, postingID); err != nil {
		return err
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit enrichment")
}

func (s *SQLiteStore) GetEnrichment(ctx context.Context, postingID int64) (*model.Enrichment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+enrichmentColumns+` FROM job_enrichments WHERE posting_id = ?`, postingID)
	e, err := scanSQLiteEnrichment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get enrichment %d", postingID)
	}
	return e, nil
}

func (s *SQLiteStore) CountStats(ctx context.Context) (*model.Stats, error) {
	var st model.Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT
			COUNT(*),
			COALESCE(SUM(is_relevant), 0),
			COALESCE(SUM(CASE WHEN crawled_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN processed = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(processed), 0)
		 FROM job_postings`,
		startOfDay(s.now()),
	).Scan(&st.Total, &st.Relevant, &st.Today, &st.Unprocessed, &st.Processed)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count stats")
	}
	return &st, nil
}

func (s *SQLiteStore) ListReportRows(ctx context.Context) ([]model.ReportRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+postingColumns+` FROM job_postings ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list postings")
	}
	var postings []model.Posting
	for rows.Next() {
		p, err := scanSQLitePosting(rows)
		if err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "sqlite: scan posting")
		}
		postings = append(postings, *p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list postings iterate")
	}

	erows, err := s.db.QueryContext(ctx, `SELECT `+enrichmentColumns+` FROM job_enrichments`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list enrichments")
	}
	defer erows.Close()

	enrichments := make(map[int64]*model.Enrichment)
	for erows.Next() {
		e, err := scanSQLiteEnrichment(erows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan enrichment")
		}
		enrichments[e.PostingID] = e
	}
	if err := erows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list enrichments iterate")
	}

	return joinReportRows(postings, enrichments), nil
}

// helpers

func currencyOrDefault(c string) string {
	if c == "" {
		return model.DefaultCurrency
	}
	return c
}

func checkRowsAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "posting %d", id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLitePosting(row scannable) (*model.Posting, error) {
	var p model.Posting
	var salaryMin, salaryMax sql.NullInt64
	var sourceURL sql.NullString
	var tags, matched string

	err := row.Scan(&p.ID, &p.Title, &p.Company, &p.Location, &p.SalaryText, &salaryMin, &salaryMax,
		&p.Currency, &p.ExperienceLevel, &tags, &sourceURL, &p.SourcePlatform, &p.IsRelevant, &matched,
		&p.Description, &p.Requirements, &p.CompanyInfo.Size, &p.CompanyInfo.Industry, &p.Processed,
		&p.CrawledAt)
	if err != nil {
		return nil, err
	}

	p.SalaryMin = intPtr(salaryMin)
	p.SalaryMax = intPtr(salaryMax)
	p.SourceURL = sourceURL.String
	if p.Tags, err = decodeList([]byte(tags)); err != nil {
		return nil, err
	}
	if p.MatchedKeywords, err = decodeList([]byte(matched)); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanSQLiteEnrichment(row scannable) (*model.Enrichment, error) {
	var e model.Enrichment
	var skills, resp string

	err := row.Scan(&e.PostingID, &skills, &e.Experience, &e.Education, &resp, &e.Category,
		&e.Seniority, &e.Remote, &e.DeFi, &e.NFT, &e.DAO, &e.SmartContract, &e.Confidence, &e.Model,
		&e.GeneratedAt)
	if err != nil {
		return nil, err
	}
	if e.Skills, err = decodeList([]byte(skills)); err != nil {
		return nil, err
	}
	if e.Responsibilities, err = decodeList([]byte(resp)); err != nil {
		return nil, err
	}
	return &e, nil
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
