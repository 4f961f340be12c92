package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/jobinsight/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := NewPostgresFromPool(mock)
	return s, mock
}

var postingColumnNames = []string{
	"id", "title", "company", "location", "salary_text", "salary_min", "salary_max", "currency",
	"experience_level", "tags", "source_url", "source_platform", "is_relevant", "matched_keywords",
	"description", "requirements", "company_size", "company_industry", "processed", "crawled_at",
}

func postingRow(rows *pgxmock.Rows, id int64, url string) *pgxmock.Rows {
	lo, hi := int32(15000), int32(25000)
	return rows.AddRow(id, "Rust 工程师", "Acme", "北京", "15-25K", &lo, &hi, "CNY",
		"3-5年", []byte(`["Rust"]`), &url, "Boss直聘", true, []byte(`["rust"]`),
		"desc", "req", "20-99人", "区块链", false, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
}

func TestPostgresStore_FindBySourceURL_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`(?s)SELECT .+ FROM job_postings WHERE source_url = \$1`).
		WithArgs("https://unknown").
		WillReturnError(pgx.ErrNoRows)

	p, err := s.FindBySourceURL(context.Background(), "https://unknown")
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindBySourceURL_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	url := "https://www.zhipin.com/job_detail/x.html"

	mock.ExpectQuery(`(?s)SELECT .+ FROM job_postings WHERE source_url = \$1`).
		WithArgs(url).
		WillReturnRows(postingRow(mock.NewRows(postingColumnNames), 7, url))

	p, err := s.FindBySourceURL(context.Background(), url)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, 15000, *p.SalaryMin)
	assert.Equal(t, []string{"Rust"}, p.Tags)
	assert.Equal(t, url, p.SourceURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SavePosting_Duplicate(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	url := "https://www.zhipin.com/job_detail/dup.html"

	mock.ExpectQuery(`FROM job_postings WHERE source_url = \$1`).
		WithArgs(url).
		WillReturnRows(postingRow(mock.NewRows(postingColumnNames), 11, url))

	id, inserted, err := SavePosting(context.Background(), s, &model.Posting{Title: "x", SourceURL: url})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, int64(11), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertPosting(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`(?s)INSERT INTO job_postings .+ON CONFLICT \(source_url\).+RETURNING id`).
		WithArgs("Go", "Acme", "", "面议", nil, nil, "CNY", "", `[]`, nil, "Boss直聘",
			true, `["web3"]`, "", "", "", "", false, pgxmock.AnyArg()).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow(int64(3)))

	id, err := s.InsertPosting(context.Background(), &model.Posting{
		Title: "Go", Company: "Acme", SalaryText: "面议", SourcePlatform: "Boss直聘",
		IsRelevant: true, MatchedKeywords: []string{"web3"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetPosting_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM job_postings WHERE id = \$1`).
		WithArgs(int64(5)).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetPosting(context.Background(), 5)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetUnprocessed(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := mock.NewRows(postingColumnNames)
	postingRow(rows, 1, "https://e.com/1")
	postingRow(rows, 2, "https://e.com/2")
	mock.ExpectQuery(`WHERE NOT processed ORDER BY id LIMIT \$1`).
		WithArgs(10).
		WillReturnRows(rows)

	out, err := s.GetUnprocessed(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(2), out[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertEnrichment_Commits(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)INSERT INTO job_enrichments .+ON CONFLICT \(posting_id\) DO UPDATE`).
		WithArgs(int64(9), `["Go"]`, "", "", `[]`, "开发", "", false, true, false, false, false,
			0.7, "llama", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE job_postings SET processed = true WHERE id = \$1`).
		WithArgs(int64(9)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := s.UpsertEnrichment(context.Background(), 9, model.Enrichment{
		Skills: []string{"Go"}, Category: "开发", DeFi: true, Confidence: 0.7, Model: "llama",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// anyEnrichmentArgs matches the 15 bound columns of the enrichment upsert.
func anyEnrichmentArgs() []any {
	args := make([]any, 15)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestPostgresStore_UpsertEnrichment_RollsBackOnMissingPosting(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO job_enrichments`).
		WithArgs(anyEnrichmentArgs()...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE job_postings SET processed = true`).
		WithArgs(int64(9)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := s.UpsertEnrichment(context.Background(), 9, model.DefaultEnrichment())
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertEnrichment_InsertError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO job_enrichments`).
		WithArgs(anyEnrichmentArgs()...).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.UpsertEnrichment(context.Background(), 1, model.DefaultEnrichment())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert enrichment")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ResetProcessed(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE job_postings SET processed = false WHERE processed`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 4))

	n, err := s.ResetProcessed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkProcessed_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE job_postings SET processed = true WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.MarkProcessed(context.Background(), 3)
	assert.True(t, eris.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountStats(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	mock.ExpectQuery(`SELECT\s+COUNT\(\*\)`).
		WithArgs(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)).
		WillReturnRows(mock.NewRows([]string{"total", "relevant", "today", "unprocessed", "processed"}).
			AddRow(10, 8, 2, 3, 7))

	st, err := s.CountStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.Stats{Total: 10, Relevant: 8, Today: 2, Unprocessed: 3, Processed: 7}, *st)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetEnrichment_Missing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM job_enrichments WHERE posting_id = \$1`).
		WithArgs(int64(2)).
		WillReturnError(pgx.ErrNoRows)

	e, err := s.GetEnrichment(context.Background(), 2)
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS job_postings`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
