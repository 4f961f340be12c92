package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/jobinsight/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func intp(v int) *int { return &v }

func samplePosting(url string) *model.Posting {
	return &model.Posting{
		Title:           "Solidity 开发工程师",
		Company:         "链上科技",
		Location:        "上海·浦东新区",
		SalaryText:      "15-25K",
		SalaryMin:       intp(15000),
		SalaryMax:       intp(25000),
		Currency:        "CNY",
		ExperienceLevel: "3-5年",
		Tags:            []string{"Solidity", "DeFi"},
		SourceURL:       url,
		SourcePlatform:  "Boss直聘",
		IsRelevant:      true,
		MatchedKeywords: []string{"defi", "solidity"},
		Description:     "负责智能合约开发",
		CompanyInfo:     model.CompanyInfo{Size: "100-499人", Industry: "区块链"},
	}
}

func TestSQLite_InsertAndGetPosting(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p := samplePosting("https://www.zhipin.com/job_detail/a.html")
	id, err := st.InsertPosting(ctx, p)
	require.NoError(t, err)
	assert.Positive(t, id)

	got, err := st.GetPosting(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, p.Title, got.Title)
	assert.Equal(t, 15000, *got.SalaryMin)
	assert.Equal(t, 25000, *got.SalaryMax)
	assert.Equal(t, []string{"Solidity", "DeFi"}, got.Tags)
	assert.Equal(t, []string{"defi", "solidity"}, got.MatchedKeywords)
	assert.Equal(t, p.SourceURL, got.SourceURL)
	assert.True(t, got.IsRelevant)
	assert.False(t, got.Processed)
	assert.Equal(t, "区块链", got.CompanyInfo.Industry)
	assert.False(t, got.CrawledAt.IsZero())
}

func TestSQLite_GetPosting_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetPosting(context.Background(), 999)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLite_NullSalary(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p := samplePosting("https://example.com/1")
	p.SalaryText, p.SalaryMin, p.SalaryMax = "面议", nil, nil
	id, err := st.InsertPosting(ctx, p)
	require.NoError(t, err)

	got, err := st.GetPosting(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got.SalaryMin)
	assert.Nil(t, got.SalaryMax)
}

func TestSQLite_SavePosting_Deduplicates(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	url := "https://www.zhipin.com/job_detail/dup.html"
	id1, inserted, err := SavePosting(ctx, st, samplePosting(url))
	require.NoError(t, err)
	assert.True(t, inserted)

	again := samplePosting(url)
	again.Title = "different title"
	id2, inserted, err := SavePosting(ctx, st, again)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, id1, id2)
	assert.Equal(t, id1, again.ID)

	// Stored record is unchanged.
	got, err := st.GetPosting(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "Solidity 开发工程师", got.Title)

	stats, err := st.CountStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
}

func TestSQLite_InsertPosting_ConflictReturnsExistingID(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	id1, err := st.InsertPosting(ctx, samplePosting("https://example.com/same"))
	require.NoError(t, err)
	id2, err := st.InsertPosting(ctx, samplePosting("https://example.com/same"))
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}

func TestSQLite_EmptySourceURLNeverDeduplicated(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	id1, inserted1, err := SavePosting(ctx, st, samplePosting(""))
	require.NoError(t, err)
	id2, inserted2, err := SavePosting(ctx, st, samplePosting(""))
	require.NoError(t, err)

	assert.True(t, inserted1)
	assert.True(t, inserted2)
	assert.NotEqual(t, id1, id2)

	found, err := st.FindBySourceURL(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestSQLite_FindBySourceURL_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	p, err := st.FindBySourceURL(context.Background(), "https://nowhere")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestSQLite_UnprocessedLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	var ids []int64
	for _, u := range []string{"https://e.com/1", "https://e.com/2", "https://e.com/3"} {
		id, err := st.InsertPosting(ctx, samplePosting(u))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	pending, err := st.GetUnprocessed(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, ids[0], pending[0].ID)

	require.NoError(t, st.MarkProcessed(ctx, ids[0]))
	pending, err = st.GetUnprocessed(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	n, err := st.ResetProcessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	pending, err = st.GetUnprocessed(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 3)
}

func TestSQLite_MarkProcessed_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	err := st.MarkProcessed(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLite_UpsertEnrichment(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	id, err := st.InsertPosting(ctx, samplePosting("https://e.com/enrich"))
	require.NoError(t, err)

	e := model.Enrichment{
		Skills:           []string{"Solidity", "Go"},
		Experience:       "3-5年",
		Education:        "本科",
		Responsibilities: []string{"编写合约"},
		Category:         "区块链开发",
		Seniority:        "中级",
		DeFi:             true,
		SmartContract:    true,
		Confidence:       0.85,
		Model:            "llama",
		GeneratedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, st.UpsertEnrichment(ctx, id, e))

	got, err := st.GetEnrichment(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.PostingID)
	assert.Equal(t, []string{"Solidity", "Go"}, got.Skills)
	assert.True(t, got.DeFi)
	assert.False(t, got.NFT)
	assert.InDelta(t, 0.85, got.Confidence, 1e-9)
	assert.True(t, got.GeneratedAt.Equal(e.GeneratedAt))

	p, err := st.GetPosting(ctx, id)
	require.NoError(t, err)
	assert.True(t, p.Processed)

	// Overwrite on reprocess.
	e.Category = "后端开发"
	e.Confidence = 0.5
	require.NoError(t, st.UpsertEnrichment(ctx, id, e))
	got, err = st.GetEnrichment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "后端开发", got.Category)
	assert.InDelta(t, 0.5, got.Confidence, 1e-9)
}

func TestSQLite_UpsertEnrichment_UnknownPosting(t *testing.T) {
	st := newTestSQLiteStore(t)
	err := st.UpsertEnrichment(context.Background(), 77, model.DefaultEnrichment())
	require.Error(t, err)

	got, err := st.GetEnrichment(context.Background(), 77)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_CountStats(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return now }

	today := samplePosting("https://e.com/today")
	today.CrawledAt = now.Add(-time.Hour)
	old := samplePosting("https://e.com/old")
	old.CrawledAt = now.Add(-48 * time.Hour)
	old.IsRelevant = false

	id1, err := st.InsertPosting(ctx, today)
	require.NoError(t, err)
	_, err = st.InsertPosting(ctx, old)
	require.NoError(t, err)
	require.NoError(t, st.MarkProcessed(ctx, id1))

	stats, err := st.CountStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Stats{Total: 2, Relevant: 1, Today: 1, Unprocessed: 1, Processed: 1}, *stats)
}

func TestSQLite_ListReportRows(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	id1, err := st.InsertPosting(ctx, samplePosting("https://e.com/a"))
	require.NoError(t, err)
	_, err = st.InsertPosting(ctx, samplePosting("https://e.com/b"))
	require.NoError(t, err)
	require.NoError(t, st.UpsertEnrichment(ctx, id1, model.Enrichment{Category: "开发", Confidence: 0.9}))

	rows, err := st.ListReportRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].Enrichment)
	assert.Equal(t, "开发", rows[0].Enrichment.Category)
	assert.Nil(t, rows[1].Enrichment)
}

func TestStartOfDay(t *testing.T) {
	in := time.Date(2026, 5, 6, 23, 59, 0, 0, time.FixedZone("CST", 8*3600))
	assert.Equal(t, time.Date(2026, 5, 6, 0, 0, 0, 0, time.UTC), startOfDay(in))
}
