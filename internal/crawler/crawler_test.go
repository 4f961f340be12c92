package crawler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/jobinsight/internal/model"
)

// mapFetcher serves canned HTML by URL and records every request.
type mapFetcher struct {
	pages  map[string]string
	calls  []string
	closed atomic.Int32
}

func (f *mapFetcher) Fetch(_ context.Context, url string) string {
	f.calls = append(f.calls, url)
	return f.pages[url]
}

func (f *mapFetcher) Name() string { return "map" }

func (f *mapFetcher) Close() error {
	f.closed.Add(1)
	return nil
}

// countingPacer counts waits without sleeping.
type countingPacer struct{ waits int }

func (p *countingPacer) Wait(ctx context.Context) error {
	p.waits++
	return ctx.Err()
}

// panicSource panics on every listing page.
type panicSource struct{ *Site }

func (panicSource) ParseListings(string) []model.Posting { panic("boom") }

func newTestCrawler(t *testing.T, f *mapFetcher, src Source, page, detail Pacer) *Crawler {
	t.Helper()
	s := NewSession(f, page, detail, zap.NewNop())
	return New(src, s, nil)
}

func TestCrawlJobs_FiltersRelevant(t *testing.T) {
	boss := NewBoss()
	f := &mapFetcher{pages: map[string]string{
		boss.SearchURL("blockchain", 1): readFixture(t, "boss_listing.html"),
	}}
	pacer := &countingPacer{}
	c := newTestCrawler(t, f, boss, pacer, nil)

	postings, counts := c.CrawlJobs(context.Background(), []string{"blockchain"}, 2)

	require.Len(t, postings, 2)
	assert.Equal(t, "区块链开发工程师", postings[0].Title)
	assert.Equal(t, "DeFi Protocol Engineer", postings[1].Title)
	for _, p := range postings {
		assert.True(t, p.IsRelevant)
		assert.NotEmpty(t, p.MatchedKeywords)
	}
	assert.Equal(t, []string{"defi", "rust"}, postings[1].MatchedKeywords)

	assert.Equal(t, Counts{Pages: 2, EmptyPages: 1, Items: 3, Relevant: 2}, counts)
	assert.Len(t, f.calls, 2)
	assert.Equal(t, 1, pacer.waits, "no wait before the first fetch")
}

func TestCrawlJobs_KeywordOuterLoop(t *testing.T) {
	boss := NewBoss()
	f := &mapFetcher{pages: map[string]string{}}
	c := newTestCrawler(t, f, boss, NoPacer{}, nil)

	c.CrawlJobs(context.Background(), []string{"web3", "nft"}, 2)

	assert.Equal(t, []string{
		boss.SearchURL("web3", 1),
		boss.SearchURL("web3", 2),
		boss.SearchURL("nft", 1),
		boss.SearchURL("nft", 2),
	}, f.calls)
}

func TestCrawlJobs_ParserPanicSkipsPage(t *testing.T) {
	boss := NewBoss()
	f := &mapFetcher{pages: map[string]string{
		boss.SearchURL("dao", 1): "<html></html>",
		boss.SearchURL("dao", 2): "<html></html>",
	}}
	c := newTestCrawler(t, f, panicSource{boss}, NoPacer{}, nil)

	postings, counts := c.CrawlJobs(context.Background(), []string{"dao"}, 2)
	assert.Empty(t, postings)
	assert.Equal(t, 2, counts.EmptyPages)
	assert.Len(t, f.calls, 2)
}

func TestCrawlJobs_StopsOnCancel(t *testing.T) {
	boss := NewBoss()
	f := &mapFetcher{pages: map[string]string{}}
	c := newTestCrawler(t, f, boss, RandomPacer{Min: time.Hour, Max: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	done := make(chan struct{})
	go func() {
		c.CrawlJobs(ctx, []string{"web3"}, 5)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("CrawlJobs did not stop after cancel")
	}
	assert.Len(t, f.calls, 1)
}

func TestJobDetail(t *testing.T) {
	boss := NewBoss()
	url := "https://www.zhipin.com/job_detail/a1.html"
	f := &mapFetcher{pages: map[string]string{url: readFixture(t, "boss_detail.html")}}
	c := newTestCrawler(t, f, boss, nil, nil)

	d := c.JobDetail(context.Background(), url)
	assert.Equal(t, "100-499人", d.CompanyInfo.Size)

	assert.True(t, c.JobDetail(context.Background(), "https://www.zhipin.com/job_detail/missing.html").Empty())
	assert.True(t, c.JobDetail(context.Background(), "").Empty())
	assert.Len(t, f.calls, 2)
}

func TestCrawler_CloseReleasesFetcher(t *testing.T) {
	f := &mapFetcher{}
	c := newTestCrawler(t, f, NewBoss(), nil, nil)
	require.NoError(t, c.Close())
	assert.Equal(t, int32(1), f.closed.Load())
	assert.NotEmpty(t, c.session.RunID)
}
