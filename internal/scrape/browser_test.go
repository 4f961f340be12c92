package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireChrome(t *testing.T) {
	t.Helper()
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return
		}
	}
	t.Skip("no Chrome binary on PATH")
}

func TestBrowserFetcher_Renders(t *testing.T) {
	requireChrome(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body><div id="root"></div>
<script>document.getElementById("root").innerHTML = '<span class="job-name">DeFi 工程师</span>';</script>
</body></html>`))
	}))
	defer srv.Close()

	f, err := NewBrowserFetcher(context.Background(), Options{Headless: true, NoSandbox: true, Timeout: 15 * time.Second})
	require.NoError(t, err)
	defer f.Close()

	html := f.Fetch(context.Background(), srv.URL)
	assert.Contains(t, html, `<span class="job-name">DeFi 工程师</span>`)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	assert.Empty(t, f.Fetch(context.Background(), srv.URL))
}
