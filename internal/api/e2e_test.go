package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/pm-internship-scraper/internal/clock/system"
	"github.com/JakeFAU/pm-internship-scraper/internal/extract"
	collyfetcher "github.com/JakeFAU/pm-internship-scraper/internal/fetcher/colly"
	"github.com/JakeFAU/pm-internship-scraper/internal/id/uuid"
	"github.com/JakeFAU/pm-internship-scraper/internal/internship"
	"github.com/JakeFAU/pm-internship-scraper/internal/pipeline"
	"github.com/JakeFAU/pm-internship-scraper/internal/storage"
	"github.com/JakeFAU/pm-internship-scraper/internal/storage/memory"
)

const listingPage = `<!doctype html><html><body>
<main>
  <div class="internship-card"><h3>Policy Research Intern</h3><p>Ministry of Corporate Affairs</p></div>
  <div class="internship-card"><h3>Digital India Fellow</h3></div>
  <article class="job"><h2>Tiny</h2></article>
  <section class="card"><h3>Not a container tag</h3></section>
</main>
</body></html>`

func newE2EServer(t *testing.T, sourceURL string) (*Server, *memory.ListingStore, *storage.Lazy) {
	t.Helper()

	store := memory.NewListingStore(uuid.New())
	lazy := storage.NewLazy(func(context.Context) (internship.ListingStore, error) {
		return store, nil
	})
	clock := system.New()
	p, err := pipeline.New(pipeline.Deps{
		Stores:    lazy,
		Fetcher:   collyfetcher.New(collyfetcher.Config{UserAgent: "Mozilla/5.0", Timeout: 5 * time.Second}),
		Extractor: extract.New(clock),
		Clock:     clock,
	}, pipeline.Config{SourceURL: sourceURL}, zap.NewNop())
	require.NoError(t, err)
	return NewServer(p, lazy, Options{ProjectID: "pm-project"}, zap.NewNop()), store, lazy
}

func TestScrapeEndToEndPersistsThreeCards(t *testing.T) {
	t.Parallel()

	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "Mozilla/5.0" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(listingPage))
	}))
	defer source.Close()

	s, store, lazy := newE2EServer(t, source.URL+"/internships")
	require.False(t, lazy.Opened())

	rec, _ := do(t, s, "/scrape")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"success":true,"count":3}`, rec.Body.String())

	docs := store.Listings()
	require.Len(t, docs, 3)
	require.Equal(t, "Policy Research Intern", docs[0].Title)
	require.Equal(t, "Digital India Fellow", docs[1].Title)
	require.Equal(t, internship.FallbackTitle, docs[2].Title)
	for _, d := range docs {
		require.Equal(t, internship.Stipend, d.Stipend)
		require.Equal(t, internship.Organization, d.Organization)
	}
	require.True(t, lazy.Opened())

	_, ready := do(t, s, "/readyz")
	require.Equal(t, true, ready["store_open"])
}

func TestScrapeEndToEndFetchFailure(t *testing.T) {
	t.Parallel()

	source := httptest.NewServer(http.NotFoundHandler())
	target := source.URL
	source.Close()

	s, store, _ := newE2EServer(t, target)
	rec, body := do(t, s, "/scrape")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, false, body["success"])
	require.Contains(t, body["error"], "fetch")
	require.NotContains(t, body, "count")
	require.Empty(t, store.Listings())
}

func TestScrapeEndToEndNon2xxIsFetchFailure(t *testing.T) {
	t.Parallel()

	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer source.Close()

	s, store, _ := newE2EServer(t, source.URL)
	_, body := do(t, s, "/scrape")
	require.Equal(t, false, body["success"])
	require.Empty(t, store.Listings())
}
