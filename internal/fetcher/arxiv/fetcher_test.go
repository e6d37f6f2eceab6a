package arxiv

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/arxiv-harvester/internal/harvest"
)

func feedXML(total int, entries ...string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:opensearch="http://a9.com/-/spec/opensearch/1.1/" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <opensearch:totalResults>%d</opensearch:totalResults>
%s
</feed>`, total, strings.Join(entries, "\n"))
}

func entryXML(id, title, published string) string {
	return fmt.Sprintf(`  <entry>
    <id>http://arxiv.org/abs/%s</id>
    <title> %s </title>
    <summary> An abstract about large language models. </summary>
    <published>%s</published>
    <updated>%s</updated>
    <author><name>Ada Lovelace</name></author>
    <author><name>Alan Turing</name></author>
    <link rel="alternate" type="text/html" href="http://arxiv.org/abs/%s"/>
    <link title="pdf" rel="related" type="application/pdf" href="http://arxiv.org/pdf/%s"/>
    <arxiv:primary_category term="cs.CL"/>
    <category term="cs.CL"/>
    <category term="cs.LG"/>
  </entry>`, id, title, published, published, id, id)
}

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:     baseURL,
		Keywords:    []string{"LLM", "large language model"},
		PageSize:    2,
		Delay:       0,
		MaxRetries:  0,
		WindowLimit: 100,
		UserAgent:   "arxiv-harvester-test",
		Timeout:     5 * time.Second,
	}
}

func testWindow() harvest.Window {
	start := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	return harvest.Window{Start: start, End: start.AddDate(0, 0, 1)}
}

func TestSearchParsesEntries(t *testing.T) {
	t.Parallel()

	var gotQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		fmt.Fprint(w, feedXML(1,
			entryXML("2503.00001v1", "Tiny LLMs", "2025-03-01T18:30:00Z"),
		))
	}))
	defer srv.Close()

	f, err := New(testConfig(srv.URL), zap.NewNop())
	require.NoError(t, err)

	papers, err := f.Search(context.Background(), testWindow())
	require.NoError(t, err)
	require.Len(t, papers, 1)

	p := papers[0]
	require.Equal(t, "2503.00001v1", p.ArxivID)
	require.Equal(t, "Tiny LLMs", p.Title)
	require.Equal(t, "An abstract about large language models.", p.Abstract)
	require.Equal(t, []string{"Ada Lovelace", "Alan Turing"}, p.Authors)
	require.Equal(t, "http://arxiv.org/pdf/2503.00001v1", p.URL)
	require.Equal(t, []string{"cs.CL", "cs.LG"}, p.Categories)
	require.Equal(t, "cs.CL", p.PrimaryCategory)
	require.Equal(t, time.Date(2025, time.March, 1, 18, 30, 0, 0, time.UTC), p.Published)

	q := gotQuery.Load().(url.Values)
	require.Equal(t, "submittedDate", q["sortBy"][0])
	require.Equal(t, "descending", q["sortOrder"][0])
	require.Equal(t, "2", q["max_results"][0])
	require.Contains(t, q["search_query"][0], `ti:"LLM"`)
	require.Contains(t, q["search_query"][0], `abs:"large language model"`)
	require.Contains(t, q["search_query"][0], "submittedDate:[20250301 TO 20250302]")
}

func TestSearchPaginates(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		switch start {
		case 0:
			fmt.Fprint(w, feedXML(3,
				entryXML("2503.00001v1", "One", "2025-03-01T10:00:00Z"),
				entryXML("2503.00002v1", "Two", "2025-03-01T09:00:00Z"),
			))
		default:
			fmt.Fprint(w, feedXML(3,
				entryXML("2503.00003v1", "Three", "2025-03-01T08:00:00Z"),
			))
		}
	}))
	defer srv.Close()

	f, err := New(testConfig(srv.URL), zap.NewNop())
	require.NoError(t, err)

	papers, err := f.Search(context.Background(), testWindow())
	require.NoError(t, err)
	require.Len(t, papers, 3)
	require.Equal(t, int32(2), requests.Load())
}

func TestSearchHonorsWindowLimit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, feedXML(50,
			entryXML("2503.00001v1", "One", "2025-03-01T10:00:00Z"),
			entryXML("2503.00002v1", "Two", "2025-03-01T09:00:00Z"),
		))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.WindowLimit = 1
	f, err := New(cfg, zap.NewNop())
	require.NoError(t, err)

	papers, err := f.Search(context.Background(), testWindow())
	require.NoError(t, err)
	require.Len(t, papers, 1)
}

func TestSearchReturnsPartialResultsOnFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		if start == 0 {
			fmt.Fprint(w, feedXML(4,
				entryXML("2503.00001v1", "One", "2025-03-01T10:00:00Z"),
				entryXML("2503.00002v1", "Two", "2025-03-01T09:00:00Z"),
			))
			return
		}
		http.Error(w, "over capacity", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f, err := New(testConfig(srv.URL), zap.NewNop())
	require.NoError(t, err)

	papers, err := f.Search(context.Background(), testWindow())
	require.Error(t, err)
	require.Len(t, papers, 2, "papers fetched before the failure are kept")
}

func TestFetchPageRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if requests.Add(1) == 1 {
			http.Error(w, "try again", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, feedXML(1,
			entryXML("2503.00001v1", "One", "2025-03-01T10:00:00Z"),
		))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.MaxRetries = 2
	f, err := New(cfg, zap.NewNop())
	require.NoError(t, err)

	papers, err := f.Search(context.Background(), testWindow())
	require.NoError(t, err)
	require.Len(t, papers, 1)
	require.Equal(t, int32(2), requests.Load())
}

func TestSearchSkipsMalformedEntries(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		bad := strings.Replace(
			entryXML("2503.00009v1", "Bad", "2025-03-01T10:00:00Z"),
			"2025-03-01T10:00:00Z", "not-a-time", 2)
		fmt.Fprint(w, feedXML(2,
			bad,
			entryXML("2503.00010v1", "Good", "2025-03-01T09:00:00Z"),
		))
	}))
	defer srv.Close()

	f, err := New(testConfig(srv.URL), zap.NewNop())
	require.NoError(t, err)

	papers, err := f.Search(context.Background(), testWindow())
	require.NoError(t, err)
	require.Len(t, papers, 1)
	require.Equal(t, "2503.00010v1", papers[0].ArxivID)
}

func TestNewRequiresKeywords(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, zap.NewNop())
	require.Error(t, err)
}
