package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"newshub/config"
	"newshub/internal/model"
)

func TestBlocklist(t *testing.T) {
	b := NewBlocklist([]string{"DealCatcher.com", " www.spam.example "})

	tests := []struct {
		name    string
		article model.RawArticle
		blocked bool
	}{
		{"source name", model.RawArticle{SourceName: "dealcatcher.com", URL: "https://other.example/a"}, true},
		{"host", model.RawArticle{SourceName: "Deals", URL: "https://www.dealcatcher.com/x"}, true},
		{"www entry", model.RawArticle{URL: "https://spam.example/x"}, true},
		{"clean", model.RawArticle{SourceName: "The Verge", URL: "https://www.theverge.com/x"}, false},
		{"bad url", model.RawArticle{URL: "::"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.Blocked(tt.article); got != tt.blocked {
				t.Errorf("Blocked(%+v) = %v, want %v", tt.article, got, tt.blocked)
			}
		})
	}

	kept, dropped := b.Filter([]model.RawArticle{tests[0].article, tests[3].article})
	if dropped != 1 || len(kept) != 1 || kept[0].SourceName != "The Verge" {
		t.Fatalf("unexpected filter result kept=%v dropped=%d", kept, dropped)
	}
}

type staticFetcher struct {
	articles []model.RawArticle
	err      error
}

func (s staticFetcher) Name() string { return "static" }
func (s staticFetcher) Fetch(ctx context.Context) ([]model.RawArticle, error) {
	return s.articles, s.err
}

func TestWithBlocklist(t *testing.T) {
	f := WithBlocklist(staticFetcher{articles: []model.RawArticle{
		{URL: "https://dealcatcher.com/1"},
		{URL: "https://example.com/2"},
	}}, NewBlocklist([]string{"dealcatcher.com"}))

	got, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].URL != "https://example.com/2" {
		t.Fatalf("unexpected articles %+v", got)
	}
	if f.Name() != "static" {
		t.Fatalf("expected wrapped name, got %s", f.Name())
	}
}

const newsAPIBody = `{
  "status": "ok",
  "articles": [
    {"title": "One", "description": "<p>First &amp; best</p>", "url": "https://a.example/1",
     "source": {"name": "A"}, "publishedAt": "2025-01-02T03:04:05Z", "urlToImage": "https://a.example/1.png"},
    {"title": "Two", "description": null, "url": "https://b.example/2", "source": {"name": null}}
  ]
}`

func newAPIFetcher(url string) *NewsAPIFetcher {
	f := NewNewsAPIFetcher(config.NewsAPIConfig{
		URL:      url,
		APIKey:   "key",
		Query:    "tech",
		Language: "en",
		PageSize: 20,
		SortBy:   "publishedAt",
		Timeout:  2 * time.Second,
		Retries:  2,
	})
	f.baseDelay = time.Millisecond
	return f
}

func TestNewsAPIFetcher_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("apiKey") != "key" || q.Get("q") != "tech" || q.Get("pageSize") != "20" ||
			q.Get("language") != "en" || q.Get("sortBy") != "publishedAt" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, newsAPIBody)
	}))
	defer srv.Close()

	got, err := newAPIFetcher(srv.URL).Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(got))
	}
	if got[0].Description != "First & best" {
		t.Fatalf("description not stripped: %q", got[0].Description)
	}
	if got[0].PublishedAt == nil || got[0].PublishedAt.Year() != 2025 {
		t.Fatalf("unexpected published time %v", got[0].PublishedAt)
	}
	if got[1].PublishedAt != nil || got[1].SourceName != "" {
		t.Fatalf("expected empty optional fields, got %+v", got[1])
	}
}

func TestNewsAPIFetcher_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		retries int32
	}{
		{"bad status", http.StatusUnauthorized, `{"status":"error","message":"bad key"}`, 1},
		{"server error retried", http.StatusServiceUnavailable, ``, 3},
		{"malformed json", http.StatusOK, `{"articles": [`, 1},
		{"missing articles", http.StatusOK, `{"status":"ok"}`, 1},
		{"articles not array", http.StatusOK, `{"status":"ok","articles":{}}`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := newAPIFetcher(srv.URL).Fetch(context.Background())
			var fetchErr *FetchError
			if !errors.As(err, &fetchErr) {
				t.Fatalf("expected FetchError, got %v", err)
			}
			if calls.Load() != tt.retries {
				t.Fatalf("expected %d calls, got %d", tt.retries, calls.Load())
			}
		})
	}
}

func TestNewsAPIFetcher_RecoversAfterRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, newsAPIBody)
	}))
	defer srv.Close()

	got, err := newAPIFetcher(srv.URL).Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || calls.Load() != 2 {
		t.Fatalf("expected success on second call, got %d articles after %d calls", len(got), calls.Load())
	}
}

func TestNewsAPIFetcher_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newAPIFetcher(url).Fetch(context.Background())
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}

const rssBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
  <channel>
    <title>Test</title>
    <item>
      <title>First post</title>
      <link>https://feed.example/1</link>
      <description><![CDATA[<p>Hello <b>there</b></p>]]></description>
      <pubDate>Mon, 02 Jan 2006 15:04:05 +0000</pubDate>
      <category>Technology</category>
      <media:content url="https://feed.example/1.jpg" medium="image"/>
    </item>
    <item>
      <title>Second post</title>
      <link>https://feed.example/2</link>
      <description>Plain</description>
    </item>
    <item>
      <title>Third post</title>
      <link>https://feed.example/3</link>
    </item>
  </channel>
</rss>`

type feedList []model.Feed

func (l feedList) EnabledFeeds(ctx context.Context) ([]model.Feed, error) { return l, nil }

func TestFeedFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssBody)
	}))
	defer srv.Close()

	f := NewFeedFetcher(feedList{
		{Name: "Good", URL: srv.URL + "/rss"},
		{Name: "Broken", URL: srv.URL + "/broken"},
	}, 2)

	got, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected per-feed limit of 2, got %d", len(got))
	}
	first := got[0]
	if first.SourceName != "Good" || first.Description != "Hello there" {
		t.Fatalf("unexpected first article %+v", first)
	}
	if first.ImageURL != "https://feed.example/1.jpg" {
		t.Fatalf("expected media image, got %q", first.ImageURL)
	}
	if first.Category != "Technology" || got[1].Category != "" {
		t.Fatalf("unexpected categories %q, %q", first.Category, got[1].Category)
	}
	if first.PublishedAt == nil || first.PublishedAt.Year() != 2006 {
		t.Fatalf("unexpected published time %v", first.PublishedAt)
	}
	if got[1].PublishedAt != nil {
		t.Fatalf("expected nil published time for undated item")
	}
}

func TestFeedFetcher_AllFeedsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not a feed")
	}))
	defer srv.Close()

	_, err := NewFeedFetcher(feedList{{Name: "Bad", URL: srv.URL}}, 20).Fetch(context.Background())
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fetch.sh")
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return "sh " + path
}

func TestScriptFetcher(t *testing.T) {
	cmd := writeScript(t, `cat <<'EOF'
[{"title": "Script", "link": "https://s.example/1", "source": "TechCrunch",
  "published": "2025-03-01T10:00:00Z", "summary": "<i>Sum</i>", "urlToImage": null, "category": " AI "},
 {"title": "Obj", "url": "https://s.example/2", "source": {"name": "Engadget"}}]
EOF
echo "progress" >&2
`)
	got, err := NewScriptFetcher(cmd).Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(got))
	}
	if got[0].URL != "https://s.example/1" || got[0].SourceName != "TechCrunch" || got[0].Description != "Sum" {
		t.Fatalf("unexpected first article %+v", got[0])
	}
	if got[0].Category != "AI" {
		t.Fatalf("expected category AI, got %q", got[0].Category)
	}
	if got[1].SourceName != "Engadget" {
		t.Fatalf("expected object source, got %q", got[1].SourceName)
	}
}

func TestScriptFetcher_Failures(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{"non-zero exit", "echo boom >&2; exit 3"},
		{"garbage output", "echo not-json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScriptFetcher(writeScript(t, tt.script)).Fetch(context.Background())
			var fetchErr *FetchError
			if !errors.As(err, &fetchErr) {
				t.Fatalf("expected FetchError, got %v", err)
			}
		})
	}
}
