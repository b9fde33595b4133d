package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
  <channel>
    <title>Startup News</title>
    <item>
      <title>Acme raises $8M</title>
      <link>https://example.com/acme-funding</link>
      <description>Acme announced a seed round.</description>
      <content:encoded>Acme announced today that it raised $8 million in a seed round.</content:encoded>
      <pubDate>Wed, 05 Mar 2025 10:00:00 +0000</pubDate>
    </item>
    <item>
      <title>Beta closes Series A</title>
      <link>https://example.com/beta-series-a</link>
      <description>Beta closed a $25 million Series A.</description>
      <pubDate>Thu, 06 Mar 2025 09:30:00 +0000</pubDate>
    </item>
  </channel>
</rss>`

const sampleAtom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Venture Blog</title>
  <entry>
    <title>Gamma secures funding</title>
    <link rel="alternate" href="https://example.com/gamma"/>
    <summary>Gamma secured $5 million.</summary>
    <published>2025-04-01T12:00:00Z</published>
  </entry>
</feed>`

func TestParseRSS(t *testing.T) {
	items, err := Parse([]byte(sampleRSS))
	if err != nil {
		t.Fatalf("parse rss: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.Title != "Acme raises $8M" {
		t.Errorf("unexpected title %q", first.Title)
	}
	if first.Link != "https://example.com/acme-funding" {
		t.Errorf("unexpected link %q", first.Link)
	}
	if !strings.Contains(first.Content, "$8 million") {
		t.Errorf("content:encoded not carried through: %q", first.Content)
	}
	want := time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)
	if !first.Published.Equal(want) {
		t.Errorf("expected pubDate %v, got %v", want, first.Published)
	}

	if items[1].Content != "" {
		t.Errorf("second item should have no full content, got %q", items[1].Content)
	}
}

func TestParseAtom(t *testing.T) {
	items, err := Parse([]byte(sampleAtom))
	if err != nil {
		t.Fatalf("parse atom: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(items))
	}
	if items[0].Link != "https://example.com/gamma" {
		t.Errorf("unexpected link %q", items[0].Link)
	}
	if items[0].Description != "Gamma secured $5 million." {
		t.Errorf("unexpected summary %q", items[0].Description)
	}
	if items[0].Published.IsZero() {
		t.Error("published date not parsed")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte("not xml at all")); err == nil {
		t.Fatal("expected error for non-feed input")
	}
}

func TestFetchFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing user agent")
		}
		w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	f := NewFetcher(nil)
	items, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
}

func TestFetchFeedBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewFetcher(nil)
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 503 response")
	}
}

func TestExtractTextPrefersArticle(t *testing.T) {
	body := `<html><head><script>var x = 1;</script></head><body>
	<nav>Home About Contact and many other navigation links that should never appear</nav>
	<article>` + strings.Repeat("Acme raised eight million dollars in seed funding. ", 10) + `</article>
	<footer>Copyright fine print</footer>
	</body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}

	text := ExtractText(doc)
	if !strings.Contains(text, "eight million dollars") {
		t.Errorf("article body missing from %q", text)
	}
	if strings.Contains(text, "navigation links") {
		t.Error("nav chrome leaked into extracted text")
	}
	if strings.Contains(text, "Copyright fine print") {
		t.Error("footer leaked into extracted text")
	}
}

func TestExtractTextFallsBackToBody(t *testing.T) {
	body := `<html><body><p>Short page without article containers.</p></body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	text := ExtractText(doc)
	if !strings.Contains(text, "Short page without article containers.") {
		t.Errorf("body fallback failed: %q", text)
	}
}

func TestFetchArticle(t *testing.T) {
	page := `<html><body><article>` +
		strings.Repeat("Beta closed a twenty five million dollar round. ", 10) +
		`</article></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	e := NewExtractor(nil)
	text, err := e.FetchArticle(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch article: %v", err)
	}
	if !strings.Contains(text, "twenty five million dollar") {
		t.Errorf("article text missing: %q", text)
	}
}
