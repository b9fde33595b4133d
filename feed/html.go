// Copyright 2026 Xynenyx
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package feed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// contentSelectors are tried in order; the first match with enough text wins.
var contentSelectors = []string{
	"article",
	"main",
	"[role=main]",
	".article-content",
	".post",
	".entry",
	".content",
}

// chromeSelectors are removed before text extraction.
var chromeSelectors = []string{
	"script",
	"style",
	"nav",
	"footer",
	"header",
	"aside",
	"form",
	"noscript",
}

// minContentLength rejects matches that are navigation shells rather than
// article bodies.
const minContentLength = 200

// Extractor downloads article pages and pulls out their readable text.
type Extractor struct {
	client *http.Client
}

// NewExtractor wires an HTTP client; a nil client gets a 20 second timeout default.
func NewExtractor(client *http.Client) *Extractor {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Extractor{client: client}
}

// FetchArticle downloads an article page and returns its readable text.
func (e *Extractor) FetchArticle(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("article returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse article html: %w", err)
	}

	return ExtractText(doc), nil
}

// ExtractText pulls readable article text out of a parsed HTML document.
// It strips page chrome, then tries a list of content containers before
// falling back to the whole body.
func ExtractText(doc *goquery.Document) string {
	for _, sel := range chromeSelectors {
		doc.Find(sel).Remove()
	}

	for _, sel := range contentSelectors {
		var best string
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			text := collapseWhitespace(s.Text())
			if len(text) > len(best) {
				best = text
			}
		})
		if len(best) >= minContentLength {
			return best
		}
	}

	return collapseWhitespace(doc.Find("body").Text())
}

func collapseWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
