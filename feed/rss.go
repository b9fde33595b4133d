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


// Package feed fetches RSS and Atom feeds and extracts readable article text
// from HTML pages.
package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultUserAgent = "fundwire/1.0"

// Item is a single article reference from a feed.
type Item struct {
	Title       string
	Link        string
	Description string

	// Content is the full article body when the feed carries one
	// (content:encoded in RSS, content in Atom). Empty otherwise.
	Content string

	Published time.Time
}

// Fetcher downloads and parses RSS and Atom feeds.
type Fetcher struct {
	client *http.Client
}

// NewFetcher wires an HTTP client; a nil client gets a 20 second timeout default.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Fetcher{client: client}
}

// Fetch downloads a feed URL and returns its items.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}

	return Parse(body)
}

// rssEnvelope matches RSS 2.0 documents, including the common
// content:encoded extension.
type rssEnvelope struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []struct {
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			Description string `xml:"description"`
			Encoded     string `xml:"encoded"`
			PubDate     string `xml:"pubDate"`
		} `xml:"item"`
	} `xml:"channel"`
}

// atomEnvelope matches Atom documents.
type atomEnvelope struct {
	XMLName xml.Name `xml:"feed"`
	Entries []struct {
		Title string `xml:"title"`
		Links []struct {
			Rel  string `xml:"rel,attr"`
			Href string `xml:"href,attr"`
		} `xml:"link"`
		Summary   string `xml:"summary"`
		Content   string `xml:"content"`
		Published string `xml:"published"`
		Updated   string `xml:"updated"`
	} `xml:"entry"`
}

// Parse decodes an RSS 2.0 or Atom document into items.
func Parse(data []byte) ([]Item, error) {
	var rss rssEnvelope
	if err := xml.Unmarshal(data, &rss); err == nil && rss.XMLName.Local == "rss" {
		items := make([]Item, 0, len(rss.Channel.Items))
		for _, it := range rss.Channel.Items {
			items = append(items, Item{
				Title:       strings.TrimSpace(it.Title),
				Link:        strings.TrimSpace(it.Link),
				Description: strings.TrimSpace(it.Description),
				Content:     strings.TrimSpace(it.Encoded),
				Published:   parseFeedTime(it.PubDate),
			})
		}
		return items, nil
	}

	var atom atomEnvelope
	if err := xml.Unmarshal(data, &atom); err == nil && atom.XMLName.Local == "feed" {
		items := make([]Item, 0, len(atom.Entries))
		for _, entry := range atom.Entries {
			link := ""
			for _, l := range entry.Links {
				if l.Rel == "" || l.Rel == "alternate" {
					link = l.Href
					break
				}
			}
			published := entry.Published
			if published == "" {
				published = entry.Updated
			}
			items = append(items, Item{
				Title:       strings.TrimSpace(entry.Title),
				Link:        strings.TrimSpace(link),
				Description: strings.TrimSpace(entry.Summary),
				Content:     strings.TrimSpace(entry.Content),
				Published:   parseFeedTime(published),
			})
		}
		return items, nil
	}

	return nil, fmt.Errorf("unrecognized feed format")
}

// feedTimeLayouts covers the date formats feeds use in the wild.
var feedTimeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseFeedTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range feedTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
