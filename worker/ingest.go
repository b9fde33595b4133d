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


package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xynenyx/fundwire/core"
	"github.com/xynenyx/fundwire/feed"
	"github.com/xynenyx/fundwire/storage"
)

// Ingestor pulls articles from active feeds and stores them as pending
// documents. A feed failure marks only that feed; the pass continues.
type Ingestor struct {
	feeds    storage.FeedRepository
	docs     storage.DocumentRepository
	fetcher  *feed.Fetcher
	articles *feed.Extractor
	logger   *slog.Logger
}

// IngestorOption configures an Ingestor.
type IngestorOption func(*Ingestor)

// WithArticleExtractor enables fetching the full article page when the feed
// item carries no body of its own.
func WithArticleExtractor(extractor *feed.Extractor) IngestorOption {
	return func(in *Ingestor) {
		in.articles = extractor
	}
}

// WithIngestorLogger sets a custom logger. Default is slog.Default().
func WithIngestorLogger(logger *slog.Logger) IngestorOption {
	return func(in *Ingestor) {
		if logger != nil {
			in.logger = logger
		}
	}
}

// NewIngestor creates an ingestion worker.
func NewIngestor(feeds storage.FeedRepository, docs storage.DocumentRepository, fetcher *feed.Fetcher, opts ...IngestorOption) (*Ingestor, error) {
	if feeds == nil {
		return nil, ErrFeedRepositoryRequired
	}
	if docs == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if fetcher == nil {
		return nil, ErrFetcherRequired
	}

	in := &Ingestor{
		feeds:   feeds,
		docs:    docs,
		fetcher: fetcher,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(in)
	}
	in.logger = in.logger.With("component", "ingestor")
	return in, nil
}

// IngestSummary reports the outcome of one ingestion pass.
type IngestSummary struct {
	FeedsChecked   int
	FeedsFailed    int
	ItemsSeen      int
	DocumentsAdded int
	Duplicates     int
	ItemsSkipped   int
}

// Run performs one ingestion pass over all active feeds.
func (in *Ingestor) Run(ctx context.Context) (*IngestSummary, error) {
	active, err := in.feeds.ListFeeds(ctx, core.FeedActive)
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}

	summary := &IngestSummary{}
	for _, f := range active {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.FeedsChecked++

		items, err := in.fetcher.Fetch(ctx, f.URL)
		if err != nil {
			in.logger.Error("feed fetch failed", "feed", f.URL, "err", err)
			summary.FeedsFailed++
			f.Status = core.FeedError
			f.ErrorMessage = err.Error()
			if _, uerr := in.feeds.UpdateFeed(ctx, f); uerr != nil {
				in.logger.Error("error recording feed failure", "feed", f.URL, "err", uerr)
			}
			continue
		}

		added := in.ingestItems(ctx, f, items, summary)

		f.Status = core.FeedActive
		f.ErrorMessage = ""
		f.ArticleCount += added
		f.LastIngestedAt = time.Now().UTC()
		if _, err := in.feeds.UpdateFeed(ctx, f); err != nil {
			in.logger.Error("error updating feed after ingestion", "feed", f.URL, "err", err)
		}
	}

	in.logger.Info("ingestion pass complete",
		"feeds", summary.FeedsChecked,
		"added", summary.DocumentsAdded,
		"duplicates", summary.Duplicates,
		"failedFeeds", summary.FeedsFailed)
	return summary, nil
}

func (in *Ingestor) ingestItems(ctx context.Context, f *core.Feed, items []feed.Item, summary *IngestSummary) int {
	added := 0
	for _, item := range items {
		summary.ItemsSeen++

		if item.Link == "" {
			summary.ItemsSkipped++
			continue
		}

		content := item.Content
		if content == "" && in.articles != nil {
			text, err := in.articles.FetchArticle(ctx, item.Link)
			if err != nil {
				in.logger.Warn("article fetch failed, falling back to summary", "url", item.Link, "err", err)
			} else {
				content = text
			}
		}
		if content == "" {
			content = item.Description
		}
		if content == "" {
			summary.ItemsSkipped++
			continue
		}

		doc := &core.Document{
			FeedId:      f.Id,
			Name:        item.Title,
			SourceKey:   fmt.Sprintf("rss://%s/%s", f.URL, item.Link),
			ContentType: "text/plain",
			RawContent:  content,
			ArticleURL:  item.Link,
			PublishedAt: item.Published,
		}
		if _, err := in.docs.AddDocument(ctx, doc); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				summary.Duplicates++
				continue
			}
			in.logger.Error("error adding document", "url", item.Link, "err", err)
			summary.ItemsSkipped++
			continue
		}
		added++
		summary.DocumentsAdded++
	}
	return added
}
