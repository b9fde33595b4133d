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


package search

import (
	"context"
	"log/slog"

	"github.com/xynenyx/fundwire/ai"
	"github.com/xynenyx/fundwire/core"
	"github.com/xynenyx/fundwire/storage"
)

// defaultMinSimilarity is the cosine similarity floor for a chunk to count
// as a match.
const defaultMinSimilarity = 0.60

// Searcher runs semantic queries over chunk embeddings.
type Searcher struct {
	docs          storage.DocumentRepository
	embedder      ai.Embedder
	minSimilarity float32
	logger        *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithMinSimilarity overrides the similarity floor for matches.
func WithMinSimilarity(min float32) Option {
	return func(s *Searcher) error {
		s.minSimilarity = min
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(docs storage.DocumentRepository, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if docs == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		docs:          docs,
		embedder:      embedder,
		minSimilarity: defaultMinSimilarity,
		logger:        slog.Default().With("component", "searcher"),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// FindSimilar searches for document chunks similar to the query.
// Returns up to maxHits results ranked by similarity, each with its source
// document attached.
func (s *Searcher) FindSimilar(ctx context.Context, query string, maxHits int) ([]*core.SearchResult, error) {
	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}

	// Stored chunk vectors are unit length, so the query vector must be too
	// for dot products to be cosine similarities.
	matches, err := s.docs.FindSimilar(ctx, core.NormalizeVector(embedding), s.minSimilarity, maxHits)
	if err != nil {
		s.logger.Error("error querying for similar chunks", "err", err)
		return nil, err
	}

	results := make([]*core.SearchResult, 0, len(matches))
	documents := make(map[core.ID]*core.Document)
	for _, match := range matches {
		doc, ok := documents[match.Chunk.DocumentId]
		if !ok {
			doc, err = s.docs.GetDocument(ctx, match.Chunk.DocumentId)
			if err != nil {
				s.logger.Warn("error loading document for matched chunk",
					"documentId", match.Chunk.DocumentId, "err", err)
				continue
			}
			documents[match.Chunk.DocumentId] = doc
		}
		results = append(results, &core.SearchResult{
			Chunk:    match.Chunk,
			Document: doc,
			Score:    match.Similarity,
		})
	}

	s.logger.Debug("search complete", "query", query, "hits", len(results))
	return results, nil
}
