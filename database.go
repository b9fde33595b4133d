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


package fundwire

import (
	"log/slog"

	"github.com/xynenyx/fundwire/ai"
	"github.com/xynenyx/fundwire/ai/openai"
	"github.com/xynenyx/fundwire/feed"
	"github.com/xynenyx/fundwire/reconcile"
	"github.com/xynenyx/fundwire/search"
	"github.com/xynenyx/fundwire/storage"
	"github.com/xynenyx/fundwire/storage/badger"
	"github.com/xynenyx/fundwire/worker"
)

// Database bundles the storage backend, repositories and AI provider behind
// one handle. Workers and the reconciler are created from it.
type Database struct {
	backend     *badger.Backend
	feedRepo    storage.FeedRepository
	docRepo     storage.DocumentRepository
	featureRepo storage.FeatureRepository
	provider    ai.AIProvider
	logger      *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig *ai.Config
	provider ai.AIProvider
}

// WithAIConfig overrides the AI provider configuration.
func WithAIConfig(cfg *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		if cfg != nil {
			o.aiConfig = cfg
		}
	}
}

// WithAIProvider injects a pre-built provider instead of the default
// OpenAI-compatible one. The Database takes ownership and closes it.
func WithAIProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// NewDatabase opens the store at filePath and wires up repositories and the
// AI provider.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(filePath, false)
	if err != nil {
		return nil, err
	}

	feedRepo, err := badger.NewFeedRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	docRepo, err := badger.NewDocumentRepository(backend)
	if err != nil {
		feedRepo.Close()
		backend.Close()
		return nil, err
	}

	featureRepo, err := badger.NewFeatureRepository(backend)
	if err != nil {
		docRepo.Close()
		feedRepo.Close()
		backend.Close()
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			featureRepo.Close()
			docRepo.Close()
			feedRepo.Close()
			backend.Close()
			return nil, err
		}
	}

	return &Database{
		backend:     backend,
		feedRepo:    feedRepo,
		docRepo:     docRepo,
		featureRepo: featureRepo,
		provider:    provider,
		logger:      slog.Default(),
	}, nil
}

func (db *Database) Close() error {
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}

	if err := db.featureRepo.Close(); err != nil {
		db.logger.Error("error closing feature repository", "err", err)
		return err
	}
	if err := db.docRepo.Close(); err != nil {
		db.logger.Error("error closing document repository", "err", err)
		return err
	}
	if err := db.feedRepo.Close(); err != nil {
		db.logger.Error("error closing feed repository", "err", err)
		return err
	}

	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (db *Database) FeedRepository() storage.FeedRepository {
	return db.feedRepo
}

func (db *Database) DocumentRepository() storage.DocumentRepository {
	return db.docRepo
}

func (db *Database) FeatureRepository() storage.FeatureRepository {
	return db.featureRepo
}

// NewIngestor creates the feed ingestion worker.
func (db *Database) NewIngestor(opts ...worker.IngestorOption) (*worker.Ingestor, error) {
	opts = append([]worker.IngestorOption{worker.WithArticleExtractor(feed.NewExtractor(nil))}, opts...)
	return worker.NewIngestor(db.feedRepo, db.docRepo, feed.NewFetcher(nil), opts...)
}

// NewProcessor creates the document processing worker.
func (db *Database) NewProcessor(opts ...worker.ProcessorOption) (*worker.Processor, error) {
	return worker.NewProcessor(db.docRepo, db.provider, opts...)
}

// NewFeatureWorker creates the feature extraction worker.
func (db *Database) NewFeatureWorker(opts ...worker.FeatureWorkerOption) (*worker.FeatureWorker, error) {
	return worker.NewFeatureWorker(db.docRepo, db.featureRepo, db.provider.EntityExtractor(), opts...)
}

// NewReconciler creates the data-quality reconciler.
func (db *Database) NewReconciler(opts ...reconcile.Option) (*reconcile.Reconciler, error) {
	return reconcile.New(db.docRepo, db.featureRepo, opts...)
}

// NewSearcher creates a semantic searcher over processed documents.
func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	return search.NewSearcher(db.docRepo, db.provider.Embedder(), opts...)
}
