package storage

import (
	"context"
	"time"

	"github.com/xynenyx/fundwire/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// The context passed to fn may contain transaction state.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// FeedRepository provides operations for managing ingestion feeds.
type FeedRepository interface {
	Repository
	// AddFeed adds a feed to storage.
	// Uses content-based IDs (IDFromContent of the feed URL), so adding the
	// same URL twice returns the existing feed unchanged.
	AddFeed(ctx context.Context, feed *core.Feed) (*core.Feed, error)

	// UpdateFeed updates an existing feed.
	// Updates the UpdatedAt timestamp automatically.
	// Returns ErrNotFound if the feed doesn't exist.
	UpdateFeed(ctx context.Context, feed *core.Feed) (*core.Feed, error)

	// GetFeed retrieves a single feed by ID.
	// Returns ErrNotFound if the feed doesn't exist.
	GetFeed(ctx context.Context, id core.ID) (*core.Feed, error)

	// ListFeeds retrieves all feeds, optionally filtered by status.
	// A zero status means no filter.
	ListFeeds(ctx context.Context, status core.FeedStatus) ([]*core.Feed, error)
}

// DocumentRepository provides operations for managing documents and their
// chunks, including the claim-and-transition protocol used by workers.
type DocumentRepository interface {
	Repository
	// AddDocument adds a document in the pending state.
	// Uses content-based IDs (IDFromContent of the article URL), so the same
	// article is never stored twice. Returns ErrDuplicateKey when the
	// document already exists.
	AddDocument(ctx context.Context, doc *core.Document) (*core.Document, error)

	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// ListDocumentsByStatus retrieves up to limit documents in the given
	// status, ordered by creation time (oldest first).
	ListDocumentsByStatus(ctx context.Context, status core.DocumentStatus, limit int) ([]*core.Document, error)

	// ClaimPending atomically transitions up to limit of the oldest pending
	// documents to processing and returns them. Documents claimed by a
	// concurrent worker between read and write are skipped, not errors.
	ClaimPending(ctx context.Context, limit int) ([]*core.Document, error)

	// ClaimReadyUnextracted atomically transitions up to limit of the oldest
	// ready documents with FeaturesExtracted=false to processing and returns
	// them. Concurrently claimed documents are skipped.
	ClaimReadyUnextracted(ctx context.Context, limit int) ([]*core.Document, error)

	// CompleteProcessing transitions a processing document to ready and
	// records its chunk count. Returns ErrInvalidTransition if the document
	// is not in the processing state.
	CompleteProcessing(ctx context.Context, id core.ID, chunkCount int) error

	// FailProcessing transitions a processing document to error with the
	// given message. Returns ErrInvalidTransition if the document is not in
	// the processing state.
	FailProcessing(ctx context.Context, id core.ID, message string) error

	// RestoreReady transitions a processing document back to ready without
	// touching FeaturesExtracted. Used when a feature pass fails and the
	// document itself is intact.
	RestoreReady(ctx context.Context, id core.ID) error

	// MarkFeaturesExtracted transitions a processing document to ready and
	// sets FeaturesExtracted. Returns ErrInvalidTransition if the document
	// is not in the processing state.
	MarkFeaturesExtracted(ctx context.Context, id core.ID) error

	// ResetFeatures clears FeaturesExtracted on a ready document so the
	// feature pass picks it up again.
	ResetFeatures(ctx context.Context, id core.ID) error

	// ResetStuck transitions processing documents older than the cutoff back
	// to pending. Returns the IDs of the documents reset.
	ResetStuck(ctx context.Context, cutoff time.Time) ([]core.ID, error)

	// DeleteDocument removes a document and its chunks.
	// Returns ErrNotFound if the document doesn't exist.
	DeleteDocument(ctx context.Context, id core.ID) error

	// AddChunks stores the chunks of a document, replacing any existing ones.
	AddChunks(ctx context.Context, documentID core.ID, chunks []*core.Chunk) error

	// GetChunks retrieves the chunks of a document ordered by index.
	GetChunks(ctx context.Context, documentID core.ID) ([]*core.Chunk, error)

	// FindSimilar finds chunks similar to the given vector.
	// Returns chunks with similarity >= minSimilarity, up to limit results.
	// Results are ordered by similarity score (highest first).
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*SimilarChunk, error)
}

// FeatureRepository provides operations for managing extracted entities and
// funding rounds.
type FeatureRepository interface {
	Repository
	// GetOrCreateCompany finds or creates a company by name.
	// Lookup is by normalized name, so "Acme, Inc." and "acme inc" resolve
	// to the same company. Thread-safe: handles concurrent creation.
	GetOrCreateCompany(ctx context.Context, name string) (*core.Company, error)

	// GetOrCreateInvestor finds or creates an investor by name.
	// Lookup is by normalized name. Thread-safe.
	GetOrCreateInvestor(ctx context.Context, name string) (*core.Investor, error)

	// GetCompany retrieves a company by ID.
	// Returns ErrNotFound if the company doesn't exist.
	GetCompany(ctx context.Context, id core.ID) (*core.Company, error)

	// GetInvestor retrieves an investor by ID.
	// Returns ErrNotFound if the investor doesn't exist.
	GetInvestor(ctx context.Context, id core.ID) (*core.Investor, error)

	// ListCompanies retrieves all companies.
	ListCompanies(ctx context.Context) ([]*core.Company, error)

	// ListInvestors retrieves all investors.
	ListInvestors(ctx context.Context) ([]*core.Investor, error)

	// DeleteCompany removes a company. Funding rounds referencing it keep
	// existing with CompanyId cleared, never cascade-deleted.
	DeleteCompany(ctx context.Context, id core.ID) error

	// DeleteInvestor removes an investor and clears references to it from
	// funding rounds.
	DeleteInvestor(ctx context.Context, id core.ID) error

	// AddFundingRound adds a funding round.
	// For rounds with ID=0, generates a new ID from sequence.
	// Sets InsertedAt timestamp if not already set.
	AddFundingRound(ctx context.Context, round *core.FundingRound) (*core.FundingRound, error)

	// UpdateFundingRound updates an existing funding round.
	// Updates the UpdatedAt timestamp automatically.
	// Returns ErrNotFound if the round doesn't exist.
	UpdateFundingRound(ctx context.Context, round *core.FundingRound) (*core.FundingRound, error)

	// GetFundingRound retrieves a funding round by ID.
	// Returns ErrNotFound if the round doesn't exist.
	GetFundingRound(ctx context.Context, id core.ID) (*core.FundingRound, error)

	// ListFundingRounds retrieves all funding rounds.
	ListFundingRounds(ctx context.Context) ([]*core.FundingRound, error)

	// ListFundingRoundsByDocument retrieves the rounds extracted from a
	// document.
	ListFundingRoundsByDocument(ctx context.Context, documentID core.ID) ([]*core.FundingRound, error)

	// ListFundingRoundsByCompany retrieves the rounds attributed to a
	// company.
	ListFundingRoundsByCompany(ctx context.Context, companyID core.ID) ([]*core.FundingRound, error)

	// DeleteFundingRound removes a funding round and its indices.
	// Returns ErrNotFound if the round doesn't exist.
	DeleteFundingRound(ctx context.Context, id core.ID) error

	// UpsertDocumentFeature stores the feature record of a document,
	// replacing any existing one.
	UpsertDocumentFeature(ctx context.Context, feature *core.DocumentFeature) (*core.DocumentFeature, error)

	// GetDocumentFeature retrieves the feature record of a document.
	// Returns ErrNotFound if no features have been extracted.
	GetDocumentFeature(ctx context.Context, documentID core.ID) (*core.DocumentFeature, error)

	// DeleteDocumentFeature removes the feature record of a document.
	DeleteDocumentFeature(ctx context.Context, documentID core.ID) error
}

// SimilarChunk is a chunk returned from a similarity search together with its
// score.
type SimilarChunk struct {
	Chunk      *core.Chunk
	Similarity float32
}
