package worker

import "errors"

var (
	// ErrFeedRepositoryRequired is returned when a feed repository is not provided.
	ErrFeedRepositoryRequired = errors.New("feed repository required")

	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrFeatureRepositoryRequired is returned when a feature repository is not provided.
	ErrFeatureRepositoryRequired = errors.New("feature repository required")

	// ErrFetcherRequired is returned when a feed fetcher is not provided.
	ErrFetcherRequired = errors.New("feed fetcher required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrExtractorRequired is returned when an entity extractor is not provided.
	ErrExtractorRequired = errors.New("entity extractor required")

	// ErrInvalidMaxAttempts is returned when retry is configured with a
	// non-positive attempt count.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")
)
