package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// EntityExtractor extracts funding entities from article text.
// Implementations must be thread-safe for concurrent use.
type EntityExtractor interface {
	// ExtractEntities analyzes article text and extracts the companies,
	// investors and funding rounds it mentions. Amounts are returned as the
	// raw text they were matched from; the caller parses and validates them.
	// Returns an empty result if nothing is found.
	// Returns an error if extraction fails.
	ExtractEntities(ctx context.Context, text string) (*ExtractedEntities, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages Embedder and EntityExtractor instances,
// ensuring they share configuration and resources appropriately.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// EntityExtractor returns the entity extraction service.
	// The returned EntityExtractor is safe for concurrent use.
	EntityExtractor() EntityExtractor

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
