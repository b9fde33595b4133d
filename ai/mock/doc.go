// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.EntityExtractor,
// and ai.AIProvider for use in unit tests. The mocks allow tests to run without
// external AI service dependencies and enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	mockProvider := mock.NewMockProvider()
//	embeddings, err := mockProvider.Embedder().EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	mockExtractor := mock.NewMockEntityExtractor()
//	mockExtractor.Result = &ai.ExtractedEntities{
//	    Companies: []ai.ExtractedCompany{{Name: "Acme"}},
//	}
//
//	// Check call counts
//	count := mockExtractor.CallCount()
//
// # Default Behavior
//
// The mock implementations provide sensible defaults:
//
//   - MockEmbedder: Returns deterministic vectors based on text hash
//   - MockEntityExtractor: Returns the configured Result, or an empty result
//   - MockProvider: Aggregates mock embedder and extractor
package mock
