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


// Package ai provides abstractions for AI services used in Fundwire.
//
// This package defines interfaces for AI operations including text embeddings
// and funding entity extraction. It follows the dependency inversion principle,
// allowing the core domain and business logic to depend on abstractions
// rather than concrete implementations.
//
// # Design Principles
//
// The package is designed around three key interfaces:
//
//   - Embedder: Generates vector embeddings from text
//   - EntityExtractor: Extracts companies, investors and funding rounds from article text
//   - AIProvider: Aggregates AI services for convenient initialization
//
// # Implementation Packages
//
// The ai package includes three implementation sub-packages:
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/pattern: Rule-based extractor that needs no model backend
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewEmbedder, etc.) return
// INTERFACE types to enforce abstraction and prevent accidental coupling to
// concrete implementations. Test utility constructors (mock.NewMockEmbedder,
// mock.NewMockEntityExtractor) return CONCRETE types to enable test
// assertions and behavior injection.
//
// # Usage Example
//
//	// Production usage with OpenAI provider
//	config := ai.DefaultConfig()
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	embeddings, err := provider.Embedder().EmbedText(ctx, "Acme raised $8 million")
//	entities, err := provider.EntityExtractor().ExtractEntities(ctx, articleText)
//
//	// Testing usage with mocks
//	mockProvider := mock.NewMockProvider()
//	embeddings, err := mockProvider.Embedder().EmbedText(ctx, "test text")
package ai
