package search

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xynenyx/fundwire/ai/mock"
	"github.com/xynenyx/fundwire/core"
	"github.com/xynenyx/fundwire/storage"
	"github.com/xynenyx/fundwire/storage/badger"
)

func setupDocs(t *testing.T) storage.DocumentRepository {
	t.Helper()
	feedRepo, docRepo, featureRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		featureRepo.Close()
		docRepo.Close()
		feedRepo.Close()
		backend.Close()
	})
	return docRepo
}

func TestNewSearcher(t *testing.T) {
	docRepo := setupDocs(t)
	embedder := mock.NewMockEmbedder()

	t.Run("valid configuration", func(t *testing.T) {
		searcher, err := NewSearcher(docRepo, embedder)
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		searcher, err := NewSearcher(docRepo, embedder, WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, searcher)
		assert.NotNil(t, searcher.logger)
	})

	t.Run("with custom logger", func(t *testing.T) {
		searcher, err := NewSearcher(docRepo, embedder, WithLogger(slog.Default()))
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("nil document repository", func(t *testing.T) {
		_, err := NewSearcher(nil, embedder)
		assert.Equal(t, ErrDocumentRepositoryRequired, err)
	})

	t.Run("nil embedder", func(t *testing.T) {
		_, err := NewSearcher(docRepo, nil)
		assert.Equal(t, ErrEmbedderRequired, err)
	})
}

func TestFindSimilarRanksAndAttachesDocuments(t *testing.T) {
	docRepo := setupDocs(t)
	ctx := context.Background()

	doc, err := docRepo.AddDocument(ctx, &core.Document{
		Name:        "Acme raises",
		ContentType: "text/plain",
		RawContent:  "Acme raised $8 million led by Foo Ventures.",
		ArticleURL:  "https://example.com/acme",
	})
	require.NoError(t, err)

	claimed, err := docRepo.ClaimPending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	require.NoError(t, docRepo.AddChunks(ctx, doc.Id, []*core.Chunk{
		{DocumentId: doc.Id, Index: 0, Content: "Acme raised $8 million", Vector: []float32{1, 0}},
		{DocumentId: doc.Id, Index: 1, Content: "unrelated closing remarks", Vector: []float32{0, 1}},
	}))
	require.NoError(t, docRepo.CompleteProcessing(ctx, doc.Id, 2))

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		// Unnormalized on purpose: the searcher normalizes before matching.
		return []float32{2, 0}, nil
	}

	searcher, err := NewSearcher(docRepo, embedder)
	require.NoError(t, err)

	results, err := searcher.FindSimilar(ctx, "acme funding round", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)

	hit := results[0]
	assert.Equal(t, "Acme raised $8 million", hit.Chunk.Content)
	assert.InDelta(t, 1.0, hit.Score, 0.0001)
	require.NotNil(t, hit.Document)
	assert.Equal(t, doc.Id, hit.Document.Id)
	assert.Equal(t, "Acme raises", hit.Document.Name)
}

func TestFindSimilarHonorsMinSimilarity(t *testing.T) {
	docRepo := setupDocs(t)
	ctx := context.Background()

	doc, err := docRepo.AddDocument(ctx, &core.Document{
		Name:        "orthogonal",
		ContentType: "text/plain",
		RawContent:  "text",
		ArticleURL:  "https://example.com/orthogonal",
	})
	require.NoError(t, err)

	claimed, err := docRepo.ClaimPending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	require.NoError(t, docRepo.AddChunks(ctx, doc.Id, []*core.Chunk{
		{DocumentId: doc.Id, Index: 0, Content: "text", Vector: []float32{0, 1}},
	}))
	require.NoError(t, docRepo.CompleteProcessing(ctx, doc.Id, 1))

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0}, nil
	}

	searcher, err := NewSearcher(docRepo, embedder)
	require.NoError(t, err)

	results, err := searcher.FindSimilar(ctx, "no match", 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	// Lowering the floor admits the orthogonal chunk.
	relaxed, err := NewSearcher(docRepo, embedder, WithMinSimilarity(-1))
	require.NoError(t, err)

	results, err = relaxed.FindSimilar(ctx, "no match", 5)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
