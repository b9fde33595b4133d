package fundwire

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xynenyx/fundwire/ai"
	"github.com/xynenyx/fundwire/ai/mock"
	"github.com/xynenyx/fundwire/core"
	"github.com/xynenyx/fundwire/search"
)

func TestNewDatabase(t *testing.T) {
	t.Run("create new database", func(t *testing.T) {
		tmpDir := filepath.Join(t.TempDir(), "test_db")
		db, err := NewDatabase(tmpDir, WithAIProvider(mock.NewMockProvider()))
		require.NoError(t, err)
		require.NotNil(t, db)
		defer db.Close()

		assert.NotNil(t, db.FeedRepository())
		assert.NotNil(t, db.DocumentRepository())
		assert.NotNil(t, db.FeatureRepository())
		assert.NotNil(t, db.backend)
		assert.NotNil(t, db.logger)
	})

	t.Run("error with invalid path", func(t *testing.T) {
		// Try to create a database at a file path instead of directory
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		err := os.WriteFile(tmpFile, []byte("test"), 0644)
		require.NoError(t, err)

		db, err := NewDatabase(tmpFile, WithAIProvider(mock.NewMockProvider()))
		assert.Error(t, err)
		assert.Nil(t, db)
	})
}

func TestDatabase_Close(t *testing.T) {
	db, err := NewDatabase(t.TempDir(), WithAIProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	require.NotNil(t, db)

	err = db.Close()
	assert.NoError(t, err)
}

func TestDatabase_FactoryMethods(t *testing.T) {
	db, err := NewDatabase(t.TempDir(), WithAIProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	require.NotNil(t, db)
	defer db.Close()

	t.Run("can create ingestor", func(t *testing.T) {
		ingestor, err := db.NewIngestor()
		require.NoError(t, err)
		require.NotNil(t, ingestor)
	})

	t.Run("can create processor", func(t *testing.T) {
		processor, err := db.NewProcessor()
		require.NoError(t, err)
		require.NotNil(t, processor)
		processor.Release()
	})

	t.Run("can create feature worker", func(t *testing.T) {
		featureWorker, err := db.NewFeatureWorker()
		require.NoError(t, err)
		require.NotNil(t, featureWorker)
	})

	t.Run("can create reconciler", func(t *testing.T) {
		reconciler, err := db.NewReconciler()
		require.NoError(t, err)
		require.NotNil(t, reconciler)
	})

	t.Run("can create searcher", func(t *testing.T) {
		searcher, err := db.NewSearcher()
		require.NoError(t, err)
		require.NotNil(t, searcher)
	})
}

const pipelineFeedXML = `<?xml version="1.0"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
  <channel>
    <item>
      <title>Acme raises $8M</title>
      <link>https://example.com/acme-funding</link>
      <content:encoded>TechCrunch: Acme raised $8 million led by Foo Ventures</content:encoded>
      <pubDate>Wed, 05 Mar 2025 10:00:00 +0000</pubDate>
    </item>
  </channel>
</rss>`

// TestPipelineEndToEnd walks one article from feed ingestion through
// processing, feature extraction and reconciliation.
func TestPipelineEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(pipelineFeedXML))
	}))
	defer srv.Close()

	extractor := mock.NewMockEntityExtractor()
	extractor.Result = &ai.ExtractedEntities{
		Companies: []ai.ExtractedCompany{{Name: "Acme"}},
		Investors: []ai.ExtractedInvestor{{Name: "Foo Ventures", Lead: true}},
		Rounds: []ai.ExtractedRound{
			{Company: "Acme", Amount: "$8 million", RoundType: "seed", Date: "2025-03-05"},
		},
	}
	provider := mock.NewMockProviderWithServices(mock.NewMockEmbedder(), extractor)

	db, err := NewDatabase(t.TempDir(), WithAIProvider(provider))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()

	_, err = db.FeedRepository().AddFeed(ctx, &core.Feed{
		Name:   "techcrunch",
		URL:    srv.URL,
		Status: core.FeedActive,
	})
	require.NoError(t, err)

	ingestor, err := db.NewIngestor()
	require.NoError(t, err)
	ingestSummary, err := ingestor.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, ingestSummary.DocumentsAdded)

	processor, err := db.NewProcessor()
	require.NoError(t, err)
	defer processor.Release()
	processSummary, err := processor.Run(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, processSummary.Completed)

	featureWorker, err := db.NewFeatureWorker()
	require.NoError(t, err)
	featureSummary, err := featureWorker.Run(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, featureSummary.Extracted)

	docs, err := db.DocumentRepository().ListDocumentsByStatus(ctx, core.StatusReady, 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.True(t, docs[0].FeaturesExtracted)
	assert.Greater(t, docs[0].ChunkCount, 0)

	companies, err := db.FeatureRepository().ListCompanies(ctx)
	require.NoError(t, err)
	require.Len(t, companies, 1)
	assert.Equal(t, "Acme", companies[0].Name)

	investors, err := db.FeatureRepository().ListInvestors(ctx)
	require.NoError(t, err)
	require.Len(t, investors, 1)
	assert.Equal(t, "Foo Ventures", investors[0].Name)

	rounds, err := db.FeatureRepository().ListFundingRounds(ctx)
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	assert.Equal(t, int64(8_000_000), rounds[0].AmountUSD)
	assert.Equal(t, companies[0].Id, rounds[0].CompanyId)
	assert.Equal(t, investors[0].Id, rounds[0].LeadInvestorId)

	// The store is clean, so the reconciler finds nothing to change.
	reconciler, err := db.NewReconciler()
	require.NoError(t, err)
	plan, _, err := reconciler.Run(ctx, false)
	require.NoError(t, err)
	assert.True(t, plan.Empty())

	// The persisted embeddings are queryable.
	searcher, err := db.NewSearcher(search.WithMinSimilarity(-1))
	require.NoError(t, err)
	hits, err := searcher.FindSimilar(ctx, "acme funding", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.NotNil(t, hits[0].Document)
}
