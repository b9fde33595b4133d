package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/xynenyx/fundwire/core"
	"github.com/xynenyx/fundwire/storage"
)

func newTestDoc(url string) *core.Document {
	return &core.Document{
		FeedId:     42,
		Name:       "Test article",
		ArticleURL: url,
		RawContent: "Acme raised $8 million led by Foo Ventures.",
	}
}

func TestDocumentBasics(t *testing.T) {
	feedRepo, docRepo, featureRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() {
		featureRepo.Close()
		docRepo.Close()
		feedRepo.Close()
		backend.Close()
	}()

	ctx := context.Background()

	added, err := docRepo.AddDocument(ctx, newTestDoc("https://example.com/a"))
	if err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}
	if added.Id == 0 {
		t.Fatal("Expected non-zero ID")
	}
	if added.Status != core.StatusPending {
		t.Fatalf("Expected pending status, got %s", added.Status)
	}

	retrieved, err := docRepo.GetDocument(ctx, added.Id)
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if retrieved.ArticleURL != "https://example.com/a" {
		t.Fatalf("Unexpected URL: %s", retrieved.ArticleURL)
	}

	// Same URL again is a duplicate, not a second document
	_, err = docRepo.AddDocument(ctx, newTestDoc("https://example.com/a"))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	_, err = docRepo.GetDocument(ctx, core.ID(99999))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestClaimPending(t *testing.T) {
	_, docRepo, _, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { docRepo.Close(); backend.Close() }()

	ctx := context.Background()

	// Oldest first: insert with a gap so creation times differ
	first, err := docRepo.AddDocument(ctx, newTestDoc("https://example.com/1"))
	if err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	second, err := docRepo.AddDocument(ctx, newTestDoc("https://example.com/2"))
	if err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, err := docRepo.AddDocument(ctx, newTestDoc("https://example.com/3")); err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}

	claimed, err := docRepo.ClaimPending(ctx, 2)
	if err != nil {
		t.Fatalf("Failed to claim: %v", err)
	}
	if len(claimed) != 2 {
		t.Fatalf("Expected 2 claimed, got %d", len(claimed))
	}
	if claimed[0].Id != first.Id || claimed[1].Id != second.Id {
		t.Fatal("Expected oldest documents claimed first")
	}
	for _, doc := range claimed {
		if doc.Status != core.StatusProcessing {
			t.Fatalf("Expected processing status, got %s", doc.Status)
		}
	}

	// Claimed documents are not claimable again
	remaining, err := docRepo.ClaimPending(ctx, 10)
	if err != nil {
		t.Fatalf("Failed to claim: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("Expected 1 remaining pending document, got %d", len(remaining))
	}

	empty, err := docRepo.ClaimPending(ctx, 10)
	if err != nil {
		t.Fatalf("Failed to claim: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("Expected no claimable documents, got %d", len(empty))
	}
}

func TestConcurrentClaimsAreDisjoint(t *testing.T) {
	_, docRepo, _, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { docRepo.Close(); backend.Close() }()

	ctx := context.Background()

	const total = 20
	for i := 0; i < total; i++ {
		url := fmt.Sprintf("https://example.com/c%d", i)
		if _, err := docRepo.AddDocument(ctx, newTestDoc(url)); err != nil {
			t.Fatalf("Failed to add document: %v", err)
		}
	}

	// Racing workers claim over the same pending set. Conflicting
	// transactions skip the document, so no two workers may receive
	// the same ID.
	const workers = 4
	results := make(chan []*core.Document, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := docRepo.ClaimPending(ctx, 10)
			if err != nil {
				t.Errorf("Failed to claim: %v", err)
			}
			results <- claimed
		}()
	}
	wg.Wait()
	close(results)

	claimedBy := make(map[core.ID]int)
	for batch := range results {
		for _, doc := range batch {
			claimedBy[doc.Id]++
			if doc.Status != core.StatusProcessing {
				t.Fatalf("Expected processing status, got %s", doc.Status)
			}
		}
	}
	for id, n := range claimedBy {
		if n > 1 {
			t.Fatalf("Document %d claimed by %d workers", id, n)
		}
	}

	// Stragglers go to whoever asks next; nothing is claimed twice.
	rest, err := docRepo.ClaimPending(ctx, total)
	if err != nil {
		t.Fatalf("Failed to claim: %v", err)
	}
	for _, doc := range rest {
		if _, ok := claimedBy[doc.Id]; ok {
			t.Fatalf("Document %d claimed twice", doc.Id)
		}
		claimedBy[doc.Id] = 1
	}
	if len(claimedBy) != total {
		t.Fatalf("Expected all %d documents claimed exactly once, got %d", total, len(claimedBy))
	}
}

func TestDocumentTransitions(t *testing.T) {
	_, docRepo, _, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { docRepo.Close(); backend.Close() }()

	ctx := context.Background()

	doc, err := docRepo.AddDocument(ctx, newTestDoc("https://example.com/t"))
	if err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}

	// Cannot complete a pending document
	err = docRepo.CompleteProcessing(ctx, doc.Id, 3)
	if !errors.Is(err, storage.ErrInvalidTransition) {
		t.Fatalf("Expected ErrInvalidTransition, got %v", err)
	}

	claimed, err := docRepo.ClaimPending(ctx, 1)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("Failed to claim: %v (%d claimed)", err, len(claimed))
	}

	if err := docRepo.CompleteProcessing(ctx, doc.Id, 3); err != nil {
		t.Fatalf("Failed to complete: %v", err)
	}

	ready, err := docRepo.GetDocument(ctx, doc.Id)
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if ready.Status != core.StatusReady || ready.ChunkCount != 3 {
		t.Fatalf("Expected ready with 3 chunks, got %s with %d", ready.Status, ready.ChunkCount)
	}
}

func TestFailProcessingIsTerminal(t *testing.T) {
	_, docRepo, _, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { docRepo.Close(); backend.Close() }()

	ctx := context.Background()

	doc, err := docRepo.AddDocument(ctx, newTestDoc("https://example.com/f"))
	if err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}
	if _, err := docRepo.ClaimPending(ctx, 1); err != nil {
		t.Fatalf("Failed to claim: %v", err)
	}
	if err := docRepo.FailProcessing(ctx, doc.Id, "boom"); err != nil {
		t.Fatalf("Failed to fail: %v", err)
	}

	failed, err := docRepo.GetDocument(ctx, doc.Id)
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if failed.Status != core.StatusError || failed.ErrorMessage != "boom" {
		t.Fatalf("Expected error status with message, got %s %q", failed.Status, failed.ErrorMessage)
	}

	// Error documents never re-enter the pipeline by themselves
	claimed, err := docRepo.ClaimPending(ctx, 10)
	if err != nil {
		t.Fatalf("Failed to claim: %v", err)
	}
	if len(claimed) != 0 {
		t.Fatalf("Expected no claimable documents, got %d", len(claimed))
	}
}

func TestFeatureExtractionCycle(t *testing.T) {
	_, docRepo, _, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { docRepo.Close(); backend.Close() }()

	ctx := context.Background()

	doc, err := docRepo.AddDocument(ctx, newTestDoc("https://example.com/x"))
	if err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}
	if _, err := docRepo.ClaimPending(ctx, 1); err != nil {
		t.Fatalf("Failed to claim: %v", err)
	}
	if err := docRepo.CompleteProcessing(ctx, doc.Id, 1); err != nil {
		t.Fatalf("Failed to complete: %v", err)
	}

	// Feature pass claims the ready document
	claimed, err := docRepo.ClaimReadyUnextracted(ctx, 10)
	if err != nil {
		t.Fatalf("Failed to claim for features: %v", err)
	}
	if len(claimed) != 1 {
		t.Fatalf("Expected 1 claimed, got %d", len(claimed))
	}

	if err := docRepo.MarkFeaturesExtracted(ctx, doc.Id); err != nil {
		t.Fatalf("Failed to mark features: %v", err)
	}

	done, err := docRepo.GetDocument(ctx, doc.Id)
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if done.Status != core.StatusReady || !done.FeaturesExtracted {
		t.Fatalf("Expected ready with features, got %s (features=%v)", done.Status, done.FeaturesExtracted)
	}

	// Extracted documents are not claimed again
	again, err := docRepo.ClaimReadyUnextracted(ctx, 10)
	if err != nil {
		t.Fatalf("Failed to claim: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("Expected no claimable documents, got %d", len(again))
	}

	// Resetting the flag makes it claimable once more
	if err := docRepo.ResetFeatures(ctx, doc.Id); err != nil {
		t.Fatalf("Failed to reset features: %v", err)
	}
	rearmed, err := docRepo.ClaimReadyUnextracted(ctx, 10)
	if err != nil {
		t.Fatalf("Failed to claim: %v", err)
	}
	if len(rearmed) != 1 {
		t.Fatalf("Expected 1 claimable document after reset, got %d", len(rearmed))
	}
}

func TestResetStuck(t *testing.T) {
	_, docRepo, _, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { docRepo.Close(); backend.Close() }()

	ctx := context.Background()

	doc, err := docRepo.AddDocument(ctx, newTestDoc("https://example.com/s"))
	if err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}
	if _, err := docRepo.ClaimPending(ctx, 1); err != nil {
		t.Fatalf("Failed to claim: %v", err)
	}

	// Cutoff in the past leaves the fresh claim alone
	reset, err := docRepo.ResetStuck(ctx, time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Failed to reset: %v", err)
	}
	if len(reset) != 0 {
		t.Fatalf("Expected no resets, got %d", len(reset))
	}

	// Cutoff in the future catches it
	reset, err = docRepo.ResetStuck(ctx, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("Failed to reset: %v", err)
	}
	if len(reset) != 1 || reset[0] != doc.Id {
		t.Fatalf("Expected document %d reset, got %v", doc.Id, reset)
	}

	pending, err := docRepo.GetDocument(ctx, doc.Id)
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if pending.Status != core.StatusPending {
		t.Fatalf("Expected pending status, got %s", pending.Status)
	}
}

func TestChunks(t *testing.T) {
	_, docRepo, _, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { docRepo.Close(); backend.Close() }()

	ctx := context.Background()

	doc, err := docRepo.AddDocument(ctx, newTestDoc("https://example.com/c"))
	if err != nil {
		t.Fatalf("Failed to add document: %v", err)
	}

	chunks := []*core.Chunk{
		{Content: "first", Vector: []float32{1, 0}, TokenCount: 1},
		{Content: "second", Vector: []float32{0, 1}, TokenCount: 1},
	}
	if err := docRepo.AddChunks(ctx, doc.Id, chunks); err != nil {
		t.Fatalf("Failed to add chunks: %v", err)
	}

	got, err := docRepo.GetChunks(ctx, doc.Id)
	if err != nil {
		t.Fatalf("Failed to get chunks: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(got))
	}
	if got[0].Content != "first" || got[0].Index != 0 {
		t.Fatalf("Unexpected first chunk: %+v", got[0])
	}

	// Re-adding replaces
	if err := docRepo.AddChunks(ctx, doc.Id, chunks[:1]); err != nil {
		t.Fatalf("Failed to replace chunks: %v", err)
	}
	got, err = docRepo.GetChunks(ctx, doc.Id)
	if err != nil {
		t.Fatalf("Failed to get chunks: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expected 1 chunk after replace, got %d", len(got))
	}

	// Similarity search over stored chunks
	results, err := docRepo.FindSimilar(ctx, []float32{1, 0}, 0.5, 10)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(results) != 1 || results[0].Chunk.Content != "first" {
		t.Fatalf("Unexpected search results: %v", results)
	}
}
