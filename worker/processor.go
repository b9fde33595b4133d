package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/xynenyx/fundwire/ai"
	"github.com/xynenyx/fundwire/core"
	"github.com/xynenyx/fundwire/storage"
)

const (
	embedMaxAttempts = 3
	embedBaseDelay   = 500 * time.Millisecond
)

// Processor turns pending documents into chunked, embedded, ready documents.
// Documents are claimed atomically, so multiple processors can run against
// the same store.
type Processor struct {
	docs     storage.DocumentRepository
	embedder ai.Embedder
	chunker  *Chunker
	pool     *ants.Pool
	logger   *slog.Logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor) error

// WithProcessorPoolSize sets the worker pool size for concurrent document
// processing. Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithProcessorPoolSize(size int) ProcessorOption {
	return func(p *Processor) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithChunker overrides the default chunker.
func WithChunker(chunker *Chunker) ProcessorOption {
	return func(p *Processor) error {
		if chunker != nil {
			p.chunker = chunker
		}
		return nil
	}
}

// WithProcessorLogger sets a custom logger. Default is slog.Default().
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) error {
		if logger != nil {
			p.logger = logger
		}
		return nil
	}
}

// NewProcessor creates a processing worker.
func NewProcessor(docs storage.DocumentRepository, provider ai.AIProvider, opts ...ProcessorOption) (*Processor, error) {
	if docs == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Processor{
		docs:     docs,
		embedder: provider.Embedder(),
		chunker:  NewChunker(DefaultChunkSize, DefaultChunkOverlap),
		pool:     pool,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "processor")
	return p, nil
}

// ProcessSummary reports the outcome of one processing pass.
type ProcessSummary struct {
	Claimed   int
	Completed int
	Failed    int
}

// Run claims up to batchSize pending documents and processes them
// concurrently. A document failure flips that document to the error state
// and does not abort the pass.
func (p *Processor) Run(ctx context.Context, batchSize int) (*ProcessSummary, error) {
	claimed, err := p.docs.ClaimPending(ctx, batchSize)
	if err != nil {
		return nil, fmt.Errorf("claim pending: %w", err)
	}

	summary := &ProcessSummary{Claimed: len(claimed)}
	if len(claimed) == 0 {
		return summary, nil
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, doc := range claimed {
		doc := doc
		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()
			err := p.processDocument(ctx, doc)
			mu.Lock()
			if err != nil {
				summary.Failed++
			} else {
				summary.Completed++
			}
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			p.fail(ctx, doc, submitErr)
			mu.Lock()
			summary.Failed++
			mu.Unlock()
		}
	}
	wg.Wait()

	p.logger.Info("processing pass complete",
		"claimed", summary.Claimed,
		"completed", summary.Completed,
		"failed", summary.Failed)
	return summary, nil
}

func (p *Processor) processDocument(ctx context.Context, doc *core.Document) error {
	chunks, err := p.chunker.Split(doc.RawContent)
	if err != nil {
		p.fail(ctx, doc, fmt.Errorf("chunk: %w", err))
		return err
	}
	if len(chunks) == 0 {
		err := fmt.Errorf("document produced no chunks")
		p.fail(ctx, doc, err)
		return err
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	var embeddings [][]float32
	err = RetryWithBackoff(ctx, func() error {
		var embedErr error
		embeddings, embedErr = p.embedder.EmbedTexts(ctx, texts)
		return embedErr
	}, embedMaxAttempts, embedBaseDelay)
	if err != nil {
		p.fail(ctx, doc, fmt.Errorf("embed: %w", err))
		return err
	}
	if len(embeddings) != len(chunks) {
		err := fmt.Errorf("embedding result mismatch. expected %d, received %d", len(chunks), len(embeddings))
		p.fail(ctx, doc, err)
		return err
	}

	for i := range embeddings {
		chunks[i].Vector = core.NormalizeVector(embeddings[i])
	}

	if err := p.docs.AddChunks(ctx, doc.Id, chunks); err != nil {
		p.fail(ctx, doc, fmt.Errorf("store chunks: %w", err))
		return err
	}

	if err := p.docs.CompleteProcessing(ctx, doc.Id, len(chunks)); err != nil {
		p.logger.Error("error completing document", "document", doc.Id, "err", err)
		return err
	}
	return nil
}

// fail transitions a claimed document to the error state, recording why.
func (p *Processor) fail(ctx context.Context, doc *core.Document, cause error) {
	p.logger.Error("document processing failed", "document", doc.Id, "err", cause)
	if err := p.docs.FailProcessing(ctx, doc.Id, cause.Error()); err != nil {
		p.logger.Error("error recording document failure", "document", doc.Id, "err", err)
	}
}

// Release releases the worker pool. The processor should not be used after
// calling Release.
func (p *Processor) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
