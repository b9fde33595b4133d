package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/xynenyx/fundwire/core"
	"github.com/xynenyx/fundwire/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) (*DocumentRepository, error) {
	return &DocumentRepository{
		backend: backend,
	}, nil
}

// Close releases resources. DocumentRepository has no resources to release.
func (r *DocumentRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *DocumentRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// FindSimilar delegates to the backend.
func (r *DocumentRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*storage.SimilarChunk, error) {
	return r.backend.FindSimilar(ctx, vector, minSimilarity, limit)
}

// AddDocument adds a document in the pending state.
func (r *DocumentRepository) AddDocument(ctx context.Context, doc *core.Document) (*core.Document, error) {
	if doc.Id == 0 {
		doc.Id = core.IDFromContent(doc.ArticleURL)
	}
	if doc.Status == 0 {
		doc.Status = core.StatusPending
	}
	if err := core.ValidateDocument(doc); err != nil {
		return nil, err
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(doc.Id)
		existing, err := r.readDocument(tx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: document %d", storage.ErrDuplicateKey, doc.Id)
		}

		doc.CreatedAt = time.Now().UTC()
		doc.UpdatedAt = doc.CreatedAt

		if err := tx.Set(key, storage.MarshalDocument(doc)); err != nil {
			return err
		}

		// Status index
		statusKey := makeDocumentStatusKey(doc.Status, doc.CreatedAt, doc.Id)
		if err := tx.Set(statusKey, storage.MarshalID(doc.Id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	return doc, err
}

// GetDocument retrieves a single document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id core.ID) (*core.Document, error) {
	var result *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = r.readDocument(tx, makeDocumentKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// ListDocumentsByStatus retrieves up to limit documents in the given status,
// oldest first.
func (r *DocumentRepository) ListDocumentsByStatus(ctx context.Context, status core.DocumentStatus, limit int) ([]*core.Document, error) {
	ids, err := r.scanStatusIndex(status, limit)
	if err != nil {
		return nil, err
	}

	var results []*core.Document
	err = r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			doc, err := r.readDocument(tx, makeDocumentKey(id))
			if err != nil {
				return err
			}
			if doc != nil {
				results = append(results, doc)
			}
		}
		return nil
	}, false)
	return results, err
}

// ClaimPending atomically claims up to limit pending documents.
func (r *DocumentRepository) ClaimPending(ctx context.Context, limit int) ([]*core.Document, error) {
	return r.claim(ctx, core.StatusPending, false, limit)
}

// ClaimReadyUnextracted atomically claims up to limit ready documents whose
// features have not been extracted.
func (r *DocumentRepository) ClaimReadyUnextracted(ctx context.Context, limit int) ([]*core.Document, error) {
	return r.claim(ctx, core.StatusReady, true, limit)
}

// claim scans the status index oldest-first and moves candidates to the
// processing state one write transaction at a time. A candidate whose status
// no longer matches, or whose transaction hits a conflict, was taken by a
// concurrent worker and is skipped.
func (r *DocumentRepository) claim(ctx context.Context, from core.DocumentStatus, requireUnextracted bool, limit int) ([]*core.Document, error) {
	// Over-fetch candidates so concurrent claims don't starve us.
	ids, err := r.scanStatusIndex(from, limit*2)
	if err != nil {
		return nil, err
	}

	var claimed []*core.Document
	for _, id := range ids {
		if len(claimed) >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return claimed, err
		}

		var doc *core.Document
		err := r.backend.WithTx(func(tx *badger.Txn) error {
			var err error
			doc, err = r.readDocument(tx, makeDocumentKey(id))
			if err != nil {
				return err
			}
			if doc == nil || doc.Status != from {
				doc = nil
				return nil
			}
			if requireUnextracted && doc.FeaturesExtracted {
				doc = nil
				return nil
			}

			if err := r.transitionLocked(tx, doc, core.StatusProcessing); err != nil {
				return err
			}
			return tx.Commit()
		}, true)
		if err != nil {
			if errors.Is(err, badger.ErrConflict) {
				continue
			}
			return claimed, err
		}
		if doc != nil {
			claimed = append(claimed, doc)
		}
	}

	return claimed, nil
}

// CompleteProcessing transitions a processing document to ready.
func (r *DocumentRepository) CompleteProcessing(ctx context.Context, id core.ID, chunkCount int) error {
	return r.transition(id, core.StatusProcessing, func(doc *core.Document) {
		doc.Status = core.StatusReady
		doc.ChunkCount = chunkCount
		doc.ErrorMessage = ""
	})
}

// FailProcessing transitions a processing document to error.
func (r *DocumentRepository) FailProcessing(ctx context.Context, id core.ID, message string) error {
	return r.transition(id, core.StatusProcessing, func(doc *core.Document) {
		doc.Status = core.StatusError
		doc.ErrorMessage = message
	})
}

// RestoreReady transitions a processing document back to ready.
func (r *DocumentRepository) RestoreReady(ctx context.Context, id core.ID) error {
	return r.transition(id, core.StatusProcessing, func(doc *core.Document) {
		doc.Status = core.StatusReady
	})
}

// MarkFeaturesExtracted transitions a processing document to ready with its
// features flag set.
func (r *DocumentRepository) MarkFeaturesExtracted(ctx context.Context, id core.ID) error {
	return r.transition(id, core.StatusProcessing, func(doc *core.Document) {
		doc.Status = core.StatusReady
		doc.FeaturesExtracted = true
	})
}

// ResetFeatures clears the features flag on a ready document.
func (r *DocumentRepository) ResetFeatures(ctx context.Context, id core.ID) error {
	return r.transition(id, core.StatusReady, func(doc *core.Document) {
		doc.FeaturesExtracted = false
	})
}

// ResetStuck transitions processing documents not updated since the cutoff
// back to pending.
func (r *DocumentRepository) ResetStuck(ctx context.Context, cutoff time.Time) ([]core.ID, error) {
	ids, err := r.scanStatusIndex(core.StatusProcessing, 0)
	if err != nil {
		return nil, err
	}

	var reset []core.ID
	for _, id := range ids {
		err := r.backend.WithTx(func(tx *badger.Txn) error {
			doc, err := r.readDocument(tx, makeDocumentKey(id))
			if err != nil {
				return err
			}
			if doc == nil || doc.Status != core.StatusProcessing {
				return nil
			}
			if !doc.UpdatedAt.Before(cutoff) {
				return nil
			}

			if err := r.transitionLocked(tx, doc, core.StatusPending); err != nil {
				return err
			}
			if err := tx.Commit(); err != nil {
				return err
			}
			reset = append(reset, id)
			return nil
		}, true)
		if err != nil {
			if errors.Is(err, badger.ErrConflict) {
				continue
			}
			return reset, err
		}
	}

	return reset, nil
}

// DeleteDocument removes a document, its status index entry and its chunks.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, id core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(id)
		doc, err := r.readDocument(tx, key)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}

		statusKey := makeDocumentStatusKey(doc.Status, doc.CreatedAt, doc.Id)
		if err := tx.Delete(statusKey); err != nil {
			return err
		}

		if err := r.deleteChunksLocked(tx, id); err != nil {
			return err
		}

		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// AddChunks stores the chunks of a document, replacing any existing ones.
func (r *DocumentRepository) AddChunks(ctx context.Context, documentID core.ID, chunks []*core.Chunk) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := r.deleteChunksLocked(tx, documentID); err != nil {
			return err
		}

		now := time.Now().UTC()
		for i, chunk := range chunks {
			chunk.DocumentId = documentID
			chunk.Index = i
			if chunk.CreatedAt.IsZero() {
				chunk.CreatedAt = now
			}
			key := makeChunkKey(documentID, i)
			if err := tx.Set(key, storage.MarshalChunk(chunk)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetChunks retrieves the chunks of a document ordered by index.
func (r *DocumentRepository) GetChunks(ctx context.Context, documentID core.ID) ([]*core.Chunk, error) {
	var results []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkDocPrefix(documentID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			if chunk != nil {
				results = append(results, chunk)
			}
		}
		return nil
	}, false)
	return results, err
}

// Helper methods

// transition applies a mutation to a document after checking its current
// status, maintaining the status index.
func (r *DocumentRepository) transition(id core.ID, expect core.DocumentStatus, mutate func(*core.Document)) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		doc, err := r.readDocument(tx, makeDocumentKey(id))
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}
		if doc.Status != expect {
			return fmt.Errorf("%w: document %d is %s, expected %s",
				storage.ErrInvalidTransition, id, doc.Status, expect)
		}

		oldStatus := doc.Status
		mutate(doc)
		doc.UpdatedAt = time.Now().UTC()

		if err := tx.Set(makeDocumentKey(id), storage.MarshalDocument(doc)); err != nil {
			return err
		}

		if doc.Status != oldStatus {
			oldKey := makeDocumentStatusKey(oldStatus, doc.CreatedAt, doc.Id)
			if err := tx.Delete(oldKey); err != nil {
				return err
			}
			newKey := makeDocumentStatusKey(doc.Status, doc.CreatedAt, doc.Id)
			if err := tx.Set(newKey, storage.MarshalID(doc.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// transitionLocked moves a document to a new status inside an open write
// transaction, maintaining the status index. Does not commit.
func (r *DocumentRepository) transitionLocked(tx *badger.Txn, doc *core.Document, to core.DocumentStatus) error {
	oldKey := makeDocumentStatusKey(doc.Status, doc.CreatedAt, doc.Id)
	if err := tx.Delete(oldKey); err != nil {
		return err
	}

	doc.Status = to
	doc.UpdatedAt = time.Now().UTC()

	if err := tx.Set(makeDocumentKey(doc.Id), storage.MarshalDocument(doc)); err != nil {
		return err
	}
	newKey := makeDocumentStatusKey(doc.Status, doc.CreatedAt, doc.Id)
	return tx.Set(newKey, storage.MarshalID(doc.Id))
}

// scanStatusIndex returns document IDs in the given status, oldest first.
// A limit of 0 means no limit.
func (r *DocumentRepository) scanStatusIndex(status core.DocumentStatus, limit int) ([]core.ID, error) {
	var ids []core.ID
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeDocumentStatusPrefix(status)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if limit > 0 && len(ids) >= limit {
				break
			}
			var id core.ID
			err := iter.Item().Value(func(val []byte) error {
				var err error
				id, err = storage.UnmarshalID(val)
				return err
			})
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	}, false)
	return ids, err
}

// readDocument reads a document from the transaction.
func (r *DocumentRepository) readDocument(tx *badger.Txn, key []byte) (*core.Document, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var doc *core.Document
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		doc, unmarshalErr = storage.UnmarshalDocument(val)
		return unmarshalErr
	})
	return doc, err
}

// deleteChunksLocked removes all chunks of a document inside an open write
// transaction. Does not commit.
func (r *DocumentRepository) deleteChunksLocked(tx *badger.Txn, documentID core.ID) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makeChunkDocPrefix(documentID)
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)

	var keys [][]byte
	for iter.Rewind(); iter.Valid(); iter.Next() {
		keys = append(keys, iter.Item().KeyCopy(nil))
	}
	iter.Close()

	for _, key := range keys {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
