package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/xynenyx/fundwire/core"
	"github.com/xynenyx/fundwire/storage"
)

// FeedRepository implements storage.FeedRepository for BadgerDB.
type FeedRepository struct {
	backend *Backend
}

var _ storage.FeedRepository = (*FeedRepository)(nil)

// NewFeedRepository creates a new FeedRepository.
func NewFeedRepository(backend *Backend) (*FeedRepository, error) {
	return &FeedRepository{
		backend: backend,
	}, nil
}

// Close releases resources. FeedRepository has no resources to release.
func (r *FeedRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *FeedRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddFeed adds a feed to storage. Adding an already-known URL returns the
// stored feed unchanged.
func (r *FeedRepository) AddFeed(ctx context.Context, feed *core.Feed) (*core.Feed, error) {
	if err := core.ValidateFeed(feed); err != nil {
		return nil, err
	}
	if feed.Id == 0 {
		feed.Id = core.IDFromContent(feed.URL)
	}
	if feed.Status == 0 {
		feed.Status = core.FeedActive
	}

	var result *core.Feed
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeFeedKey(feed.Id)
		existing, err := readFeed(tx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			result = existing
			return nil
		}

		feed.CreatedAt = time.Now().UTC()
		feed.UpdatedAt = feed.CreatedAt

		if err := tx.Set(key, storage.MarshalFeed(feed)); err != nil {
			return err
		}
		result = feed
		return tx.Commit()
	}, true)

	return result, err
}

// UpdateFeed updates an existing feed.
func (r *FeedRepository) UpdateFeed(ctx context.Context, feed *core.Feed) (*core.Feed, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeFeedKey(feed.Id)
		old, err := readFeed(tx, key)
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}

		feed.UpdatedAt = time.Now().UTC()

		if err := tx.Set(key, storage.MarshalFeed(feed)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	return feed, err
}

// GetFeed retrieves a single feed by ID.
func (r *FeedRepository) GetFeed(ctx context.Context, id core.ID) (*core.Feed, error) {
	var result *core.Feed
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readFeed(tx, makeFeedKey(id))
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

// ListFeeds retrieves all feeds, optionally filtered by status.
func (r *FeedRepository) ListFeeds(ctx context.Context, status core.FeedStatus) ([]*core.Feed, error) {
	var results []*core.Feed
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(feedPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var feed *core.Feed
			err := iter.Item().Value(func(val []byte) error {
				var err error
				feed, err = storage.UnmarshalFeed(val)
				return err
			})
			if err != nil {
				return err
			}
			if feed == nil {
				continue
			}
			if status != 0 && feed.Status != status {
				continue
			}
			results = append(results, feed)
		}
		return nil
	}, false)
	return results, err
}

// readFeed reads a feed from the transaction.
func readFeed(tx *badger.Txn, key []byte) (*core.Feed, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var feed *core.Feed
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		feed, unmarshalErr = storage.UnmarshalFeed(val)
		return unmarshalErr
	})
	return feed, err
}
