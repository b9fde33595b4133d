package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/xynenyx/fundwire/core"
	"github.com/xynenyx/fundwire/storage"
)

// FeatureRepository implements storage.FeatureRepository for BadgerDB.
type FeatureRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.FeatureRepository = (*FeatureRepository)(nil)

// NewFeatureRepository creates a new FeatureRepository.
func NewFeatureRepository(backend *Backend) (*FeatureRepository, error) {
	idSeq, err := backend.GetSequence(fundingRoundIDSeq)
	if err != nil {
		return nil, err
	}

	return &FeatureRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the funding round ID sequence.
func (r *FeatureRepository) Close() error {
	return r.idSeq.Release()
}

// WithTransaction delegates to the backend.
func (r *FeatureRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// GetOrCreateCompany finds or creates a company by name.
func (r *FeatureRepository) GetOrCreateCompany(ctx context.Context, name string) (*core.Company, error) {
	normalized := core.NormalizeName(name)

	company, err := r.findCompanyByNormalizedName(normalized)
	if err == nil {
		return company, nil
	}
	if err != storage.ErrNotFound {
		return nil, err
	}

	newCompany := &core.Company{
		Id:             core.IDFromContent("company:" + normalized),
		Name:           name,
		NormalizedName: normalized,
	}

	// Try to add it (may fail due to race condition)
	if err := r.addCompany(newCompany); err != nil {
		// If add failed, try to find it again (someone else may have created it)
		company, findErr := r.findCompanyByNormalizedName(normalized)
		if findErr == nil {
			return company, nil
		}
		return nil, err
	}

	return newCompany, nil
}

// GetOrCreateInvestor finds or creates an investor by name.
func (r *FeatureRepository) GetOrCreateInvestor(ctx context.Context, name string) (*core.Investor, error) {
	normalized := core.NormalizeName(name)

	investor, err := r.findInvestorByNormalizedName(normalized)
	if err == nil {
		return investor, nil
	}
	if err != storage.ErrNotFound {
		return nil, err
	}

	newInvestor := &core.Investor{
		Id:             core.IDFromContent("investor:" + normalized),
		Name:           name,
		NormalizedName: normalized,
	}

	if err := r.addInvestor(newInvestor); err != nil {
		investor, findErr := r.findInvestorByNormalizedName(normalized)
		if findErr == nil {
			return investor, nil
		}
		return nil, err
	}

	return newInvestor, nil
}

// GetCompany retrieves a company by ID.
func (r *FeatureRepository) GetCompany(ctx context.Context, id core.ID) (*core.Company, error) {
	var result *core.Company
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeCompanyKey(id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			result, unmarshalErr = storage.UnmarshalCompany(val)
			return unmarshalErr
		})
	}, false)
	return result, err
}

// GetInvestor retrieves an investor by ID.
func (r *FeatureRepository) GetInvestor(ctx context.Context, id core.ID) (*core.Investor, error) {
	var result *core.Investor
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeInvestorKey(id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			result, unmarshalErr = storage.UnmarshalInvestor(val)
			return unmarshalErr
		})
	}, false)
	return result, err
}

// ListCompanies retrieves all companies.
func (r *FeatureRepository) ListCompanies(ctx context.Context) ([]*core.Company, error) {
	var results []*core.Company
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(companyPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var company *core.Company
			err := iter.Item().Value(func(val []byte) error {
				var err error
				company, err = storage.UnmarshalCompany(val)
				return err
			})
			if err != nil {
				return err
			}
			if company != nil {
				results = append(results, company)
			}
		}
		return nil
	}, false)
	return results, err
}

// ListInvestors retrieves all investors.
func (r *FeatureRepository) ListInvestors(ctx context.Context) ([]*core.Investor, error) {
	var results []*core.Investor
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(investorPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var investor *core.Investor
			err := iter.Item().Value(func(val []byte) error {
				var err error
				investor, err = storage.UnmarshalInvestor(val)
				return err
			})
			if err != nil {
				return err
			}
			if investor != nil {
				results = append(results, investor)
			}
		}
		return nil
	}, false)
	return results, err
}

// DeleteCompany removes a company. Funding rounds that reference it survive
// with CompanyId cleared.
func (r *FeatureRepository) DeleteCompany(ctx context.Context, id core.ID) error {
	// Orphan referencing rounds first so a crash between the two phases
	// leaves no dangling references.
	rounds, err := r.ListFundingRoundsByCompany(ctx, id)
	if err != nil {
		return err
	}
	for _, round := range rounds {
		round.CompanyId = 0
		if _, err := r.UpdateFundingRound(ctx, round); err != nil {
			return err
		}
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeCompanyKey(id)
		item, err := tx.Get(key)
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}

		var company *core.Company
		if err := item.Value(func(val []byte) error {
			var unmarshalErr error
			company, unmarshalErr = storage.UnmarshalCompany(val)
			return unmarshalErr
		}); err != nil {
			return err
		}

		if err := tx.Delete(makeCompanyNameKey(company.NormalizedName)); err != nil {
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// DeleteInvestor removes an investor and clears references to it from funding
// rounds.
func (r *FeatureRepository) DeleteInvestor(ctx context.Context, id core.ID) error {
	rounds, err := r.ListFundingRounds(ctx)
	if err != nil {
		return err
	}
	for _, round := range rounds {
		changed := false
		if round.LeadInvestorId == id {
			round.LeadInvestorId = 0
			changed = true
		}
		kept := round.InvestorIds[:0]
		for _, invID := range round.InvestorIds {
			if invID == id {
				changed = true
				continue
			}
			kept = append(kept, invID)
		}
		round.InvestorIds = kept
		if changed {
			if _, err := r.UpdateFundingRound(ctx, round); err != nil {
				return err
			}
		}
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeInvestorKey(id)
		item, err := tx.Get(key)
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}

		var investor *core.Investor
		if err := item.Value(func(val []byte) error {
			var unmarshalErr error
			investor, unmarshalErr = storage.UnmarshalInvestor(val)
			return unmarshalErr
		}); err != nil {
			return err
		}

		if err := tx.Delete(makeInvestorNameKey(investor.NormalizedName)); err != nil {
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// AddFundingRound adds a funding round.
func (r *FeatureRepository) AddFundingRound(ctx context.Context, round *core.FundingRound) (*core.FundingRound, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if round.Id == 0 {
			nextID, err := r.idSeq.Next()
			if err != nil {
				return err
			}
			// BadgerDB sequences can return 0 on first call, so we skip it
			if nextID == 0 {
				nextID, err = r.idSeq.Next()
				if err != nil {
					return err
				}
			}
			round.Id = core.ID(nextID)
		}

		round.InsertedAt = time.Now().UTC()
		round.UpdatedAt = round.InsertedAt

		if err := tx.Set(makeFundingRoundKey(round.Id), storage.MarshalFundingRound(round)); err != nil {
			return err
		}

		// Document index
		docKey := makeFundingRoundDocKey(round.DocumentId, round.Id)
		if err := tx.Set(docKey, storage.MarshalID(round.Id)); err != nil {
			return err
		}

		// Company index
		if round.CompanyId != 0 {
			coKey := makeFundingRoundCoKey(round.CompanyId, round.Id)
			if err := tx.Set(coKey, storage.MarshalID(round.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return round, err
}

// UpdateFundingRound updates an existing funding round.
func (r *FeatureRepository) UpdateFundingRound(ctx context.Context, round *core.FundingRound) (*core.FundingRound, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeFundingRoundKey(round.Id)
		old, err := readFundingRound(tx, key)
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}

		round.UpdatedAt = time.Now().UTC()

		if err := tx.Set(key, storage.MarshalFundingRound(round)); err != nil {
			return err
		}

		// Update company index if attribution changed
		if old.CompanyId != round.CompanyId {
			if old.CompanyId != 0 {
				if err := tx.Delete(makeFundingRoundCoKey(old.CompanyId, round.Id)); err != nil {
					return err
				}
			}
			if round.CompanyId != 0 {
				coKey := makeFundingRoundCoKey(round.CompanyId, round.Id)
				if err := tx.Set(coKey, storage.MarshalID(round.Id)); err != nil {
					return err
				}
			}
		}
		return tx.Commit()
	}, true)

	return round, err
}

// GetFundingRound retrieves a funding round by ID.
func (r *FeatureRepository) GetFundingRound(ctx context.Context, id core.ID) (*core.FundingRound, error) {
	var result *core.FundingRound
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readFundingRound(tx, makeFundingRoundKey(id))
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

// ListFundingRounds retrieves all funding rounds.
func (r *FeatureRepository) ListFundingRounds(ctx context.Context) ([]*core.FundingRound, error) {
	var results []*core.FundingRound
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(fundingRoundPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var round *core.FundingRound
			err := iter.Item().Value(func(val []byte) error {
				var err error
				round, err = storage.UnmarshalFundingRound(val)
				return err
			})
			if err != nil {
				return err
			}
			if round != nil {
				results = append(results, round)
			}
		}
		return nil
	}, false)
	return results, err
}

// ListFundingRoundsByDocument retrieves the rounds extracted from a document.
func (r *FeatureRepository) ListFundingRoundsByDocument(ctx context.Context, documentID core.ID) ([]*core.FundingRound, error) {
	return r.listRoundsByIndex(makeFundingRoundDocPrefix(documentID))
}

// ListFundingRoundsByCompany retrieves the rounds attributed to a company.
func (r *FeatureRepository) ListFundingRoundsByCompany(ctx context.Context, companyID core.ID) ([]*core.FundingRound, error) {
	return r.listRoundsByIndex(makeFundingRoundCoPrefix(companyID))
}

// DeleteFundingRound removes a funding round and its indices.
func (r *FeatureRepository) DeleteFundingRound(ctx context.Context, id core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeFundingRoundKey(id)
		round, err := readFundingRound(tx, key)
		if err != nil {
			return err
		}
		if round == nil {
			return storage.ErrNotFound
		}

		if err := tx.Delete(makeFundingRoundDocKey(round.DocumentId, round.Id)); err != nil {
			return err
		}
		if round.CompanyId != 0 {
			if err := tx.Delete(makeFundingRoundCoKey(round.CompanyId, round.Id)); err != nil {
				return err
			}
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// UpsertDocumentFeature stores the feature record of a document.
func (r *FeatureRepository) UpsertDocumentFeature(ctx context.Context, feature *core.DocumentFeature) (*core.DocumentFeature, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentFeatureKey(feature.DocumentId)

		now := time.Now().UTC()
		old, err := readDocumentFeature(tx, key)
		if err != nil {
			return err
		}
		if old != nil {
			feature.InsertedAt = old.InsertedAt
		} else {
			feature.InsertedAt = now
		}
		feature.UpdatedAt = now

		if err := tx.Set(key, storage.MarshalDocumentFeature(feature)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	return feature, err
}

// GetDocumentFeature retrieves the feature record of a document.
func (r *FeatureRepository) GetDocumentFeature(ctx context.Context, documentID core.ID) (*core.DocumentFeature, error) {
	var result *core.DocumentFeature
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readDocumentFeature(tx, makeDocumentFeatureKey(documentID))
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

// DeleteDocumentFeature removes the feature record of a document.
func (r *FeatureRepository) DeleteDocumentFeature(ctx context.Context, documentID core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentFeatureKey(documentID)
		if _, err := tx.Get(key); err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Helper methods

func (r *FeatureRepository) addCompany(company *core.Company) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		company.InsertedAt = time.Now().UTC()
		company.UpdatedAt = company.InsertedAt

		if err := tx.Set(makeCompanyKey(company.Id), storage.MarshalCompany(company)); err != nil {
			return err
		}
		nameKey := makeCompanyNameKey(company.NormalizedName)
		if err := tx.Set(nameKey, storage.MarshalID(company.Id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

func (r *FeatureRepository) addInvestor(investor *core.Investor) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		investor.InsertedAt = time.Now().UTC()
		investor.UpdatedAt = investor.InsertedAt

		if err := tx.Set(makeInvestorKey(investor.Id), storage.MarshalInvestor(investor)); err != nil {
			return err
		}
		nameKey := makeInvestorNameKey(investor.NormalizedName)
		if err := tx.Set(nameKey, storage.MarshalID(investor.Id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

func (r *FeatureRepository) findCompanyByNormalizedName(normalized string) (*core.Company, error) {
	var result *core.Company
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeCompanyNameKey(normalized))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}

		var id core.ID
		if err := item.Value(func(val []byte) error {
			var unmarshalErr error
			id, unmarshalErr = storage.UnmarshalID(val)
			return unmarshalErr
		}); err != nil {
			return err
		}

		recItem, err := tx.Get(makeCompanyKey(id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		return recItem.Value(func(val []byte) error {
			var unmarshalErr error
			result, unmarshalErr = storage.UnmarshalCompany(val)
			return unmarshalErr
		})
	}, false)
	return result, err
}

func (r *FeatureRepository) findInvestorByNormalizedName(normalized string) (*core.Investor, error) {
	var result *core.Investor
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeInvestorNameKey(normalized))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}

		var id core.ID
		if err := item.Value(func(val []byte) error {
			var unmarshalErr error
			id, unmarshalErr = storage.UnmarshalID(val)
			return unmarshalErr
		}); err != nil {
			return err
		}

		recItem, err := tx.Get(makeInvestorKey(id))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		return recItem.Value(func(val []byte) error {
			var unmarshalErr error
			result, unmarshalErr = storage.UnmarshalInvestor(val)
			return unmarshalErr
		})
	}, false)
	return result, err
}

func (r *FeatureRepository) listRoundsByIndex(prefix []byte) ([]*core.FundingRound, error) {
	var ids []core.ID
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
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
	if err != nil {
		return nil, err
	}

	var results []*core.FundingRound
	err = r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			round, err := readFundingRound(tx, makeFundingRoundKey(id))
			if err != nil {
				return err
			}
			if round != nil {
				results = append(results, round)
			}
		}
		return nil
	}, false)
	return results, err
}

// readFundingRound reads a funding round from the transaction.
func readFundingRound(tx *badger.Txn, key []byte) (*core.FundingRound, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var round *core.FundingRound
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		round, unmarshalErr = storage.UnmarshalFundingRound(val)
		return unmarshalErr
	})
	return round, err
}

// readDocumentFeature reads a document feature record from the transaction.
func readDocumentFeature(tx *badger.Txn, key []byte) (*core.DocumentFeature, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var feature *core.DocumentFeature
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		feature, unmarshalErr = storage.UnmarshalDocumentFeature(val)
		return unmarshalErr
	})
	return feature, err
}
