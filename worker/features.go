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


package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xynenyx/fundwire/ai"
	"github.com/xynenyx/fundwire/core"
	"github.com/xynenyx/fundwire/storage"
)

// FeatureWorker extracts companies, investors and funding rounds from ready
// documents and persists them to the feature store. Extraction failures
// restore the document to ready so a later pass can retry; they never flip
// the document to error.
type FeatureWorker struct {
	docs      storage.DocumentRepository
	features  storage.FeatureRepository
	extractor ai.EntityExtractor
	nameRules []core.NameRule
	logger    *slog.Logger
}

// FeatureWorkerOption configures a FeatureWorker.
type FeatureWorkerOption func(*FeatureWorker)

// WithNameRules overrides the entity-name validation rules.
func WithNameRules(rules []core.NameRule) FeatureWorkerOption {
	return func(w *FeatureWorker) {
		if rules != nil {
			w.nameRules = rules
		}
	}
}

// WithFeatureWorkerLogger sets a custom logger. Default is slog.Default().
func WithFeatureWorkerLogger(logger *slog.Logger) FeatureWorkerOption {
	return func(w *FeatureWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewFeatureWorker creates a feature extraction worker.
func NewFeatureWorker(docs storage.DocumentRepository, features storage.FeatureRepository, extractor ai.EntityExtractor, opts ...FeatureWorkerOption) (*FeatureWorker, error) {
	if docs == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if features == nil {
		return nil, ErrFeatureRepositoryRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}

	w := &FeatureWorker{
		docs:      docs,
		features:  features,
		extractor: extractor,
		nameRules: core.DefaultNameRules(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("component", "features")
	return w, nil
}

// FeatureSummary reports the outcome of one feature extraction pass.
type FeatureSummary struct {
	Claimed         int
	Extracted       int
	Failed          int
	Companies       int
	Investors       int
	FundingRounds   int
	RejectedNames   int
	RejectedAmounts int
}

// Run claims up to batchSize ready documents that have not had features
// extracted and runs extraction on each.
func (w *FeatureWorker) Run(ctx context.Context, batchSize int) (*FeatureSummary, error) {
	claimed, err := w.docs.ClaimReadyUnextracted(ctx, batchSize)
	if err != nil {
		return nil, fmt.Errorf("claim ready documents: %w", err)
	}

	summary := &FeatureSummary{Claimed: len(claimed)}
	for _, doc := range claimed {
		if err := ctx.Err(); err != nil {
			w.restore(ctx, doc)
			return summary, err
		}
		if err := w.extractDocument(ctx, doc, summary); err != nil {
			summary.Failed++
			w.restore(ctx, doc)
			continue
		}
		summary.Extracted++
	}

	w.logger.Info("feature extraction pass complete",
		"claimed", summary.Claimed,
		"extracted", summary.Extracted,
		"failed", summary.Failed,
		"rounds", summary.FundingRounds)
	return summary, nil
}

func (w *FeatureWorker) extractDocument(ctx context.Context, doc *core.Document, summary *FeatureSummary) error {
	entities, err := w.extractor.ExtractEntities(ctx, doc.RawContent)
	if err != nil {
		w.logger.Error("entity extraction failed", "document", doc.Id, "err", err)
		return err
	}

	feature := &core.DocumentFeature{
		DocumentId: doc.Id,
		Sectors:    entities.Sectors,
	}

	companies := make(map[string]core.ID)
	for _, c := range entities.Companies {
		id, err := w.resolveCompany(ctx, c.Name, summary)
		if err != nil {
			return err
		}
		if id == 0 {
			continue
		}
		if _, seen := companies[core.NormalizeName(c.Name)]; !seen {
			companies[core.NormalizeName(c.Name)] = id
			feature.CompanyIds = append(feature.CompanyIds, id)
		}
	}

	investors := make(map[string]core.ID)
	var leadInvestor core.ID
	for _, inv := range entities.Investors {
		if err := core.ValidateEntityName(inv.Name, w.nameRules); err != nil {
			summary.RejectedNames++
			w.logger.Debug("rejected investor name", "document", doc.Id, "name", inv.Name, "err", err)
			continue
		}
		record, err := w.features.GetOrCreateInvestor(ctx, inv.Name)
		if err != nil {
			return err
		}
		if _, seen := investors[record.NormalizedName]; !seen {
			investors[record.NormalizedName] = record.Id
			feature.InvestorIds = append(feature.InvestorIds, record.Id)
			summary.Investors++
		}
		if inv.Lead && leadInvestor == 0 {
			leadInvestor = record.Id
		}
	}

	for _, r := range entities.Rounds {
		round, err := w.buildRound(ctx, doc, r, companies, summary)
		if err != nil {
			return err
		}
		if round == nil {
			continue
		}
		round.LeadInvestorId = leadInvestor
		round.InvestorIds = feature.InvestorIds

		stored, err := w.features.AddFundingRound(ctx, round)
		if err != nil {
			return err
		}
		feature.FundingRoundIds = append(feature.FundingRoundIds, stored.Id)
		summary.FundingRounds++

		// A round can name a company the extractor did not list separately.
		if stored.CompanyId != 0 && !containsID(feature.CompanyIds, stored.CompanyId) {
			feature.CompanyIds = append(feature.CompanyIds, stored.CompanyId)
		}
	}

	if _, err := w.features.UpsertDocumentFeature(ctx, feature); err != nil {
		return err
	}

	return w.docs.MarkFeaturesExtracted(ctx, doc.Id)
}

// resolveCompany validates a candidate company name and resolves it to a
// stored company. Returns 0 for rejected names.
func (w *FeatureWorker) resolveCompany(ctx context.Context, name string, summary *FeatureSummary) (core.ID, error) {
	if err := core.ValidateEntityName(name, w.nameRules); err != nil {
		summary.RejectedNames++
		w.logger.Debug("rejected company name", "name", name, "err", err)
		return 0, nil
	}
	record, err := w.features.GetOrCreateCompany(ctx, name)
	if err != nil {
		return 0, err
	}
	summary.Companies++
	return record.Id, nil
}

// buildRound converts an extracted round into a funding round record.
// Returns nil for rounds rejected outright (implausible amount). Amounts
// that do not parse are kept with AmountUSD=0 and the raw text preserved so
// the reconciler can inspect them.
func (w *FeatureWorker) buildRound(ctx context.Context, doc *core.Document, r ai.ExtractedRound, companies map[string]core.ID, summary *FeatureSummary) (*core.FundingRound, error) {
	round := &core.FundingRound{
		DocumentId:     doc.Id,
		AmountOriginal: r.Amount,
		RoundType:      r.RoundType,
		RoundDate:      r.Date,
	}

	if r.Amount != "" {
		amount, currency, err := core.ParseAmount(r.Amount)
		switch {
		case errors.Is(err, core.ErrAmountImplausible):
			summary.RejectedAmounts++
			w.logger.Debug("rejected implausible amount", "document", doc.Id, "amount", r.Amount)
			return nil, nil
		case err != nil:
			w.logger.Debug("unparseable amount kept for reconciliation", "document", doc.Id, "amount", r.Amount)
		default:
			round.AmountUSD = amount
			round.Currency = currency
		}
	}

	if round.RoundDate == "" && !doc.PublishedAt.IsZero() {
		round.RoundDate = doc.PublishedAt.Format("2006-01-02")
	}

	if r.Company != "" {
		if id, ok := companies[core.NormalizeName(r.Company)]; ok {
			round.CompanyId = id
		} else {
			id, err := w.resolveCompany(ctx, r.Company, summary)
			if err != nil {
				return nil, err
			}
			round.CompanyId = id
		}
	}

	return round, nil
}

func containsID(ids []core.ID, id core.ID) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

// restore puts a claimed document back in the ready state without touching
// FeaturesExtracted.
func (w *FeatureWorker) restore(ctx context.Context, doc *core.Document) {
	if err := w.docs.RestoreReady(ctx, doc.Id); err != nil {
		w.logger.Error("error restoring document after failed extraction", "document", doc.Id, "err", err)
	}
}
