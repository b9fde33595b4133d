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


package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/xynenyx/fundwire/core"
	"github.com/xynenyx/fundwire/storage"
)

var (
	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrFeatureRepositoryRequired is returned when a feature repository is not provided.
	ErrFeatureRepositoryRequired = errors.New("feature repository required")
)

// Rules selects which corrective rules a reconciliation pass runs.
// Each rule is independently toggleable so partial corrective runs are
// possible.
type Rules struct {
	FixAmounts          bool
	DeleteInvalidRounds bool
	DeleteBadEntities   bool
	FixDates            bool
	Rearm               bool

	// ResetStuck returns processing documents older than StuckCutoff to
	// pending. Off by default: stuck documents usually mean a worker is
	// still running.
	ResetStuck  bool
	StuckCutoff time.Duration
}

// DefaultRules enables every corrective rule except stuck-document reset.
func DefaultRules() Rules {
	return Rules{
		FixAmounts:          true,
		DeleteInvalidRounds: true,
		DeleteBadEntities:   true,
		FixDates:            true,
		Rearm:               true,
		ResetStuck:          false,
		StuckCutoff:         time.Hour,
	}
}

// Reconciler scans already-written feature rows for corruption left behind by
// earlier extraction passes and repairs or removes it. It always computes a
// full Plan first; Apply mutates the store only when explicitly invoked.
type Reconciler struct {
	docs      storage.DocumentRepository
	features  storage.FeatureRepository
	rules     Rules
	nameRules []core.NameRule
	progress  io.Writer
	logger    *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithRules overrides the default rule set.
func WithRules(rules Rules) Option {
	return func(r *Reconciler) {
		r.rules = rules
	}
}

// WithNameRules overrides the entity-name validation rules.
func WithNameRules(rules []core.NameRule) Option {
	return func(r *Reconciler) {
		if rules != nil {
			r.nameRules = rules
		}
	}
}

// WithProgress enables progress reporting to the given writer during scans.
func WithProgress(w io.Writer) Option {
	return func(r *Reconciler) {
		r.progress = w
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a reconciler.
func New(docs storage.DocumentRepository, features storage.FeatureRepository, opts ...Option) (*Reconciler, error) {
	if docs == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if features == nil {
		return nil, ErrFeatureRepositoryRequired
	}

	r := &Reconciler{
		docs:      docs,
		features:  features,
		rules:     DefaultRules(),
		nameRules: core.DefaultNameRules(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "reconciler")
	return r, nil
}

// Plan scans the store and computes every change the enabled rules call for,
// without mutating anything. Planning twice against an unchanged store yields
// the same plan.
func (r *Reconciler) Plan(ctx context.Context) (*Plan, error) {
	plan := &Plan{}

	rounds, err := r.features.ListFundingRounds(ctx)
	if err != nil {
		return nil, fmt.Errorf("list funding rounds: %w", err)
	}

	var tracker *ProgressTracker
	if r.progress != nil {
		tracker = NewProgressTracker(r.progress, len(rounds), 100)
		tracker.Start()
		defer tracker.Finish()
	}

	// Documents whose rows this plan deletes or rescales. Rearming happens
	// after the row changes so a partially applied plan never loses the
	// rearm signal for rows already repaired.
	touched := make(map[core.ID]bool)

	for _, round := range rounds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.planRound(ctx, round, plan, touched)
		if tracker != nil {
			tracker.Increment(1)
		}
	}

	if r.rules.DeleteBadEntities {
		if err := r.planEntities(ctx, rounds, plan, touched); err != nil {
			return nil, err
		}
	}

	if r.rules.Rearm {
		r.planRearm(ctx, plan, touched)
	}

	if r.rules.ResetStuck {
		if err := r.planStuck(ctx, plan); err != nil {
			return nil, err
		}
	}

	return plan, nil
}

// planRound applies the amount and date rules to a single funding round.
func (r *Reconciler) planRound(ctx context.Context, round *core.FundingRound, plan *Plan, touched map[core.ID]bool) {
	amount := round.AmountUSD

	// Rescaling. An amount below the small threshold whose original text
	// carries a unit word was stored without its multiplier.
	if r.rules.FixAmounts && amount > 0 && amount < core.SmallAmountThreshold && core.HasUnitWord(round.AmountOriginal) {
		rescaled := amount * core.UnitMultiplier(round.AmountOriginal)
		plan.Changes = append(plan.Changes, Change{
			Kind:       ChangeRescaleAmount,
			RoundId:    round.Id,
			DocumentId: round.DocumentId,
			Before:     fmt.Sprintf("%d", amount),
			After:      fmt.Sprintf("%d", rescaled),
			Reason:     fmt.Sprintf("original %q implies scale", round.AmountOriginal),
		})
		touched[round.DocumentId] = true
		amount = rescaled
	}

	// Deletion. After rescaling, a round still below the threshold whose
	// original text matches no recognized amount pattern cannot be trusted.
	// Rounds with no original at all have unparseable provenance.
	if r.rules.DeleteInvalidRounds {
		if round.AmountOriginal == "" {
			plan.Changes = append(plan.Changes, Change{
				Kind:       ChangeDeleteRound,
				RoundId:    round.Id,
				DocumentId: round.DocumentId,
				Before:     fmt.Sprintf("amount=%d", amount),
				Reason:     "no amount provenance",
			})
			touched[round.DocumentId] = true
			return
		}
		if amount < core.SmallAmountThreshold {
			if _, _, err := core.ParseAmount(round.AmountOriginal); err != nil {
				plan.Changes = append(plan.Changes, Change{
					Kind:       ChangeDeleteRound,
					RoundId:    round.Id,
					DocumentId: round.DocumentId,
					Before:     fmt.Sprintf("amount=%d original=%q", amount, round.AmountOriginal),
					Reason:     "below threshold with unrecognizable original",
				})
				touched[round.DocumentId] = true
				return
			}
		}
		if amount >= core.ImplausibleAmountThreshold {
			plan.Changes = append(plan.Changes, Change{
				Kind:       ChangeDeleteRound,
				RoundId:    round.Id,
				DocumentId: round.DocumentId,
				Before:     fmt.Sprintf("amount=%d", amount),
				Reason:     "amount beyond any real funding round",
			})
			touched[round.DocumentId] = true
			return
		}
		if amount >= core.SuspiciousAmountThreshold {
			plan.Flagged = append(plan.Flagged, Change{
				Kind:       ChangeFlagRound,
				RoundId:    round.Id,
				DocumentId: round.DocumentId,
				Before:     fmt.Sprintf("amount=%d", amount),
				Reason:     "suspiciously large, review manually",
			})
		}
	}

	if r.rules.FixDates {
		if round.RoundDate == "" {
			// Recover a missing date from the source document.
			if recovered := r.recoverDate(ctx, round.DocumentId); recovered != "" {
				plan.Changes = append(plan.Changes, Change{
					Kind:       ChangeFixDate,
					RoundId:    round.Id,
					DocumentId: round.DocumentId,
					Before:     "",
					After:      recovered,
				})
			}
			return
		}
		if fixed, changed := canonicalizeDate(round.RoundDate); changed {
			if fixed == "" {
				// Unsalvageable text: fall back to the document date so the
				// round does not oscillate between cleared and recovered.
				fixed = r.recoverDate(ctx, round.DocumentId)
			}
			plan.Changes = append(plan.Changes, Change{
				Kind:       ChangeFixDate,
				RoundId:    round.Id,
				DocumentId: round.DocumentId,
				Before:     round.RoundDate,
				After:      fixed,
			})
		}
	}
}

// recoverDate pulls a round date from the source document's publish time,
// falling back to its ingestion time.
func (r *Reconciler) recoverDate(ctx context.Context, documentID core.ID) string {
	doc, err := r.docs.GetDocument(ctx, documentID)
	if err != nil {
		return ""
	}
	if !doc.PublishedAt.IsZero() {
		return doc.PublishedAt.Format("2006-01-02")
	}
	if !doc.CreatedAt.IsZero() {
		return doc.CreatedAt.Format("2006-01-02")
	}
	return ""
}

// planEntities finds companies and investors whose names are extraction
// artifacts.
func (r *Reconciler) planEntities(ctx context.Context, rounds []*core.FundingRound, plan *Plan, touched map[core.ID]bool) error {
	companies, err := r.features.ListCompanies(ctx)
	if err != nil {
		return fmt.Errorf("list companies: %w", err)
	}
	for _, company := range companies {
		if err := core.ValidateEntityName(company.Name, r.nameRules); err != nil {
			plan.Changes = append(plan.Changes, Change{
				Kind:      ChangeDeleteCompany,
				CompanyId: company.Id,
				Before:    company.Name,
				Reason:    err.Error(),
			})
			// Rounds attributed to a deleted company get orphaned; their
			// documents need re-extraction.
			rounds, err := r.features.ListFundingRoundsByCompany(ctx, company.Id)
			if err != nil {
				return fmt.Errorf("list rounds for company %d: %w", company.Id, err)
			}
			for _, round := range rounds {
				touched[round.DocumentId] = true
			}
		}
	}

	investors, err := r.features.ListInvestors(ctx)
	if err != nil {
		return fmt.Errorf("list investors: %w", err)
	}
	for _, investor := range investors {
		if err := core.ValidateEntityName(investor.Name, r.nameRules); err != nil {
			plan.Changes = append(plan.Changes, Change{
				Kind:       ChangeDeleteInvestor,
				InvestorId: investor.Id,
				Before:     investor.Name,
				Reason:     err.Error(),
			})
			for _, round := range rounds {
				if roundReferencesInvestor(round, investor.Id) {
					touched[round.DocumentId] = true
				}
			}
		}
	}
	return nil
}

func roundReferencesInvestor(round *core.FundingRound, id core.ID) bool {
	if round.LeadInvestorId == id {
		return true
	}
	for _, invID := range round.InvestorIds {
		if invID == id {
			return true
		}
	}
	return false
}

// planRearm marks every touched document for re-extraction, skipping ones
// that are not currently extracted.
func (r *Reconciler) planRearm(ctx context.Context, plan *Plan, touched map[core.ID]bool) {
	for id := range touched {
		doc, err := r.docs.GetDocument(ctx, id)
		if err != nil {
			// The round may reference a document deleted out of band.
			r.logger.Debug("skipping rearm for missing document", "document", id, "err", err)
			continue
		}
		if !doc.FeaturesExtracted {
			continue
		}
		plan.Changes = append(plan.Changes, Change{
			Kind:       ChangeRearmDocument,
			DocumentId: id,
			Reason:     "contributed corrupted rows",
		})
	}
}

// planStuck finds processing documents older than the cutoff.
func (r *Reconciler) planStuck(ctx context.Context, plan *Plan) error {
	stuck, err := r.docs.ListDocumentsByStatus(ctx, core.StatusProcessing, 0)
	if err != nil {
		return fmt.Errorf("list processing documents: %w", err)
	}
	cutoff := time.Now().UTC().Add(-r.rules.StuckCutoff)
	for _, doc := range stuck {
		if doc.UpdatedAt.Before(cutoff) {
			plan.Changes = append(plan.Changes, Change{
				Kind:       ChangeResetStuck,
				DocumentId: doc.Id,
				Reason:     fmt.Sprintf("processing since %s", doc.UpdatedAt.Format(time.RFC3339)),
			})
		}
	}
	return nil
}

// ApplySummary reports what an Apply call actually did.
type ApplySummary struct {
	Rescaled         int
	RoundsDeleted    int
	CompaniesDeleted int
	InvestorsDeleted int
	DatesFixed       int
	Rearmed          int
	StuckReset       int
	Errors           int
}

// Apply executes a previously computed plan. Changes are applied in rule
// order; a failure on one change is logged and does not abort the rest.
func (r *Reconciler) Apply(ctx context.Context, plan *Plan) (*ApplySummary, error) {
	summary := &ApplySummary{}
	for _, kind := range []ChangeKind{
		ChangeRescaleAmount,
		ChangeDeleteRound,
		ChangeDeleteCompany,
		ChangeDeleteInvestor,
		ChangeFixDate,
		ChangeRearmDocument,
	} {
		for _, change := range plan.Changes {
			if change.Kind != kind {
				continue
			}
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			if err := r.applyChange(ctx, change, summary); err != nil {
				r.logger.Error("error applying change", "kind", change.Kind, "err", err)
				summary.Errors++
			}
		}
	}

	// Stuck-document reset is one store call covering every planned document.
	if plan.Count(ChangeResetStuck) > 0 {
		cutoff := time.Now().UTC().Add(-r.rules.StuckCutoff)
		ids, err := r.docs.ResetStuck(ctx, cutoff)
		if err != nil {
			r.logger.Error("error resetting stuck documents", "err", err)
			summary.Errors++
		} else {
			summary.StuckReset = len(ids)
		}
	}

	r.logger.Info("reconciliation applied",
		"rescaled", summary.Rescaled,
		"roundsDeleted", summary.RoundsDeleted,
		"companiesDeleted", summary.CompaniesDeleted,
		"investorsDeleted", summary.InvestorsDeleted,
		"datesFixed", summary.DatesFixed,
		"rearmed", summary.Rearmed,
		"stuckReset", summary.StuckReset,
		"errors", summary.Errors)
	return summary, nil
}

func (r *Reconciler) applyChange(ctx context.Context, change Change, summary *ApplySummary) error {
	switch change.Kind {
	case ChangeRescaleAmount:
		// Write the planned target rather than re-multiplying, so applying
		// a plan a second time cannot compound the rescale.
		target, err := strconv.ParseInt(change.After, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid rescale target %q: %w", change.After, err)
		}
		round, err := r.features.GetFundingRound(ctx, change.RoundId)
		if err != nil {
			return err
		}
		round.AmountUSD = target
		if _, err := r.features.UpdateFundingRound(ctx, round); err != nil {
			return err
		}
		summary.Rescaled++

	case ChangeDeleteRound:
		if err := r.features.DeleteFundingRound(ctx, change.RoundId); err != nil {
			return err
		}
		summary.RoundsDeleted++

	case ChangeDeleteCompany:
		if err := r.features.DeleteCompany(ctx, change.CompanyId); err != nil {
			return err
		}
		summary.CompaniesDeleted++

	case ChangeDeleteInvestor:
		if err := r.features.DeleteInvestor(ctx, change.InvestorId); err != nil {
			return err
		}
		summary.InvestorsDeleted++

	case ChangeFixDate:
		round, err := r.features.GetFundingRound(ctx, change.RoundId)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil // deleted by an earlier rule
			}
			return err
		}
		round.RoundDate = change.After
		if _, err := r.features.UpdateFundingRound(ctx, round); err != nil {
			return err
		}
		summary.DatesFixed++

	case ChangeRearmDocument:
		if err := r.docs.ResetFeatures(ctx, change.DocumentId); err != nil {
			return err
		}
		summary.Rearmed++

	default:
		return fmt.Errorf("unknown change kind %q", change.Kind)
	}
	return nil
}

// Run computes a plan and, when execute is true, applies it. The returned
// plan is always the dry-run view; the summary is nil unless execute was set.
func (r *Reconciler) Run(ctx context.Context, execute bool) (*Plan, *ApplySummary, error) {
	plan, err := r.Plan(ctx)
	if err != nil {
		return nil, nil, err
	}
	if !execute {
		return plan, nil, nil
	}
	summary, err := r.Apply(ctx, plan)
	if err != nil {
		return plan, summary, err
	}
	return plan, summary, nil
}

// roundDateLayouts are the formats extraction leaves behind. The first is
// already canonical.
var roundDateLayouts = []string{
	"2006-01-02",
	"January 2, 2006",
	"2 January 2006",
	"2006/01/02",
	"01/02/2006",
}

// canonicalizeDate rewrites a round date into YYYY-MM-DD. Returns the fixed
// value and whether it differs from the input; unparseable dates canonicalize
// to empty.
func canonicalizeDate(value string) (string, bool) {
	for i, layout := range roundDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			if i == 0 {
				return value, false
			}
			return t.Format("2006-01-02"), true
		}
	}
	return "", true
}
