package reconcile

import (
	"fmt"
	"io"

	"github.com/xynenyx/fundwire/core"
)

// ChangeKind names a category of corrective change.
type ChangeKind string

const (
	// ChangeRescaleAmount multiplies a mis-scaled funding round amount up to
	// the magnitude its original text indicates.
	ChangeRescaleAmount ChangeKind = "rescale-amount"
	// ChangeDeleteRound removes a funding round whose amount cannot be
	// trusted or repaired.
	ChangeDeleteRound ChangeKind = "delete-round"
	// ChangeDeleteCompany removes a company whose name is an extraction
	// artifact. Rounds referencing it are orphaned, never deleted.
	ChangeDeleteCompany ChangeKind = "delete-company"
	// ChangeDeleteInvestor removes an investor whose name is an extraction
	// artifact and clears references to it.
	ChangeDeleteInvestor ChangeKind = "delete-investor"
	// ChangeFixDate rewrites a round date into canonical YYYY-MM-DD form, or
	// clears it when unparseable.
	ChangeFixDate ChangeKind = "fix-date"
	// ChangeFlagRound marks a round for manual review. Report-only.
	ChangeFlagRound ChangeKind = "flag-round"
	// ChangeRearmDocument resets a document's extraction flag so the feature
	// pass reprocesses it.
	ChangeRearmDocument ChangeKind = "rearm-document"
	// ChangeResetStuck returns a long-lived processing document to pending.
	ChangeResetStuck ChangeKind = "reset-stuck"
)

// Change is a single intended mutation, computed during planning and applied
// during execution.
type Change struct {
	Kind       ChangeKind
	RoundId    core.ID
	CompanyId  core.ID
	InvestorId core.ID
	DocumentId core.ID
	Before     string
	After      string
	Reason     string
}

// Plan is the full set of changes one reconciliation pass intends to make.
// Flagged entries are report-only and never mutate the store.
type Plan struct {
	Changes []Change
	Flagged []Change
}

// Empty reports whether the plan contains no mutations.
func (p *Plan) Empty() bool {
	return len(p.Changes) == 0
}

// Count returns how many changes of the given kind the plan holds.
func (p *Plan) Count(kind ChangeKind) int {
	n := 0
	for _, c := range p.Changes {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

// Report writes a human-readable listing of the plan.
func (p *Plan) Report(w io.Writer) {
	if p.Empty() && len(p.Flagged) == 0 {
		fmt.Fprintln(w, "nothing to reconcile")
		return
	}
	for _, c := range p.Changes {
		fmt.Fprintln(w, formatChange(c))
	}
	for _, c := range p.Flagged {
		fmt.Fprintf(w, "FLAG %s\n", formatChange(c))
	}
	fmt.Fprintf(w, "%d changes, %d flagged\n", len(p.Changes), len(p.Flagged))
}

func formatChange(c Change) string {
	switch c.Kind {
	case ChangeRescaleAmount:
		return fmt.Sprintf("%s round=%d %s -> %s (%s)", c.Kind, c.RoundId, c.Before, c.After, c.Reason)
	case ChangeDeleteRound, ChangeFlagRound:
		return fmt.Sprintf("%s round=%d %s (%s)", c.Kind, c.RoundId, c.Before, c.Reason)
	case ChangeDeleteCompany:
		return fmt.Sprintf("%s company=%d %q (%s)", c.Kind, c.CompanyId, c.Before, c.Reason)
	case ChangeDeleteInvestor:
		return fmt.Sprintf("%s investor=%d %q (%s)", c.Kind, c.InvestorId, c.Before, c.Reason)
	case ChangeFixDate:
		return fmt.Sprintf("%s round=%d %q -> %q", c.Kind, c.RoundId, c.Before, c.After)
	case ChangeRearmDocument:
		return fmt.Sprintf("%s document=%d (%s)", c.Kind, c.DocumentId, c.Reason)
	case ChangeResetStuck:
		return fmt.Sprintf("%s document=%d (%s)", c.Kind, c.DocumentId, c.Reason)
	default:
		return fmt.Sprintf("%s (%s)", c.Kind, c.Reason)
	}
}
