// Package reconcile detects and repairs corrupted feature-store rows left
// behind by earlier extraction passes.
//
// The reconciler is a batch correction pass, not part of the live pipeline.
// It always computes a Plan of intended changes first; dry runs report the
// plan without touching the store, and execute mode applies exactly the
// planned changes. Runs are idempotent: executing twice in a row makes no
// further changes the second time.
//
// Rules, in application order: mis-scaled amounts are multiplied up to the
// magnitude their original text indicates; untrustworthy rounds are deleted;
// companies and investors with extraction-artifact names are deleted, with
// referencing rounds orphaned rather than cascade-deleted; malformed round
// dates are canonicalized; documents that contributed corrupted rows are
// re-armed for re-extraction. An optional rule returns long-stuck processing
// documents to pending.
package reconcile
