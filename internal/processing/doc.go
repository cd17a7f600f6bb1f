// Package processing runs a per-item function over an ordered list of
// optional items on a bounded worker pool.
//
// Every item ends in one of three outcomes: Success, Null (nothing produced,
// for example a skipped download) or Failure. Item errors and panics never
// abort a run. With a bounded target, Process issues batches sized to the
// remaining deficit so expensive operations stop once enough items were
// processed. Outcomes always follow input order regardless of the number of
// workers.
package processing
