// Package match implements the gesture match evaluator.
//
// Given a model source and a batch of timestamped readings, the evaluator
// pairs timestamps with reading values into 2-dimensional samples, computes
// each stored component set's average mixture log-likelihood from the raw
// fitted parameters (via the stored precision-Cholesky factors, never by
// inverting covariances), takes the best score per sensor across its
// component sets, and compares it to that sensor's threshold. The overall
// decision is the conjunction of all per-sensor statuses, computed eagerly:
// the full per-sensor breakdown always accompanies the boolean.
//
// Preconditions are checked before any scoring: a populated source, equal
// timestamp/reading lengths per sensor, and every named sensor present in
// the source. A violation returns the typed error with an empty result map,
// never partial results.
//
// Per-sensor scores are computed in parallel. Scores are pure functions of
// the sample matrix and the component set, so the results are identical
// regardless of scheduling.
package match
