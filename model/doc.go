// Package model defines the in-memory representation of fitted
// Gaussian-mixture sensor models.
//
// A GaussianComponentSet holds the raw parameters of one fitted mixture:
// component priors, means, covariances and the precision-Cholesky factors
// the evaluator scores against. A SensorModelEntry groups the ordered
// component sets fitted for one sensor with that sensor's scalar Parameters
// (intended component count, fit seed, match threshold).
//
// Fitting itself happens upstream; this package only validates and carries
// already-fitted parameters. Matrix-valued fields use gonum mat types so the
// evaluator can operate on them without conversion; NewComponentSet is the
// bridge from the row-major arrays the container formats store.
//
// Component sets are owned exclusively by the store that holds them. Clone
// at any boundary where a caller could retain a reference.
package model
