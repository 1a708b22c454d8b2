// Package eval implements the expression evaluator.
//
// Evaluation is pure: it reads bags through a BagSource and never mutates
// anything. The same expression evaluated twice against the same
// environment and state produces the same value.
//
// Quantifier semantics:
//   - exists short-circuits on the first binding passing every filter
//   - all is vacuously true over an empty bag and short-circuits on the
//     first violation
//   - unique detects a duplicate among projected values via canonical
//     fingerprints, so handle-typed projections compare by identity
//
// Bindings enumerate generator bags in insertion order, which makes
// evaluation deterministic for a fixed state.
package eval
