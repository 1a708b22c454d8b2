// Package verify decides, once per schema load, whether each operation
// preserves each declared invariant. The judgment quantifies over all
// states and parameter values, so it cannot be made by evaluation alone;
// instead the verifier exploits the restricted effect language (bag
// insertions and removals of statically-shaped records) to localize the
// check to the effect:
//
//  1. Frame rule: an operation that touches no bag an invariant reads
//     trivially preserves it.
//  2. Monotonicity: an insertion into a bag that occurs only in positions
//     an extra element cannot falsify (membership targets, exists
//     generators) preserves the invariant outright; dually for removals
//     and universally-quantified or uniqueness positions.
//  3. Differential obligations: for the remaining positions, the invariant
//     restricted to the new element becomes a proof obligation over the
//     inserted record and the operation's parameters, discharged when it
//     is implied by the precondition (plus the inductive hypothesis that
//     the invariants held before) under a restricted entailment check:
//     normalization to negation normal form, congruence on equalities,
//     and alpha-matching of quantifiers over the same generator.
//  4. Counterexamples: an undischarged insertion obligation triggers a
//     bounded concrete search; if a small state satisfying the invariants
//     and the precondition leads to a post-state violation, the pair is
//     Disproven with that witness.
//
// Anything the rules cannot settle is reported Inconclusive, never guessed
// — the operation executor re-checks those invariants at runtime as a
// safety net. Each (operation, invariant) pair lands in exactly one of the
// terminal verdicts Proven, Disproven, or Inconclusive.
package verify
