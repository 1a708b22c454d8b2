package verify

import (
	"fmt"

	"github.com/roach88/relcheck/internal/ir"
)

// VerifyAll checks every (operation, invariant) pair of the schema and
// returns a report in declaration order, operations outer. The schema
// must already be validated.
func VerifyAll(s *ir.Schema) *Report {
	r := &Report{SchemaHash: ir.SchemaHash(s)}
	for i := range s.Operations {
		for j := range s.Invariants {
			r.Findings = append(r.Findings, verifyPair(s, &s.Operations[i], &s.Invariants[j]))
		}
	}
	return r
}

// verifyPair runs the decision ladder for one pair: frame, monotonicity,
// obligation discharge, counterexample search, inconclusive.
func verifyPair(s *ir.Schema, op *ir.Operation, inv *ir.Invariant) Finding {
	f := Finding{Operation: op.Name, Invariant: inv.Name, Verdict: VerdictUnchecked}

	reads := statesOf(inv.Body)
	touched := false
	for _, eff := range op.Effects {
		if reads[eff.State] {
			touched = true
			break
		}
	}
	if !touched {
		f.Verdict = VerdictProven
		f.Rule = RuleFrame
		f.Detail = "operation writes no state the invariant reads"
		return f
	}

	// Non-monotone occurrences, per effect, in effect order.
	type pending struct {
		eff ir.Effect
		occ occurrence
	}
	var hard []pending
	for _, eff := range op.Effects {
		if !reads[eff.State] {
			continue
		}
		for _, o := range occurrencesOf(inv.Body, eff.State, true) {
			mono := o.removeMonotone()
			if eff.Kind == ir.EffectInsert {
				mono = o.insertMonotone()
			}
			if !mono {
				hard = append(hard, pending{eff, o})
			}
		}
	}
	if len(hard) == 0 {
		f.Verdict = VerdictProven
		f.Rule = RuleMonotone
		f.Detail = "every touched occurrence is monotone under the effects"
		return f
	}

	// Obligation discharge. Removal effects have no localization rule, so
	// any hard removal occurrence sends the pair straight to the search.
	// The obligation quantifies one new element against the old bag
	// contents; a second effect writing the same bag could clash with the
	// new element itself, which the localization cannot see.
	writes := map[string]int{}
	for _, eff := range op.Effects {
		writes[eff.State]++
	}
	obligations := make([]ir.Expr, 0, len(hard))
	discharged := true
	for _, p := range hard {
		if p.eff.Kind != ir.EffectInsert || writes[p.eff.State] > 1 {
			discharged = false
			break
		}
		ob, ok := insertObligation(p.occ, p.eff.Arg)
		if !ok {
			discharged = false
			break
		}
		obligations = append(obligations, ob)
	}
	if discharged {
		facts := make([]ir.Expr, 0, len(s.Invariants)+1)
		if op.Assume != nil {
			facts = append(facts, op.Assume)
		}
		for i := range s.Invariants {
			facts = append(facts, s.Invariants[i].Body)
		}
		ent := newEntailment(facts...)
		for _, ob := range obligations {
			if !ent.entails(ob) {
				discharged = false
				break
			}
		}
		if discharged {
			f.Verdict = VerdictProven
			f.Rule = RuleDischarged
			f.Detail = fmt.Sprintf("%d obligation(s) implied by the precondition", len(obligations))
			return f
		}
	}

	if w := findWitness(s, op, inv); w != nil {
		f.Verdict = VerdictDisproven
		f.Rule = RuleCounterexample
		f.Detail = "concrete pre-state and parameters violate the invariant after the effects"
		f.Witness = w
		return f
	}

	f.Verdict = VerdictInconclusive
	f.Rule = RuleNoDecision
	f.Detail = "no proof rule applies and no counterexample found in bound"
	return f
}
