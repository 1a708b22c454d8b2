package verify

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/relcheck/internal/ir"
)

// Verdict is the verification state of one (operation, invariant) pair.
// Unchecked is the initial state; the other three are terminal.
type Verdict string

const (
	VerdictUnchecked    Verdict = "unchecked"
	VerdictProven       Verdict = "proven"
	VerdictDisproven    Verdict = "disproven"
	VerdictInconclusive Verdict = "inconclusive"
)

// Rule names the argument that decided a verdict, for auditability.
type Rule string

const (
	// RuleFrame: the operation touches no bag the invariant reads.
	RuleFrame Rule = "frame"

	// RuleMonotone: every occurrence of every touched bag is in a position
	// the effect cannot falsify.
	RuleMonotone Rule = "monotone"

	// RuleDischarged: the effect-localized obligations are implied by the
	// precondition and the inductive hypothesis.
	RuleDischarged Rule = "obligation-discharged"

	// RuleCounterexample: a concrete state and parameter binding was found
	// where the precondition holds and the post-state invariant fails.
	RuleCounterexample Rule = "counterexample"

	// RuleNoDecision: no rule applies and no counterexample was found
	// within the search bound.
	RuleNoDecision Rule = "no-decision"
)

// Witness is a concrete counterexample: parameter values and a pre-state
// satisfying every invariant and the precondition, whose post-state
// violates the invariant under test.
type Witness struct {
	Params map[string]ir.Value
	State  map[string]*ir.Bag
}

// MarshalJSON renders the witness with canonical value encodings so
// reports are byte-stable.
func (w *Witness) MarshalJSON() ([]byte, error) {
	params := make(map[string]json.RawMessage, len(w.Params))
	for name, v := range w.Params {
		enc, err := ir.MarshalCanonical(v)
		if err != nil {
			return nil, fmt.Errorf("witness param %s: %w", name, err)
		}
		params[name] = json.RawMessage(enc)
	}
	state := make(map[string]json.RawMessage, len(w.State))
	for name, b := range w.State {
		enc, err := ir.MarshalCanonical(b)
		if err != nil {
			return nil, fmt.Errorf("witness state %s: %w", name, err)
		}
		state[name] = json.RawMessage(enc)
	}
	return json.Marshal(struct {
		Params map[string]json.RawMessage `json:"params"`
		State  map[string]json.RawMessage `json:"state"`
	}{params, state})
}

// Finding is the verdict for one (operation, invariant) pair.
type Finding struct {
	Operation string   `json:"operation"`
	Invariant string   `json:"invariant"`
	Verdict   Verdict  `json:"verdict"`
	Rule      Rule     `json:"rule"`
	Detail    string   `json:"detail,omitempty"`
	Witness   *Witness `json:"witness,omitempty"`
}

// Report is the load-time verification result: one finding per
// (operation, invariant) pair, in declaration order (operations outer,
// invariants inner).
type Report struct {
	SchemaHash string    `json:"schema_hash"`
	Findings   []Finding `json:"findings"`
}

// Finding returns the finding for the pair, if present.
func (r *Report) Finding(op, inv string) (Finding, bool) {
	for _, f := range r.Findings {
		if f.Operation == op && f.Invariant == inv {
			return f, true
		}
	}
	return Finding{}, false
}

// Inconclusive lists the invariants the named operation could not be
// proven to preserve. The executor re-checks exactly these at runtime.
func (r *Report) Inconclusive(op string) []string {
	var out []string
	for _, f := range r.Findings {
		if f.Operation == op && f.Verdict == VerdictInconclusive {
			out = append(out, f.Invariant)
		}
	}
	return out
}

// AnyDisproven reports whether some pair has a counterexample. A schema
// with a disproven pair should not be deployed.
func (r *Report) AnyDisproven() bool {
	for _, f := range r.Findings {
		if f.Verdict == VerdictDisproven {
			return true
		}
	}
	return false
}
