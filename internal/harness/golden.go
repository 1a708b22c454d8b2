package harness

import (
	"github.com/roach88/relcheck/internal/ir"
)

// Snapshot renders a run's event trace as one canonical-JSON document,
// suitable for byte-exact golden comparison. Hashes and wall-clock data
// never appear in the snapshot, so goldens stay stable across runs.
func Snapshot(res *Result) ([]byte, error) {
	events := make([]ir.Value, 0, len(res.Events))
	for _, ev := range res.Events {
		events = append(events, eventRow(ev))
	}
	doc := ir.NewRow(
		[]string{"scenario", "events"},
		map[string]ir.Value{
			"scenario": ir.String(res.Scenario),
			"events":   ir.NewBag(events...),
		},
	)
	return ir.MarshalCanonical(doc)
}

func eventRow(ev Event) ir.Value {
	names := []string{"kind", "name", "outcome"}
	fields := map[string]ir.Value{
		"kind":    ir.String(ev.Kind),
		"name":    ir.String(ev.Name),
		"outcome": ir.String(ev.Outcome),
	}
	switch {
	case ev.Kind == "apply" && ev.Outcome == "applied":
		names = append(names, "seq", "token")
		fields["seq"] = ir.NewInt(ev.Seq)
		fields["token"] = ir.String(ev.Token)
	case ev.Kind == "query":
		names = append(names, "rows")
		fields["rows"] = ir.NewBag(ev.Rows...)
	}
	return ir.NewRow(names, fields)
}
