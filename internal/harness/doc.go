// Package harness runs YAML conformance scenarios against a schema.
//
// A scenario names a schema document, optional seeded state, and a list of
// steps: operation applications with expected outcomes and queries with
// expected row counts. The runner executes the steps through a real
// executor and records an event per step; the event trace serializes to
// canonical JSON for golden comparison, so a scenario's behavior is pinned
// byte for byte.
//
// Transaction tokens come from a fixed sequence declared in the scenario,
// keeping traces deterministic.
package harness
