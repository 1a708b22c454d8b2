// Package state holds the authoritative bags and applies operations to
// them transactionally.
//
// The Executor is the single writer: every Apply takes the executor mutex,
// evaluates the operation's precondition against the current state, applies
// the effects to a cloned state, re-checks any invariant the verifier left
// inconclusive for that operation, and only then swaps the clone in. A
// failed precondition, a runtime invariant violation, or a journal error
// leaves the visible state untouched.
//
// Each successful application is stamped with a strictly increasing
// sequence number from a logical clock and a transaction token (UUIDv7 in
// production, a fixed sequence in tests), and optionally appended to a
// journal for durable replay.
package state
