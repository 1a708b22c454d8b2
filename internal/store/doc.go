// Package store is the durable journal of applied operations, backed by
// SQLite.
//
// The journal is not the semantic store: the authoritative bags live in
// memory in the state package. The journal records every committed
// application (content-addressed id, seq, token, operation, canonical
// parameter JSON) so a restarted process can rebuild a structurally equal
// state by replaying the records in seq order through a fresh executor.
//
// Records for a different schema hash are rejected at replay time rather
// than silently misinterpreted.
package store
