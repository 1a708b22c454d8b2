package store

import (
	"context"
	"fmt"

	"github.com/roach88/relcheck/internal/ir"
	"github.com/roach88/relcheck/internal/state"
)

// AppendApplied inserts one applied-operation record. Parameters are
// serialized to canonical JSON per RFC 8785 for deterministic replay.
//
// Uses ON CONFLICT(id) DO NOTHING for idempotency - re-appending the same
// content-addressed record is silently ignored. Other constraint
// violations (a different record claiming an existing seq) still fail.
func (s *Store) AppendApplied(ctx context.Context, schemaHash string, rec state.Applied) error {
	paramsJSON, err := ir.MarshalParams(rec.Params)
	if err != nil {
		return fmt.Errorf("append applied: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO applied_ops
		(id, seq, token, op, params, schema_hash)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Seq,
		rec.Token,
		rec.Op,
		string(paramsJSON),
		schemaHash,
	)
	if err != nil {
		return fmt.Errorf("append applied: %w", err)
	}

	return nil
}

// journalSink adapts the store to the executor's Journal interface, bound
// to a context and schema hash.
type journalSink struct {
	store      *Store
	ctx        context.Context
	schemaHash string
}

func (j journalSink) Append(rec state.Applied) error {
	return j.store.AppendApplied(j.ctx, j.schemaHash, rec)
}

// Journal returns a state.Journal writing to this store under the given
// schema hash. The context bounds every append issued through it.
func (s *Store) Journal(ctx context.Context, schemaHash string) state.Journal {
	return journalSink{store: s, ctx: ctx, schemaHash: schemaHash}
}
