package store

import (
	"context"
	"fmt"

	"github.com/roach88/relcheck/internal/ir"
	"github.com/roach88/relcheck/internal/state"
)

// ReadAll returns every journaled record for the schema, in seq order.
// Parameter JSON is decoded against the schema's operation declarations.
//
// Records written under a different schema hash fail the read: a journal
// must be replayed by the schema that produced it.
func (s *Store) ReadAll(ctx context.Context, schema *ir.Schema) ([]state.Applied, error) {
	want := ir.SchemaHash(schema)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, token, op, params, schema_hash
		FROM applied_ops
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query applied_ops: %w", err)
	}
	defer rows.Close()

	var recs []state.Applied
	for rows.Next() {
		var (
			rec        state.Applied
			paramsJSON string
			schemaHash string
		)
		if err := rows.Scan(&rec.ID, &rec.Seq, &rec.Token, &rec.Op, &paramsJSON, &schemaHash); err != nil {
			return nil, fmt.Errorf("scan applied record: %w", err)
		}
		if schemaHash != want {
			return nil, fmt.Errorf("record %s (seq %d) was applied under schema %s, replaying schema is %s",
				rec.ID, rec.Seq, schemaHash, want)
		}
		decl, ok := schema.Operation(rec.Op)
		if !ok {
			return nil, fmt.Errorf("record %s (seq %d): schema declares no operation %q", rec.ID, rec.Seq, rec.Op)
		}
		rec.Params, err = ir.UnmarshalParams(schema, rec.Op, decl.Params, []byte(paramsJSON))
		if err != nil {
			return nil, fmt.Errorf("record %s (seq %d): %w", rec.ID, rec.Seq, err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied_ops: %w", err)
	}

	if recs == nil {
		recs = []state.Applied{}
	}
	return recs, nil
}

// LastSeq returns the highest journaled sequence number, 0 when empty.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM applied_ops`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	return seq, nil
}
