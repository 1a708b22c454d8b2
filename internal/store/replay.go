package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/relcheck/internal/ir"
	"github.com/roach88/relcheck/internal/state"
)

// Replay rebuilds an executor by re-applying the journal in seq order.
//
// Tokens are replayed verbatim, so the rebuilt records match the journaled
// ones byte for byte. Replay re-runs preconditions and runtime invariant
// checks; a journal whose records no longer apply cleanly (or whose seqs
// do not line up) indicates corruption or schema drift and fails rather
// than producing a silently different state.
//
// The returned executor continues journaling to this store.
func (s *Store) Replay(ctx context.Context, schema *ir.Schema, opts ...state.Option) (*state.Executor, error) {
	recs, err := s.ReadAll(ctx, schema)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	tokens := make([]string, len(recs))
	for i, rec := range recs {
		tokens[i] = rec.Token
	}

	// Replay applies against a fresh clock; appends are idempotent on the
	// content-addressed id, so journaling during replay rewrites nothing.
	opts = append(opts,
		state.WithTokenGenerator(&replayTokens{tokens: tokens, fallback: state.UUIDv7Generator{}}),
		state.WithJournal(s.Journal(ctx, ir.SchemaHash(schema))),
	)
	exec, err := state.New(schema, opts...)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	for _, rec := range recs {
		got, err := exec.Apply(ctx, rec.Op, rec.Params)
		if err != nil {
			return nil, fmt.Errorf("replay seq %d (%s): %w", rec.Seq, rec.Op, err)
		}
		if got.Seq != rec.Seq {
			return nil, fmt.Errorf("replay seq %d (%s): journal gap, rebuilt as seq %d", rec.Seq, rec.Op, got.Seq)
		}
		if got.ID != rec.ID {
			return nil, fmt.Errorf("replay seq %d (%s): record id diverged", rec.Seq, rec.Op)
		}
	}
	return exec, nil
}

// replayTokens replays journaled tokens in order, then falls back to fresh
// ones for applications after the replayed history.
type replayTokens struct {
	mu       sync.Mutex
	tokens   []string
	idx      int
	fallback state.TokenGenerator
}

func (g *replayTokens) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx < len(g.tokens) {
		token := g.tokens[g.idx]
		g.idx++
		return token
	}
	return g.fallback.Generate()
}
