package store

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/roach88/relcheck/internal/ir"
	"github.com/roach88/relcheck/internal/state"
	"github.com/roach88/relcheck/internal/testutil"
)

func quiet() state.Option {
	return state.WithLogger(slog.New(slog.DiscardHandler))
}

// A journaled run, replayed into a fresh executor, must rebuild a
// structurally equal state with identical record ids and tokens.
func TestReplayRebuildsState(t *testing.T) {
	ctx := context.Background()
	schema := testutil.StorySchema()
	path := filepath.Join(t.TempDir(), "journal.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	exec, err := state.New(schema, quiet(),
		state.WithJournal(s.Journal(ctx, ir.SchemaHash(schema))),
		state.WithTokenGenerator(state.NewFixedGenerator("tx-1", "tx-2", "tx-3")),
	)
	if err != nil {
		t.Fatalf("state.New() failed: %v", err)
	}

	v1 := testutil.NewVote(schema, "vote-1", 1, "alice")
	v2 := testutil.NewVote(schema, "vote-2", 2, "bob")
	story := testutil.NewStory(schema, "story-1", "title", "carol", nil, v1)
	for _, step := range []struct {
		op   string
		args []ir.Value
	}{
		{"insertVote", []ir.Value{v1}},
		{"insertVote", []ir.Value{v2}},
		{"insertStory", []ir.Value{story}},
	} {
		if _, err := exec.Apply(ctx, step.op, step.args); err != nil {
			t.Fatalf("Apply(%s) failed: %v", step.op, err)
		}
	}
	want := exec.Snapshot()
	s.Close()

	// Fresh process: reopen and replay.
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	rebuilt, err := s2.Replay(ctx, schema, quiet())
	if err != nil {
		t.Fatalf("Replay() failed: %v", err)
	}
	if !state.Equal(want, rebuilt.Snapshot()) {
		t.Error("replayed state differs from original")
	}
	if got := rebuilt.Clock().Current(); got != 3 {
		t.Errorf("replayed clock = %d, want 3", got)
	}

	// Replay journaled idempotently: still three records.
	recs, err := s2.ReadAll(ctx, schema)
	if err != nil {
		t.Fatalf("ReadAll() failed: %v", err)
	}
	if len(recs) != 3 {
		t.Errorf("journal has %d records after replay, want 3", len(recs))
	}
	for i, rec := range recs {
		if rec.Seq != int64(i+1) {
			t.Errorf("record %d has seq %d", i, rec.Seq)
		}
	}

	// The rebuilt executor keeps journaling.
	v3 := testutil.NewVote(schema, "vote-3", 3, "dave")
	rec, err := rebuilt.Apply(ctx, "insertVote", []ir.Value{v3})
	if err != nil {
		t.Fatalf("Apply() after replay failed: %v", err)
	}
	if rec.Seq != 4 {
		t.Errorf("post-replay seq = %d, want 4", rec.Seq)
	}
}

func TestReplayEmptyJournal(t *testing.T) {
	ctx := context.Background()
	schema := testutil.StorySchema()
	s := openTestStore(t)

	exec, err := s.Replay(ctx, schema, quiet())
	if err != nil {
		t.Fatalf("Replay() failed: %v", err)
	}
	if !state.Equal(state.NewState(schema), exec.Snapshot()) {
		t.Error("replay of empty journal is not the initial state")
	}
}

func TestReplayDetectsSeqGap(t *testing.T) {
	ctx := context.Background()
	schema := testutil.StorySchema()
	s := openTestStore(t)
	hash := ir.SchemaHash(schema)

	// Journal a record claiming seq 2 with nothing before it.
	v := testutil.NewVote(schema, "vote-1", 1, "alice")
	params := []ir.Value{v}
	id, err := ir.AppliedID("insertVote", params, 2)
	if err != nil {
		t.Fatalf("AppliedID() failed: %v", err)
	}
	rec := state.Applied{ID: id, Seq: 2, Token: "tx-1", Op: "insertVote", Params: params}
	if err := s.AppendApplied(ctx, hash, rec); err != nil {
		t.Fatalf("AppendApplied() failed: %v", err)
	}

	if _, err := s.Replay(ctx, schema, quiet()); err == nil {
		t.Error("Replay() accepted a journal with a seq gap")
	}
}

type transientJournal struct {
	inner    state.Journal
	failures int
}

func (j *transientJournal) Append(rec state.Applied) error {
	if j.failures > 0 {
		j.failures--
		return errors.New("disk full")
	}
	return j.inner.Append(rec)
}

// A transient append failure must not poison the journal: later
// applications take the seq the failed one never consumed, and replay
// accepts the history.
func TestReplayAfterTransientJournalError(t *testing.T) {
	ctx := context.Background()
	schema := testutil.StorySchema()
	path := filepath.Join(t.TempDir(), "journal.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	j := &transientJournal{inner: s.Journal(ctx, ir.SchemaHash(schema)), failures: 1}
	exec, err := state.New(schema, quiet(),
		state.WithJournal(j),
		state.WithTokenGenerator(state.NewFixedGenerator("tx-1", "tx-2", "tx-3")),
	)
	if err != nil {
		t.Fatalf("state.New() failed: %v", err)
	}

	v1 := testutil.NewVote(schema, "vote-1", 1, "alice")
	if _, err := exec.Apply(ctx, "insertVote", []ir.Value{v1}); !state.IsJournalError(err) {
		t.Fatalf("Apply() error = %v, want journal error", err)
	}
	rec, err := exec.Apply(ctx, "insertVote", []ir.Value{v1})
	if err != nil {
		t.Fatalf("Apply() after journal error failed: %v", err)
	}
	if rec.Seq != 1 {
		t.Errorf("seq after failed append = %d, want 1", rec.Seq)
	}
	v2 := testutil.NewVote(schema, "vote-2", 2, "bob")
	if _, err := exec.Apply(ctx, "insertVote", []ir.Value{v2}); err != nil {
		t.Fatalf("Apply(vote-2) failed: %v", err)
	}
	want := exec.Snapshot()
	s.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()
	rebuilt, err := s2.Replay(ctx, schema)
	if err != nil {
		t.Fatalf("Replay() failed: %v", err)
	}
	if !state.Equal(want, rebuilt.Snapshot()) {
		t.Error("replayed state differs from the live state")
	}
	if got := rebuilt.Clock().Current(); got != 2 {
		t.Errorf("replayed clock = %d, want 2", got)
	}
}
