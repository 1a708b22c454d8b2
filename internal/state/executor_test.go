package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relcheck/internal/ir"
	"github.com/roach88/relcheck/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newExecutor(t *testing.T, opts ...Option) *Executor {
	t.Helper()
	s := testutil.StorySchema()
	opts = append([]Option{
		WithLogger(quietLogger()),
		WithTokenGenerator(NewFixedGenerator("tx-1", "tx-2", "tx-3", "tx-4", "tx-5")),
	}, opts...)
	e, err := New(s, opts...)
	require.NoError(t, err)
	return e
}

func TestApplyStampsRecords(t *testing.T) {
	e := newExecutor(t)
	ctx := context.Background()
	v := testutil.NewVote(e.schema, "vote-1", 1, "alice")

	rec, err := e.Apply(ctx, "insertVote", []ir.Value{v})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Seq)
	assert.Equal(t, "tx-1", rec.Token)
	assert.Equal(t, "insertVote", rec.Op)
	assert.NotEmpty(t, rec.ID)

	st := e.Snapshot()
	votes, ok := st.Bag("votes")
	require.True(t, ok)
	assert.True(t, votes.Contains(v))
	assert.Equal(t, int64(1), e.Clock().Current())
}

func TestApplyUnknownOperation(t *testing.T) {
	e := newExecutor(t)
	_, err := e.Apply(context.Background(), "mergeStories", nil)
	assert.True(t, IsUnknownOperation(err))
}

func TestApplyParameterMismatch(t *testing.T) {
	e := newExecutor(t)
	_, err := e.Apply(context.Background(), "insertVote", []ir.Value{ir.NewInt(1)})

	var ee *ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ErrCodeParameter, ee.Code)
	assert.True(t, ir.IsParameterError(err))
}

// A duplicate vote id must be refused by the precondition, leaving the
// state exactly as it was.
func TestApplyDuplicateVoteIDRefused(t *testing.T) {
	e := newExecutor(t)
	ctx := context.Background()

	v1 := testutil.NewVote(e.schema, "vote-1", 7, "alice")
	_, err := e.Apply(ctx, "insertVote", []ir.Value{v1})
	require.NoError(t, err)
	before := e.Snapshot()

	// Distinct handle, clashing id.
	v2 := testutil.NewVote(e.schema, "vote-2", 7, "bob")
	_, err = e.Apply(ctx, "insertVote", []ir.Value{v2})
	assert.True(t, IsPreconditionViolation(err))

	assert.True(t, Equal(before, e.Snapshot()))
	assert.Equal(t, int64(1), e.Clock().Current(), "refused application must not advance the clock")
}

func TestApplyPreconditionGuardsStoryEmbedding(t *testing.T) {
	e := newExecutor(t)
	ctx := context.Background()

	// The embedded vote is not in the global bag yet.
	v := testutil.NewVote(e.schema, "vote-1", 1, "alice")
	story := testutil.NewStory(e.schema, "story-1", "title", "carol", nil, v)
	_, err := e.Apply(ctx, "insertStory", []ir.Value{story})
	assert.True(t, IsPreconditionViolation(err))

	// After the vote is inserted the same story is accepted.
	_, err = e.Apply(ctx, "insertVote", []ir.Value{v})
	require.NoError(t, err)
	_, err = e.Apply(ctx, "insertStory", []ir.Value{story})
	require.NoError(t, err)
}

// removeVote is inconclusive against the embedding invariant, so the
// executor re-checks it: removing a vote still embedded in a story must
// roll back.
func TestApplyRuntimeInvariantRollback(t *testing.T) {
	e := newExecutor(t)
	ctx := context.Background()

	v := testutil.NewVote(e.schema, "vote-1", 1, "alice")
	story := testutil.NewStory(e.schema, "story-1", "title", "carol", nil, v)
	_, err := e.Apply(ctx, "insertVote", []ir.Value{v})
	require.NoError(t, err)
	_, err = e.Apply(ctx, "insertStory", []ir.Value{story})
	require.NoError(t, err)
	before := e.Snapshot()

	_, err = e.Apply(ctx, "removeVote", []ir.Value{v})
	require.True(t, IsInvariantViolation(err))
	var ee *ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "embeddedVotesGlobal", ee.Invariant)

	assert.True(t, Equal(before, e.Snapshot()), "rollback must leave the state untouched")

	// A vote with no embedding story removes cleanly.
	loose := testutil.NewVote(e.schema, "vote-2", 2, "bob")
	_, err = e.Apply(ctx, "insertVote", []ir.Value{loose})
	require.NoError(t, err)
	_, err = e.Apply(ctx, "removeVote", []ir.Value{loose})
	require.NoError(t, err)
}

func TestApplyThenQueryRoundTrip(t *testing.T) {
	e := newExecutor(t)
	ctx := context.Background()

	v1 := testutil.NewVote(e.schema, "vote-1", 1, "alice")
	v2 := testutil.NewVote(e.schema, "vote-2", 2, "bob")
	story := testutil.NewStory(e.schema, "story-1", "title", "carol", nil, v1, v2)
	for _, args := range [][]ir.Value{{v1}, {v2}} {
		_, err := e.Apply(ctx, "insertVote", args)
		require.NoError(t, err)
	}
	_, err := e.Apply(ctx, "insertStory", []ir.Value{story})
	require.NoError(t, err)

	rows, err := e.Query(ctx, "selectStoryVotes", []ir.Value{
		ir.String("dave"), ir.String("carol"), ir.String("bob"), ir.NewInt(1),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	votes, _ := rows[0].(*ir.Rec).Field("votes")
	require.Equal(t, 1, votes.(*ir.Bag).Len())
	for v := range votes.(*ir.Bag).Values() {
		assert.Equal(t, "vote-2", v.(*ir.Rec).Ident)
	}

	// Querying never mutates state.
	after := e.Snapshot()
	rows2, err := e.Query(ctx, "selectStoryVotes", []ir.Value{
		ir.String("dave"), ir.String("carol"), ir.String("bob"), ir.NewInt(1),
	})
	require.NoError(t, err)
	assert.Len(t, rows2, 1)
	assert.True(t, Equal(after, e.Snapshot()))
}

type failingJournal struct{}

func (failingJournal) Append(Applied) error { return errors.New("disk full") }

type captureJournal struct {
	recs []Applied
}

func (j *captureJournal) Append(rec Applied) error {
	j.recs = append(j.recs, rec)
	return nil
}

func TestApplyJournalErrorAborts(t *testing.T) {
	e := newExecutor(t, WithJournal(failingJournal{}))
	ctx := context.Background()
	before := e.Snapshot()

	v := testutil.NewVote(e.schema, "vote-1", 1, "alice")
	_, err := e.Apply(ctx, "insertVote", []ir.Value{v})
	assert.True(t, IsJournalError(err))
	assert.True(t, Equal(before, e.Snapshot()))
}

func TestApplyAppendsToJournalInOrder(t *testing.T) {
	j := &captureJournal{}
	e := newExecutor(t, WithJournal(j))
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		v := testutil.NewVote(e.schema, fmt.Sprintf("vote-%d", i), int64(i), "alice")
		_, err := e.Apply(ctx, "insertVote", []ir.Value{v})
		require.NoError(t, err)
	}
	require.Len(t, j.recs, 3)
	for i, rec := range j.recs {
		assert.Equal(t, int64(i+1), rec.Seq)
		assert.Equal(t, "insertVote", rec.Op)
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	e := newExecutor(t)
	ctx := context.Background()
	snap := e.Snapshot()

	v := testutil.NewVote(e.schema, "vote-1", 1, "alice")
	_, err := e.Apply(ctx, "insertVote", []ir.Value{v})
	require.NoError(t, err)

	votes, _ := snap.Bag("votes")
	assert.Equal(t, 0, votes.Len())
}

func TestSeedTypeChecks(t *testing.T) {
	e := newExecutor(t)
	assert.Error(t, e.Seed("votes", ir.NewInt(1)))
	assert.Error(t, e.Seed("ballots", testutil.NewVote(e.schema, "vote-1", 1, "alice")))

	require.NoError(t, e.Seed("votes", testutil.NewVote(e.schema, "vote-2", 2, "bob")))
	votes, _ := e.Snapshot().Bag("votes")
	assert.Equal(t, 1, votes.Len())
}

func TestApplyRespectsContext(t *testing.T) {
	e := newExecutor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Apply(ctx, "insertVote", []ir.Value{testutil.NewVote(e.schema, "vote-1", 1, "alice")})
	assert.ErrorIs(t, err, context.Canceled)
}

type flakyJournal struct {
	failures int
	recs     []Applied
}

func (j *flakyJournal) Append(rec Applied) error {
	if j.failures > 0 {
		j.failures--
		return errors.New("disk full")
	}
	j.recs = append(j.recs, rec)
	return nil
}

// A failed append must not consume a seq: the next successful application
// journals as seq 1 and the history stays dense.
func TestApplyJournalErrorKeepsSeq(t *testing.T) {
	j := &flakyJournal{failures: 1}
	e := newExecutor(t, WithJournal(j))
	ctx := context.Background()

	v := testutil.NewVote(e.schema, "vote-1", 1, "alice")
	_, err := e.Apply(ctx, "insertVote", []ir.Value{v})
	assert.True(t, IsJournalError(err))
	assert.Equal(t, int64(0), e.Clock().Current())

	rec, err := e.Apply(ctx, "insertVote", []ir.Value{v})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Seq)
	require.Len(t, j.recs, 1)
	assert.Equal(t, int64(1), j.recs[0].Seq)
}
