package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The apply, query, and replay commands share one journal database here,
// exercising the persist-then-rebuild path end to end.
func TestApplyQueryReplayRoundtrip(t *testing.T) {
	db := filepath.Join(t.TempDir(), "journal.db")

	out, err := execute(t, "apply", "testdata/story.cue", "insertVote",
		"--db", db, "--args", `[{"$id":"vote-1","val":{"id":1,"user":"alice"}}]`)
	require.NoError(t, err)
	assert.Contains(t, out, "applied insertVote: seq=1")

	// Duplicate id is refused and leaves the journal untouched.
	out, err = execute(t, "apply", "testdata/story.cue", "insertVote",
		"--db", db, "--args", `[{"$id":"vote-2","val":{"id":1,"user":"bob"}}]`)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "PRECONDITION_VIOLATION")

	out, err = execute(t, "apply", "testdata/story.cue", "insertStory",
		"--db", db, "--args",
		`[{"$id":"story-1","val":{"title":"First","author":"carol","hiddenFrom":[],"votes":[{"$id":"vote-1","val":{"id":1,"user":"alice"}}]}}]`)
	require.NoError(t, err)
	assert.Contains(t, out, "seq=2")

	out, err = execute(t, "query", "testdata/story.cue", "selectStoryVotes",
		"--db", db, "--args", `["dave","carol","alice",1]`)
	require.NoError(t, err)
	assert.Contains(t, out, `"$id":"story-1"`)
	assert.Contains(t, out, "1 rows")

	out, err = execute(t, "replay", "testdata/story.cue", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "replayed through seq 2")
	assert.Contains(t, out, "votes: 1 values")
	assert.Contains(t, out, "stories: 1 values")
}

func TestQueryWithoutDatabase(t *testing.T) {
	out, err := execute(t, "query", "testdata/story.cue", "selectStoryVotes",
		"--args", `["dave","carol","alice",1]`)
	require.NoError(t, err)
	assert.Contains(t, out, "0 rows")
}

func TestApplyUnknownOperation(t *testing.T) {
	db := filepath.Join(t.TempDir(), "journal.db")
	out, err := execute(t, "apply", "testdata/story.cue", "dropVotes", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "UNKNOWN_OPERATION")
}

func TestApplyMalformedArgs(t *testing.T) {
	db := filepath.Join(t.TempDir(), "journal.db")
	_, err := execute(t, "apply", "testdata/story.cue", "insertVote",
		"--db", db, "--args", `[{"val":{"id":"not-an-int","user":"x"}}]`)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReplayMissingDatabaseFlag(t *testing.T) {
	_, err := execute(t, "replay", "testdata/story.cue")
	require.Error(t, err)
}
