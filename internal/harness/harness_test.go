package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoryBasicScenario(t *testing.T) {
	res, err := RunFile("testdata/story_basic.yaml")
	require.NoError(t, err)

	require.Len(t, res.Events, 5)
	assert.Equal(t, "applied", res.Events[0].Outcome)
	assert.Equal(t, "PRECONDITION_VIOLATION", res.Events[1].Outcome)
	assert.Equal(t, "applied", res.Events[2].Outcome)
	assert.Equal(t, "ok", res.Events[3].Outcome)
	assert.Equal(t, "INVARIANT_VIOLATED_AT_RUNTIME", res.Events[4].Outcome)

	// The rollback leaves the accepted vote and story in place.
	votes, ok := res.Final.Bag("votes")
	require.True(t, ok)
	assert.Equal(t, 1, votes.Len())
	stories, ok := res.Final.Bag("stories")
	require.True(t, ok)
	assert.Equal(t, 1, stories.Len())

	got, err := Snapshot(res)
	require.NoError(t, err)
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, res.Scenario, got)
}

func TestRunFailsWhenExpectedErrorDoesNotHappen(t *testing.T) {
	sc := &Scenario{
		Name:   "bad-expect",
		Schema: "story.cue",
		Tokens: []string{"t-1"},
		Steps: []Step{{
			Apply:  "insertVote",
			Args:   []any{map[string]any{"$id": "vote-1", "val": map[string]any{"id": 1, "user": "alice"}}},
			Expect: &Expect{Error: "PRECONDITION_VIOLATION"},
		}},
	}
	_, err := Run(sc, "testdata")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected error")
}

func TestRunFailsOnRowCountMismatch(t *testing.T) {
	two := 2
	sc := &Scenario{
		Name:   "bad-rows",
		Schema: "story.cue",
		Steps: []Step{{
			Query:  "selectStoryVotes",
			Args:   []any{"dave", "carol", "alice", 1},
			Expect: &Expect{Rows: &two},
		}},
	}
	_, err := Run(sc, "testdata")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 2")
}

func TestSeedBypassesOperations(t *testing.T) {
	sc := &Scenario{
		Name:   "seeded",
		Schema: "story.cue",
		Tokens: []string{"t-1"},
		Seed: []SeedStep{{
			State:  "votes",
			Values: []any{map[string]any{"$id": "vote-9", "val": map[string]any{"id": 9, "user": "erin"}}},
		}},
		Steps: []Step{{
			Apply:  "insertVote",
			Args:   []any{map[string]any{"$id": "vote-10", "val": map[string]any{"id": 9, "user": "frank"}}},
			Expect: &Expect{Error: "PRECONDITION_VIOLATION"},
		}},
	}
	res, err := Run(sc, "testdata")
	require.NoError(t, err)
	votes, ok := res.Final.Bag("votes")
	require.True(t, ok)
	assert.Equal(t, 1, votes.Len())
}

func TestLoadScenarioValidation(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		t.Helper()
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		return path
	}

	_, err := LoadScenario(write("no-name.yaml", "schema: story.cue\nsteps: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing name")

	_, err = LoadScenario(write("no-schema.yaml", "name: x\nsteps: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing schema")

	_, err = LoadScenario(write("both.yaml",
		"name: x\nschema: story.cue\nsteps:\n  - apply: a\n    query: b\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one")

	_, err = LoadScenario(filepath.Join(dir, "absent.yaml"))
	require.Error(t, err)
}
