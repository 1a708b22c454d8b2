package loader

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relcheck/internal/ir"
	"github.com/roach88/relcheck/internal/testutil"
)

func TestLoadFileStorySchema(t *testing.T) {
	s, err := LoadFile(filepath.Join("testdata", "story.cue"))
	require.NoError(t, err)

	// The document mirrors the in-code fixture declaration for
	// declaration; the schema hash covers types, states, invariants,
	// and operations including rendered expression trees.
	want := testutil.StorySchema()
	assert.Equal(t, ir.SchemaHash(want), ir.SchemaHash(s))

	require.Len(t, s.Queries, 1)
	wq, _ := want.Query("selectStoryVotes")
	gq, ok := s.Query("selectStoryVotes")
	require.True(t, ok)
	assert.Equal(t, wq.Comp.String(), gq.Comp.String())
	assert.Equal(t, wq.Params, gq.Params)
}

func TestLoadBytesRejectsUnknownKind(t *testing.T) {
	doc := `
states: [{name: "votes", elem: "Vote"}]
types: [{name: "Vote", handle: true, fields: [{name: "val", type: "int"}]}]
invariants: [{name: "broken", body: {kind: "xor", of: []}}]
`
	_, err := LoadBytes("inline.cue", []byte(doc))
	require.Error(t, err)
}

func TestLoadBytesRejectsNonConcreteDocument(t *testing.T) {
	doc := `
states: [{name: "votes", elem: string}]
`
	_, err := LoadBytes("inline.cue", []byte(doc))
	require.Error(t, err)

	var le *LoadError
	assert.ErrorAs(t, err, &le)
}

func TestLoadBytesRunsSchemaValidation(t *testing.T) {
	// Structurally valid document, semantically broken: the invariant
	// references an undeclared state bag.
	doc := `
types: [{name: "Vote", handle: true, fields: [{name: "val", type: "int"}]}]
states: [{name: "votes", elem: "Vote"}]
invariants: [{
	name: "overBallots"
	body: {
		kind: "exists"
		clauses: [{var: "v", source: {kind: "state", name: "ballots"}}]
	}
}]
`
	_, err := LoadBytes("inline.cue", []byte(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ballots")
}

func TestLoadBytesRejectsMalformedCUE(t *testing.T) {
	_, err := LoadBytes("inline.cue", []byte("states: [{name:"))
	require.Error(t, err)
}
