// Package testutil provides the shared story/votes fixture schema used by
// evaluator, query, verifier, executor, and harness tests.
//
// The fixture models the denormalized story+votes shape: each Vote is a
// handle appearing both in the global votes bag and embedded inside the
// owning Story's nested bag. Consistency between the two is an explicit
// cross-bag invariant kept by operation design, not by the store.
package testutil

import (
	"fmt"

	"github.com/roach88/relcheck/internal/ir"
)

// StorySchema builds the fixture schema:
//
//	types:
//	  VoteVal  { id int, user string }
//	  Vote     handle { val VoteVal }
//	  StoryVal { title string, author string, hiddenFrom bag<string>, votes bag<Vote> }
//	  Story    handle { val StoryVal }
//	states:
//	  votes   bag<Vote>
//	  stories bag<Story>
//	invariants:
//	  voteIdsUnique       unique [v.val.id | v <- votes]
//	  embeddedVotesGlobal all [(v in votes) | s <- stories, v <- s.val.votes]
//	operations:
//	  insertStory(s) assume all [(v in votes) | v <- s.val.votes]
//	  insertVote(v)  assume !exists [v0 <- votes, v0.val.id == v.val.id]
//	  removeVote(v)  assume (v in votes)
//	queries:
//	  selectStoryVotes(viewer, author, voteUser, minId)
func StorySchema() *ir.Schema {
	return &ir.Schema{
		Types: []ir.RecordType{
			{Name: "VoteVal", Fields: []ir.Field{
				{Name: "id", Type: ir.IntType()},
				{Name: "user", Type: ir.StringType()},
			}},
			{Name: "Vote", Handle: true, Fields: []ir.Field{
				{Name: "val", Type: ir.RecordOf("VoteVal")},
			}},
			{Name: "StoryVal", Fields: []ir.Field{
				{Name: "title", Type: ir.StringType()},
				{Name: "author", Type: ir.StringType()},
				{Name: "hiddenFrom", Type: ir.BagOf(ir.StringType())},
				{Name: "votes", Type: ir.BagOf(ir.RecordOf("Vote"))},
			}},
			{Name: "Story", Handle: true, Fields: []ir.Field{
				{Name: "val", Type: ir.RecordOf("StoryVal")},
			}},
		},
		States: []ir.StateDecl{
			{Name: "votes", Elem: ir.RecordOf("Vote")},
			{Name: "stories", Elem: ir.RecordOf("Story")},
		},
		Invariants: []ir.Invariant{
			{
				Name: "voteIdsUnique",
				Body: ir.Unique{Comp: &ir.Comprehension{
					Head: ir.Proj{X: ir.Proj{X: ir.Ref{Name: "v"}, Name: "val"}, Name: "id"},
					Clauses: []ir.Clause{
						{Var: "v", Source: ir.StateRef{Name: "votes"}},
					},
				}},
			},
			{
				Name: "embeddedVotesGlobal",
				Body: ir.All{Comp: &ir.Comprehension{
					Head: ir.In{Elem: ir.Ref{Name: "v"}, Bag: ir.StateRef{Name: "votes"}},
					Clauses: []ir.Clause{
						{Var: "s", Source: ir.StateRef{Name: "stories"}},
						{Var: "v", Source: ir.Proj{X: ir.Proj{X: ir.Ref{Name: "s"}, Name: "val"}, Name: "votes"}},
					},
				}},
			},
		},
		Operations: []ir.Operation{
			{
				Name:   "insertStory",
				Params: []ir.Param{{Name: "s", Type: ir.RecordOf("Story")}},
				Assume: ir.All{Comp: &ir.Comprehension{
					Head: ir.In{Elem: ir.Ref{Name: "v"}, Bag: ir.StateRef{Name: "votes"}},
					Clauses: []ir.Clause{
						{Var: "v", Source: ir.Proj{X: ir.Proj{X: ir.Ref{Name: "s"}, Name: "val"}, Name: "votes"}},
					},
				}},
				Effects: []ir.Effect{
					{Kind: ir.EffectInsert, State: "stories", Arg: ir.Ref{Name: "s"}},
				},
			},
			{
				Name:   "insertVote",
				Params: []ir.Param{{Name: "v", Type: ir.RecordOf("Vote")}},
				Assume: ir.Not{X: ir.Exists{Comp: &ir.Comprehension{
					Clauses: []ir.Clause{
						{Var: "v0", Source: ir.StateRef{Name: "votes"}},
						{Cond: ir.Cmp{Op: ir.OpEq,
							L: ir.Proj{X: ir.Proj{X: ir.Ref{Name: "v0"}, Name: "val"}, Name: "id"},
							R: ir.Proj{X: ir.Proj{X: ir.Ref{Name: "v"}, Name: "val"}, Name: "id"},
						}},
					},
				}}},
				Effects: []ir.Effect{
					{Kind: ir.EffectInsert, State: "votes", Arg: ir.Ref{Name: "v"}},
				},
			},
			{
				// The precondition does not rule out a story still embedding
				// the vote, so embeddedVotesGlobal stays inconclusive at
				// verification time and is re-checked at runtime.
				Name:   "removeVote",
				Params: []ir.Param{{Name: "v", Type: ir.RecordOf("Vote")}},
				Assume: ir.In{Elem: ir.Ref{Name: "v"}, Bag: ir.StateRef{Name: "votes"}},
				Effects: []ir.Effect{
					{Kind: ir.EffectRemove, State: "votes", Arg: ir.Ref{Name: "v"}},
				},
			},
		},
		Queries: []ir.Query{
			{
				Name: "selectStoryVotes",
				Params: []ir.Param{
					{Name: "viewer", Type: ir.StringType()},
					{Name: "author", Type: ir.StringType()},
					{Name: "voteUser", Type: ir.StringType()},
					{Name: "minId", Type: ir.IntType()},
				},
				Comp: &ir.Comprehension{
					Head: ir.Tuple{Fields: []ir.TupleField{
						{Name: "story", X: ir.Ref{Name: "s"}},
						{Name: "votes", X: ir.CompBag{Comp: &ir.Comprehension{
							Head: ir.Ref{Name: "v"},
							Clauses: []ir.Clause{
								{Var: "v", Source: ir.Proj{X: ir.Proj{X: ir.Ref{Name: "s"}, Name: "val"}, Name: "votes"}},
								{Cond: ir.Cmp{Op: ir.OpEq,
									L: ir.Proj{X: ir.Proj{X: ir.Ref{Name: "v"}, Name: "val"}, Name: "user"},
									R: ir.Ref{Name: "voteUser"},
								}},
								{Cond: ir.Cmp{Op: ir.OpGe,
									L: ir.Proj{X: ir.Proj{X: ir.Ref{Name: "v"}, Name: "val"}, Name: "id"},
									R: ir.Ref{Name: "minId"},
								}},
							},
						}}},
					}},
					Clauses: []ir.Clause{
						{Var: "s", Source: ir.StateRef{Name: "stories"}},
						{Cond: ir.Not{X: ir.In{Elem: ir.Ref{Name: "viewer"},
							Bag: ir.Proj{X: ir.Proj{X: ir.Ref{Name: "s"}, Name: "val"}, Name: "hiddenFrom"}}}},
						{Cond: ir.Cmp{Op: ir.OpEq,
							L: ir.Proj{X: ir.Proj{X: ir.Ref{Name: "s"}, Name: "val"}, Name: "author"},
							R: ir.Ref{Name: "author"},
						}},
					},
				},
			},
		},
	}
}

// NewVote builds a Vote handle with the given identity, id field, and user.
func NewVote(s *ir.Schema, ident string, id int64, user string) *ir.Rec {
	vvt, ok := s.Type("VoteVal")
	if !ok {
		panic("fixture schema missing VoteVal")
	}
	val, err := ir.NewRec(vvt, map[string]ir.Value{
		"id":   ir.NewInt(id),
		"user": ir.String(user),
	})
	if err != nil {
		panic(fmt.Sprintf("fixture vote val: %v", err))
	}
	vt, _ := s.Type("Vote")
	v, err := ir.NewHandle(vt, ident, map[string]ir.Value{"val": val})
	if err != nil {
		panic(fmt.Sprintf("fixture vote: %v", err))
	}
	return v
}

// NewStory builds a Story handle. hiddenFrom lists users the story is
// hidden from; votes are the embedded vote handles.
func NewStory(s *ir.Schema, ident, title, author string, hiddenFrom []string, votes ...*ir.Rec) *ir.Rec {
	hidden := ir.NewBag()
	for _, u := range hiddenFrom {
		hidden.Insert(ir.String(u))
	}
	embedded := ir.NewBag()
	for _, v := range votes {
		embedded.Insert(v)
	}
	svt, ok := s.Type("StoryVal")
	if !ok {
		panic("fixture schema missing StoryVal")
	}
	val, err := ir.NewRec(svt, map[string]ir.Value{
		"title":      ir.String(title),
		"author":     ir.String(author),
		"hiddenFrom": hidden,
		"votes":      embedded,
	})
	if err != nil {
		panic(fmt.Sprintf("fixture story val: %v", err))
	}
	st, _ := s.Type("Story")
	story, err := ir.NewHandle(st, ident, map[string]ir.Value{"val": val})
	if err != nil {
		panic(fmt.Sprintf("fixture story: %v", err))
	}
	return story
}
