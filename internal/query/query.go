// Package query executes parameterized comprehension queries against a bag
// source, producing ordered result rows.
//
// Rows follow the generator bags' insertion order; beyond that the row
// order is an implementation detail, not a guarantee — queries that need a
// declared order must encode it in their head. Queries are read-only:
// running one never mutates state, and running the same query twice against
// unmutated state yields structurally identical sequences.
package query

import (
	"github.com/roach88/relcheck/internal/eval"
	"github.com/roach88/relcheck/internal/ir"
)

// Engine runs the queries declared by a schema.
type Engine struct {
	schema *ir.Schema
}

// New creates a query engine over the schema.
func New(schema *ir.Schema) *Engine {
	return &Engine{schema: schema}
}

// Run executes the named query with the given arguments against src.
// Parameter arity/type mismatches fail with a ParameterError before any
// evaluation begins. Result rows are the comprehension's head values in
// binding order; nested sub-comprehensions are materialized per row.
func (e *Engine) Run(name string, args []ir.Value, src eval.BagSource) ([]ir.Value, error) {
	q, ok := e.schema.Query(name)
	if !ok {
		return nil, &ir.ParameterError{Target: name, Index: -1, Message: "unknown query"}
	}
	bound, err := ir.BindParams(e.schema, q.Name, q.Params, args)
	if err != nil {
		return nil, err
	}
	env := eval.NewEnv(src, bound)
	return eval.Comprehend(q.Comp, env)
}
