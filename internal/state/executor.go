package state

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/relcheck/internal/eval"
	"github.com/roach88/relcheck/internal/ir"
	"github.com/roach88/relcheck/internal/query"
	"github.com/roach88/relcheck/internal/verify"
)

// Applied is the record of one committed operation application.
type Applied struct {
	// ID is the content-addressed record id: a hash of operation name,
	// canonical parameter encoding, and seq.
	ID string

	// Seq is the logical clock stamp; strictly increasing per executor.
	Seq int64

	// Token is the transaction token minted for this application.
	Token string

	// Op is the operation name.
	Op string

	// Params are the argument values, in declaration order.
	Params []ir.Value
}

// Journal receives the record of every committed application. Append runs
// before the commit: an error aborts the application and the state stays
// unchanged.
type Journal interface {
	Append(rec Applied) error
}

// Executor applies operations to the authoritative state.
//
// All mutation happens under the executor mutex; callers on any goroutine
// may invoke Apply and Query concurrently.
type Executor struct {
	mu      sync.Mutex
	schema  *ir.Schema
	state   *State
	queries *query.Engine
	report  *verify.Report
	clock   *Clock
	tokens  TokenGenerator
	journal Journal
	log     *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithJournal attaches a durable journal. Every committed application is
// appended before the commit becomes visible.
func WithJournal(j Journal) Option {
	return func(e *Executor) { e.journal = j }
}

// WithTokenGenerator overrides the transaction token source. Tests pass a
// FixedGenerator for deterministic records.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(e *Executor) { e.tokens = g }
}

// WithClock overrides the logical clock. Replay passes NewClockAt to
// resume from the last journaled seq.
func WithClock(c *Clock) Option {
	return func(e *Executor) { e.clock = c }
}

// WithLogger overrides the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.log = l }
}

// WithReport supplies a precomputed verification report. Without it the
// executor verifies the schema itself at construction.
func WithReport(r *verify.Report) Option {
	return func(e *Executor) { e.report = r }
}

// New validates the schema, verifies it (unless a report is supplied), and
// returns an executor over the empty initial state.
func New(schema *ir.Schema, opts ...Option) (*Executor, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	e := &Executor{
		schema:  schema,
		state:   NewState(schema),
		queries: query.New(schema),
		clock:   NewClock(),
		tokens:  UUIDv7Generator{},
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.report == nil {
		e.report = verify.VerifyAll(schema)
	}
	return e, nil
}

// Report returns the load-time verification report.
func (e *Executor) Report() *verify.Report { return e.report }

// Clock returns the executor's logical clock.
func (e *Executor) Clock() *Clock { return e.clock }

// Snapshot returns an independent copy of the current state.
func (e *Executor) Snapshot() *State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Snapshot()
}

// Seed inserts values directly into a state bag, bypassing operations.
// For tests and scenario setup; seeded values are still type-checked.
func (e *Executor) Seed(bag string, vs ...ir.Value) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Seed(bag, vs...)
}

// Apply runs the named operation with the given arguments.
//
// The sequence is: bind parameters, evaluate the precondition against the
// current state, apply the effects to a cloned state, re-check every
// invariant the verifier left inconclusive for this operation against the
// clone, append to the journal, swap the clone in. Any failure before the
// swap leaves the visible state untouched; effects are never partially
// visible.
func (e *Executor) Apply(ctx context.Context, op string, args []ir.Value) (Applied, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Applied{}, err
	}

	decl, ok := e.schema.Operation(op)
	if !ok {
		return Applied{}, &ExecutionError{Code: ErrCodeUnknownOperation, Op: op,
			Message: "schema declares no such operation"}
	}
	bound, err := ir.BindParams(e.schema, op, decl.Params, args)
	if err != nil {
		return Applied{}, &ExecutionError{Code: ErrCodeParameter, Op: op,
			Message: "argument binding failed", Err: err}
	}

	token := e.tokens.Generate()
	env := eval.NewEnv(e.state, bound)

	okPre, err := eval.EvalBool(decl.Assume, env)
	if err != nil {
		return Applied{}, &ExecutionError{Code: ErrCodeEval, Op: op, Token: token,
			Message: "precondition evaluation failed", Err: err}
	}
	if !okPre {
		return Applied{}, &ExecutionError{Code: ErrCodePrecondition, Op: op, Token: token,
			Message: "assume evaluated to false"}
	}

	// Effects evaluate against the pre-state environment and mutate the
	// clone only.
	next := e.state.Snapshot()
	for _, eff := range decl.Effects {
		v, err := eval.Eval(eff.Arg, env)
		if err != nil {
			return Applied{}, &ExecutionError{Code: ErrCodeEval, Op: op, Token: token,
				Message: "effect evaluation failed", Err: err}
		}
		b, ok := next.bags[eff.State]
		if !ok {
			return Applied{}, &ExecutionError{Code: ErrCodeEval, Op: op, Token: token,
				Message: "effect targets undeclared state " + eff.State}
		}
		switch eff.Kind {
		case ir.EffectInsert:
			b.Insert(v)
		case ir.EffectRemove:
			b.Remove(v)
		}
	}

	// Runtime safety net: only the invariants the verifier could not
	// prove preserved for this operation.
	postEnv := eval.NewEnv(next, nil)
	for _, name := range e.report.Inconclusive(op) {
		inv, ok := e.schema.Invariant(name)
		if !ok {
			continue
		}
		holds, err := eval.EvalBool(inv.Body, postEnv)
		if err != nil {
			return Applied{}, &ExecutionError{Code: ErrCodeEval, Op: op, Token: token,
				Invariant: name, Message: "invariant re-check failed", Err: err}
		}
		if !holds {
			e.log.Warn("rolled back", "op", op, "token", token, "invariant", name)
			return Applied{}, &ExecutionError{Code: ErrCodeInvariantRuntime, Op: op,
				Token: token, Invariant: name,
				Message: "post-state violates invariant"}
		}
	}

	// The seq commits together with the state. The clock advances only
	// after the journal accepts the record, so a failed append leaves no
	// gap for the next application or for replay.
	seq := e.clock.Current() + 1
	id, err := ir.AppliedID(op, args, seq)
	if err != nil {
		return Applied{}, &ExecutionError{Code: ErrCodeEval, Op: op, Token: token,
			Message: "record id hashing failed", Err: err}
	}
	rec := Applied{ID: id, Seq: seq, Token: token, Op: op, Params: args}

	if e.journal != nil {
		if err := e.journal.Append(rec); err != nil {
			return Applied{}, &ExecutionError{Code: ErrCodeJournal, Op: op, Token: token,
				Message: "journal append failed", Err: err}
		}
	}

	e.clock.Next()
	e.state = next
	e.log.Info("applied", "op", op, "token", token, "seq", seq)
	return rec, nil
}

// Query runs the named query against the current state under the executor
// lock. Queries never mutate state.
func (e *Executor) Query(ctx context.Context, name string, args []ir.Value) ([]ir.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.queries.Run(name, args, e.state)
}
