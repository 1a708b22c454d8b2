package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/roach88/relcheck/internal/ir"
	"github.com/roach88/relcheck/internal/loader"
	"github.com/roach88/relcheck/internal/state"
	"github.com/roach88/relcheck/internal/verify"
)

// Event records the outcome of one scenario step.
type Event struct {
	// Kind is "apply" or "query".
	Kind string

	// Name is the operation or query name.
	Name string

	// Outcome is "applied", "ok", or an execution error code.
	Outcome string

	// Seq and Token are set for successful applications.
	Seq   int64
	Token string

	// Rows holds the result rows of a query step.
	Rows []ir.Value
}

// Result is a completed scenario run.
type Result struct {
	Scenario string
	Report   *verify.Report
	Events   []Event
	Final    *state.State
}

// RunFile loads and runs a scenario file. Paths inside the scenario are
// resolved relative to the file.
func RunFile(path string) (*Result, error) {
	sc, err := LoadScenario(path)
	if err != nil {
		return nil, err
	}
	return Run(sc, filepath.Dir(path))
}

// Run executes a scenario. Expectation mismatches fail the run with an
// error naming the step; the event trace accumulated so far is discarded
// with it.
func Run(sc *Scenario, dir string) (*Result, error) {
	schema, err := loader.LoadFile(filepath.Join(dir, sc.Schema))
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	opts := []state.Option{state.WithLogger(slog.New(slog.DiscardHandler))}
	if len(sc.Tokens) > 0 {
		opts = append(opts, state.WithTokenGenerator(state.NewFixedGenerator(sc.Tokens...)))
	}
	exec, err := state.New(schema, opts...)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	ctx := context.Background()
	if err := seed(exec, schema, sc.Seed); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	result := &Result{Scenario: sc.Name, Report: exec.Report()}
	for i, step := range sc.Steps {
		ev, err := runStep(ctx, exec, schema, step)
		if err != nil {
			return nil, fmt.Errorf("scenario %s step %d: %w", sc.Name, i, err)
		}
		result.Events = append(result.Events, ev)
	}
	result.Final = exec.Snapshot()
	return result, nil
}

func seed(exec *state.Executor, schema *ir.Schema, steps []SeedStep) error {
	for _, st := range steps {
		decl, ok := schema.State(st.State)
		if !ok {
			return fmt.Errorf("seed: unknown state %q", st.State)
		}
		for j, raw := range st.Values {
			v, err := ir.FromWire(schema, raw, decl.Elem)
			if err != nil {
				return fmt.Errorf("seed %s[%d]: %w", st.State, j, err)
			}
			if err := exec.Seed(st.State, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func runStep(ctx context.Context, exec *state.Executor, schema *ir.Schema, step Step) (Event, error) {
	if step.Apply != "" {
		return runApply(ctx, exec, schema, step)
	}
	return runQuery(ctx, exec, schema, step)
}

func runApply(ctx context.Context, exec *state.Executor, schema *ir.Schema, step Step) (Event, error) {
	ev := Event{Kind: "apply", Name: step.Apply}

	decl, ok := schema.Operation(step.Apply)
	if !ok {
		return ev, fmt.Errorf("unknown operation %q", step.Apply)
	}
	args, err := decodeArgs(schema, decl.Params, step.Args)
	if err != nil {
		return ev, err
	}

	rec, err := exec.Apply(ctx, step.Apply, args)
	if err != nil {
		var ee *state.ExecutionError
		if !errors.As(err, &ee) {
			return ev, err
		}
		ev.Outcome = string(ee.Code)
	} else {
		ev.Outcome = "applied"
		ev.Seq = rec.Seq
		ev.Token = rec.Token
	}

	wantErr := ""
	if step.Expect != nil {
		wantErr = step.Expect.Error
	}
	if gotErr := ev.Outcome != "applied"; gotErr != (wantErr != "") {
		return ev, fmt.Errorf("apply %s: outcome %s, expected error %q", step.Apply, ev.Outcome, wantErr)
	}
	if wantErr != "" && ev.Outcome != wantErr {
		return ev, fmt.Errorf("apply %s: error code %s, expected %s", step.Apply, ev.Outcome, wantErr)
	}
	return ev, nil
}

func runQuery(ctx context.Context, exec *state.Executor, schema *ir.Schema, step Step) (Event, error) {
	ev := Event{Kind: "query", Name: step.Query}

	decl, ok := schema.Query(step.Query)
	if !ok {
		return ev, fmt.Errorf("unknown query %q", step.Query)
	}
	args, err := decodeArgs(schema, decl.Params, step.Args)
	if err != nil {
		return ev, err
	}

	rows, err := exec.Query(ctx, step.Query, args)
	if err != nil {
		return ev, fmt.Errorf("query %s: %w", step.Query, err)
	}
	ev.Outcome = "ok"
	ev.Rows = rows

	if step.Expect != nil && step.Expect.Rows != nil && len(rows) != *step.Expect.Rows {
		return ev, fmt.Errorf("query %s: %d rows, expected %d", step.Query, len(rows), *step.Expect.Rows)
	}
	return ev, nil
}

func decodeArgs(schema *ir.Schema, params []ir.Param, raws []any) ([]ir.Value, error) {
	if len(raws) != len(params) {
		return nil, fmt.Errorf("got %d args, declaration has %d", len(raws), len(params))
	}
	args := make([]ir.Value, len(raws))
	for i, raw := range raws {
		v, err := ir.FromWire(schema, raw, params[i].Type)
		if err != nil {
			return nil, fmt.Errorf("arg %d (%s): %w", i, params[i].Name, err)
		}
		args[i] = v
	}
	return args, nil
}
