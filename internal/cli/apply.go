package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/relcheck/internal/ir"
	"github.com/roach88/relcheck/internal/state"
	"github.com/roach88/relcheck/internal/store"
)

// applyResult is the JSON payload for a committed application.
type applyResult struct {
	ID    string `json:"id"`
	Seq   int64  `json:"seq"`
	Token string `json:"token"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string
	var argsJSON string

	cmd := &cobra.Command{
		Use:   "apply <schema.cue> <operation>",
		Short: "Apply one operation against a journaled database",
		Long: `Rebuild state from the journal database, apply the named operation,
and persist the new journal record. Arguments are a JSON array matching
the operation's declared parameters; handle-typed records carry their
identity under "$id".`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(rootOpts, args[0], args[1], dbPath, argsJSON, cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "path to the journal database (required)")
	cmd.Flags().StringVar(&argsJSON, "args", "[]", "operation arguments as a JSON array")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runApply(opts *RootOptions, schemaPath, opName, dbPath, argsJSON string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	ctx := cmd.Context()

	schema, err := loadSchema(formatter, schemaPath)
	if err != nil {
		return err
	}
	decl, ok := schema.Operation(opName)
	if !ok {
		if ferr := formatter.Error(string(state.ErrCodeUnknownOperation),
			fmt.Sprintf("schema declares no operation %q", opName), nil); ferr != nil {
			return ferr
		}
		return &ExitError{Code: ExitCommandError, Message: "unknown operation"}
	}
	params, err := ir.UnmarshalParams(schema, opName, decl.Params, []byte(argsJSON))
	if err != nil {
		if ferr := formatter.Error(string(state.ErrCodeParameter), err.Error(), nil); ferr != nil {
			return ferr
		}
		return &ExitError{Code: ExitCommandError, Message: "argument decoding failed", Err: err}
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "open database", Err: err}
	}
	defer st.Close()

	exec, err := st.Replay(ctx, schema)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "journal replay failed", Err: err}
	}
	formatter.VerboseLog("replayed journal through seq %d", exec.Clock().Current())

	rec, err := exec.Apply(ctx, opName, params)
	if err != nil {
		var ee *state.ExecutionError
		if errors.As(err, &ee) {
			if ferr := formatter.Error(string(ee.Code), ee.Message, ee.Invariant); ferr != nil {
				return ferr
			}
			return &ExitError{Code: ExitFailure, Message: "operation refused", Err: err}
		}
		return &ExitError{Code: ExitCommandError, Message: "apply failed", Err: err}
	}

	lines := []string{fmt.Sprintf("applied %s: seq=%d token=%s id=%s", opName, rec.Seq, rec.Token, rec.ID)}
	return formatter.Text(lines, applyResult{ID: rec.ID, Seq: rec.Seq, Token: rec.Token})
}
