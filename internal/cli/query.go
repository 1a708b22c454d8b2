package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/relcheck/internal/ir"
	"github.com/roach88/relcheck/internal/state"
	"github.com/roach88/relcheck/internal/store"
)

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string
	var argsJSON string

	cmd := &cobra.Command{
		Use:   "query <schema.cue> <query>",
		Short: "Run a named query",
		Long: `Run a declared query and print its rows in canonical JSON. With --db
the state is rebuilt from the journal database first; without it the
query runs against the empty initial state.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(rootOpts, args[0], args[1], dbPath, argsJSON, cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "path to the journal database")
	cmd.Flags().StringVar(&argsJSON, "args", "[]", "query arguments as a JSON array")

	return cmd
}

func runQuery(opts *RootOptions, schemaPath, queryName, dbPath, argsJSON string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	ctx := cmd.Context()

	schema, err := loadSchema(formatter, schemaPath)
	if err != nil {
		return err
	}
	decl, ok := schema.Query(queryName)
	if !ok {
		if ferr := formatter.Error("UNKNOWN_QUERY",
			fmt.Sprintf("schema declares no query %q", queryName), nil); ferr != nil {
			return ferr
		}
		return &ExitError{Code: ExitCommandError, Message: "unknown query"}
	}
	params, err := ir.UnmarshalParams(schema, queryName, decl.Params, []byte(argsJSON))
	if err != nil {
		if ferr := formatter.Error(string(state.ErrCodeParameter), err.Error(), nil); ferr != nil {
			return ferr
		}
		return &ExitError{Code: ExitCommandError, Message: "argument decoding failed", Err: err}
	}

	var exec *state.Executor
	if dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			return &ExitError{Code: ExitCommandError, Message: "open database", Err: err}
		}
		defer st.Close()
		exec, err = st.Replay(ctx, schema)
		if err != nil {
			return &ExitError{Code: ExitCommandError, Message: "journal replay failed", Err: err}
		}
	} else {
		exec, err = state.New(schema)
		if err != nil {
			return &ExitError{Code: ExitCommandError, Message: "initial state", Err: err}
		}
	}

	rows, err := exec.Query(ctx, queryName, params)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "query failed", Err: err}
	}

	lines := make([]string, 0, len(rows)+1)
	encoded := make([]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		enc, err := ir.MarshalCanonical(row)
		if err != nil {
			return &ExitError{Code: ExitCommandError, Message: "row encoding failed", Err: err}
		}
		lines = append(lines, string(enc))
		encoded = append(encoded, json.RawMessage(enc))
	}
	lines = append(lines, fmt.Sprintf("%d rows", len(rows)))

	return formatter.Text(lines, encoded)
}
