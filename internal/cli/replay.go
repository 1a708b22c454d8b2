package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/relcheck/internal/store"
)

// replayResult is the JSON payload for a completed replay.
type replayResult struct {
	LastSeq int64          `json:"last_seq"`
	Bags    map[string]int `json:"bags"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "replay <schema.cue>",
		Short: "Rebuild state from the journal and report it",
		Long: `Replay the journal database from scratch. Every record is re-applied
through the executor; a record that no longer applies cleanly (wrong
schema hash, sequence gap, diverging outcome) fails the replay.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, args[0], dbPath, cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "path to the journal database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runReplay(opts *RootOptions, schemaPath, dbPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	ctx := cmd.Context()

	schema, err := loadSchema(formatter, schemaPath)
	if err != nil {
		return err
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "open database", Err: err}
	}
	defer st.Close()

	exec, err := st.Replay(ctx, schema)
	if err != nil {
		if ferr := formatter.Error("REPLAY_FAILED", err.Error(), nil); ferr != nil {
			return ferr
		}
		return &ExitError{Code: ExitFailure, Message: "replay failed", Err: err}
	}

	snap := exec.Snapshot()
	result := replayResult{LastSeq: exec.Clock().Current(), Bags: make(map[string]int, len(schema.States))}
	lines := []string{fmt.Sprintf("replayed through seq %d", result.LastSeq)}
	for _, decl := range schema.States {
		b, _ := snap.Bag(decl.Name)
		result.Bags[decl.Name] = b.Len()
		lines = append(lines, fmt.Sprintf("  %s: %d values", decl.Name, b.Len()))
	}

	return formatter.Text(lines, result)
}
