package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/relcheck/internal/harness"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario file against its schema",
		Long: `Execute a YAML scenario: seed state, apply operations, run queries,
and check every step's expected outcome. The schema path inside the
scenario resolves relative to the scenario file.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runScenario(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	res, err := harness.RunFile(path)
	if err != nil {
		if ferr := formatter.Error("SCENARIO_FAILED", err.Error(), nil); ferr != nil {
			return ferr
		}
		return &ExitError{Code: ExitFailure, Message: "scenario failed", Err: err}
	}

	trace, err := harness.Snapshot(res)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "trace encoding failed", Err: err}
	}

	lines := make([]string, 0, len(res.Events)+1)
	for _, ev := range res.Events {
		switch {
		case ev.Kind == "apply" && ev.Outcome == "applied":
			lines = append(lines, fmt.Sprintf("apply %s: applied seq=%d token=%s", ev.Name, ev.Seq, ev.Token))
		case ev.Kind == "query":
			lines = append(lines, fmt.Sprintf("query %s: %d rows", ev.Name, len(ev.Rows)))
		default:
			lines = append(lines, fmt.Sprintf("apply %s: %s", ev.Name, ev.Outcome))
		}
	}
	lines = append(lines, fmt.Sprintf("scenario %s: %d steps passed", res.Scenario, len(res.Events)))

	return formatter.Text(lines, json.RawMessage(trace))
}
