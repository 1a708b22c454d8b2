package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/relcheck/internal/ir"
	"github.com/roach88/relcheck/internal/loader"
	"github.com/roach88/relcheck/internal/verify"
)

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "verify <schema.cue>",
		Short: "Verify invariant preservation for every operation",
		Long: `Load a schema document and statically verify that each operation
preserves each invariant. Pairs the verifier cannot decide are reported
as inconclusive; the executor re-checks exactly those at runtime.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(rootOpts, args[0], strict, cmd)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "fail on inconclusive pairs as well as disproven ones")

	return cmd
}

func runVerify(opts *RootOptions, path string, strict bool, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	schema, err := loadSchema(formatter, path)
	if err != nil {
		return err
	}
	formatter.VerboseLog("verifying %d operations against %d invariants",
		len(schema.Operations), len(schema.Invariants))

	report := verify.VerifyAll(schema)

	lines := make([]string, 0, len(report.Findings)+1)
	inconclusive := 0
	for _, f := range report.Findings {
		line := fmt.Sprintf("%s / %s: %s (%s)", f.Operation, f.Invariant, f.Verdict, f.Rule)
		if f.Detail != "" {
			line += " " + f.Detail
		}
		lines = append(lines, line)
		if f.Verdict == verify.VerdictInconclusive {
			inconclusive++
		}
	}
	lines = append(lines, fmt.Sprintf("schema %s: %d pairs, %d inconclusive",
		report.SchemaHash[:12], len(report.Findings), inconclusive))

	if err := formatter.Text(lines, report); err != nil {
		return err
	}
	if report.AnyDisproven() {
		return &ExitError{Code: ExitFailure, Message: "verification found a counterexample"}
	}
	if strict && inconclusive > 0 {
		return &ExitError{Code: ExitFailure,
			Message: fmt.Sprintf("%d pairs left inconclusive under --strict", inconclusive)}
	}
	return nil
}

// loadSchema loads and reports; callers return the ExitError as-is.
func loadSchema(formatter *OutputFormatter, path string) (*ir.Schema, error) {
	s, lerr := loader.LoadFile(path)
	if lerr != nil {
		var le *loader.LoadError
		code := "LOAD_ERROR"
		if !errors.As(lerr, &le) {
			code = "SCHEMA_ERROR"
		}
		if ferr := formatter.Error(code, lerr.Error(), nil); ferr != nil {
			return nil, ferr
		}
		return nil, &ExitError{Code: ExitCommandError, Message: "schema load failed", Err: lerr}
	}
	return s, nil
}
