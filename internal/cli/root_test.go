package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with the given args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "relcheck", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"verify", "run", "apply", "query", "replay"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestInvalidFormatRejected(t *testing.T) {
	_, err := execute(t, "--format", "xml", "verify", "testdata/story.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestApplyCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	applyCmd, _, err := cmd.Find([]string{"apply"})
	require.NoError(t, err)

	argsFlag := applyCmd.Flags().Lookup("args")
	require.NotNil(t, argsFlag)
	assert.Equal(t, "[]", argsFlag.DefValue)

	dbFlag := applyCmd.Flags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "", dbFlag.DefValue)
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(&ExitError{Code: ExitCommandError}))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
}
