package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runStatusCommand(opts *RootOptions, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd := NewStatusCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestStatusShowsPendingPromise(t *testing.T) {
	opts := testRootOptions(t)
	id := runCreateForID(t, opts, "--env", "chain-a", "--caller", "alice")

	out, err := runStatusCommand(opts, id, "--env", "chain-a")
	require.NoError(t, err)
	assert.Contains(t, out, "status:      pending")
	assert.Contains(t, out, "creator:     alice")
	assert.Contains(t, out, "kind:        local")
}

func TestStatusShowsTerminalValue(t *testing.T) {
	opts := testRootOptions(t)
	id := runCreateForID(t, opts, "--env", "chain-a", "--caller", "alice")
	_, err := runSettleCommand(opts, NewResolveCommand,
		id, "--env", "chain-a", "--caller", "alice", "--value", "100")
	require.NoError(t, err)

	out, err := runStatusCommand(opts, id, "--env", "chain-a")
	require.NoError(t, err)
	assert.Contains(t, out, "status:      resolved")
	assert.Contains(t, out, "value:       100")
}

func TestStatusShowsTimeoutDeadline(t *testing.T) {
	opts := testRootOptions(t)
	id := runCreateForID(t, opts, "--env", "chain-a", "--caller", "alice", "--deadline", "500")

	out, err := runStatusCommand(opts, id, "--env", "chain-a")
	require.NoError(t, err)
	assert.Contains(t, out, "kind:        timeout")
	assert.Contains(t, out, "deadline:    500")
}

func TestStatusUnknownPromise(t *testing.T) {
	opts := testRootOptions(t)
	bogus := strings.Repeat("cd", 32)

	out, err := runStatusCommand(opts, bogus, "--env", "chain-a")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "UNKNOWN_PROMISE")
}

func TestStatusMalformedID(t *testing.T) {
	opts := testRootOptions(t)

	_, err := runStatusCommand(opts, "zzzz", "--env", "chain-a")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
