package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runTraceCommand(opts *RootOptions, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd := NewTraceCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTraceListsTransitions(t *testing.T) {
	opts := testRootOptions(t)
	id := runCreateForID(t, opts, "--env", "chain-a", "--caller", "alice")
	_, err := runSettleCommand(opts, NewResolveCommand,
		id, "--env", "chain-a", "--caller", "alice", "--value", "42")
	require.NoError(t, err)

	out, err := runTraceCommand(opts, "--env", "chain-a")
	require.NoError(t, err)
	assert.Contains(t, out, "pending -> resolved")
	assert.Contains(t, out, `"42"`)
	assert.Contains(t, out, id[:8])
}

func TestTraceEmptyEnvironment(t *testing.T) {
	opts := testRootOptions(t)

	out, err := runTraceCommand(opts, "--env", "chain-a")
	require.NoError(t, err)
	assert.Contains(t, out, "no transitions recorded")
}

func TestTraceScopedToEnvironment(t *testing.T) {
	opts := testRootOptions(t)
	idA := runCreateForID(t, opts, "--env", "chain-a", "--caller", "alice")
	idB := runCreateForID(t, opts, "--env", "chain-b", "--caller", "bob")
	_, err := runSettleCommand(opts, NewResolveCommand,
		idA, "--env", "chain-a", "--caller", "alice", "--value", "1")
	require.NoError(t, err)
	_, err = runSettleCommand(opts, NewRejectCommand,
		idB, "--env", "chain-b", "--caller", "bob", "--value", "boom")
	require.NoError(t, err)

	out, err := runTraceCommand(opts, "--env", "chain-b")
	require.NoError(t, err)
	assert.Contains(t, out, "pending -> rejected")
	assert.NotContains(t, out, "pending -> resolved")
}
