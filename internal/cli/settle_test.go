package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runSettleCommand(opts *RootOptions, build func(*RootOptions) *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd := build(opts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestResolveRoundTrip(t *testing.T) {
	opts := testRootOptions(t)
	id := runCreateForID(t, opts, "--env", "chain-a", "--caller", "alice")

	out, err := runSettleCommand(opts, NewResolveCommand,
		id, "--env", "chain-a", "--caller", "alice", "--value", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "resolved")
	assert.Contains(t, out, id[:8])
}

func TestRejectRoundTrip(t *testing.T) {
	opts := testRootOptions(t)
	id := runCreateForID(t, opts, "--env", "chain-a", "--caller", "alice")

	out, err := runSettleCommand(opts, NewRejectCommand,
		id, "--env", "chain-a", "--caller", "alice", "--value", "insufficient funds")
	require.NoError(t, err)
	assert.Contains(t, out, "rejected")
}

func TestResolveByNonCreatorFails(t *testing.T) {
	opts := testRootOptions(t)
	id := runCreateForID(t, opts, "--env", "chain-a", "--caller", "alice")

	out, err := runSettleCommand(opts, NewResolveCommand,
		id, "--env", "chain-a", "--caller", "mallory", "--value", "999")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "UNAUTHORIZED")
}

func TestResolveTwiceFails(t *testing.T) {
	opts := testRootOptions(t)
	id := runCreateForID(t, opts, "--env", "chain-a", "--caller", "alice")

	_, err := runSettleCommand(opts, NewResolveCommand,
		id, "--env", "chain-a", "--caller", "alice", "--value", "1")
	require.NoError(t, err)

	out, err := runSettleCommand(opts, NewResolveCommand,
		id, "--env", "chain-a", "--caller", "alice", "--value", "2")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "ALREADY_TERMINAL")
}

func TestResolveUnknownPromiseFails(t *testing.T) {
	opts := testRootOptions(t)
	bogus := strings.Repeat("ab", 32)

	out, err := runSettleCommand(opts, NewResolveCommand,
		bogus, "--env", "chain-a", "--caller", "alice", "--value", "1")
	require.Error(t, err)
	assert.Contains(t, out, "UNKNOWN_PROMISE")
}

func TestResolveMalformedIDIsCommandError(t *testing.T) {
	opts := testRootOptions(t)

	_, err := runSettleCommand(opts, NewResolveCommand,
		"not-hex", "--env", "chain-a", "--caller", "alice", "--value", "1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
