package engine

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollTimeoutBeforeDeadline(t *testing.T) {
	env := newTestEnv("chain-a")

	id, err := env.CreateTimeout("alice", 100)
	require.NoError(t, err)

	fired, err := env.PollTimeout(id, 99)
	require.NoError(t, err)
	assert.False(t, fired)

	status, err := env.Status(id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status)
}

func TestPollTimeoutAtDeadline(t *testing.T) {
	env := newTestEnv("chain-a")

	id, err := env.CreateTimeout("alice", 100)
	require.NoError(t, err)

	fired, err := env.PollTimeout(id, 100)
	require.NoError(t, err)
	assert.True(t, fired)

	status, err := env.Status(id)
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, status)

	// Payload is the deadline, big-endian.
	value, err := env.Value(id)
	require.NoError(t, err)
	require.Len(t, value, 8)
	assert.Equal(t, uint64(100), binary.BigEndian.Uint64(value))
}

func TestPollTimeoutIdempotentAfterFiring(t *testing.T) {
	env := newTestEnv("chain-a")

	id, err := env.CreateTimeout("alice", 100)
	require.NoError(t, err)

	fired, err := env.PollTimeout(id, 150)
	require.NoError(t, err)
	require.True(t, fired)

	// Repolling, even with an earlier reading, stays true and does not
	// retransition.
	fired, err = env.PollTimeout(id, 10)
	require.NoError(t, err)
	assert.True(t, fired)
}

func TestPollTimeoutRejectsNonTimeoutPromise(t *testing.T) {
	env := newTestEnv("chain-a")

	id, err := env.Create("alice")
	require.NoError(t, err)

	_, err = env.PollTimeout(id, 100)
	assert.Error(t, err)
}

func TestTimeoutFeedsChains(t *testing.T) {
	env := newTestEnv("chain-a")
	env.RegisterHandler("note.fired", echoHandler)

	id, err := env.CreateTimeout("alice", 50)
	require.NoError(t, err)
	cont, err := env.Then("alice", id, "note.fired")
	require.NoError(t, err)

	fired, err := env.PollTimeout(id, 60)
	require.NoError(t, err)
	require.True(t, fired)

	steps, err := env.FlushChain(id, DefaultMaxSteps)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, steps, 1)

	status, err := env.Status(cont)
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, status)
}
