package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlushChainWalksInOrder(t *testing.T) {
	env := newTestEnv("chain-a")

	var order []int64
	env.RegisterHandler("math.double", func(ctx *CallbackContext, v []byte) (Outcome, error) {
		n, err := parseIntPayload(v)
		if err != nil {
			return Outcome{}, err
		}
		order = append(order, n)
		return Immediate(intPayload(n * 2)), nil
	})

	p1, err := env.Create("alice")
	require.NoError(t, err)
	p2, err := env.Then("alice", p1, "math.double")
	require.NoError(t, err)
	p3, err := env.Then("alice", p2, "math.double")
	require.NoError(t, err)

	require.NoError(t, env.Resolve("alice", p1, intPayload(5)))

	steps, err := env.FlushChain(p1, DefaultMaxSteps)
	require.NoError(t, err)
	// p1 and p2 executed their callbacks; p3 is a leaf with none.
	assert.Equal(t, 3, steps)
	assert.Equal(t, []int64{5, 10}, order)

	v2, err := env.Value(p2)
	require.NoError(t, err)
	assert.Equal(t, intPayload(10), v2)

	v3, err := env.Value(p3)
	require.NoError(t, err)
	assert.Equal(t, intPayload(20), v3)
}

func TestFlushChainFailsNotReadyOnPendingHead(t *testing.T) {
	env := newTestEnv("chain-a")

	p1, err := env.Create("alice")
	require.NoError(t, err)

	_, err = env.FlushChain(p1, DefaultMaxSteps)
	assert.True(t, IsNotReady(err), "expected NOT_READY, got %v", err)
}

func TestFlushChainStopsAtPendingDependency(t *testing.T) {
	env := newTestEnv("chain-a")

	// The handler returns AwaitChildren over a never-settled child, so
	// p2 stays pending after p1's callback runs.
	env.RegisterHandler("hold.open", func(ctx *CallbackContext, _ []byte) (Outcome, error) {
		child, err := ctx.CreateChild()
		if err != nil {
			return Outcome{}, err
		}
		return AwaitChildren(child), nil
	})
	env.RegisterHandler("math.double", doubleHandler)

	p1, err := env.Create("alice")
	require.NoError(t, err)
	p2, err := env.Then("alice", p1, "hold.open")
	require.NoError(t, err)
	p3, err := env.Then("alice", p2, "math.double")
	require.NoError(t, err)

	require.NoError(t, env.Resolve("alice", p1, intPayload(1)))

	steps, err := env.FlushChain(p1, DefaultMaxSteps)
	require.NoError(t, err)
	assert.Equal(t, 1, steps)

	s2, err := env.Status(p2)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, s2)

	s3, err := env.Status(p3)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, s3)
}

func TestFlushChainHonorsStepBudget(t *testing.T) {
	env := newTestEnv("chain-a")
	env.RegisterHandler("math.double", doubleHandler)

	p1, err := env.Create("alice")
	require.NoError(t, err)
	p2, err := env.Then("alice", p1, "math.double")
	require.NoError(t, err)
	p3, err := env.Then("alice", p2, "math.double")
	require.NoError(t, err)

	require.NoError(t, env.Resolve("alice", p1, intPayload(5)))

	steps, err := env.FlushChain(p1, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, steps)

	// One step executed p1's callbacks only; p3 has not run.
	v2, err := env.Value(p2)
	require.NoError(t, err)
	assert.Equal(t, intPayload(10), v2)

	s3, err := env.Status(p3)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, s3)

	// A second flush picks up where the budget ran out.
	steps, err = env.FlushChain(p2, DefaultMaxSteps)
	require.NoError(t, err)
	assert.Equal(t, 2, steps)

	v3, err := env.Value(p3)
	require.NoError(t, err)
	assert.Equal(t, intPayload(20), v3)
}
