package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spawnHandler creates n children and hands them back for atomic
// fan-out, publishing their ids for the test to settle.
func spawnHandler(n int, out *[]idType) HandlerFunc {
	return func(ctx *CallbackContext, _ []byte) (Outcome, error) {
		children := make([]idType, 0, n)
		for i := 0; i < n; i++ {
			id, err := ctx.CreateChild()
			if err != nil {
				return Outcome{}, err
			}
			children = append(children, id)
		}
		*out = children
		return AwaitChildren(children...), nil
	}
}

func TestAtomicFanOutResolvesOnLastChild(t *testing.T) {
	env := newTestEnv("chain-a")

	var children []idType
	env.RegisterHandler("spawn.three", spawnHandler(3, &children))

	parent, err := env.Create("alice")
	require.NoError(t, err)
	cont, err := env.Then("alice", parent, "spawn.three")
	require.NoError(t, err)

	require.NoError(t, env.Resolve("alice", parent, nil))
	_, err = env.ExecutePromiseCallbacks(parent)
	require.NoError(t, err)
	require.Len(t, children, 3)

	// Children belong to the registrant, who settles them out of
	// creation order.
	require.NoError(t, env.Resolve("alice", children[2], []byte("c")))
	require.NoError(t, env.Resolve("alice", children[0], []byte("a")))

	st, ok := env.AtomicStateFor(cont)
	require.True(t, ok)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 2, st.Resolved)

	status, err := env.Status(cont)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status)

	require.NoError(t, env.Resolve("alice", children[1], []byte("b")))

	status, err = env.Status(cont)
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, status)

	// Aggregate preserves creation order, not settlement order.
	value, err := env.Value(cont)
	require.NoError(t, err)
	parts, err := SplitAggregate(value)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, parts)

	_, ok = env.AtomicStateFor(cont)
	assert.False(t, ok, "fan-out state must be released on completion")
}

func TestAtomicFanOutZeroChildrenResolvesImmediately(t *testing.T) {
	env := newTestEnv("chain-a")
	env.RegisterHandler("spawn.none", func(_ *CallbackContext, _ []byte) (Outcome, error) {
		return AwaitChildren(), nil
	})

	parent, err := env.Create("alice")
	require.NoError(t, err)
	cont, err := env.Then("alice", parent, "spawn.none")
	require.NoError(t, err)

	require.NoError(t, env.Resolve("alice", parent, nil))
	_, err = env.ExecutePromiseCallbacks(parent)
	require.NoError(t, err)

	status, err := env.Status(cont)
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, status)

	value, err := env.Value(cont)
	require.NoError(t, err)
	parts, err := SplitAggregate(value)
	require.NoError(t, err)
	assert.Empty(t, parts)
}

func TestAtomicFanOutFailsFastOnRejectedChild(t *testing.T) {
	env := newTestEnv("chain-a")

	var children []idType
	env.RegisterHandler("spawn.three", spawnHandler(3, &children))

	parent, err := env.Create("alice")
	require.NoError(t, err)
	cont, err := env.Then("alice", parent, "spawn.three")
	require.NoError(t, err)

	require.NoError(t, env.Resolve("alice", parent, nil))
	_, err = env.ExecutePromiseCallbacks(parent)
	require.NoError(t, err)

	require.NoError(t, env.Resolve("alice", children[0], []byte("a")))
	require.NoError(t, env.Reject("alice", children[1], []byte("child failed")))

	status, err := env.Status(cont)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, status)

	value, err := env.Value(cont)
	require.NoError(t, err)
	assert.Equal(t, []byte("child failed"), value)

	_, ok := env.AtomicStateFor(cont)
	assert.False(t, ok, "fan-out state must be released on rejection")

	// The straggler can still settle; it just no longer feeds anything.
	require.NoError(t, env.Resolve("alice", children[2], []byte("c")))
	status, err = env.Status(cont)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, status)
}

func TestAtomicFanOutCountsPreSettledChildren(t *testing.T) {
	env := newTestEnv("chain-a")

	// The handler settles one of its own children before returning.
	var children []idType
	env.RegisterHandler("spawn.eager", func(ctx *CallbackContext, _ []byte) (Outcome, error) {
		a, err := ctx.CreateChild()
		if err != nil {
			return Outcome{}, err
		}
		b, err := ctx.CreateChild()
		if err != nil {
			return Outcome{}, err
		}
		if err := ctx.env.store.Resolve(ctx.Registrant(), a, []byte("early")); err != nil {
			return Outcome{}, err
		}
		children = []idType{a, b}
		return AwaitChildren(a, b), nil
	})

	parent, err := env.Create("alice")
	require.NoError(t, err)
	cont, err := env.Then("alice", parent, "spawn.eager")
	require.NoError(t, err)

	require.NoError(t, env.Resolve("alice", parent, nil))
	_, err = env.ExecutePromiseCallbacks(parent)
	require.NoError(t, err)

	st, ok := env.AtomicStateFor(cont)
	require.True(t, ok)
	assert.Equal(t, 1, st.Resolved)

	require.NoError(t, env.Resolve("alice", children[1], []byte("late")))

	value, err := env.Value(cont)
	require.NoError(t, err)
	parts, err := SplitAggregate(value)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("early"), []byte("late")}, parts)
}

func TestAtomicFanOutCollapsesDuplicateChildren(t *testing.T) {
	env := newTestEnv("chain-a")

	var child idType
	env.RegisterHandler("spawn.twice", func(ctx *CallbackContext, _ []byte) (Outcome, error) {
		var err error
		child, err = ctx.CreateChild()
		if err != nil {
			return Outcome{}, err
		}
		return AwaitChildren(child, child), nil
	})

	parent, err := env.Create("alice")
	require.NoError(t, err)
	cont, err := env.Then("alice", parent, "spawn.twice")
	require.NoError(t, err)

	require.NoError(t, env.Resolve("alice", parent, nil))
	_, err = env.ExecutePromiseCallbacks(parent)
	require.NoError(t, err)

	// The duplicate is one dependency, so the fan-out waits for one
	// settlement, not two.
	st, ok := env.AtomicStateFor(cont)
	require.True(t, ok)
	assert.Equal(t, 1, st.Total)

	require.NoError(t, env.Resolve("alice", child, []byte("once")))

	status, err := env.Status(cont)
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, status)

	value, err := env.Value(cont)
	require.NoError(t, err)
	parts, err := SplitAggregate(value)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("once")}, parts)
}

func TestAtomicFanOutUnknownChildRejects(t *testing.T) {
	env := newTestEnv("chain-a")

	bogus := idFor(t, env)
	env.RegisterHandler("spawn.bogus", func(_ *CallbackContext, _ []byte) (Outcome, error) {
		return AwaitChildren(bogus), nil
	})

	parent, err := env.Create("alice")
	require.NoError(t, err)
	cont, err := env.Then("alice", parent, "spawn.bogus")
	require.NoError(t, err)

	require.NoError(t, env.Resolve("alice", parent, nil))
	_, err = env.ExecutePromiseCallbacks(parent)
	require.NoError(t, err)

	status, err := env.Status(cont)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, status)
}
