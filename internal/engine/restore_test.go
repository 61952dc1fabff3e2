package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seward/pledge/internal/journal"
)

func TestRestoreRebuildsPromisesAndClock(t *testing.T) {
	j, err := journal.Open(":memory:")
	require.NoError(t, err)
	defer j.Close()

	env := New("chain-a",
		WithJournal(j),
		WithTokenGenerator(NewCountingGenerator("corr")),
	)
	a, err := env.Create("alice")
	require.NoError(t, err)
	b, err := env.Create("alice")
	require.NoError(t, err)
	require.NoError(t, env.Resolve("alice", a, []byte("100")))
	before := env.Clock().Current()

	restored, err := Restore(context.Background(), "chain-a", j)
	require.NoError(t, err)

	status, err := restored.Status(a)
	require.NoError(t, err)
	assert.Equal(t, StatusResolved, status)

	value, err := restored.Value(a)
	require.NoError(t, err)
	assert.Equal(t, []byte("100"), value)

	status, err = restored.Status(b)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, status)

	// The clock resumes at or past the journaled high-water mark.
	assert.GreaterOrEqual(t, restored.Clock().Current(), before-1)

	// A pending promise is still settleable by its creator.
	require.NoError(t, restored.Resolve("alice", b, []byte("7")))
}

func TestRestoreCreatesAreDistinctFromOldOnes(t *testing.T) {
	j, err := journal.Open(":memory:")
	require.NoError(t, err)
	defer j.Close()

	env := New("chain-a", WithJournal(j))
	a, err := env.Create("alice")
	require.NoError(t, err)

	restored, err := Restore(context.Background(), "chain-a", j)
	require.NoError(t, err)

	c, err := restored.Create("alice")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestRestoreEmptyJournal(t *testing.T) {
	j, err := journal.Open(":memory:")
	require.NoError(t, err)
	defer j.Close()

	restored, err := Restore(context.Background(), "chain-a", j)
	require.NoError(t, err)
	assert.Equal(t, 0, restored.Store().Len())
}
