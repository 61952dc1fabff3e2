package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestPromiseRoundTrip(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	rec := PromiseRecord{
		ID:          "abc123",
		Environment: "chain-a",
		Status:      "pending",
		Creator:     "alice",
		Kind:        "local",
		Seq:         1,
	}
	require.NoError(t, j.RecordPromise(ctx, rec))

	got, err := j.GetPromise(ctx, "chain-a", "abc123")
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestPromiseUpsertKeepsLatestState(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	rec := PromiseRecord{
		ID:          "abc123",
		Environment: "chain-a",
		Status:      "pending",
		Creator:     "alice",
		Kind:        "local",
		Seq:         1,
	}
	require.NoError(t, j.RecordPromise(ctx, rec))

	rec.Status = "resolved"
	rec.Value = []byte("100")
	require.NoError(t, j.RecordPromise(ctx, rec))

	got, err := j.GetPromise(ctx, "chain-a", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "resolved", got.Status)
	assert.Equal(t, []byte("100"), got.Value)
	// Creation metadata survives the upsert.
	assert.Equal(t, "alice", got.Creator)
	assert.Equal(t, int64(1), got.Seq)
}

func TestGetPromiseNotFound(t *testing.T) {
	j := openTestJournal(t)

	_, err := j.GetPromise(context.Background(), "chain-a", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPromisesScopedByEnvironment(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	for i, env := range []string{"chain-a", "chain-b", "chain-a"} {
		require.NoError(t, j.RecordPromise(ctx, PromiseRecord{
			ID:          string(rune('a' + i)),
			Environment: env,
			Status:      "pending",
			Creator:     "alice",
			Kind:        "local",
			Seq:         int64(i + 1),
		}))
	}

	recs, err := j.ListPromises(ctx, "chain-a")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].ID)
	assert.Equal(t, "c", recs[1].ID)
}

func TestTransitionsKeepHistoryInOrder(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.RecordTransition(ctx, TransitionRecord{
		Environment: "chain-a",
		PromiseID:   "abc123",
		From:        "pending",
		To:          "resolved",
		Value:       []byte("100"),
		Seq:         2,
	}))
	require.NoError(t, j.RecordTransition(ctx, TransitionRecord{
		Environment: "chain-a",
		PromiseID:   "def456",
		From:        "pending",
		To:          "rejected",
		Value:       []byte("boom"),
		Seq:         5,
	}))

	recs, err := j.ListTransitions(ctx, "chain-a")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "abc123", recs[0].PromiseID)
	assert.Equal(t, "rejected", recs[1].To)
}

func TestMessageInsertIsIdempotent(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	rec := MessageRecord{
		ID:          "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		Kind:        "setup",
		Source:      "chain-a",
		Dest:        "chain-b",
		Correlation: "corr-1",
		Body:        []byte(`{}`),
		Seq:         1,
	}
	require.NoError(t, j.RecordMessage(ctx, rec))
	require.NoError(t, j.RecordMessage(ctx, rec))

	recs, err := j.ListMessages(ctx, "chain-a", "chain-b")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestListMessagesWildcards(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	msgs := []MessageRecord{
		{ID: "m1", Kind: "setup", Source: "chain-a", Dest: "chain-b", Body: []byte(`{}`), Seq: 1},
		{ID: "m2", Kind: "execute", Source: "chain-a", Dest: "chain-b", Body: []byte(`{}`), Seq: 2},
		{ID: "m3", Kind: "share", Source: "chain-b", Dest: "chain-a", Body: []byte(`{}`), Seq: 3},
	}
	for _, m := range msgs {
		require.NoError(t, j.RecordMessage(ctx, m))
	}

	all, err := j.ListMessages(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	fromB, err := j.ListMessages(ctx, "chain-b", "")
	require.NoError(t, err)
	require.Len(t, fromB, 1)
	assert.Equal(t, "m3", fromB[0].ID)

	toB, err := j.ListMessages(ctx, "", "chain-b")
	require.NoError(t, err)
	assert.Len(t, toB, 2)
}

func TestMaxSeqSpansTables(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	seq, err := j.MaxSeq(ctx, "chain-a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	require.NoError(t, j.RecordPromise(ctx, PromiseRecord{
		ID: "a", Environment: "chain-a", Status: "pending",
		Creator: "alice", Kind: "local", Seq: 3,
	}))
	require.NoError(t, j.RecordTransition(ctx, TransitionRecord{
		Environment: "chain-a", PromiseID: "a",
		From: "pending", To: "resolved", Seq: 7,
	}))

	seq, err = j.MaxSeq(ctx, "chain-a")
	require.NoError(t, err)
	assert.Equal(t, int64(7), seq)
}

func TestReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.RecordPromise(context.Background(), PromiseRecord{
		ID: "a", Environment: "chain-a", Status: "pending",
		Creator: "alice", Kind: "local", Seq: 1,
	}))
	require.NoError(t, j.Close())

	// Reopening reruns schema and migrations without error and keeps
	// the data.
	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()

	got, err := j.GetPromise(context.Background(), "chain-a", "a")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Creator)
}
