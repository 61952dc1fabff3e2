package journal

import (
	"context"
	"fmt"
)

// PromiseRecord is the journal snapshot of one promise.
type PromiseRecord struct {
	ID          string
	Environment string
	Status      string
	Creator     string
	Kind        string
	Value       []byte
	Deadline    int64
	Seq         int64
}

// TransitionRecord is one status change.
type TransitionRecord struct {
	Environment string
	PromiseID   string
	From        string
	To          string
	Value       []byte
	Seq         int64
}

// MessageRecord is one emitted envelope.
type MessageRecord struct {
	ID          string
	Kind        string
	Source      string
	Dest        string
	Correlation string
	Body        []byte
	Seq         int64
}

// RecordPromise upserts a promise snapshot. The latest write wins;
// the transitions table keeps the history.
func (j *Journal) RecordPromise(ctx context.Context, rec PromiseRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO promises
		(id, environment, status, creator, kind, value, deadline, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(environment, id) DO UPDATE SET
			status = excluded.status,
			value = excluded.value
	`,
		rec.ID,
		rec.Environment,
		rec.Status,
		rec.Creator,
		rec.Kind,
		rec.Value,
		rec.Deadline,
		rec.Seq,
	)
	if err != nil {
		return fmt.Errorf("record promise: %w", err)
	}
	return nil
}

// RecordTransition appends a status transition.
func (j *Journal) RecordTransition(ctx context.Context, rec TransitionRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO transitions
		(environment, promise_id, from_status, to_status, value, seq)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		rec.Environment,
		rec.PromiseID,
		rec.From,
		rec.To,
		rec.Value,
		rec.Seq,
	)
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	return nil
}

// RecordMessage appends an emitted envelope.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - the channel is
// at-least-once and the same envelope may be journaled twice.
func (j *Journal) RecordMessage(ctx context.Context, rec MessageRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO messages
		(id, kind, source, dest, correlation, body, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Kind,
		rec.Source,
		rec.Dest,
		rec.Correlation,
		rec.Body,
		rec.Seq,
	)
	if err != nil {
		return fmt.Errorf("record message: %w", err)
	}
	return nil
}
