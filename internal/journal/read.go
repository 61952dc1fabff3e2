package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a read names an unknown record.
var ErrNotFound = errors.New("journal: record not found")

// GetPromise reads the latest snapshot of one promise.
func (j *Journal) GetPromise(ctx context.Context, environment, id string) (PromiseRecord, error) {
	var rec PromiseRecord
	err := j.db.QueryRowContext(ctx, `
		SELECT id, environment, status, creator, kind, value, deadline, seq
		FROM promises
		WHERE environment = ? AND id = ?
	`, environment, id).Scan(
		&rec.ID,
		&rec.Environment,
		&rec.Status,
		&rec.Creator,
		&rec.Kind,
		&rec.Value,
		&rec.Deadline,
		&rec.Seq,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return PromiseRecord{}, ErrNotFound
	}
	if err != nil {
		return PromiseRecord{}, fmt.Errorf("get promise: %w", err)
	}
	return rec, nil
}

// ListPromises reads all snapshots for one environment in creation
// order.
func (j *Journal) ListPromises(ctx context.Context, environment string) ([]PromiseRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, environment, status, creator, kind, value, deadline, seq
		FROM promises
		WHERE environment = ?
		ORDER BY seq ASC
	`, environment)
	if err != nil {
		return nil, fmt.Errorf("list promises: %w", err)
	}
	defer rows.Close()

	var recs []PromiseRecord
	for rows.Next() {
		var rec PromiseRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.Environment,
			&rec.Status,
			&rec.Creator,
			&rec.Kind,
			&rec.Value,
			&rec.Deadline,
			&rec.Seq,
		); err != nil {
			return nil, fmt.Errorf("list promises: scan: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list promises: rows: %w", err)
	}
	return recs, nil
}

// ListTransitions reads the transition history for one environment in
// logical clock order.
func (j *Journal) ListTransitions(ctx context.Context, environment string) ([]TransitionRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT environment, promise_id, from_status, to_status, value, seq
		FROM transitions
		WHERE environment = ?
		ORDER BY seq ASC
	`, environment)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var recs []TransitionRecord
	for rows.Next() {
		var rec TransitionRecord
		if err := rows.Scan(
			&rec.Environment,
			&rec.PromiseID,
			&rec.From,
			&rec.To,
			&rec.Value,
			&rec.Seq,
		); err != nil {
			return nil, fmt.Errorf("list transitions: scan: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transitions: rows: %w", err)
	}
	return recs, nil
}

// ListMessages reads emitted envelopes for one (source, dest) pair in
// send order. Empty strings match all sources/destinations.
func (j *Journal) ListMessages(ctx context.Context, source, dest string) ([]MessageRecord, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, kind, source, dest, correlation, body, seq
		FROM messages
		WHERE (? = '' OR source = ?) AND (? = '' OR dest = ?)
		ORDER BY seq ASC
	`, source, source, dest, dest)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var recs []MessageRecord
	for rows.Next() {
		var rec MessageRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.Kind,
			&rec.Source,
			&rec.Dest,
			&rec.Correlation,
			&rec.Body,
			&rec.Seq,
		); err != nil {
			return nil, fmt.Errorf("list messages: scan: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: rows: %w", err)
	}
	return recs, nil
}

// MaxSeq returns the highest logical clock value journaled for an
// environment, for resuming its clock past all recorded events.
func (j *Journal) MaxSeq(ctx context.Context, environment string) (int64, error) {
	var seq sql.NullInt64
	err := j.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM (
			SELECT seq FROM promises WHERE environment = ?
			UNION ALL
			SELECT seq FROM transitions WHERE environment = ?
		)
	`, environment, environment).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}
