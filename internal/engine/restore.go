package engine

import (
	"context"
	"fmt"

	"github.com/seward/pledge/internal/ident"
	"github.com/seward/pledge/internal/journal"
)

// Restore rebuilds an environment from its journal: promise snapshots
// are loaded into the store and the logical clock resumes past the
// highest journaled position, so new events never reuse a seq.
//
// Only promise state survives a restart. Callback registrations,
// fan-out state, and forwarding records are in-memory constructs of a
// live process; a restored environment serves create/resolve/reject
// and reads, which is what the CLI needs between invocations.
func Restore(ctx context.Context, name string, j *journal.Journal, opts ...Option) (*Environment, error) {
	maxSeq, err := j.MaxSeq(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("restore %s: %w", name, err)
	}

	opts = append(opts, WithClock(NewClockAt(maxSeq)), WithJournal(j))
	e := New(name, opts...)

	recs, err := j.ListPromises(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("restore %s: %w", name, err)
	}
	for _, rec := range recs {
		id, err := ident.Parse(rec.ID)
		if err != nil {
			return nil, fmt.Errorf("restore %s: promise %s: %w", name, rec.ID, err)
		}
		status, err := ParseStatus(rec.Status)
		if err != nil {
			return nil, fmt.Errorf("restore %s: promise %s: %w", name, rec.ID, err)
		}
		kind, err := ParseKind(rec.Kind)
		if err != nil {
			return nil, fmt.Errorf("restore %s: promise %s: %w", name, rec.ID, err)
		}
		p := &Promise{
			ID:       id,
			Status:   status,
			Value:    rec.Value,
			Creator:  rec.Creator,
			Kind:     kind,
			Deadline: rec.Deadline,
			Seq:      rec.Seq,
		}
		if err := e.store.load(p); err != nil {
			return nil, fmt.Errorf("restore %s: promise %s: %w", name, rec.ID, err)
		}
	}
	return e, nil
}
