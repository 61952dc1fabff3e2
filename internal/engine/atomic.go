package engine

import (
	"log/slog"

	"github.com/seward/pledge/internal/ident"
)

// AtomicState tracks one atomic fan-out: a continuation waiting for
// all dynamically created children before resolving.
//
// Invariant: Resolved <= Total; the parent continuation settles
// exactly when Resolved == Total, or immediately when Total == 0.
type AtomicState struct {
	ParentID ident.PromiseID // the awaiting continuation
	Total    int
	Resolved int

	results [][]byte // order-preserving child payloads
}

// childRef points a child promise back at its awaiting continuation.
type childRef struct {
	parent ident.PromiseID
	index  int
}

// registerAtomic wires an AwaitChildren outcome: the continuation
// stays pending until every child completes, then auto-resolves with
// the order-preserving aggregate. A rejected child rejects the
// continuation with that child's payload - fail-fast, like the all
// aggregator.
func (e *Environment) registerAtomic(cont ident.PromiseID, children []ident.PromiseID) error {
	// A child listed twice is a single dependency. Waits are keyed by
	// child id, so a duplicate would inflate Total past what the keyed
	// waits can ever deliver and strand the continuation pending.
	seen := make(map[ident.PromiseID]struct{}, len(children))
	uniq := make([]ident.PromiseID, 0, len(children))
	for _, cid := range children {
		if _, dup := seen[cid]; dup {
			continue
		}
		seen[cid] = struct{}{}
		uniq = append(uniq, cid)
	}
	children = uniq

	if len(children) == 0 {
		agg, err := AggregateResults(nil)
		if err != nil {
			return err
		}
		return e.settleContinuation(cont, StatusResolved, agg)
	}

	st := &AtomicState{
		ParentID: cont,
		Total:    len(children),
		results:  make([][]byte, len(children)),
	}

	// Validate the whole set before recording any of it: a handler
	// returning an unknown child is a callback failure, and must not
	// leave a half-registered fan-out behind.
	terminal := make([]*Promise, 0, len(children))
	for _, cid := range children {
		p, err := e.store.Get(cid)
		if err != nil {
			return e.settleContinuation(cont, StatusRejected, failurePayload(err))
		}
		if p.Status.Terminal() {
			terminal = append(terminal, p)
		}
	}

	e.atomics[cont] = st
	for i, cid := range children {
		e.childWaits[cid] = childRef{parent: cont, index: i}
	}

	slog.Debug("atomic fan-out registered",
		"env", e.name,
		"continuation", cont.Short(),
		"children", st.Total,
	)

	// Children the callback already settled before returning count
	// right away.
	for _, p := range terminal {
		e.noteChildTerminal(p)
	}
	return nil
}

// noteChildTerminal is invoked from the store's terminal hook for
// every settled promise; if the promise is an awaited child it
// advances (or fails) its fan-out.
func (e *Environment) noteChildTerminal(p *Promise) {
	ref, ok := e.childWaits[p.ID]
	if !ok {
		return
	}
	delete(e.childWaits, p.ID)

	st, ok := e.atomics[ref.parent]
	if !ok {
		return
	}

	if p.Status == StatusRejected {
		delete(e.atomics, ref.parent)
		for cid, r := range e.childWaits {
			if r.parent == ref.parent {
				delete(e.childWaits, cid)
			}
		}
		if err := e.settleContinuation(ref.parent, StatusRejected, p.Value); err != nil {
			slog.Error("atomic fan-out rejection failed",
				"error", err,
				"env", e.name,
				"continuation", ref.parent.Short(),
			)
		}
		return
	}

	st.results[ref.index] = append([]byte(nil), p.Value...)
	st.Resolved++
	if st.Resolved < st.Total {
		return
	}

	delete(e.atomics, ref.parent)
	agg, err := AggregateResults(st.results)
	if err != nil {
		err = e.settleContinuation(ref.parent, StatusRejected, failurePayload(err))
	} else {
		err = e.settleContinuation(ref.parent, StatusResolved, agg)
	}
	if err != nil {
		slog.Error("atomic fan-out completion failed",
			"error", err,
			"env", e.name,
			"continuation", ref.parent.Short(),
		)
	}
}

// AtomicStateFor returns a snapshot of the fan-out awaiting cont, for
// introspection and tests.
func (e *Environment) AtomicStateFor(cont ident.PromiseID) (AtomicState, bool) {
	st, ok := e.atomics[cont]
	if !ok {
		return AtomicState{}, false
	}
	return AtomicState{ParentID: st.ParentID, Total: st.Total, Resolved: st.Resolved}, true
}
