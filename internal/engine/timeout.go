package engine

import (
	"encoding/binary"
	"fmt"

	"github.com/seward/pledge/internal/ident"
)

// CreateTimeout allocates a pending timeout promise owned by caller.
// The promise resolves only when PollTimeout observes a monotonic
// reading at or past deadline - never from a timer. Polling, like
// every other transition, is paid for by the caller.
func (e *Environment) CreateTimeout(caller string, deadline int64) (ident.PromiseID, error) {
	p, err := e.store.CreateTimeout(caller, deadline)
	if err != nil {
		return ident.PromiseID{}, err
	}
	e.journalPromise(p)
	return p.ID, nil
}

// PollTimeout checks a timeout promise against an external monotonic
// clock reading. Resolves the promise and returns true once now has
// reached the stored deadline; returns false while it has not.
// Polling an already-settled timeout returns true without error.
func (e *Environment) PollTimeout(id ident.PromiseID, now int64) (bool, error) {
	p, err := e.store.Get(id)
	if err != nil {
		return false, err
	}
	if p.Kind != KindTimeout {
		return false, fmt.Errorf("poll timeout: promise %s is %s, not a timeout", id.Short(), p.Kind)
	}
	if p.Status.Terminal() {
		return true, nil
	}
	if now < p.Deadline {
		return false, nil
	}

	var payload [8]byte
	binary.BigEndian.PutUint64(payload[:], uint64(p.Deadline))
	if err := e.store.resolveInternal(id, StatusResolved, payload[:]); err != nil {
		return false, err
	}
	return true, nil
}
