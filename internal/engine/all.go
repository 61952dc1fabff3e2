package engine

import "github.com/seward/pledge/internal/ident"

// AllState is a Promise.all aggregate: a fixed, ordered member set
// evaluated for fail-fast collective readiness.
type AllState struct {
	ID      ident.PromiseID
	Members []ident.PromiseID
	Creator string
	Seq     int64
}

// CreateAll snapshots an ordered member set and returns the aggregate
// id. Every member must already exist in this environment's store.
//
// The snapshot is by id, not by value: members settle independently
// and CheckAll reads their current state on every call.
func (e *Environment) CreateAll(caller string, members []ident.PromiseID) (ident.PromiseID, error) {
	for _, m := range members {
		if _, err := e.store.Get(m); err != nil {
			return ident.PromiseID{}, err
		}
	}

	seq := e.clock.Next()
	id := ident.AllID(members, uint64(seq))
	e.alls[id] = &AllState{
		ID:      id,
		Members: append([]ident.PromiseID(nil), members...),
		Creator: caller,
		Seq:     seq,
	}
	return id, nil
}

// CheckAll evaluates an aggregate.
//
// ready is true when every member is terminal OR any member is
// rejected - fail-fast is a correctness property: one rejection flips
// readiness immediately even with pending siblings, so downstream
// logic is never blocked indefinitely. failed is true when any member
// is rejected. results[i] is the member's terminal payload, or nil
// while that member is still pending.
//
// Edge cases: an empty set is immediately ready and not failed with
// zero results; a singleton behaves as direct tracking of its member.
func (e *Environment) CheckAll(id ident.PromiseID) (ready, failed bool, results [][]byte, err error) {
	st, ok := e.alls[id]
	if !ok {
		return false, false, nil, errf(ErrCodeUnknownPromise, e.name, id, "no aggregate with this id")
	}

	results = make([][]byte, len(st.Members))
	allTerminal := true
	for i, m := range st.Members {
		p, err := e.store.Get(m)
		if err != nil {
			return false, false, nil, err
		}
		switch p.Status {
		case StatusResolved:
			results[i] = p.Value
		case StatusRejected:
			results[i] = p.Value
			failed = true
		default:
			allTerminal = false
		}
	}

	ready = allTerminal || failed
	return ready, failed, results, nil
}
