package engine

import (
	"log/slog"

	"github.com/seward/pledge/internal/ident"
)

// Store is the ground-truth promise table for one environment.
//
// Restricting resolution authority to the creator is the trust anchor
// all downstream authentication composes on: a continuation can only
// be resolved by the engine that allocated it, a proxy only by the
// messenger return trip, and so on.
//
// The store is exclusively owned by its environment and must only be
// touched from that environment's run-to-completion call path.
type Store struct {
	environment string
	clock       *Clock
	promises    map[ident.PromiseID]*Promise

	// onTerminal is invoked after every Pending -> terminal
	// transition, regardless of which entrypoint caused it. The
	// environment uses it to feed the atomic coordinator, the journal,
	// and pending cross-chain return trips.
	onTerminal func(p *Promise)
}

// NewStore creates an empty store for the named environment.
func NewStore(environment string, clock *Clock) *Store {
	return &Store{
		environment: environment,
		clock:       clock,
		promises:    make(map[ident.PromiseID]*Promise),
	}
}

// Len returns the number of promises in the store.
func (s *Store) Len() int {
	return len(s.promises)
}

// Get returns the promise record for id.
func (s *Store) Get(id ident.PromiseID) (*Promise, error) {
	p, ok := s.promises[id]
	if !ok {
		return nil, errf(ErrCodeUnknownPromise, s.environment, id, "no promise with this id")
	}
	return p, nil
}

// Status returns the status of id. Pure read.
func (s *Store) Status(id ident.PromiseID) (Status, error) {
	p, err := s.Get(id)
	if err != nil {
		return StatusPending, err
	}
	return p.Status, nil
}

// Value returns the terminal payload of id. Pure read; the value is
// empty while the promise is pending.
func (s *Store) Value(id ident.PromiseID) ([]byte, error) {
	p, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return p.Value, nil
}

// Create allocates a new pending promise owned by caller. The id is
// derived from the environment, the caller, and the logical clock, so
// repeated creates are distinct but replays are stable.
func (s *Store) Create(caller string) (*Promise, error) {
	seq := s.clock.Next()
	id := ident.RootID(s.environment, caller, uint64(seq))
	return s.createAt(id, caller, KindLocal, seq)
}

// CreateTimeout allocates a pending timeout promise owned by caller,
// resolvable once a supplied monotonic reading passes deadline.
func (s *Store) CreateTimeout(caller string, deadline int64) (*Promise, error) {
	seq := s.clock.Next()
	id := ident.RootID(s.environment, caller, uint64(seq))
	p, err := s.createAt(id, caller, KindTimeout, seq)
	if err != nil {
		return nil, err
	}
	p.Deadline = deadline
	return p, nil
}

// createAt inserts a pending promise at a predetermined id. Used for
// continuations, proxies, and messenger-materialized mirrors, whose
// ids are derived rather than allocated.
func (s *Store) createAt(id ident.PromiseID, creator string, kind Kind, seq int64) (*Promise, error) {
	if _, exists := s.promises[id]; exists {
		return nil, errf(ErrCodeAlreadyTerminal, s.environment, id, "promise already exists")
	}
	p := &Promise{
		ID:      id,
		Status:  StatusPending,
		Creator: creator,
		Kind:    kind,
		Seq:     seq,
	}
	s.promises[id] = p

	promisesCreated.WithLabelValues(s.environment).Inc()
	pendingPromises.WithLabelValues(s.environment).Inc()

	slog.Debug("promise created",
		"env", s.environment,
		"promise", id.Short(),
		"creator", creator,
		"kind", kind.String(),
		"seq", seq,
	)
	return p, nil
}

// Resolve transitions id to Resolved with value.
// Fails UNAUTHORIZED unless caller is the creator, ALREADY_TERMINAL if
// the promise is not pending.
func (s *Store) Resolve(caller string, id ident.PromiseID, value []byte) error {
	return s.transition(caller, id, StatusResolved, value, true)
}

// Reject transitions id to Rejected with value. Symmetric to Resolve.
func (s *Store) Reject(caller string, id ident.PromiseID, value []byte) error {
	return s.transition(caller, id, StatusRejected, value, true)
}

// NextNonce increments and returns id's registration counter.
// Strictly increasing per promise.
func (s *Store) NextNonce(id ident.PromiseID) (uint64, error) {
	p, err := s.Get(id)
	if err != nil {
		return 0, err
	}
	p.nonce++
	return p.nonce, nil
}

// resolveInternal performs an engine-authorized transition, bypassing
// the creator check. Used for continuations, coordinator results, and
// messenger return trips, all of which act with the engine's own
// authority.
func (s *Store) resolveInternal(id ident.PromiseID, status Status, value []byte) error {
	return s.transition("", id, status, value, false)
}

// transition is the single place a promise changes status.
func (s *Store) transition(caller string, id ident.PromiseID, to Status, value []byte, enforceCreator bool) error {
	p, ok := s.promises[id]
	if !ok {
		return errf(ErrCodeUnknownPromise, s.environment, id, "no promise with this id")
	}
	if enforceCreator && caller != p.Creator {
		return errf(ErrCodeUnauthorized, s.environment, id,
			"caller %q is not the creator %q", caller, p.Creator)
	}
	if p.Status != StatusPending {
		// Terminal state and value stay untouched.
		return errf(ErrCodeAlreadyTerminal, s.environment, id,
			"promise is already %s", p.Status)
	}

	p.Status = to
	p.Value = value
	seq := s.clock.Next()

	resolutions.WithLabelValues(s.environment, to.String()).Inc()
	pendingPromises.WithLabelValues(s.environment).Dec()

	slog.Info("promise settled",
		"env", s.environment,
		"promise", id.Short(),
		"status", to.String(),
		"seq", seq,
	)

	if s.onTerminal != nil {
		s.onTerminal(p)
	}
	return nil
}

// load inserts a rehydrated snapshot during journal restore. No hooks
// fire and creation metrics stay untouched: the events already
// happened and were already counted when they were journaled.
func (s *Store) load(p *Promise) error {
	if _, exists := s.promises[p.ID]; exists {
		return errf(ErrCodeAlreadyTerminal, s.environment, p.ID, "promise already exists")
	}
	s.promises[p.ID] = p
	if p.Status == StatusPending {
		pendingPromises.WithLabelValues(s.environment).Inc()
	}
	return nil
}

// materialize inserts an already-terminal snapshot, used when a
// terminal promise is shared into this environment under its original
// id. The onTerminal hook does not fire: the transition happened in
// the owning environment, not here.
func (s *Store) materialize(id ident.PromiseID, creator string, status Status, value []byte) (*Promise, error) {
	if _, exists := s.promises[id]; exists {
		return nil, errf(ErrCodeAlreadyTerminal, s.environment, id, "promise already exists")
	}
	if !status.Terminal() {
		return nil, errf(ErrCodeNotReady, s.environment, id, "only terminal promises can be shared")
	}
	p := &Promise{
		ID:      id,
		Status:  status,
		Value:   value,
		Creator: creator,
		Kind:    KindLocal,
		Seq:     s.clock.Next(),
	}
	s.promises[id] = p

	promisesCreated.WithLabelValues(s.environment).Inc()
	resolutions.WithLabelValues(s.environment, status.String()).Inc()

	slog.Debug("terminal promise materialized",
		"env", s.environment,
		"promise", id.Short(),
		"status", status.String(),
	)
	return p, nil
}
