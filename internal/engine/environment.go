package engine

import (
	"context"
	"log/slog"

	"github.com/seward/pledge/internal/ident"
	"github.com/seward/pledge/internal/journal"
	"github.com/seward/pledge/internal/messenger"
)

// DefaultMaxSteps is the default step budget for FlushChain and for
// the relay drain in simulations. It bounds the work one explicit call
// can trigger.
const DefaultMaxSteps = 1000

// Environment is one sovereign execution context ("chain"): a promise
// store, a callback registry, handler bindings, and the forwarding
// state for cross-chain registrations.
//
// CRITICAL: all mutation is run-to-completion within explicit calls.
// There is no background goroutine, no timer, and no automatic
// continuation - every transition is paid for by the caller that
// triggers it.
//
// Thread-safety model: an Environment must be driven from a single
// goroutine. Cross-environment interaction happens only through the
// messenger.
type Environment struct {
	name      string
	clock     *Clock
	store     *Store
	registry  *Registry
	handlers  *HandlerRegistry
	messenger messenger.Messenger
	// messengerPrincipal is the only caller accepted on the
	// messenger-only entrypoints.
	messengerPrincipal string
	tokens             TokenGenerator
	journal            *journal.Journal
	maxSteps           int

	// Callback authentication context and reentrancy guard.
	active           *CallbackContext
	executing        bool
	reentrantTripped bool

	// Atomic fan-out coordinator state.
	atomics    map[ident.PromiseID]*AtomicState
	childWaits map[ident.PromiseID]childRef

	// Promise.all aggregates.
	alls map[ident.PromiseID]*AllState

	// Cross-chain forwarding state.
	forwards     map[ident.PromiseID]*ForwardingRecord // by proxy id
	remoteSetups map[ident.PromiseID]*remoteBinding    // by mirrored id
	returns      map[ident.PromiseID]returnRef         // by local continuation id
}

// Option configures an Environment.
type Option func(*Environment)

// WithMessenger attaches the outbound half of the cross-chain channel.
// Without one, cross-chain registrations fail at execution time.
func WithMessenger(m messenger.Messenger) Option {
	return func(e *Environment) { e.messenger = m }
}

// WithMessengerPrincipal sets the caller identity accepted on the
// messenger-only entrypoints. Default: messenger.DefaultPrincipal.
func WithMessengerPrincipal(principal string) Option {
	return func(e *Environment) { e.messengerPrincipal = principal }
}

// WithTokenGenerator overrides the correlation token generator.
// Tests use CountingGenerator for byte-identical traces.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(e *Environment) { e.tokens = g }
}

// WithClock installs a pre-positioned clock, e.g. when resuming from a
// journal.
func WithClock(c *Clock) Option {
	return func(e *Environment) { e.clock = c }
}

// WithMaxSteps sets the default step budget used when FlushChain is
// called with a non-positive budget. Default: DefaultMaxSteps.
func WithMaxSteps(n int) Option {
	return func(e *Environment) {
		if n > 0 {
			e.maxSteps = n
		}
	}
}

// WithJournal attaches a durable event journal. Journal failures are
// logged and do not fail the triggering operation - retrying a write
// would make replay non-deterministic.
func WithJournal(j *journal.Journal) Option {
	return func(e *Environment) { e.journal = j }
}

// New creates an Environment with the given name.
func New(name string, opts ...Option) *Environment {
	e := &Environment{
		name:               name,
		clock:              NewClock(),
		messengerPrincipal: messenger.DefaultPrincipal,
		tokens:             UUIDv7Generator{},
		maxSteps:           DefaultMaxSteps,
		atomics:            make(map[ident.PromiseID]*AtomicState),
		childWaits:         make(map[ident.PromiseID]childRef),
		alls:               make(map[ident.PromiseID]*AllState),
		forwards:           make(map[ident.PromiseID]*ForwardingRecord),
		remoteSetups:       make(map[ident.PromiseID]*remoteBinding),
		returns:            make(map[ident.PromiseID]returnRef),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.store = NewStore(name, e.clock)
	e.registry = NewRegistry()
	e.handlers = NewHandlerRegistry(name)
	e.store.onTerminal = e.noteTerminal
	return e
}

// Name returns the environment name.
func (e *Environment) Name() string { return e.name }

// Clock returns the environment's logical clock.
func (e *Environment) Clock() *Clock { return e.clock }

// Store returns the environment's promise store.
func (e *Environment) Store() *Store { return e.store }

// RegisterHandler binds a callback target to a handler function.
func (e *Environment) RegisterHandler(target string, fn HandlerFunc) {
	e.handlers.Register(target, fn)
}

// Create allocates a new pending promise owned by caller.
func (e *Environment) Create(caller string) (ident.PromiseID, error) {
	p, err := e.store.Create(caller)
	if err != nil {
		return ident.PromiseID{}, err
	}
	e.journalPromise(p)
	return p.ID, nil
}

// Resolve transitions id to Resolved. Only the creator may call this.
func (e *Environment) Resolve(caller string, id ident.PromiseID, value []byte) error {
	return e.store.Resolve(caller, id, value)
}

// Reject transitions id to Rejected. Only the creator may call this.
func (e *Environment) Reject(caller string, id ident.PromiseID, value []byte) error {
	return e.store.Reject(caller, id, value)
}

// Status returns the status of id. Pure read.
func (e *Environment) Status(id ident.PromiseID) (Status, error) {
	return e.store.Status(id)
}

// Value returns the terminal payload of id. Pure read.
func (e *Environment) Value(id ident.PromiseID) ([]byte, error) {
	return e.store.Value(id)
}

// Then registers a success callback (with an optional paired error
// target) against parent and returns the continuation id.
//
// Registration never runs anything: a terminal parent simply queues
// the descriptor until ExecutePromiseCallbacks is called explicitly.
func (e *Environment) Then(caller string, parent ident.PromiseID, target string, errorTarget ...string) (ident.PromiseID, error) {
	var et string
	if len(errorTarget) > 0 {
		et = errorTarget[0]
	}
	return e.register(caller, parent, KindThen, target, et)
}

// OnReject registers an error-only callback against parent and
// returns the continuation id. On a resolved parent the continuation
// inherits the parent's value without invoking the handler.
func (e *Environment) OnReject(caller string, parent ident.PromiseID, target string) (ident.PromiseID, error) {
	return e.register(caller, parent, KindCatch, target, "")
}

// register allocates the continuation and stores the descriptor.
func (e *Environment) register(caller string, parent ident.PromiseID, kind DescriptorKind, target, errorTarget string) (ident.PromiseID, error) {
	nonce, err := e.store.NextNonce(parent)
	if err != nil {
		return ident.PromiseID{}, err
	}
	contID := ident.ContinuationID(parent, nonce)
	cont, err := e.store.createAt(contID, e.enginePrincipal(), KindLocal, e.clock.Next())
	if err != nil {
		return ident.PromiseID{}, err
	}
	e.journalPromise(cont)

	e.registry.Add(&CallbackDescriptor{
		Kind:           kind,
		ParentID:       parent,
		ContinuationID: contID,
		Target:         target,
		ErrorTarget:    errorTarget,
		Registrant:     caller,
		SourceEnv:      e.name,
		Nonce:          nonce,
	})

	slog.Debug("callback registered",
		"env", e.name,
		"parent", parent.Short(),
		"continuation", contID.Short(),
		"target", target,
		"registrant", caller,
	)
	return contID, nil
}

// enginePrincipal is the creator identity of engine-owned promises
// (continuations, mirrors). External callers can never resolve them
// directly because they can never be this principal.
func (e *Environment) enginePrincipal() string {
	return "engine:" + e.name
}

// journalPromise upserts a promise snapshot into the journal, if one
// is attached. Failures are logged and execution continues.
func (e *Environment) journalPromise(p *Promise) {
	if e.journal == nil {
		return
	}
	rec := journal.PromiseRecord{
		ID:          p.ID.String(),
		Environment: e.name,
		Status:      p.Status.String(),
		Creator:     p.Creator,
		Kind:        p.Kind.String(),
		Value:       p.Value,
		Deadline:    p.Deadline,
		Seq:         p.Seq,
	}
	if err := e.journal.RecordPromise(context.Background(), rec); err != nil {
		slog.Error("journal promise write failed",
			"error", err,
			"env", e.name,
			"promise", p.ID.Short(),
		)
	}
}

// journalTransition appends a status transition, if a journal is
// attached.
func (e *Environment) journalTransition(p *Promise, from Status) {
	if e.journal == nil {
		return
	}
	rec := journal.TransitionRecord{
		Environment: e.name,
		PromiseID:   p.ID.String(),
		From:        from.String(),
		To:          p.Status.String(),
		Value:       p.Value,
		Seq:         e.clock.Current(),
	}
	if err := e.journal.RecordTransition(context.Background(), rec); err != nil {
		slog.Error("journal transition write failed",
			"error", err,
			"env", e.name,
			"promise", p.ID.Short(),
		)
	}
}

// journalMessage records an emitted envelope, if a journal is
// attached.
func (e *Environment) journalMessage(env messenger.Envelope) {
	if e.journal == nil {
		return
	}
	rec := journal.MessageRecord{
		ID:          env.ID,
		Kind:        string(env.Kind),
		Source:      env.Source,
		Dest:        env.Dest,
		Correlation: env.Correlation,
		Body:        env.Body,
		Seq:         env.Seq,
	}
	if err := e.journal.RecordMessage(context.Background(), rec); err != nil {
		slog.Error("journal message write failed",
			"error", err,
			"env", e.name,
			"message", env.ID,
		)
	}
}

// noteTerminal is the store's terminal-transition hook. It feeds the
// journal, the atomic coordinator, and any pending cross-chain return
// trip. Runs inside the transition call path, so it stays
// run-to-completion.
func (e *Environment) noteTerminal(p *Promise) {
	e.journalPromise(p)
	e.journalTransition(p, StatusPending)
	e.noteChildTerminal(p)
	e.noteReturnReady(p)
}
