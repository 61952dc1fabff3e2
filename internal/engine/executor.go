package engine

import (
	"fmt"
	"log/slog"

	"github.com/seward/pledge/internal/ident"
)

// ExecutePromiseCallbacks runs the callbacks registered against a
// terminal promise, in registration order, and settles each
// continuation from its callback's outcome. Returns the number of
// descriptors executed.
//
// Fails NOT_READY if the promise is still pending and REENTRANT_CALL
// if invoked from inside an active callback. Each descriptor executes
// at most once; a second call skips already-executed descriptors.
//
// Separating "resolve" from "run callbacks" decouples the cost of
// producing a result from the cost of reacting to it: resolution is
// cheap, and whoever wants the follow-on work pays for it here.
func (e *Environment) ExecutePromiseCallbacks(id ident.PromiseID) (int, error) {
	if e.executing {
		e.reentrantTripped = true
		return 0, errf(ErrCodeReentrantCall, e.name, id,
			"executor invoked during an active callback")
	}

	p, err := e.store.Get(id)
	if err != nil {
		return 0, err
	}
	if !p.Status.Terminal() {
		return 0, errf(ErrCodeNotReady, e.name, id,
			"promise is still pending; resolve it before executing callbacks")
	}

	executed := 0
	for _, d := range e.registry.Descriptors(id) {
		if d.executed {
			continue
		}
		d.executed = true

		var runErr error
		if d.Kind == KindForward {
			runErr = e.emitForward(d, p)
		} else {
			runErr = e.runDescriptor(d, p)
		}
		if runErr != nil {
			// Infrastructure failure (store fault, missing messenger),
			// not a callback failure - those were already routed to the
			// continuation. Surface it; the descriptor stays consumed.
			return executed, fmt.Errorf("execute callbacks for %s: %w", id.Short(), runErr)
		}
		executed++
	}

	slog.Debug("callbacks executed",
		"env", e.name,
		"promise", id.Short(),
		"count", executed,
	)
	return executed, nil
}

// runDescriptor executes one Then/Catch descriptor against its
// terminal parent and settles the continuation.
//
// A callback target failure is the one recovered error category: it is
// caught here, routed to the paired error handler if present, and
// otherwise translated into a rejected continuation carrying the
// failure payload verbatim. One bad callback never halts unrelated
// chains.
func (e *Environment) runDescriptor(d *CallbackDescriptor, parent *Promise) error {
	switch parent.Status {
	case StatusResolved:
		if d.Kind == KindCatch {
			// No failure to handle; the value passes through.
			callbacksExecuted.WithLabelValues(e.name, "passthrough").Inc()
			return e.settleContinuation(d.ContinuationID, StatusResolved, parent.Value)
		}
		out, err := e.invoke(d.Target, d, parent.Value)
		if err != nil {
			if IsReentrantCall(err) || IsUnknownTarget(err) {
				// Engine violations are not callback failures: a poisoned
				// invocation or a target with no handler rejects the
				// continuation outright, paired error handler or not.
				callbacksExecuted.WithLabelValues(e.name, "rejected").Inc()
				return e.settleContinuation(d.ContinuationID, StatusRejected, failurePayload(err))
			}
			return e.recoverFailure(d, err)
		}
		return e.applyOutcome(d, out)

	case StatusRejected:
		target := d.ErrorTarget
		if d.Kind == KindCatch {
			target = d.Target
		}
		if target == "" {
			// No error handler registered: the rejection propagates
			// verbatim down the chain.
			callbacksExecuted.WithLabelValues(e.name, "rejected").Inc()
			return e.settleContinuation(d.ContinuationID, StatusRejected, parent.Value)
		}
		out, err := e.invoke(target, d, parent.Value)
		if err != nil {
			callbacksExecuted.WithLabelValues(e.name, "rejected").Inc()
			return e.settleContinuation(d.ContinuationID, StatusRejected, failurePayload(err))
		}
		return e.applyOutcome(d, out)

	default:
		return errf(ErrCodeNotReady, e.name, parent.ID, "promise is still pending")
	}
}

// recoverFailure handles a success handler's own failure: route to the
// paired error handler if registered, else reject the continuation.
// Engine violations never reach here; runDescriptor rejects those
// before the recovery route.
func (e *Environment) recoverFailure(d *CallbackDescriptor, cause error) error {
	if d.ErrorTarget == "" {
		callbacksExecuted.WithLabelValues(e.name, "rejected").Inc()
		return e.settleContinuation(d.ContinuationID, StatusRejected, failurePayload(cause))
	}
	out, err := e.invoke(d.ErrorTarget, d, failurePayload(cause))
	if err != nil {
		callbacksExecuted.WithLabelValues(e.name, "rejected").Inc()
		return e.settleContinuation(d.ContinuationID, StatusRejected, failurePayload(err))
	}
	return e.applyOutcome(d, out)
}

// invoke runs a handler under the descriptor's authentication context.
//
// The context and reentrancy flag are set immediately before the call
// and cleared unconditionally after it, success or failure - without
// the unconditional clear, a failing callback would leak stale auth
// state into the next unrelated invocation.
func (e *Environment) invoke(target string, d *CallbackDescriptor, value []byte) (out Outcome, err error) {
	fn, err := e.handlers.Lookup(target)
	if err != nil {
		return Outcome{}, err
	}

	ctx := &CallbackContext{
		registrant: d.Registrant,
		sourceEnv:  d.SourceEnv,
		env:        e,
	}
	e.active = ctx
	e.executing = true
	e.reentrantTripped = false

	func() {
		defer func() {
			e.active = nil
			e.executing = false
			if r := recover(); r != nil {
				err = fmt.Errorf("callback %s panicked: %v", target, r)
			}
		}()
		out, err = fn(ctx, value)
	}()

	if e.reentrantTripped {
		// The callback re-entered the executor. Even if it swallowed
		// the error, the invocation is poisoned: fail it so the outer
		// continuation ends rejected, never resolved.
		e.reentrantTripped = false
		return Outcome{}, errf(ErrCodeReentrantCall, e.name, d.ParentID,
			"callback %s re-entered the executor", target)
	}
	return out, err
}

// applyOutcome settles the continuation from a successful handler
// return: a direct value resolves it now, a child set defers it to
// the atomic coordinator.
func (e *Environment) applyOutcome(d *CallbackDescriptor, out Outcome) error {
	switch out.kind {
	case outcomeImmediate:
		callbacksExecuted.WithLabelValues(e.name, "resolved").Inc()
		return e.settleContinuation(d.ContinuationID, StatusResolved, out.value)
	case outcomeAwaitChildren:
		callbacksExecuted.WithLabelValues(e.name, "children").Inc()
		return e.registerAtomic(d.ContinuationID, out.children)
	default:
		return fmt.Errorf("apply outcome: unknown outcome kind %d", out.kind)
	}
}

// settleContinuation performs an engine-authorized terminal transition
// on a continuation.
func (e *Environment) settleContinuation(id ident.PromiseID, status Status, value []byte) error {
	if err := e.store.resolveInternal(id, status, value); err != nil {
		return fmt.Errorf("settle continuation %s: %w", id.Short(), err)
	}
	return nil
}

// failurePayload converts a callback failure into the opaque payload
// carried by the rejected continuation.
func failurePayload(err error) []byte {
	return []byte(err.Error())
}
