package engine

import "github.com/seward/pledge/internal/ident"

// FlushChain walks the linear then-chain starting at startID, calling
// ExecutePromiseCallbacks on each link, and returns the number of
// steps executed.
//
// The walk stops at maxSteps or at the first non-terminal dependency -
// chains cannot execute out of order or skip steps. Starting on a
// pending promise fails NOT_READY; calling from inside a callback
// fails REENTRANT_CALL.
//
// maxSteps is the caller's budget: advancing a chain costs work, and
// whoever wants it advanced supplies the budget explicitly. A
// non-positive budget falls back to the environment's configured
// default.
func (e *Environment) FlushChain(startID ident.PromiseID, maxSteps int) (int, error) {
	if maxSteps <= 0 {
		maxSteps = e.maxSteps
	}
	if e.executing {
		e.reentrantTripped = true
		return 0, errf(ErrCodeReentrantCall, e.name, startID,
			"flush invoked during an active callback")
	}

	steps := 0
	cur := startID
	for steps < maxSteps {
		p, err := e.store.Get(cur)
		if err != nil {
			return steps, err
		}
		if !p.Status.Terminal() {
			if steps == 0 {
				return 0, errf(ErrCodeNotReady, e.name, cur,
					"chain head is still pending")
			}
			// Upstream executed as far as it can; the rest of the
			// chain waits for this dependency.
			break
		}

		if _, err := e.ExecutePromiseCallbacks(cur); err != nil {
			return steps, err
		}
		steps++

		next, ok := e.registry.NextInChain(cur)
		if !ok {
			break
		}
		cur = next
	}
	return steps, nil
}
