package engine

import "github.com/seward/pledge/internal/ident"

// CallbackContext is the transient per-invocation authentication
// context: who registered the executing callback, and from which
// environment. It is valid only for the duration of one handler call.
//
// The context is threaded into the handler explicitly and also
// queryable through the environment's ambient accessors, which exist
// for callers that receive only the environment.
type CallbackContext struct {
	registrant string
	sourceEnv  string
	env        *Environment
}

// Registrant returns the principal that registered the callback,
// carried verbatim across relays.
func (c *CallbackContext) Registrant() string { return c.registrant }

// SourceChain returns the environment the registration originated
// from, carried verbatim across relays.
func (c *CallbackContext) SourceChain() string { return c.sourceEnv }

// CreateChild allocates a pending child promise owned by the
// callback's registrant. Children created before the handler returns
// can be handed back via AwaitChildren for atomic fan-out.
func (c *CallbackContext) CreateChild() (ident.PromiseID, error) {
	p, err := c.env.store.Create(c.registrant)
	if err != nil {
		return ident.PromiseID{}, err
	}
	c.env.journalPromise(p)
	return p.ID, nil
}

// CallbackRegistrant returns the registrant of the currently executing
// callback. Fails NO_ACTIVE_CALLBACK outside an active invocation.
func (e *Environment) CallbackRegistrant() (string, error) {
	if e.active == nil {
		return "", errf(ErrCodeNoActiveCallback, e.name, ident.PromiseID{},
			"no callback is currently executing")
	}
	return e.active.registrant, nil
}

// CallbackSourceChain returns the source environment of the currently
// executing callback. Fails NO_ACTIVE_CALLBACK outside an active
// invocation.
func (e *Environment) CallbackSourceChain() (string, error) {
	if e.active == nil {
		return "", errf(ErrCodeNoActiveCallback, e.name, ident.PromiseID{},
			"no callback is currently executing")
	}
	return e.active.sourceEnv, nil
}

// CallbackContext returns the full context of the currently executing
// callback. Fails NO_ACTIVE_CALLBACK outside an active invocation.
func (e *Environment) CallbackContext() (*CallbackContext, error) {
	if e.active == nil {
		return nil, errf(ErrCodeNoActiveCallback, e.name, ident.PromiseID{},
			"no callback is currently executing")
	}
	return e.active, nil
}
