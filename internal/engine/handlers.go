package engine

import (
	"encoding/json"
	"fmt"

	"github.com/seward/pledge/internal/ident"
)

// outcomeKind tags a handler result.
type outcomeKind int

const (
	outcomeImmediate outcomeKind = iota
	outcomeAwaitChildren
)

// Outcome is the tagged result of a callback handler.
//
// A handler either returns a direct value (the common case) or hands
// back the child promises it created, deferring the continuation until
// all of them complete. The distinction is a first-class type rather
// than a payload-shape convention, so the executor never has to guess
// intent.
type Outcome struct {
	kind     outcomeKind
	value    []byte
	children []ident.PromiseID
}

// Immediate returns an outcome that resolves the continuation with
// value as soon as the handler returns.
func Immediate(value []byte) Outcome {
	return Outcome{kind: outcomeImmediate, value: value}
}

// AwaitChildren returns an outcome that defers the continuation until
// every listed child promise completes. The continuation then resolves
// with the order-preserving aggregate of the child results.
//
// An empty list resolves the continuation immediately with an empty
// aggregate.
func AwaitChildren(children ...ident.PromiseID) Outcome {
	return Outcome{kind: outcomeAwaitChildren, children: children}
}

// HandlerFunc is a callback target. The context carries the verbatim
// registrant and source environment for the invocation; value is the
// parent promise's terminal payload.
//
// Payloads are opaque, self-describing binary blobs - the engine never
// interprets them, only handlers do.
type HandlerFunc func(ctx *CallbackContext, value []byte) (Outcome, error)

// HandlerRegistry maps callback target references to handlers.
//
// Target references use the "name.selector" form, e.g.
// "escrow.release". The registry stands in for the deterministic
// deployment capability: the same logical target resolves to the same
// reference on every environment.
type HandlerRegistry struct {
	environment string
	handlers    map[string]HandlerFunc
}

// NewHandlerRegistry creates an empty handler registry.
func NewHandlerRegistry(environment string) *HandlerRegistry {
	return &HandlerRegistry{
		environment: environment,
		handlers:    make(map[string]HandlerFunc),
	}
}

// Register binds a handler to a target reference.
// Re-registering a target replaces the previous handler.
func (r *HandlerRegistry) Register(target string, fn HandlerFunc) {
	r.handlers[target] = fn
}

// Lookup resolves a target reference.
func (r *HandlerRegistry) Lookup(target string) (HandlerFunc, error) {
	fn, ok := r.handlers[target]
	if !ok {
		return nil, errf(ErrCodeUnknownTarget, r.environment, ident.PromiseID{},
			"no handler registered for target %q", target)
	}
	return fn, nil
}

// AggregateResults encodes an ordered child result list as the
// continuation payload of an atomic fan-out. JSON keeps the aggregate
// self-describing like every other payload.
func AggregateResults(results [][]byte) ([]byte, error) {
	out, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("aggregate results: %w", err)
	}
	return out, nil
}

// SplitAggregate decodes an aggregate payload back into the ordered
// child result list.
func SplitAggregate(payload []byte) ([][]byte, error) {
	var results [][]byte
	if err := json.Unmarshal(payload, &results); err != nil {
		return nil, fmt.Errorf("split aggregate: %w", err)
	}
	return results, nil
}
