package harness

import (
	"fmt"
	"strings"

	"github.com/seward/pledge/internal/engine"
	"github.com/seward/pledge/internal/ident"
	"github.com/seward/pledge/internal/messenger"
)

// AssertionContext carries the final scenario state assertions read
// from.
type AssertionContext struct {
	Envs  map[string]*engine.Environment
	Names map[string]ident.PromiseID
	Relay *messenger.Relay
}

// AssertionError is returned when an assertion fails. It includes the
// trace so a failure message is debuggable on its own.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  actual: %s\n", e.Actual)
	fmt.Fprintf(&buf, "\ntrace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s %s -> %s\n", ev.Seq, ev.Op, ev.Env, ev.Promise, ev.Result)
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages. All assertions run even after a failure, so one run
// reports everything that is wrong.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertStatus:
			err = assertStatus(result.Trace, a, actx)
		case AssertValue:
			err = assertValue(result.Trace, a, actx)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertRelayEmpty:
			err = assertRelayEmpty(result.Trace, actx)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

// resolvePromise locates the promise an assertion names.
func resolvePromise(a Assertion, actx *AssertionContext) (*engine.Environment, ident.PromiseID, error) {
	env, ok := actx.Envs[a.Env]
	if !ok {
		return nil, ident.PromiseID{}, fmt.Errorf("unknown environment %q", a.Env)
	}
	id, ok := actx.Names[a.Promise]
	if !ok {
		return nil, ident.PromiseID{}, fmt.Errorf("promise name %q is not bound", a.Promise)
	}
	return env, id, nil
}

// assertStatus checks the final status of one promise.
func assertStatus(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	env, id, err := resolvePromise(a, actx)
	if err != nil {
		return err
	}
	status, err := env.Status(id)
	if err != nil {
		return err
	}
	if status.String() != a.Expect {
		return &AssertionError{
			Type:     AssertStatus,
			Expected: fmt.Sprintf("%s on %s is %s", a.Promise, a.Env, a.Expect),
			Actual:   status.String(),
			Trace:    trace,
		}
	}
	return nil
}

// assertValue checks the final payload of one promise. The expected
// value is compared as a string; an empty expect matches an empty
// payload.
func assertValue(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	env, id, err := resolvePromise(a, actx)
	if err != nil {
		return err
	}
	value, err := env.Value(id)
	if err != nil {
		return err
	}
	if string(value) != a.Expect {
		return &AssertionError{
			Type:     AssertValue,
			Expected: fmt.Sprintf("%s on %s has value %q", a.Promise, a.Env, a.Expect),
			Actual:   fmt.Sprintf("%q", string(value)),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks that ops appear in the given order.
// Intervening ops are allowed; each listed op matches its first
// occurrence after the previous match.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	pos := 0
	for _, want := range a.Ops {
		found := false
		for ; pos < len(trace); pos++ {
			if trace[pos].Op == want {
				found = true
				pos++
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("ops in order: %v", a.Ops),
				Actual:   fmt.Sprintf("op %q not found in remaining trace", want),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that an op appears exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Op == a.Op {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("op %q appears %d times", a.Op, a.Count),
			Actual:   fmt.Sprintf("appeared %d times", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertRelayEmpty checks that no messages are left in flight.
func assertRelayEmpty(trace []TraceEvent, actx *AssertionContext) error {
	if n := actx.Relay.PendingTotal(); n != 0 {
		return &AssertionError{
			Type:     AssertRelayEmpty,
			Expected: "no pending messages",
			Actual:   fmt.Sprintf("%d pending", n),
			Trace:    trace,
		}
	}
	return nil
}
