package harness

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/seward/pledge/internal/engine"
	"github.com/seward/pledge/internal/ident"
	"github.com/seward/pledge/internal/messenger"
	"github.com/seward/pledge/internal/testutil"
)

// Harness executes one scenario against a fresh set of environments
// wired through an in-memory relay.
//
// Determinism: each environment gets a counting correlation token
// generator seeded with its own name, every clock starts at zero, and
// relay drains visit pairs in sorted order. The same scenario always
// yields the same trace.
type Harness struct {
	relay *messenger.Relay
	envs  map[string]*engine.Environment
	time  *testutil.SimTime

	// names maps the scenario's symbolic promise names to derived ids.
	names map[string]ident.PromiseID
}

// Run executes a scenario and returns the result. A non-nil error
// means the harness itself could not run; step and assertion failures
// are reported through the result instead.
func Run(scenario *Scenario) (*Result, error) {
	h := &Harness{
		relay: messenger.NewRelay(),
		envs:  make(map[string]*engine.Environment, len(scenario.Environments)),
		time:  testutil.NewSimTime(),
		names: make(map[string]ident.PromiseID),
	}

	for _, name := range scenario.Environments {
		env := engine.New(name,
			engine.WithMessenger(h.relay),
			engine.WithTokenGenerator(engine.NewCountingGenerator("corr-"+name)),
		)
		registerBuiltins(env)
		h.relay.Register(name, env)
		h.envs[name] = env
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(&step, result); err != nil {
			return nil, fmt.Errorf("steps[%d] (%s): %w", i, step.Op, err)
		}
	}

	actx := &AssertionContext{
		Envs:  h.envs,
		Names: h.names,
		Relay: h.relay,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// registerBuiltins installs the handler set scenarios may target.
// Payloads are ASCII decimal for the math targets and raw bytes for
// the rest.
func registerBuiltins(env *engine.Environment) {
	env.RegisterHandler("math.double", func(_ *engine.CallbackContext, v []byte) (engine.Outcome, error) {
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return engine.Outcome{}, err
		}
		return engine.Immediate([]byte(strconv.FormatInt(n*2, 10))), nil
	})
	env.RegisterHandler("math.increment", func(_ *engine.CallbackContext, v []byte) (engine.Outcome, error) {
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return engine.Outcome{}, err
		}
		return engine.Immediate([]byte(strconv.FormatInt(n+1, 10))), nil
	})
	env.RegisterHandler("echo.value", func(_ *engine.CallbackContext, v []byte) (engine.Outcome, error) {
		return engine.Immediate(v), nil
	})
	env.RegisterHandler("fail.always", func(_ *engine.CallbackContext, _ []byte) (engine.Outcome, error) {
		return engine.Outcome{}, errors.New("handler exploded")
	})
	env.RegisterHandler("recover.note", func(_ *engine.CallbackContext, v []byte) (engine.Outcome, error) {
		return engine.Immediate(append([]byte("recovered:"), v...)), nil
	})
}

// executeStep runs one step, records its trace event, and routes
// expected and unexpected errors into the result. The returned error
// is reserved for harness faults (e.g. an unbound promise name).
func (h *Harness) executeStep(st *Step, result *Result) error {
	outcome, err := h.dispatch(st)

	if st.ExpectError != "" {
		code := engineErrorCode(err)
		if code != st.ExpectError {
			result.AddError(fmt.Sprintf(
				"step %s on %q: expected error %s, got %v", st.Op, st.Promise, st.ExpectError, err))
			return nil
		}
		result.AddTrace(st.Op, st.Env, st.Promise, "error "+code)
		return nil
	}

	if err != nil {
		var herr *harnessFault
		if errors.As(err, &herr) {
			return err
		}
		result.AddError(fmt.Sprintf("step %s on %q failed: %v", st.Op, st.Promise, err))
		result.AddTrace(st.Op, st.Env, st.Promise, "error "+engineErrorCode(err))
		return nil
	}

	result.AddTrace(st.Op, st.Env, st.Promise, outcome)
	return nil
}

// harnessFault marks errors in the scenario wiring itself, as opposed
// to engine errors a step may legitimately expect.
type harnessFault struct{ msg string }

func (f *harnessFault) Error() string { return f.msg }

func faultf(format string, args ...any) error {
	return &harnessFault{msg: fmt.Sprintf(format, args...)}
}

// dispatch executes one step and returns its trace result string.
func (h *Harness) dispatch(st *Step) (string, error) {
	switch st.Op {
	case OpAdvance:
		now := h.time.Advance(st.By)
		return fmt.Sprintf("now %d", now), nil
	case OpDrain:
		n, err := h.relay.DrainAll(engine.DefaultMaxSteps)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("delivered %d", n), nil
	}

	env, ok := h.envs[st.Env]
	if !ok {
		return "", faultf("unknown environment %q", st.Env)
	}

	switch st.Op {
	case OpCreate:
		id, err := env.Create(st.Caller)
		if err != nil {
			return "", err
		}
		h.names[st.Promise] = id
		return "pending", nil

	case OpCreateTimeout:
		id, err := env.CreateTimeout(st.Caller, st.Deadline)
		if err != nil {
			return "", err
		}
		h.names[st.Promise] = id
		return "pending", nil

	case OpResolve:
		id, err := h.lookup(st.Promise)
		if err != nil {
			return "", err
		}
		if err := env.Resolve(st.Caller, id, []byte(st.Value)); err != nil {
			return "", err
		}
		return "resolved", nil

	case OpReject:
		id, err := h.lookup(st.Promise)
		if err != nil {
			return "", err
		}
		if err := env.Reject(st.Caller, id, []byte(st.Value)); err != nil {
			return "", err
		}
		return "rejected", nil

	case OpThen:
		parent, err := h.lookup(st.Parent)
		if err != nil {
			return "", err
		}
		var cont ident.PromiseID
		if st.ErrorTarget != "" {
			cont, err = env.Then(st.Caller, parent, st.Target, st.ErrorTarget)
		} else {
			cont, err = env.Then(st.Caller, parent, st.Target)
		}
		if err != nil {
			return "", err
		}
		h.names[st.Promise] = cont
		return "registered", nil

	case OpOnReject:
		parent, err := h.lookup(st.Parent)
		if err != nil {
			return "", err
		}
		cont, err := env.OnReject(st.Caller, parent, st.Target)
		if err != nil {
			return "", err
		}
		h.names[st.Promise] = cont
		return "registered", nil

	case OpThenRemote:
		parent, err := h.lookup(st.Parent)
		if err != nil {
			return "", err
		}
		proxy, err := env.ThenRemote(st.Caller, parent, st.Dest, st.Target)
		if err != nil {
			return "", err
		}
		h.names[st.Promise] = proxy
		return "registered", nil

	case OpCreateAll:
		members := make([]ident.PromiseID, len(st.Members))
		for i, name := range st.Members {
			id, err := h.lookup(name)
			if err != nil {
				return "", err
			}
			members[i] = id
		}
		id, err := env.CreateAll(st.Caller, members)
		if err != nil {
			return "", err
		}
		h.names[st.Promise] = id
		return "created", nil

	case OpCheckAll:
		id, err := h.lookup(st.Promise)
		if err != nil {
			return "", err
		}
		ready, failed, _, err := env.CheckAll(id)
		if err != nil {
			return "", err
		}
		switch {
		case failed:
			return "failed", nil
		case ready:
			return "ready", nil
		default:
			return "waiting", nil
		}

	case OpExecute:
		id, err := h.lookup(st.Promise)
		if err != nil {
			return "", err
		}
		n, err := env.ExecutePromiseCallbacks(id)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("executed %d", n), nil

	case OpFlush:
		id, err := h.lookup(st.Promise)
		if err != nil {
			return "", err
		}
		budget := st.MaxSteps
		if budget <= 0 {
			budget = engine.DefaultMaxSteps
		}
		steps, err := env.FlushChain(id, budget)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("steps %d", steps), nil

	case OpPoll:
		id, err := h.lookup(st.Promise)
		if err != nil {
			return "", err
		}
		fired, err := env.PollTimeout(id, h.time.Now())
		if err != nil {
			return "", err
		}
		if fired {
			return "fired", nil
		}
		return "waiting", nil

	default:
		return "", faultf("unknown op %q", st.Op)
	}
}

// lookup resolves a symbolic promise name.
func (h *Harness) lookup(name string) (ident.PromiseID, error) {
	id, ok := h.names[name]
	if !ok {
		return ident.PromiseID{}, faultf("promise name %q is not bound; bind it with a create/then step first", name)
	}
	return id, nil
}

// engineErrorCode extracts the engine error code string from err, or
// "" when err is nil or not an engine error.
func engineErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var ee *engine.EngineError
	if errors.As(err, &ee) {
		return string(ee.Code)
	}
	return ""
}
