package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario: a set of environments,
// a sequence of steps against them, and assertions on the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names the golden
	// file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Environments lists the environment names to wire through one
	// relay. At least one is required.
	Environments []string `yaml:"environments"`

	// Steps is the ordered operation sequence.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final promise states and the trace.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one scenario operation. Op selects the operation; the other
// fields are read per-op. Promise fields carry symbolic names that the
// harness maps to derived ids.
type Step struct {
	// Op is one of: create, create_timeout, resolve, reject, then,
	// on_reject, then_remote, create_all, check_all, execute, flush,
	// poll, advance, drain.
	Op string `yaml:"op"`

	// Env names the environment the operation runs on. Not used by
	// advance and drain.
	Env string `yaml:"env,omitempty"`

	// Caller is the acting principal for create/resolve/reject and
	// registrations.
	Caller string `yaml:"caller,omitempty"`

	// Promise is the symbolic name the operation targets, or binds for
	// ops that produce a new promise (create, then, then_remote, ...).
	Promise string `yaml:"promise,omitempty"`

	// Parent is the symbolic name of the registration parent (then,
	// on_reject, then_remote).
	Parent string `yaml:"parent,omitempty"`

	// Target is the callback target reference (then, on_reject,
	// then_remote).
	Target string `yaml:"target,omitempty"`

	// ErrorTarget is the optional paired error target (then).
	ErrorTarget string `yaml:"error_target,omitempty"`

	// Dest is the destination environment (then_remote).
	Dest string `yaml:"dest,omitempty"`

	// Value is the payload for resolve and reject.
	Value string `yaml:"value,omitempty"`

	// Members lists the aggregate member names (create_all).
	Members []string `yaml:"members,omitempty"`

	// Deadline is the timeout deadline (create_timeout).
	Deadline int64 `yaml:"deadline,omitempty"`

	// By is the time delta for advance.
	By int64 `yaml:"by,omitempty"`

	// MaxSteps bounds flush; 0 means the default budget.
	MaxSteps int `yaml:"max_steps,omitempty"`

	// ExpectError asserts the operation fails with this engine error
	// code (e.g. "UNAUTHORIZED"). Without it, a step error fails the
	// scenario.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion validates final state or the trace.
type Assertion struct {
	// Type is one of: status, value, trace_order, trace_count,
	// relay_empty.
	Type string `yaml:"type"`

	// Env and Promise locate the promise (status, value).
	Env     string `yaml:"env,omitempty"`
	Promise string `yaml:"promise,omitempty"`

	// Expect is the expected status or value.
	Expect string `yaml:"expect,omitempty"`

	// Ops is the expected op order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Op and Count assert an op's occurrence count (trace_count).
	Op    string `yaml:"op,omitempty"`
	Count int    `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertStatus     = "status"
	AssertValue      = "value"
	AssertTraceOrder = "trace_order"
	AssertTraceCount = "trace_count"
	AssertRelayEmpty = "relay_empty"
)

// Step op constants.
const (
	OpCreate        = "create"
	OpCreateTimeout = "create_timeout"
	OpResolve       = "resolve"
	OpReject        = "reject"
	OpThen          = "then"
	OpOnReject      = "on_reject"
	OpThenRemote    = "then_remote"
	OpCreateAll     = "create_all"
	OpCheckAll      = "check_all"
	OpExecute       = "execute"
	OpFlush         = "flush"
	OpPoll          = "poll"
	OpAdvance       = "advance"
	OpDrain         = "drain"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields
// are rejected so typos fail loudly instead of silently skipping an
// assertion.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML bytes.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and step shapes up front, so
// execution never trips over a half-specified step midway through.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Environments) == 0 {
		return fmt.Errorf("environments list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	envs := make(map[string]bool, len(s.Environments))
	for _, name := range s.Environments {
		if name == "" {
			return fmt.Errorf("environment names must be non-empty")
		}
		if envs[name] {
			return fmt.Errorf("duplicate environment %q", name)
		}
		envs[name] = true
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step, envs); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a, envs); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st *Step, envs map[string]bool) error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("steps[%d] (%s): %s", index, st.Op, fmt.Sprintf(format, args...))
	}

	switch st.Op {
	case OpAdvance:
		if st.By <= 0 {
			return fail("by must be positive")
		}
		return nil
	case OpDrain:
		return nil
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	}

	if st.Env == "" {
		return fail("env is required")
	}
	if !envs[st.Env] {
		return fail("unknown environment %q", st.Env)
	}

	switch st.Op {
	case OpCreate:
		if st.Caller == "" || st.Promise == "" {
			return fail("caller and promise are required")
		}
	case OpCreateTimeout:
		if st.Caller == "" || st.Promise == "" {
			return fail("caller and promise are required")
		}
		if st.Deadline <= 0 {
			return fail("deadline must be positive")
		}
	case OpResolve, OpReject:
		if st.Caller == "" || st.Promise == "" {
			return fail("caller and promise are required")
		}
	case OpThen:
		if st.Caller == "" || st.Parent == "" || st.Target == "" || st.Promise == "" {
			return fail("caller, parent, target, and promise are required")
		}
	case OpOnReject:
		if st.Caller == "" || st.Parent == "" || st.Target == "" || st.Promise == "" {
			return fail("caller, parent, target, and promise are required")
		}
	case OpThenRemote:
		if st.Caller == "" || st.Parent == "" || st.Target == "" || st.Promise == "" || st.Dest == "" {
			return fail("caller, parent, target, dest, and promise are required")
		}
		if !envs[st.Dest] {
			return fail("unknown destination environment %q", st.Dest)
		}
	case OpCreateAll:
		if st.Caller == "" || st.Promise == "" || st.Members == nil {
			return fail("caller, promise, and members are required (members may be an empty list)")
		}
	case OpCheckAll, OpExecute, OpFlush, OpPoll:
		if st.Promise == "" {
			return fail("promise is required")
		}
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, st.Op)
	}
	return nil
}

func validateAssertion(index int, a *Assertion, envs map[string]bool) error {
	switch a.Type {
	case AssertStatus, AssertValue:
		if a.Env == "" || a.Promise == "" {
			return fmt.Errorf("assertions[%d]: env and promise are required for %s", index, a.Type)
		}
		if !envs[a.Env] {
			return fmt.Errorf("assertions[%d]: unknown environment %q", index, a.Env)
		}
		if a.Type == AssertStatus && a.Expect == "" {
			return fmt.Errorf("assertions[%d]: expect is required for status", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertRelayEmpty:
		// No fields.
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
