package harness

// TraceEvent records one executed scenario step.
//
// Promise names are the scenario's symbolic names, never derived ids,
// so golden files can be written and reviewed by hand.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Op      string `json:"op"`
	Env     string `json:"env,omitempty"`
	Promise string `json:"promise,omitempty"`
	Result  string `json:"result,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step and assertion succeeded.
	Pass bool `json:"pass"`

	// Trace contains one event per executed step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains step and assertion failure messages.
	// Empty iff Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result to accumulate into.
func NewResult() *Result {
	return &Result{
		Pass:  true,
		Trace: []TraceEvent{},
	}
}

// AddError records a failure message and marks the result failed.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

// AddTrace appends one step event. Seq is assigned from the event
// count, starting at 1.
func (r *Result) AddTrace(op, env, promise, result string) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:     int64(len(r.Trace) + 1),
		Op:      op,
		Env:     env,
		Promise: promise,
		Result:  result,
	})
}
