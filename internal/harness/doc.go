// Package harness provides a conformance testing framework for the
// pledge engine.
//
// Scenarios are YAML files describing a multi-environment promise
// flow: create promises under symbolic names, register callbacks,
// settle, execute, drain the relay, and assert on the resulting
// statuses, values, and step trace. Execution is fully deterministic:
// every environment gets a counting correlation token generator and a
// fresh logical clock, so the same scenario always produces a
// byte-identical trace for golden comparison.
//
// Symbolic names decouple scenarios from content-addressed promise
// ids: a scenario says "p1", the harness maps it to whatever id the
// engine derived, and the trace and golden files stay hand-readable.
package harness
