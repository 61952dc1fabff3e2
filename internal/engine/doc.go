// Package engine implements the promise lifecycle state machine and
// everything that advances it: the callback registry and executor, the
// chain flusher, the cross-chain forwarder, the atomic fan-out
// coordinator, the Promise.all aggregator, and the callback
// authentication context.
//
// Each Environment is sovereign: single-threaded, run-to-completion,
// and advanced only by explicit calls. Nothing resolves, fires, or
// retries on its own. Environments interact exclusively through the
// messenger channel; there is no shared mutable state between them.
//
// INVARIANTS:
//   - A promise transitions Pending -> {Resolved|Rejected} exactly once
//   - Only the creator may resolve or reject a promise
//   - Callbacks run only on explicit ExecutePromiseCallbacks/FlushChain
//   - Registrant and source environment are carried verbatim across
//     relays, never re-derived from the immediate caller
package engine
