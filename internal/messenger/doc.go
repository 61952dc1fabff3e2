// Package messenger models the point-to-point cross-environment
// message channel and provides an in-memory relay for tests and
// simulations.
//
// The channel contract the engine depends on:
//   - at-least-once delivery of opaque payloads
//   - send-order preserved within one (source, destination) pair
//   - no ordering guarantee across unrelated pairs
//
// Delivery is manual: nothing moves until a caller steps the relay.
// This mirrors the engine's "someone must pay to advance" model.
package messenger
