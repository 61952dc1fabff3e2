// Package journal provides durable storage for promise engine event
// logs: promise snapshots, status transitions, and emitted messages.
//
// The journal is an audit and recovery surface, not the ground truth -
// the in-memory store owns current state, and the engine treats
// journal write failures as log-and-continue. SQLite with WAL mode
// allows concurrent readers (trace tooling) while one environment
// writes.
package journal
