package engine

import (
	"fmt"

	"github.com/seward/pledge/internal/ident"
)

// Status is the lifecycle state of a promise.
type Status int

const (
	// StatusPending is the initial state. Value is empty iff pending.
	StatusPending Status = iota
	// StatusResolved is terminal success.
	StatusResolved
	// StatusRejected is terminal failure.
	StatusRejected
)

// String returns the wire form of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusResolved:
		return "resolved"
	case StatusRejected:
		return "rejected"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether the status is Resolved or Rejected.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// ParseStatus decodes the wire form of a status.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "pending":
		return StatusPending, nil
	case "resolved":
		return StatusResolved, nil
	case "rejected":
		return StatusRejected, nil
	default:
		return StatusPending, fmt.Errorf("parse status: unknown status %q", s)
	}
}

// Kind distinguishes promise variants.
//
// Proxy pendingness is a tagged variant, not inferred from record
// absence: a proxy is a real local promise that happens to mirror a
// value owned elsewhere.
type Kind int

const (
	// KindLocal is an ordinary locally-owned promise.
	KindLocal Kind = iota
	// KindProxy is a local promise sharing the deterministic id of a
	// not-yet-existing remote value.
	KindProxy
	// KindTimeout is a promise resolvable once an external monotonic
	// clock passes its stored deadline. Polled, never fired by a timer.
	KindTimeout
)

// String returns the wire form of the kind.
func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindProxy:
		return "proxy"
	case KindTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind decodes the wire form of a kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "local":
		return KindLocal, nil
	case "proxy":
		return KindProxy, nil
	case "timeout":
		return KindTimeout, nil
	default:
		return KindLocal, fmt.Errorf("parse kind: unknown kind %q", s)
	}
}

// RemoteRef identifies the remote half of a proxy promise.
type RemoteRef struct {
	Env string
	ID  ident.PromiseID
}

// Promise is the ground-truth single-assignment record for one
// promise.
//
// The registration nonce is an explicit per-promise field, not a
// global counter: continuation and remote ids derive from it, and
// keeping it per-promise means registrations on unrelated parents can
// never collide.
type Promise struct {
	ID       ident.PromiseID
	Status   Status
	Value    []byte
	Creator  string
	Kind     Kind
	Remote   *RemoteRef // non-nil iff Kind == KindProxy
	Deadline int64      // meaningful iff Kind == KindTimeout
	Seq      int64      // logical clock reading at creation

	nonce uint64 // per-promise registration counter
}
