package messenger

import (
	"encoding/json"
	"fmt"

	"github.com/seward/pledge/internal/ident"
)

// Kind distinguishes the three cross-environment message types.
type Kind string

const (
	// KindSetup binds a remote promise id to a callback target on the
	// destination. Must arrive before the matching execute message.
	KindSetup Kind = "setup"

	// KindExecute carries the resolved value of the forwarded parent.
	KindExecute Kind = "execute"

	// KindShare copies a terminal promise snapshot into the
	// destination's store under the same id. Used both for explicit
	// sharing and for the return trip that resolves a local proxy.
	KindShare Kind = "share"
)

// Envelope is one message in flight between two environments.
//
// The body is an opaque, self-describing JSON blob; the relay never
// interprets it. ID and Seq are assigned by the relay on send.
type Envelope struct {
	ID          string          `json:"id"`          // ULID, assigned on send
	Kind        Kind            `json:"kind"`
	Source      string          `json:"source"`      // sending environment
	Dest        string          `json:"dest"`        // receiving environment
	Correlation string          `json:"correlation"` // round-trip token, carried verbatim
	Seq         int64           `json:"seq"`         // relay-wide send order
	Body        json.RawMessage `json:"body"`
}

// SetupBody binds a deterministic remote promise id to a callback
// target. Registrant and SourceEnv are carried verbatim so capability
// checks on the destination see the original registrant, not the
// transport.
type SetupBody struct {
	PromiseID  ident.PromiseID `json:"promise_id"`
	Target     string          `json:"target"`
	Registrant string          `json:"registrant"`
	SourceEnv  string          `json:"source_env"`
	ReturnEnv  string          `json:"return_env"`
	ReturnID   ident.PromiseID `json:"return_id"`
}

// ExecuteBody carries the resolved parent value for a previously
// set up remote promise.
type ExecuteBody struct {
	PromiseID ident.PromiseID `json:"promise_id"`
	Value     []byte          `json:"value"`
}

// ShareBody is a terminal promise snapshot.
type ShareBody struct {
	PromiseID ident.PromiseID `json:"promise_id"`
	Status    string          `json:"status"` // "resolved" or "rejected"
	Value     []byte          `json:"value"`
}

// Messenger is the send half of the channel, as seen by an engine.
// The host provides delivery; the engine only emits.
type Messenger interface {
	// Send queues an envelope for delivery and returns its message id.
	Send(env Envelope) (string, error)
}

// Endpoint is the receive half, implemented by an engine environment.
// The relay passes its own principal as caller so the environment can
// enforce messenger-only entrypoints.
type Endpoint interface {
	DeliverMessage(caller string, env Envelope) error
}

// MarshalBody encodes a typed message body for an envelope.
func MarshalBody(body any) (json.RawMessage, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal message body: %w", err)
	}
	return raw, nil
}

// UnmarshalBody decodes an envelope body into the typed form for its
// kind. The target must match the envelope's kind.
func UnmarshalBody(env Envelope, into any) error {
	if err := json.Unmarshal(env.Body, into); err != nil {
		return fmt.Errorf("unmarshal %s body of message %s: %w", env.Kind, env.ID, err)
	}
	return nil
}
