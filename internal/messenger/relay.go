package messenger

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
)

// DefaultPrincipal is the caller identity the relay presents to
// endpoints. Environments configured with this principal accept the
// relay on their messenger-only entrypoints.
const DefaultPrincipal = "relay"

// pairKey identifies one ordered (source, dest) channel.
type pairKey struct {
	src string
	dst string
}

func (k pairKey) String() string { return k.src + "->" + k.dst }

// Relay is an in-memory message channel between registered
// environments.
//
// Each (source, dest) pair has its own FIFO queue; order is preserved
// within a pair and deliberately not across pairs. Delivery is manual:
// DeliverNext and DrainAll are the only ways a message reaches an
// endpoint.
//
// Thread-safety: Send may be called from any goroutine (endpoints emit
// during delivery). Delivery itself is single-threaded by convention,
// matching the engine's run-to-completion model.
type Relay struct {
	mu        sync.Mutex
	principal string
	endpoints map[string]Endpoint
	queues    map[pairKey][]Envelope
	seq       int64
}

// NewRelay creates an empty relay using DefaultPrincipal.
func NewRelay() *Relay {
	return &Relay{
		principal: DefaultPrincipal,
		endpoints: make(map[string]Endpoint),
		queues:    make(map[pairKey][]Envelope),
	}
}

// Principal returns the caller identity the relay uses on delivery.
func (r *Relay) Principal() string { return r.principal }

// Register attaches an environment's endpoint under its name.
// Later registrations under the same name replace earlier ones.
func (r *Relay) Register(name string, ep Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[name] = ep
}

// Send queues an envelope and returns its assigned message id.
// Implements Messenger.
func (r *Relay) Send(env Envelope) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if env.Source == "" || env.Dest == "" {
		return "", fmt.Errorf("send: envelope requires source and dest")
	}
	if _, ok := r.endpoints[env.Dest]; !ok {
		return "", fmt.Errorf("send: unknown destination environment %q", env.Dest)
	}

	env.ID = ulid.Make().String()
	r.seq++
	env.Seq = r.seq

	key := pairKey{src: env.Source, dst: env.Dest}
	r.queues[key] = append(r.queues[key], env)

	slog.Debug("message queued",
		"id", env.ID,
		"kind", env.Kind,
		"pair", key.String(),
		"seq", env.Seq,
	)

	return env.ID, nil
}

// Pending returns the number of undelivered messages for one pair.
func (r *Relay) Pending(src, dst string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queues[pairKey{src: src, dst: dst}])
}

// PendingTotal returns the number of undelivered messages overall.
func (r *Relay) PendingTotal() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, q := range r.queues {
		total += len(q)
	}
	return total
}

// DeliverNext delivers the oldest message of one (source, dest) pair.
// Returns the delivered envelope, or ok=false if the queue is empty.
//
// A delivery error is returned to the caller but the message is still
// consumed: the channel is at-least-once, not transactional, and the
// engine's error taxonomy (not redelivery) handles bad messages.
func (r *Relay) DeliverNext(src, dst string) (Envelope, bool, error) {
	r.mu.Lock()
	key := pairKey{src: src, dst: dst}
	q := r.queues[key]
	if len(q) == 0 {
		r.mu.Unlock()
		return Envelope{}, false, nil
	}
	env := q[0]
	// Nil out the slot so the backing array releases the body.
	q[0] = Envelope{}
	if len(q) == 1 {
		r.queues[key] = q[:0]
	} else {
		r.queues[key] = q[1:]
	}
	ep := r.endpoints[dst]
	r.mu.Unlock()

	if ep == nil {
		return env, true, fmt.Errorf("deliver: no endpoint for %q", dst)
	}

	if err := ep.DeliverMessage(r.principal, env); err != nil {
		// Log with full message context and surface the error.
		slog.Error("message delivery failed",
			"error", err,
			"id", env.ID,
			"kind", env.Kind,
			"pair", key.String(),
		)
		return env, true, err
	}

	slog.Debug("message delivered",
		"id", env.ID,
		"kind", env.Kind,
		"pair", key.String(),
	)

	return env, true, nil
}

// DrainAll repeatedly delivers pending messages across all pairs until
// the relay is empty or maxDeliveries is reached. Pairs are visited in
// sorted order so drains are deterministic.
//
// Returns the number of messages delivered. Delivery errors stop the
// drain; the failed message is consumed.
func (r *Relay) DrainAll(maxDeliveries int) (int, error) {
	delivered := 0
	for delivered < maxDeliveries {
		src, dst, ok := r.nextPair()
		if !ok {
			return delivered, nil
		}
		_, ok, err := r.DeliverNext(src, dst)
		if err != nil {
			return delivered, err
		}
		if ok {
			delivered++
		}
	}
	if r.PendingTotal() > 0 {
		return delivered, fmt.Errorf("drain: delivery budget %d exhausted with %d messages pending", maxDeliveries, r.PendingTotal())
	}
	return delivered, nil
}

// nextPair picks the first non-empty pair in sorted order.
func (r *Relay) nextPair() (src, dst string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]pairKey, 0, len(r.queues))
	for k, q := range r.queues {
		if len(q) > 0 {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "", "", false
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].src != keys[j].src {
			return keys[i].src < keys[j].src
		}
		return keys[i].dst < keys[j].dst
	})
	return keys[0].src, keys[0].dst, true
}
