package engine

import "github.com/seward/pledge/internal/ident"

// DescriptorKind distinguishes callback registrations.
type DescriptorKind int

const (
	// KindThen runs the success handler on a resolved parent and the
	// optional error handler on a rejected one.
	KindThen DescriptorKind = iota
	// KindCatch runs only on a rejected parent; a resolved parent's
	// value passes through to the continuation untouched.
	KindCatch
	// KindForward emits the setup/execute message pair toward a
	// destination environment instead of running a local handler.
	KindForward
)

// CallbackDescriptor records one then/onReject/thenRemote
// registration against a parent promise.
//
// Registrant and SourceEnv identify who registered the callback and
// from where. They are stored at registration time and carried
// verbatim through relays, so a handler on a remote chain sees the
// original registrant rather than the transport.
type CallbackDescriptor struct {
	Kind           DescriptorKind
	ParentID       ident.PromiseID
	ContinuationID ident.PromiseID
	Target         string // handler reference, "name.selector" form
	ErrorTarget    string // optional paired error handler
	Registrant     string
	SourceEnv      string
	DestEnv        string // KindForward only
	Nonce          uint64 // parent registration nonce that derived the continuation

	executed bool
}

// Registry holds callback descriptors in registration order.
// Exclusively owned by one environment, like the Store.
type Registry struct {
	byParent map[ident.PromiseID][]*CallbackDescriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byParent: make(map[ident.PromiseID][]*CallbackDescriptor)}
}

// Add appends a descriptor under its parent, preserving registration
// order. Order matters: the executor runs descriptors exactly in this
// order, and the chain flusher follows the first registration.
func (r *Registry) Add(d *CallbackDescriptor) {
	r.byParent[d.ParentID] = append(r.byParent[d.ParentID], d)
}

// Descriptors returns the descriptors registered under parent, in
// registration order. The returned slice is the registry's own.
func (r *Registry) Descriptors(parent ident.PromiseID) []*CallbackDescriptor {
	return r.byParent[parent]
}

// NextInChain returns the continuation of the first registration on
// parent, which is the next link of the linear then-chain the flusher
// walks.
func (r *Registry) NextInChain(parent ident.PromiseID) (ident.PromiseID, bool) {
	ds := r.byParent[parent]
	if len(ds) == 0 {
		return ident.PromiseID{}, false
	}
	return ds[0].ContinuationID, true
}
