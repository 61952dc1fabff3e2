package engine

import (
	"fmt"
	"log/slog"

	"github.com/seward/pledge/internal/ident"
	"github.com/seward/pledge/internal/messenger"
)

// ForwardingRecord tracks one cross-chain registration from the
// source side. It lives for one ThenRemote call and goes inactive
// once the return trip settles the proxy.
type ForwardingRecord struct {
	SourceID    ident.PromiseID // the forwarded parent
	DestEnv     string
	RemoteID    ident.PromiseID // deterministic id on the destination
	ProxyID     ident.PromiseID // local proxy; equal to RemoteID by construction
	Correlation string
	Active      bool
}

// remoteBinding is the destination-side record a setup message
// creates: which callback the mirrored promise triggers, on whose
// behalf, and where the result goes back to.
type remoteBinding struct {
	Target     string
	Registrant string
	SourceEnv  string
	ReturnEnv  string
	ReturnID   ident.PromiseID
}

// returnRef marks a local continuation whose terminal value must be
// shipped back to the environment that forwarded the work.
type returnRef struct {
	Env         string
	ID          ident.PromiseID
	Correlation string
}

// ThenRemote registers a callback on a destination environment
// against parent and returns the local proxy id.
//
// The proxy is a real pending promise created at the deterministic
// remote id, so callers may chain further registrations onto the
// not-yet-existing remote value immediately. Nothing is sent until
// the parent resolves and its callbacks are explicitly executed.
func (e *Environment) ThenRemote(caller string, parent ident.PromiseID, destEnv, target string) (ident.PromiseID, error) {
	nonce, err := e.store.NextNonce(parent)
	if err != nil {
		return ident.PromiseID{}, err
	}
	remoteID := ident.RemoteID(parent, destEnv, nonce)

	proxy, err := e.store.createAt(remoteID, e.enginePrincipal(), KindProxy, e.clock.Next())
	if err != nil {
		return ident.PromiseID{}, fmt.Errorf("create proxy for %s: %w", destEnv, err)
	}
	proxy.Remote = &RemoteRef{Env: destEnv, ID: remoteID}
	e.journalPromise(proxy)

	e.forwards[remoteID] = &ForwardingRecord{
		SourceID:    parent,
		DestEnv:     destEnv,
		RemoteID:    remoteID,
		ProxyID:     remoteID,
		Correlation: e.tokens.Generate(),
		Active:      true,
	}

	e.registry.Add(&CallbackDescriptor{
		Kind:           KindForward,
		ParentID:       parent,
		ContinuationID: remoteID,
		Target:         target,
		Registrant:     caller,
		SourceEnv:      e.name,
		DestEnv:        destEnv,
		Nonce:          nonce,
	})

	slog.Debug("cross-chain callback registered",
		"env", e.name,
		"parent", parent.Short(),
		"dest", destEnv,
		"remote", remoteID.Short(),
		"target", target,
	)
	return remoteID, nil
}

// ForwardingRecordFor returns the forwarding record of a proxy, for
// introspection and tests.
func (e *Environment) ForwardingRecordFor(proxy ident.PromiseID) (ForwardingRecord, bool) {
	rec, ok := e.forwards[proxy]
	if !ok {
		return ForwardingRecord{}, false
	}
	return *rec, true
}

// emitForward performs the source side of a forward descriptor once
// the parent is terminal: the setup message binding the remote id,
// then the execute message carrying the value - in that order, on the
// same (source, dest) pair, so the channel's per-pair FIFO guarantees
// setup lands first.
//
// A rejected parent never crosses the channel: the proxy rejects
// locally with the parent's payload and the record goes inactive.
func (e *Environment) emitForward(d *CallbackDescriptor, parent *Promise) error {
	rec, ok := e.forwards[d.ContinuationID]
	if !ok {
		return fmt.Errorf("emit forward: no forwarding record for proxy %s", d.ContinuationID.Short())
	}

	if parent.Status == StatusRejected {
		rec.Active = false
		callbacksExecuted.WithLabelValues(e.name, "rejected").Inc()
		return e.settleContinuation(rec.ProxyID, StatusRejected, parent.Value)
	}

	if e.messenger == nil {
		return fmt.Errorf("emit forward: environment %s has no messenger", e.name)
	}

	setup := messenger.SetupBody{
		PromiseID:  rec.RemoteID,
		Target:     d.Target,
		Registrant: d.Registrant,
		SourceEnv:  d.SourceEnv,
		ReturnEnv:  e.name,
		ReturnID:   rec.ProxyID,
	}
	if err := e.send(messenger.KindSetup, rec.DestEnv, rec.Correlation, setup); err != nil {
		return err
	}

	execute := messenger.ExecuteBody{
		PromiseID: rec.RemoteID,
		Value:     parent.Value,
	}
	if err := e.send(messenger.KindExecute, rec.DestEnv, rec.Correlation, execute); err != nil {
		return err
	}

	callbacksExecuted.WithLabelValues(e.name, "forwarded").Inc()
	slog.Info("forward emitted",
		"env", e.name,
		"parent", parent.ID.Short(),
		"dest", rec.DestEnv,
		"remote", rec.RemoteID.Short(),
		"correlation", rec.Correlation,
	)
	return nil
}

// send marshals and emits one envelope through the messenger.
func (e *Environment) send(kind messenger.Kind, dest, correlation string, body any) error {
	raw, err := messenger.MarshalBody(body)
	if err != nil {
		return err
	}
	env := messenger.Envelope{
		Kind:        kind,
		Source:      e.name,
		Dest:        dest,
		Correlation: correlation,
		Body:        raw,
	}
	id, err := e.messenger.Send(env)
	if err != nil {
		return fmt.Errorf("send %s to %s: %w", kind, dest, err)
	}
	env.ID = id
	messagesEmitted.WithLabelValues(e.name, string(kind)).Inc()
	e.journalMessage(env)
	return nil
}

// DeliverMessage routes an inbound envelope to the messenger-only
// entrypoint for its kind. Implements messenger.Endpoint.
func (e *Environment) DeliverMessage(caller string, env messenger.Envelope) error {
	switch env.Kind {
	case messenger.KindSetup:
		var body messenger.SetupBody
		if err := messenger.UnmarshalBody(env, &body); err != nil {
			return err
		}
		return e.SetupRemotePromise(caller, body)
	case messenger.KindExecute:
		var body messenger.ExecuteBody
		if err := messenger.UnmarshalBody(env, &body); err != nil {
			return err
		}
		return e.ExecuteRemoteCallback(caller, body, env.Correlation)
	case messenger.KindShare:
		var body messenger.ShareBody
		if err := messenger.UnmarshalBody(env, &body); err != nil {
			return err
		}
		return e.ShareResolvedPromise(caller, body)
	default:
		return fmt.Errorf("deliver message %s: unknown kind %q", env.ID, env.Kind)
	}
}

// requireMessenger gates the messenger-only entrypoints.
func (e *Environment) requireMessenger(caller string, id ident.PromiseID) error {
	if caller != e.messengerPrincipal {
		return errf(ErrCodeUnauthorized, e.name, id,
			"entrypoint restricted to the designated messenger, called by %q", caller)
	}
	return nil
}

// SetupRemotePromise materializes the pending mirror of a forwarded
// promise under its deterministic id and binds the callback to run
// when the value arrives. Messenger-only.
//
// Duplicate setups (at-least-once channel) are no-ops.
func (e *Environment) SetupRemotePromise(caller string, body messenger.SetupBody) error {
	if err := e.requireMessenger(caller, body.PromiseID); err != nil {
		return err
	}
	messagesDelivered.WithLabelValues(e.name, string(messenger.KindSetup)).Inc()

	if _, ok := e.remoteSetups[body.PromiseID]; ok {
		return nil
	}

	if _, err := e.store.Get(body.PromiseID); err != nil {
		p, err := e.store.createAt(body.PromiseID, e.enginePrincipal(), KindLocal, e.clock.Next())
		if err != nil {
			return fmt.Errorf("setup remote promise: %w", err)
		}
		e.journalPromise(p)
	}

	e.remoteSetups[body.PromiseID] = &remoteBinding{
		Target:     body.Target,
		Registrant: body.Registrant,
		SourceEnv:  body.SourceEnv,
		ReturnEnv:  body.ReturnEnv,
		ReturnID:   body.ReturnID,
	}

	slog.Info("remote promise set up",
		"env", e.name,
		"promise", body.PromiseID.Short(),
		"target", body.Target,
		"registrant", body.Registrant,
		"source_env", body.SourceEnv,
	)
	return nil
}

// ExecuteRemoteCallback resolves the mirrored promise with the
// forwarded value, runs the bound callback under the carried
// authentication context, and ships the callback's result back to the
// origin. Messenger-only.
//
// Fails UNORDERED when the execute message arrives before its setup
// message: the ordering is an explicit protocol precondition, not a
// best-effort assumption. Duplicate executes are no-ops.
func (e *Environment) ExecuteRemoteCallback(caller string, body messenger.ExecuteBody, correlation string) error {
	if err := e.requireMessenger(caller, body.PromiseID); err != nil {
		return err
	}
	messagesDelivered.WithLabelValues(e.name, string(messenger.KindExecute)).Inc()

	binding, ok := e.remoteSetups[body.PromiseID]
	if !ok {
		return errf(ErrCodeUnordered, e.name, body.PromiseID,
			"execute message refers to an unregistered promise; setup has not arrived")
	}

	p, err := e.store.Get(body.PromiseID)
	if err != nil {
		return err
	}
	if p.Status.Terminal() {
		// Duplicate delivery; the callback already ran.
		return nil
	}

	// Allocate the return continuation before running anything, so
	// the terminal hook knows where the result must travel - even
	// when the callback defers to children.
	nonce, err := e.store.NextNonce(body.PromiseID)
	if err != nil {
		return err
	}
	contID := ident.ContinuationID(body.PromiseID, nonce)
	if _, err := e.store.createAt(contID, e.enginePrincipal(), KindLocal, e.clock.Next()); err != nil {
		return fmt.Errorf("execute remote callback: %w", err)
	}
	e.returns[contID] = returnRef{
		Env:         binding.ReturnEnv,
		ID:          binding.ReturnID,
		Correlation: correlation,
	}

	if err := e.store.resolveInternal(body.PromiseID, StatusResolved, body.Value); err != nil {
		return err
	}

	d := &CallbackDescriptor{
		Kind:           KindThen,
		ParentID:       body.PromiseID,
		ContinuationID: contID,
		Target:         binding.Target,
		Registrant:     binding.Registrant,
		SourceEnv:      binding.SourceEnv,
		Nonce:          nonce,
	}
	if err := e.runDescriptor(d, p); err != nil {
		return fmt.Errorf("execute remote callback: %w", err)
	}
	return nil
}

// noteReturnReady ships a settled return continuation back to the
// forwarding environment. Runs from the store's terminal hook, so a
// callback that deferred to children still answers once the last
// child completes.
func (e *Environment) noteReturnReady(p *Promise) {
	ref, ok := e.returns[p.ID]
	if !ok {
		return
	}
	delete(e.returns, p.ID)

	if e.messenger == nil {
		slog.Error("return trip dropped: no messenger",
			"env", e.name,
			"promise", p.ID.Short(),
			"return_env", ref.Env,
		)
		return
	}

	body := messenger.ShareBody{
		PromiseID: ref.ID,
		Status:    p.Status.String(),
		Value:     p.Value,
	}
	if err := e.send(messenger.KindShare, ref.Env, ref.Correlation, body); err != nil {
		// Log and continue: a lost return manifests as a proxy that
		// never resolves, which is the channel's failure mode.
		slog.Error("return trip send failed",
			"error", err,
			"env", e.name,
			"promise", p.ID.Short(),
			"return_env", ref.Env,
		)
	}
}

// ShareResolvedPromise copies a terminal promise snapshot into this
// environment under its original id. Messenger-only.
//
// When the id names a pending local proxy, the share is the return
// trip: it settles the proxy and deactivates the forwarding record.
// When the id is unknown, the snapshot is materialized as-is.
// Duplicate shares are no-ops.
func (e *Environment) ShareResolvedPromise(caller string, body messenger.ShareBody) error {
	if err := e.requireMessenger(caller, body.PromiseID); err != nil {
		return err
	}
	messagesDelivered.WithLabelValues(e.name, string(messenger.KindShare)).Inc()

	status, err := ParseStatus(body.Status)
	if err != nil {
		return err
	}
	if !status.Terminal() {
		return errf(ErrCodeNotReady, e.name, body.PromiseID,
			"only terminal promises can be shared")
	}

	if p, err := e.store.Get(body.PromiseID); err == nil {
		if p.Status.Terminal() {
			return nil
		}
		if rec, ok := e.forwards[body.PromiseID]; ok {
			rec.Active = false
		}
		return e.store.resolveInternal(body.PromiseID, status, body.Value)
	}

	p, err := e.store.materialize(body.PromiseID, caller, status, body.Value)
	if err != nil {
		return err
	}
	e.journalPromise(p)
	return nil
}
