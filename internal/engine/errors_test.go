package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seward/pledge/internal/ident"
)

func TestEngineError_Message(t *testing.T) {
	id := ident.RootID("chain-a", "alice", 1)
	err := errf(ErrCodeUnauthorized, "chain-a", id, "caller %q is not the creator", "mallory")

	msg := err.Error()
	assert.Contains(t, msg, "UNAUTHORIZED")
	assert.Contains(t, msg, `"mallory"`)
	assert.Contains(t, msg, "env=chain-a")
	assert.Contains(t, msg, id.String())
}

func TestEngineError_ZeroIDOmitted(t *testing.T) {
	err := errf(ErrCodeNoActiveCallback, "chain-a", ident.PromiseID{}, "no callback is executing")
	assert.NotContains(t, err.Error(), "promise=")
}

func TestErrorPredicates(t *testing.T) {
	id := ident.RootID("chain-a", "alice", 1)

	cases := []struct {
		err  error
		want func(error) bool
	}{
		{errf(ErrCodeUnauthorized, "e", id, "x"), IsUnauthorized},
		{errf(ErrCodeAlreadyTerminal, "e", id, "x"), IsAlreadyTerminal},
		{errf(ErrCodeNotReady, "e", id, "x"), IsNotReady},
		{errf(ErrCodeReentrantCall, "e", id, "x"), IsReentrantCall},
		{errf(ErrCodeNoActiveCallback, "e", id, "x"), IsNoActiveCallback},
		{errf(ErrCodeUnordered, "e", id, "x"), IsUnordered},
		{errf(ErrCodeUnknownPromise, "e", id, "x"), IsUnknownPromise},
		{errf(ErrCodeUnknownTarget, "e", id, "x"), IsUnknownTarget},
	}

	for _, tc := range cases {
		assert.True(t, tc.want(tc.err))
		// Wrapping preserves the code.
		assert.True(t, tc.want(fmt.Errorf("context: %w", tc.err)))
	}

	assert.False(t, IsUnauthorized(errf(ErrCodeNotReady, "e", id, "x")))
	assert.False(t, IsUnauthorized(fmt.Errorf("plain")))
}
