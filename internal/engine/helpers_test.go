package engine

import (
	"errors"
	"strconv"
	"testing"

	"github.com/seward/pledge/internal/ident"
)

// idType shortens test signatures.
type idType = ident.PromiseID

// idFor returns an id that is guaranteed absent from env's store.
func idFor(t *testing.T, env *Environment) ident.PromiseID {
	t.Helper()
	id := ident.RootID("nowhere", "nobody", 999999)
	if _, err := env.Store().Get(id); err == nil {
		t.Fatalf("sentinel id unexpectedly present in store")
	}
	return id
}

// intPayload and parseIntPayload treat payloads as ASCII decimal
// integers, the way the doubling examples in the tests do.
func intPayload(n int64) []byte {
	return []byte(strconv.FormatInt(n, 10))
}

func parseIntPayload(b []byte) (int64, error) {
	return strconv.ParseInt(string(b), 10, 64)
}

// doubleHandler resolves with twice its numeric input.
func doubleHandler(_ *CallbackContext, value []byte) (Outcome, error) {
	n, err := parseIntPayload(value)
	if err != nil {
		return Outcome{}, err
	}
	return Immediate(intPayload(n * 2)), nil
}

// echoHandler resolves with its input unchanged.
func echoHandler(_ *CallbackContext, value []byte) (Outcome, error) {
	return Immediate(value), nil
}

// failingHandler always fails with a fixed cause.
func failingHandler(_ *CallbackContext, _ []byte) (Outcome, error) {
	return Outcome{}, errors.New("handler exploded")
}
