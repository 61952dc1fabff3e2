package engine

import (
	"errors"
	"fmt"

	"github.com/seward/pledge/internal/ident"
)

// EngineError represents a violation detected during engine execution.
//
// Authorization and state-machine violations surface immediately and
// are never silently swallowed - they indicate programmer or attacker
// error, not transient conditions. The one recovered category is a
// callback target failure, which the executor routes to an error
// handler or a rejected continuation.
type EngineError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// PromiseID identifies the affected promise, when there is one.
	PromiseID string

	// Environment names the environment that detected the error.
	Environment string

	// Details contains additional context.
	Details map[string]string
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeUnauthorized indicates the wrong caller for resolve,
	// reject, or a messenger-only entrypoint.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// ErrCodeAlreadyTerminal indicates a second resolve or reject.
	ErrCodeAlreadyTerminal ErrorCode = "ALREADY_TERMINAL"

	// ErrCodeNotReady indicates executing or flushing against a
	// promise that is still pending.
	ErrCodeNotReady ErrorCode = "NOT_READY"

	// ErrCodeReentrantCall indicates a nested executor invocation.
	ErrCodeReentrantCall ErrorCode = "REENTRANT_CALL"

	// ErrCodeNoActiveCallback indicates a context query outside an
	// active callback invocation.
	ErrCodeNoActiveCallback ErrorCode = "NO_ACTIVE_CALLBACK"

	// ErrCodeUnordered indicates an execute message arriving before
	// its setup message.
	ErrCodeUnordered ErrorCode = "UNORDERED"

	// ErrCodeUnknownPromise indicates an id with no record.
	ErrCodeUnknownPromise ErrorCode = "UNKNOWN_PROMISE"

	// ErrCodeUnknownTarget indicates a callback target with no
	// registered handler.
	ErrCodeUnknownTarget ErrorCode = "UNKNOWN_TARGET"
)

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.PromiseID != "" {
		return fmt.Sprintf("%s: %s (env=%s, promise=%s)", e.Code, e.Message, e.Environment, e.PromiseID)
	}
	return fmt.Sprintf("%s: %s (env=%s)", e.Code, e.Message, e.Environment)
}

// errf builds an EngineError for the given code and promise.
// A zero id leaves PromiseID empty.
func errf(code ErrorCode, environment string, id ident.PromiseID, format string, args ...any) *EngineError {
	e := &EngineError{
		Code:        code,
		Message:     fmt.Sprintf(format, args...),
		Environment: environment,
	}
	if !id.IsZero() {
		e.PromiseID = id.String()
	}
	return e
}

// codeOf extracts the engine error code from err, handling wrapping.
func codeOf(err error) (ErrorCode, bool) {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code, true
	}
	return "", false
}

// IsUnauthorized reports whether err is an UNAUTHORIZED engine error.
func IsUnauthorized(err error) bool {
	c, ok := codeOf(err)
	return ok && c == ErrCodeUnauthorized
}

// IsAlreadyTerminal reports whether err is an ALREADY_TERMINAL engine error.
func IsAlreadyTerminal(err error) bool {
	c, ok := codeOf(err)
	return ok && c == ErrCodeAlreadyTerminal
}

// IsNotReady reports whether err is a NOT_READY engine error.
func IsNotReady(err error) bool {
	c, ok := codeOf(err)
	return ok && c == ErrCodeNotReady
}

// IsReentrantCall reports whether err is a REENTRANT_CALL engine error.
func IsReentrantCall(err error) bool {
	c, ok := codeOf(err)
	return ok && c == ErrCodeReentrantCall
}

// IsNoActiveCallback reports whether err is a NO_ACTIVE_CALLBACK engine error.
func IsNoActiveCallback(err error) bool {
	c, ok := codeOf(err)
	return ok && c == ErrCodeNoActiveCallback
}

// IsUnordered reports whether err is an UNORDERED engine error.
func IsUnordered(err error) bool {
	c, ok := codeOf(err)
	return ok && c == ErrCodeUnordered
}

// IsUnknownPromise reports whether err is an UNKNOWN_PROMISE engine error.
func IsUnknownPromise(err error) bool {
	c, ok := codeOf(err)
	return ok && c == ErrCodeUnknownPromise
}

// IsUnknownTarget reports whether err is an UNKNOWN_TARGET engine error.
func IsUnknownTarget(err error) bool {
	c, ok := codeOf(err)
	return ok && c == ErrCodeUnknownTarget
}
