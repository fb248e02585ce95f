// Package errors provides centralized error definitions for the
// swarmdeck codebase: sentinel errors for the sync layer, semantic
// error types for transition and request failures, and classification
// helpers used by the error-propagation policy (transport and staleness
// faults are absorbed at the core boundary; only illegal transitions
// and server-rejected mutations are surfaced to the UI).
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience so callers can
// import only this package for error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Transport-related sentinel errors
var (
	// ErrNotConnected indicates the push connection is not open.
	ErrNotConnected = New("not connected")
	// ErrSessionClosed indicates the session was torn down by its owner.
	ErrSessionClosed = New("session closed")
	// ErrMalformedFrame indicates an inbound frame could not be decoded.
	ErrMalformedFrame = New("malformed frame")
)

// Store-related sentinel errors
var (
	// ErrNotFound indicates an entity id is not present in the store.
	ErrNotFound = New("entity not found")
	// ErrStaleSnapshot indicates a write was discarded because its
	// timestamp predates the snapshot already held.
	ErrStaleSnapshot = New("stale snapshot discarded")
)

// Workflow-related sentinel errors
var (
	// ErrUnknownTransition indicates a (from, to) pair absent from the
	// transition table.
	ErrUnknownTransition = New("no trigger for transition")
	// ErrUnknownState indicates a state outside the lifecycle vocabulary.
	ErrUnknownState = New("unknown card state")
)

// TransitionError reports a card move rejected by the local transition
// table. It is user-facing: the UI refuses the move without a network
// round-trip.
type TransitionError struct {
	CardID string
	From   string
	To     string
}

// Error returns the error message.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("card %s: no trigger for %s -> %s", e.CardID, e.From, e.To)
}

// Is reports whether this error matches ErrUnknownTransition.
func (e *TransitionError) Is(target error) bool {
	return target == ErrUnknownTransition
}

// NewTransitionError creates a TransitionError for a rejected move.
func NewTransitionError(cardID, from, to string) *TransitionError {
	return &TransitionError{CardID: cardID, From: from, To: to}
}

// RequestError reports a non-2xx response from the orchestration
// server's REST API. Server-rejected mutations propagate to callers as
// this type; they never corrupt the entity store because updates are
// applied only from confirmed responses.
type RequestError struct {
	StatusCode int
	Body       string
}

// Error returns the error message.
func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed: status=%d body=%s", e.StatusCode, e.Body)
}

// IsRetryable reports whether the error is transient and the operation
// may succeed on retry. Transport sentinels and 5xx responses qualify.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrNotConnected) {
		return true
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode >= 500
	}
	return false
}

// IsUserFacing reports whether the error is safe and meaningful to
// display to the operator. Illegal transitions and server rejections
// are; transport and staleness faults are absorbed silently.
func IsUserFacing(err error) bool {
	var transErr *TransitionError
	if errors.As(err, &transErr) {
		return true
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return true
	}
	return false
}
