// Package errors defines the error taxonomy for the QKD-FH simulation.
//
// Transport conditions (closed, timeout, malformed frame) are recoverable on
// the quantum lane during photon collection and fatal while awaiting a
// specific public message; the protocol roles make that call. Threshold and
// length failures (ErrErrorRateExceeded, ErrKeyTooShort) are expected
// session outcomes, not defects, and map to ordinary failed-session results.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the wire layer.
var (
	// ErrConnectionClosed indicates the peer closed the stream.
	ErrConnectionClosed = errors.New("wire: connection closed by peer")

	// ErrTimeout indicates a bounded receive expired. Retryable.
	ErrTimeout = errors.New("wire: receive timed out")

	// ErrMalformedFrame indicates a frame that failed parsing or validation.
	ErrMalformedFrame = errors.New("wire: malformed frame")

	// ErrLaneConfusion indicates a frame arrived on the wrong logical lane:
	// a photon frame where a tagged message was expected, or vice versa.
	ErrLaneConfusion = errors.New("wire: frame on wrong lane")
)

// Sentinel errors for the protocol roles.
var (
	// ErrProtocolViolation indicates an unexpected message type or payload
	// shape for the current protocol state.
	ErrProtocolViolation = errors.New("qkd: protocol violation")

	// ErrIndexOutOfRange indicates the peers' index spaces have desynced,
	// e.g. a check index beyond the local sifted key.
	ErrIndexOutOfRange = errors.New("qkd: index out of range")

	// ErrInsufficientData indicates too few photons or sifted bits to
	// continue the session.
	ErrInsufficientData = errors.New("qkd: insufficient data")

	// ErrErrorRateExceeded indicates the estimated QBER is above threshold.
	ErrErrorRateExceeded = errors.New("qkd: error rate above threshold")

	// ErrKeyTooShort indicates the post-verification key cannot satisfy the
	// requested length.
	ErrKeyTooShort = errors.New("qkd: final key too short")

	// ErrAborted indicates the peer terminated the session explicitly.
	ErrAborted = errors.New("qkd: aborted by peer")
)

// ErrEmptyVocabulary indicates pattern derivation was given nothing to
// sample from.
var ErrEmptyVocabulary = errors.New("hopping: empty frequency vocabulary")

// ProtocolError wraps an error with the protocol phase that produced it.
type ProtocolError struct {
	Phase string // e.g. "await bases", "verification"
	Err   error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// NewProtocolError creates a ProtocolError for the given phase.
func NewProtocolError(phase string, err error) *ProtocolError {
	return &ProtocolError{Phase: phase, Err: err}
}

// AbortError carries the free-text reason from a peer's ABORT message.
type AbortError struct {
	Reason string
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("aborted by peer: %s", e.Reason)
}

// Unwrap lets errors.Is(err, ErrAborted) match any AbortError.
func (e *AbortError) Unwrap() error {
	return ErrAborted
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
