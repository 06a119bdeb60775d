package errors_test

import (
	stderrors "errors"
	"testing"

	qerrors "github.com/pzverkov/qkd-go/internal/errors"
)

// TestProtocolErrorWrapping tests phase wrapping and sentinel matching.
func TestProtocolErrorWrapping(t *testing.T) {
	err := qerrors.NewProtocolError("await bases", qerrors.ErrTimeout)
	if !stderrors.Is(err, qerrors.ErrTimeout) {
		t.Error("ProtocolError does not unwrap to its sentinel")
	}
	if err.Error() != "await bases: wire: receive timed out" {
		t.Errorf("Error() = %q", err.Error())
	}

	var perr *qerrors.ProtocolError
	if !qerrors.As(err, &perr) || perr.Phase != "await bases" {
		t.Errorf("As(ProtocolError) = %+v", perr)
	}
}

// TestAbortError tests that any AbortError matches ErrAborted.
func TestAbortError(t *testing.T) {
	err := error(&qerrors.AbortError{Reason: "error rate 0.3125 above threshold 0.1500"})
	if !qerrors.Is(err, qerrors.ErrAborted) {
		t.Error("AbortError does not match ErrAborted")
	}

	// Matching survives further wrapping.
	wrapped := qerrors.NewProtocolError("verification", err)
	if !qerrors.Is(wrapped, qerrors.ErrAborted) {
		t.Error("wrapped AbortError does not match ErrAborted")
	}
	var abort *qerrors.AbortError
	if !qerrors.As(wrapped, &abort) || abort.Reason == "" {
		t.Error("As(AbortError) lost the reason")
	}
}
