package mgmt

import "errors"

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind (or the sentinel causes below) rather
// than matching error strings; Error() strings are for humans and may
// evolve.
type Kind string

const (
	// KindValidation marks locally detected contract violations: empty
	// target, oversized chunk, digest mismatch after upload. Never
	// retried automatically.
	KindValidation Kind = "Validation"
	// KindTransport marks remote calls that failed to complete.
	// Idempotent operations (uploads, listings, status reads) may be
	// retried; the terminal install call must not be retried without
	// re-querying host state.
	KindTransport Kind = "Transport"
	// KindProtocol marks calls the host rejected for semantic reasons.
	// Fatal for the current run.
	KindProtocol Kind = "Protocol"
)

// Sentinel causes usable with errors.Is.
var (
	ErrEmptyTarget    = errors.New("mgmt: empty target canister")
	ErrChunkTooLarge  = errors.New("mgmt: chunk exceeds maximum size")
	ErrDigestMismatch = errors.New("mgmt: host-reported digest does not match local digest")
)

// Error is the structured error surfaced by management operations.
type Error struct {
	Kind    Kind
	Method  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Method == "" {
		return e.Message
	}
	return e.Method + ": " + e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func newError(kind Kind, method, msg string) error {
	return &Error{Kind: kind, Method: method, Message: msg}
}

func wrapError(kind Kind, method, msg string, cause error) error {
	if cause == nil {
		return newError(kind, method, msg)
	}
	return &Error{Kind: kind, Method: method, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
