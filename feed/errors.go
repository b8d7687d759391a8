package feed

import (
	"errors"
	"fmt"
)

// Kind classifies a gateway or controller failure. Each kind drives a
// different recovery path in the engagement controller.
type Kind string

const (
	// KindTransport covers network unreachable, timeouts, and any
	// transport-level failure. Always rolled back, always retryable.
	KindTransport Kind = "transport"
	// KindAuthExpired maps a 401: the session is gone and the user
	// must re-authenticate. Never silently retried.
	KindAuthExpired Kind = "auth_expired"
	// KindNotFound means the target entity vanished server-side,
	// usually a concurrent delete.
	KindNotFound Kind = "not_found"
	// KindValidation is a local precondition failure detected before
	// any mutation or network call.
	KindValidation Kind = "validation"
	// KindBusy rejects a mutation while another one for the same
	// (entity, action) pair is still in flight.
	KindBusy Kind = "busy"
	// KindServer is any other server-reported failure.
	KindServer Kind = "server"
)

// Error is the typed failure returned across the feed package.
type Error struct {
	Kind   Kind
	Msg    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the failure kind from an error, defaulting to
// transport for untyped errors so callers always get a rollback path.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindTransport
}

func transportErr(err error) *Error {
	return &Error{Kind: KindTransport, Err: err}
}

func validationErr(msg string) *Error {
	return &Error{Kind: KindValidation, Msg: msg}
}

func serverErr(status int, msg string) *Error {
	return &Error{Kind: KindServer, Status: status, Msg: msg}
}

func busyErr(target, action string) *Error {
	return &Error{Kind: KindBusy, Msg: fmt.Sprintf("%s already in flight for %s", action, target)}
}
