package poller

import (
	"errors"
	"fmt"
)

// Kind classifies a failed call against the device API.
type Kind int

const (
	// KindNone means the call succeeded.
	KindNone Kind = iota

	// KindTransient covers timeouts, connection failures, and unexpected
	// status codes. The next scheduled refresh retries automatically.
	KindTransient

	// KindAuth means the credential token was rejected. It stays in effect
	// until the device is reconfigured.
	KindAuth
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTransient:
		return "transient"
	case KindAuth:
		return "auth"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	// ErrAuth matches every authentication failure via errors.Is.
	ErrAuth = errors.New("authentication rejected")

	// ErrTransient matches every transient failure via errors.Is.
	ErrTransient = errors.New("transient failure")

	// ErrStopped is returned by Start and Refresh once the coordinator has been stopped.
	ErrStopped = errors.New("coordinator stopped")
)

// Error is a classified failure from a device API call.
//
// Op names the API operation ("getAll", "isHardwareConnected", "update").
// Err holds the underlying cause and may be nil.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.String()
	if e.Kind == KindAuth {
		msg = e.Op + ": " + ErrAuth.Error()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrAuth:
		return e.Kind == KindAuth
	case ErrTransient:
		return e.Kind == KindTransient
	}
	return false
}

func authError(op string, err error) error {
	return &Error{Kind: KindAuth, Op: op, Err: err}
}

func transientError(op string, err error) error {
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

// Classify returns the kind of err.
//
// A nil error is KindNone. Errors that carry no classification, including
// context deadlines raised outside the transport, are transient. Only an
// explicit authentication rejection ends a session.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	if errors.Is(err, ErrAuth) {
		return KindAuth
	}
	return KindTransient
}
