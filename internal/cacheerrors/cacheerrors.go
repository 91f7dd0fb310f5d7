// Package cacheerrors defines the typed error kinds the cache surfaces to
// scanners, grounded on the teacher's internal/node_registry package-level
// sentinel-error style.
package cacheerrors

import (
	"errors"
	"fmt"
)

// Kind is one of the error kinds named in spec.md §7.
type Kind int

const (
	KindConfigError Kind = iota
	KindNotReachable
	KindTimeout
	KindRemoteIOError
	KindCapacityExceeded
	KindInvalidHandle
	KindCancellationRequested
)

func (k Kind) String() string {
	switch k {
	case KindConfigError:
		return "ConfigError"
	case KindNotReachable:
		return "NotReachable"
	case KindTimeout:
		return "Timeout"
	case KindRemoteIOError:
		return "RemoteIOError"
	case KindCapacityExceeded:
		return "CapacityExceeded"
	case KindInvalidHandle:
		return "InvalidHandle"
	case KindCancellationRequested:
		return "CancellationRequested"
	default:
		return "Unknown"
	}
}

// Sentinel values for errors.Is comparisons; Error wraps these with context.
var (
	ErrConfigError            = errors.New("cacheerrors: config error")
	ErrNotReachable           = errors.New("cacheerrors: filesystem not reachable")
	ErrTimeout                = errors.New("cacheerrors: operation timed out")
	ErrRemoteIOError          = errors.New("cacheerrors: remote i/o error")
	ErrCapacityExceeded       = errors.New("cacheerrors: capacity exceeded")
	ErrInvalidHandle          = errors.New("cacheerrors: invalid handle")
	ErrCancellationRequested  = errors.New("cacheerrors: cancellation requested")
)

func sentinelFor(k Kind) error {
	switch k {
	case KindConfigError:
		return ErrConfigError
	case KindNotReachable:
		return ErrNotReachable
	case KindTimeout:
		return ErrTimeout
	case KindRemoteIOError:
		return ErrRemoteIOError
	case KindCapacityExceeded:
		return ErrCapacityExceeded
	case KindInvalidHandle:
		return ErrInvalidHandle
	case KindCancellationRequested:
		return ErrCancellationRequested
	default:
		return errors.New("cacheerrors: unknown error")
	}
}

// Error is a typed, wrapped cache error. It unwraps to its Kind's sentinel
// so callers can use errors.Is(err, cacheerrors.ErrTimeout) regardless of
// the message or the wrapped cause.
type Error struct {
	Kind    Kind
	Op      string
	Cause   error
	Message string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return sentinelFor(e.Kind)
}

// Is reports whether target is the sentinel for e's Kind, so errors.Is
// matches the sentinel even when Unwrap yields a wrapped cause.
func (e *Error) Is(target error) bool {
	return target == sentinelFor(e.Kind)
}

// New builds an Error of the given kind for operation op.
func New(kind Kind, op string, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap builds an Error of the given kind for operation op, wrapping cause.
func Wrap(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
