package telnet

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures by how the session has to react to them.
type ErrorKind int

const (
	// ProtocolViolation aborts the connection.
	ProtocolViolation ErrorKind = iota
	// DecodeError is answered with a negative response; the connection stays up.
	DecodeError
	// TransportError terminates the connection and may trigger a reconnect.
	TransportError
	// ResourceError is an output sink failure.
	ResourceError
)

func (k ErrorKind) String() string {
	switch k {
	case ProtocolViolation:
		return "protocol violation"
	case DecodeError:
		return "decode error"
	case TransportError:
		return "transport error"
	case ResourceError:
		return "resource error"
	default:
		return "unknown error"
	}
}

type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func protocolError(op, format string, args ...any) error {
	return &Error{Kind: ProtocolViolation, Op: op, Err: fmt.Errorf(format, args...)}
}

func transportError(op string, err error) error {
	return &Error{Kind: TransportError, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain. Errors that
// carry no kind are treated as transport failures.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return TransportError
}

// IsFatal reports whether err must close the connection.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case ProtocolViolation, TransportError:
		return true
	}
	return false
}
