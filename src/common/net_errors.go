package common

import (
	"fmt"

	"github.com/pkg/errors"
)

// NetErrType classifies a failure on a peer connection. The type decides what
// happens to the connection and to the remote IP.
type NetErrType uint32

const (
	// FormatError is a malformed or undersized frame. Connection-fatal.
	FormatError NetErrType = iota
	// ValidationError is a well-formed message that failed a signature, epoch
	// or range check. The message is dropped and the connection survives.
	ValidationError
	// ConnectionError is a timeout, reset or closed socket mid-session.
	ConnectionError
	// DialError is a failed outbound connection attempt.
	DialError
	// HandshakeError is a failure to complete the opening exchange.
	HandshakeError
)

// String ...
func (t NetErrType) String() string {
	switch t {
	case FormatError:
		return "FormatError"
	case ValidationError:
		return "ValidationError"
	case ConnectionError:
		return "ConnectionError"
	case DialError:
		return "DialError"
	case HandshakeError:
		return "HandshakeError"
	default:
		return "Unknown"
	}
}

// NetErr is the error returned by the wire codec and peer connections.
type NetErr struct {
	op      string
	errType NetErrType
	cause   error
}

// NewNetErr wraps cause with an operation name and a NetErrType.
func NewNetErr(op string, errType NetErrType, cause error) NetErr {
	return NetErr{
		op:      op,
		errType: errType,
		cause:   cause,
	}
}

// Error ...
func (e NetErr) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("%s: %s", e.op, e.errType)
	}
	return fmt.Sprintf("%s: %s: %v", e.op, e.errType, e.cause)
}

// Type returns the classification of the error.
func (e NetErr) Type() NetErrType {
	return e.errType
}

// Unwrap returns the underlying cause.
func (e NetErr) Unwrap() error {
	return e.cause
}

// Cause implements the pkg/errors causer interface.
func (e NetErr) Cause() error {
	return e.cause
}

// IsNet reports whether err, or any error it wraps, is a NetErr of type t.
func IsNet(err error, t NetErrType) bool {
	var netErr NetErr
	if errors.As(err, &netErr) {
		return netErr.errType == t
	}
	return false
}

// Formatf builds a FormatError.
func Formatf(op string, format string, args ...interface{}) error {
	return NewNetErr(op, FormatError, errors.Errorf(format, args...))
}

// Validationf builds a ValidationError.
func Validationf(op string, format string, args ...interface{}) error {
	return NewNetErr(op, ValidationError, errors.Errorf(format, args...))
}
