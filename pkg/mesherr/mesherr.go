// Package mesherr defines the error taxonomy shared across the mesh node.
package mesherr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that branch on failure class
// rather than message text.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindIo
	KindSerialization
	KindJson
	KindCrypto
	KindNetwork
	KindProtocol
	KindInvalidParameter
	KindPeerNotFound
	KindTimeout
	KindAuthenticationFailed
	KindConnectionClosed
	KindResourceExhausted
	KindInternal
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindIo:
		return "io"
	case KindSerialization:
		return "serialization"
	case KindJson:
		return "json"
	case KindCrypto:
		return "crypto"
	case KindNetwork:
		return "network"
	case KindProtocol:
		return "protocol"
	case KindInvalidParameter:
		return "invalid parameter"
	case KindPeerNotFound:
		return "peer not found"
	case KindTimeout:
		return "timeout"
	case KindAuthenticationFailed:
		return "authentication failed"
	case KindConnectionClosed:
		return "connection closed"
	case KindResourceExhausted:
		return "resource exhausted"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Tag-only errors. These carry no message beyond their kind.
var (
	ErrTimeout              = &Error{Kind: KindTimeout}
	ErrAuthenticationFailed = &Error{Kind: KindAuthenticationFailed}
	ErrConnectionClosed     = &Error{Kind: KindConnectionClosed}
	ErrResourceExhausted    = &Error{Kind: KindResourceExhausted}
)

// Error is a classified error with an optional message and wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches tag-only sentinels by kind so errors.Is(err, ErrTimeout)
// works across wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Msg == "" && t.Err == nil
}

// New creates an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates an error of the given kind wrapping a cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Io creates an io-kind error.
func Io(format string, args ...any) *Error { return New(KindIo, format, args...) }

// Serialization creates a serialization-kind error.
func Serialization(format string, args ...any) *Error {
	return New(KindSerialization, format, args...)
}

// Crypto creates a crypto-kind error.
func Crypto(format string, args ...any) *Error { return New(KindCrypto, format, args...) }

// Network creates a network-kind error.
func Network(format string, args ...any) *Error { return New(KindNetwork, format, args...) }

// Protocol creates a protocol-kind error.
func Protocol(format string, args ...any) *Error { return New(KindProtocol, format, args...) }

// InvalidParameter creates an invalid-parameter-kind error.
func InvalidParameter(format string, args ...any) *Error {
	return New(KindInvalidParameter, format, args...)
}

// PeerNotFound creates a peer-not-found-kind error.
func PeerNotFound(format string, args ...any) *Error {
	return New(KindPeerNotFound, format, args...)
}

// Internal creates an internal-kind error.
func Internal(format string, args ...any) *Error { return New(KindInternal, format, args...) }

// KindOf extracts the kind from an error chain. Unclassified errors
// report KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
