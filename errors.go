// Package playwith emulates Nintendo Switch controllers over Bluetooth.
//
// The package root only carries the error taxonomy shared by the internal
// packages. A failure is classified by where it happened: the Bluetooth
// capability layer (adapter, profile, or socket setup), the wire protocol
// (malformed or semantically invalid frames), or raw transport I/O on an
// established channel.
package playwith

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind int

const (
	// KindBluetooth covers adapter, session, socket, and profile failures
	// in the capability layer. The underlying cause is carried but never
	// interpreted.
	KindBluetooth Kind = iota
	// KindProtocol covers malformed or semantically invalid frames.
	KindProtocol
	// KindIO covers raw transport failures during read, write, or shutdown.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindBluetooth:
		return "bluetooth"
	case KindProtocol:
		return "protocol"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// Error pairs a failure kind with its cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error of the given kind from a message.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Err: errors.New(message)}
}

// WrapError classifies an existing error. A nil cause yields nil.
func WrapError(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// IsKind reports whether any error in err's chain is an Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}
