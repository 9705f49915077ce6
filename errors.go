// SPDX-FileCopyrightText: 2026 The tlstream authors
// SPDX-License-Identifier: MIT

package tlstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/netseam/tlstream/internal/transport"
)

// Kind classifies a connection failure. Every error produced by this
// package wraps exactly one Kind; callers branch on the kind with
// IsKind or errors.Is and read the cause from the message.
type Kind uint8

// Failure kinds.
const (
	KindPermissionDenied Kind = iota + 1 // delegated certificate/key access was disallowed
	KindNotFound                         // delegated certificate/key path does not exist
	KindInvalidData                      // malformed material, protocol violation or failed peer validation
	KindUnexpectedEOF                    // transport vanished before the protocol was done with it
	KindNotConnected                     // non-empty write after the write half was closed
	KindBadResource                      // transport already engaged by an uncoordinated operation
	KindAddrInUse                        // conflicting bind without effective address reuse
	KindInterrupted                      // operation aborted by a concurrent close
)

func (k Kind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission denied"
	case KindNotFound:
		return "not found"
	case KindInvalidData:
		return "invalid data"
	case KindUnexpectedEOF:
		return "unexpected eof"
	case KindNotConnected:
		return "not connected"
	case KindBadResource:
		return "bad resource"
	case KindAddrInUse:
		return "address in use"
	case KindInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Error is the typed error returned by all operations in this package.
// errors.Is matches two Errors by Kind, so sentinels double as kind
// probes: errors.Is(err, ErrConnClosed) holds for every interruption.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("tlstream %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}

	return false
}

// Timeout implements net.Error. Typed errors are never deadline
// failures; deadline errors pass through untyped and unlatched.
func (e *Error) Timeout() bool { return false }

// Temporary implements net.Error. Every typed error is terminal for
// the operation that produced it.
func (e *Error) Temporary() bool { return false }

var _ net.Error = (*Error)(nil)

// IsKind reports whether err (or anything it wraps) is a typed error
// of the given kind.
func IsKind(err error, kind Kind) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind == kind
	}

	return false
}

// Typed sentinels.
var (
	// ErrConnClosed reports an operation aborted because the
	// connection was closed by another goroutine.
	ErrConnClosed = &Error{Kind: KindInterrupted, Err: errors.New("conn is closed")}

	errWriteAfterCloseWrite = &Error{Kind: KindNotConnected, Err: errors.New("write half is closed")}
	errNoConfigProvided     = &Error{Kind: KindInvalidData, Err: errors.New("no config provided")}
	errNilTransport         = &Error{Kind: KindInvalidData, Err: errors.New("conn can not be created with a nil transport")}
	errServerMustHaveCert   = &Error{Kind: KindInvalidData, Err: errors.New("server must be configured with a certificate")}
	errEmptyCertificate     = &Error{Kind: KindInvalidData, Err: errors.New("certificate material is empty")}
	errEmptyPrivateKey      = &Error{Kind: KindInvalidData, Err: errors.New("private key material is empty")}
	errNoTrustRoots         = &Error{Kind: KindInvalidData, Err: errors.New("no trust roots could be parsed")}
)

// translateConnErr maps an error escaping the record engine or the
// transport onto the package taxonomy. handshaking selects the
// pre-completion rules: end-of-stream there is always premature.
// localClosed tells an interruption by our own Close apart from the
// transport being torn down under us by someone else.
func translateConnErr(err error, handshaking, localClosed bool) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}

	var te *Error
	if errors.As(err, &te) {
		return te
	}

	// Deadline expiries are not terminal and keep their stdlib shape.
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return err
	}

	switch {
	case errors.Is(err, transport.ErrOwned), errors.Is(err, transport.ErrBusy):
		return &Error{Kind: KindBadResource, Err: err}
	case errors.Is(err, net.ErrClosed), errors.Is(err, transport.ErrClosed):
		if localClosed {
			return ErrConnClosed
		}

		return &Error{Kind: KindUnexpectedEOF, Err: err}
	case errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return &Error{Kind: KindUnexpectedEOF, Err: err}
	case errors.Is(err, io.EOF):
		if handshaking {
			return &Error{Kind: KindUnexpectedEOF, Err: err}
		}

		return io.EOF
	}

	// Everything else escaping the engine is a protocol violation:
	// garbage records, failed decryption, peer alerts, certificate
	// chains rejected by validation.
	return &Error{Kind: KindInvalidData, Err: err}
}

// isTerminal reports whether err must latch the whole connection.
func isTerminal(err error) bool {
	if err == nil || errors.Is(err, io.EOF) {
		return false
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return false
	}

	return true
}
