// SPDX-FileCopyrightText: 2026 The tlstream authors
// SPDX-License-Identifier: MIT

// Package transport wraps a raw bidirectional transport behind a
// uniform duplex contract and enforces exclusive session ownership:
// one owner, at most one outstanding read and one outstanding write.
package transport

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Sentinel errors. They stay private to the adapter layer; the public
// package maps them onto its taxonomy.
var (
	// ErrClosed reports an operation on a locally closed transport.
	ErrClosed = errors.New("transport is closed")
	// ErrBusy reports a second read (or write) while one is outstanding.
	ErrBusy = errors.New("transport has an operation outstanding")
	// ErrOwned reports direct access to a transport an encrypted
	// session has exclusively acquired.
	ErrOwned = errors.New("transport is owned by an active session")
)

// closeWriter is the optional half-close capability of the raw
// transport (satisfied by *net.TCPConn and the in-memory pipe).
type closeWriter interface {
	CloseWrite() error
}

// Conn adapts a net.Conn. All blocking calls are interruptible by
// Close from another goroutine, which the net.Conn contract
// guarantees for sockets and the in-memory pipe implements itself.
type Conn struct {
	raw net.Conn

	owned     atomic.Bool
	readBusy  atomic.Bool
	writeBusy atomic.Bool
	closed    atomic.Bool
	sawEOF    atomic.Bool

	closeOnce sync.Once
	closeErr  error
}

// Wrap adapts a raw transport. The adapter owns the raw conn from
// here on; closing the adapter closes it.
func Wrap(raw net.Conn) *Conn {
	return &Conn{raw: raw}
}

// Acquire claims whole-transport ownership for an encrypted session.
// It fails if another session owns the transport or any uncoordinated
// operation is outstanding. A caller racing Acquire first publishes
// its busy claim and only then checks ownership, so one side always
// observes the other; they cannot both succeed.
func (c *Conn) Acquire() (*Session, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if !c.owned.CompareAndSwap(false, true) {
		return nil, ErrOwned
	}
	if c.readBusy.Load() || c.writeBusy.Load() {
		c.owned.Store(false)

		return nil, ErrBusy
	}

	return &Session{t: c}, nil
}

// Read performs an unowned read. It fails with ErrOwned once a
// session has acquired the transport.
func (c *Conn) Read(p []byte) (int, error) {
	return c.read(p, false)
}

// Write performs an unowned write, with the same ownership rules as
// Read.
func (c *Conn) Write(p []byte) (int, error) {
	return c.write(p, false)
}

func (c *Conn) read(p []byte, owner bool) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if c.closed.Load() {
		return 0, ErrClosed
	}
	if !c.readBusy.CompareAndSwap(false, true) {
		return 0, ErrBusy
	}
	defer c.readBusy.Store(false)

	// The busy claim is published before the ownership check. Acquire
	// stores the ownership flag before loading the busy flags, so a
	// racing pair cannot miss each other: at least one side backs off.
	if !owner && c.owned.Load() {
		return 0, ErrOwned
	}

	n, err := c.raw.Read(p)
	if err != nil {
		if errors.Is(err, io.EOF) {
			c.sawEOF.Store(true)
		}
		if c.closed.Load() {
			err = ErrClosed
		}
	}

	return n, err
}

func (c *Conn) write(p []byte, owner bool) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if c.closed.Load() {
		return 0, ErrClosed
	}
	if !c.writeBusy.CompareAndSwap(false, true) {
		return 0, ErrBusy
	}
	defer c.writeBusy.Store(false)

	if !owner && c.owned.Load() {
		return 0, ErrOwned
	}

	n, err := c.raw.Write(p)
	if err != nil && c.closed.Load() {
		err = ErrClosed
	}

	return n, err
}

// CloseWrite half-closes the outbound direction when the raw
// transport supports it and is a no-op otherwise.
func (c *Conn) CloseWrite() error {
	if c.closed.Load() {
		return ErrClosed
	}
	if cw, ok := c.raw.(closeWriter); ok {
		return cw.CloseWrite()
	}

	return nil
}

// Close tears the transport down, interrupting any outstanding
// operation. Close is idempotent.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.raw.Close()
	})

	return c.closeErr
}

// SawEOF reports whether a raw end-of-stream was ever observed. The
// record layer uses it to tell an orderly protocol-level close apart
// from the transport vanishing.
func (c *Conn) SawEOF() bool { return c.sawEOF.Load() }

// LocalAddr returns the raw transport's local endpoint.
func (c *Conn) LocalAddr() net.Addr { return c.raw.LocalAddr() }

// RemoteAddr returns the raw transport's remote endpoint.
func (c *Conn) RemoteAddr() net.Addr { return c.raw.RemoteAddr() }

// SetDeadline applies to future and outstanding reads and writes.
func (c *Conn) SetDeadline(t time.Time) error { return c.raw.SetDeadline(t) }

// SetReadDeadline applies to future and outstanding reads.
func (c *Conn) SetReadDeadline(t time.Time) error { return c.raw.SetReadDeadline(t) }

// SetWriteDeadline applies to future and outstanding writes.
func (c *Conn) SetWriteDeadline(t time.Time) error { return c.raw.SetWriteDeadline(t) }

// Session is the owning side's view of an acquired transport. It
// bypasses the ownership gate but still registers the
// one-outstanding-operation claims, so an uncoordinated caller racing
// the session fails deterministically instead of interleaving bytes.
type Session struct {
	t *Conn
}

// Read reads on behalf of the owning session.
func (s *Session) Read(p []byte) (int, error) { return s.t.read(p, true) }

// Write writes on behalf of the owning session.
func (s *Session) Write(p []byte) (int, error) { return s.t.write(p, true) }

// CloseWrite half-closes the outbound direction.
func (s *Session) CloseWrite() error { return s.t.CloseWrite() }

// Close closes the underlying transport.
func (s *Session) Close() error { return s.t.Close() }

// Release gives up the ownership claim without closing the transport.
func (s *Session) Release() { s.t.owned.Store(false) }

// LocalAddr returns the transport's local endpoint.
func (s *Session) LocalAddr() net.Addr { return s.t.LocalAddr() }

// RemoteAddr returns the transport's remote endpoint.
func (s *Session) RemoteAddr() net.Addr { return s.t.RemoteAddr() }

// SetDeadline sets both direction deadlines on the raw transport.
func (s *Session) SetDeadline(t time.Time) error { return s.t.SetDeadline(t) }

// SetReadDeadline sets the read deadline on the raw transport.
func (s *Session) SetReadDeadline(t time.Time) error { return s.t.SetReadDeadline(t) }

// SetWriteDeadline sets the write deadline on the raw transport.
func (s *Session) SetWriteDeadline(t time.Time) error { return s.t.SetWriteDeadline(t) }

var (
	_ net.Conn = (*Conn)(nil)
	_ net.Conn = (*Session)(nil)
)
