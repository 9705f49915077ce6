// SPDX-FileCopyrightText: 2026 The tlstream authors
// SPDX-License-Identifier: MIT

// Package tlstream provides an encrypted, full-duplex byte stream on
// top of an arbitrary bidirectional transport, for both the accepting
// and initiating role of the handshake. One encrypted connection owns
// exactly one transport for its whole life.
package tlstream

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/logging"

	"github.com/netseam/tlstream/internal/transport"
)

// Conn represents an encrypted stream connection. It implements
// net.Conn. The handshake is driven lazily by the first read or
// write, or explicitly via Handshake.
type Conn struct {
	adapter *transport.Conn
	session *transport.Session
	engine  *tls.Conn
	fsm     *handshakeFSM
	config  *Config
	log     logging.LeveledLogger

	readMu  sync.Mutex
	writeMu sync.Mutex

	readClosed  atomic.Bool // clean end-of-stream observed
	writeClosed atomic.Bool // CloseWrite happened
	closed      atomic.Bool // local Close happened

	connErr   atomic.Value // struct{ error }, first terminal error wins
	closeOnce sync.Once
}

func createConn(raw net.Conn, config *Config, isClient bool) (*Conn, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errNilTransport
	}

	// All certificate material resolves here, before any network I/O.
	engineConfig, err := buildEngineConfig(config, isClient)
	if err != nil {
		return nil, err
	}

	adapter, ok := raw.(*transport.Conn)
	if !ok {
		adapter = transport.Wrap(raw)
	}
	session, err := adapter.Acquire()
	if err != nil {
		return nil, &Error{Kind: KindBadResource, Err: err}
	}

	loggerFactory := config.loggerFactory()
	c := &Conn{
		adapter: adapter,
		session: session,
		config:  config,
		log:     loggerFactory.NewLogger("conn"),
	}
	if isClient {
		c.engine = tls.Client(session, engineConfig)
	} else {
		c.engine = tls.Server(session, engineConfig)
	}
	c.fsm = newHandshakeFSM(c.engine, isClient, func(err error) error {
		return translateConnErr(err, true, c.closed.Load())
	}, loggerFactory.NewLogger("handshake"))

	return c, nil
}

// Handshake drives the negotiation to completion and returns the
// negotiated application protocol, empty when ALPN was not offered.
// It is idempotent and safe to call concurrently with itself and with
// reads and writes in flight: once completed it returns the cached
// outcome without touching the wire. A handshake failure is terminal
// for the connection.
func (c *Conn) Handshake() (string, error) {
	ctx, cancel := c.config.connectContextMaker()
	defer cancel()

	return c.HandshakeContext(ctx)
}

// HandshakeContext is Handshake bounded by the given context. Context
// expiry aborts the exchange by tearing the transport down, so it is
// as terminal as any other handshake failure; the context error
// itself passes through untyped.
func (c *Conn) HandshakeContext(ctx context.Context) (string, error) {
	if err := c.connError(); err != nil {
		return "", err
	}

	proto, err := c.fsm.Drive(ctx)
	if err != nil {
		c.stopWithError(err)

		return "", err
	}

	return proto, nil
}

// handshakeIfNeeded lazily drives the handshake ahead of the first
// data transfer; completed handshakes are not re-entered.
func (c *Conn) handshakeIfNeeded() error {
	if c.fsm.State() == HandshakeCompleted {
		return nil
	}
	_, err := c.Handshake()

	return err
}

// Read decrypts application bytes into p. It blocks for at least one
// byte unless p is empty, returns io.EOF once the peer has orderly
// closed its write half, and fails with the unexpected-eof kind when
// the transport vanishes before that signal arrives.
func (c *Conn) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := c.connError(); err != nil {
		return 0, err
	}
	if err := c.handshakeIfNeeded(); err != nil {
		return 0, err
	}

	c.readMu.Lock()
	defer c.readMu.Unlock()

	if c.readClosed.Load() {
		return 0, io.EOF
	}

	n, err := c.engine.Read(p)
	if err == nil {
		return n, nil
	}

	err = translateConnErr(err, false, c.closed.Load())
	if errors.Is(err, io.EOF) {
		// The engine reports end-of-stream both for an orderly
		// protocol-level close and for a transport end-of-stream that
		// happened to land on a record boundary. Only the former ever
		// completes without the adapter seeing a raw EOF.
		if c.adapter.SawEOF() {
			err = &Error{Kind: KindUnexpectedEOF, Err: io.ErrUnexpectedEOF}
		} else {
			c.readClosed.Store(true)

			return n, io.EOF
		}
	}
	if isTerminal(err) {
		c.stopWithError(err)
	}

	return n, err
}

// Write encrypts and sends p, returning the number of bytes accepted.
// A zero-length write returns 0 immediately and never touches the
// transport, even after CloseWrite; a non-empty write after
// CloseWrite fails with the not-connected kind.
func (c *Conn) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := c.connError(); err != nil {
		return 0, err
	}
	if err := c.handshakeIfNeeded(); err != nil {
		return 0, err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeClosed.Load() {
		return 0, errWriteAfterCloseWrite
	}

	n, err := c.engine.Write(p)
	if err != nil {
		err = translateConnErr(err, false, c.closed.Load())
		if isTerminal(err) {
			c.stopWithError(err)
		}
	}

	return n, err
}

// CloseWrite signals orderly end-of-data outbound. The peer drains
// in-flight bytes and then reads a clean end-of-stream; reads on this
// side continue until the peer closes its own write half. CloseWrite
// is idempotent.
func (c *Conn) CloseWrite() error {
	if err := c.connError(); err != nil {
		return err
	}
	if err := c.handshakeIfNeeded(); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if !c.writeClosed.CompareAndSwap(false, true) {
		return nil
	}

	c.log.Tracef("close-write %s", c.RemoteAddr())
	if err := c.engine.CloseWrite(); err != nil {
		err = translateConnErr(err, false, c.closed.Load())
		if isTerminal(err) {
			c.stopWithError(err)
		}

		return err
	}

	return translateConnErr(c.session.CloseWrite(), false, c.closed.Load())
}

// Close tears down both halves immediately, discarding buffered data
// and interrupting any outstanding operation on this connection.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.log.Tracef("close %s", c.RemoteAddr())
		c.stopWithError(ErrConnClosed)
	})

	if err := c.connError(); err != nil && !errors.Is(err, ErrConnClosed) {
		return err
	}

	return nil
}

// NegotiatedProtocol returns the ALPN protocol agreed during the
// handshake, empty before completion or when none was offered.
func (c *Conn) NegotiatedProtocol() string { return c.fsm.Protocol() }

// HandshakeState reports the connection's handshake lifecycle state.
func (c *Conn) HandshakeState() HandshakeState { return c.fsm.State() }

// ConnectionState returns the record engine's state. Its fields are
// meaningful only after the handshake completed.
func (c *Conn) ConnectionState() tls.ConnectionState { return c.engine.ConnectionState() }

// LocalAddr returns the local endpoint of the transport.
func (c *Conn) LocalAddr() net.Addr { return c.adapter.LocalAddr() }

// RemoteAddr returns the remote endpoint of the transport.
func (c *Conn) RemoteAddr() net.Addr { return c.adapter.RemoteAddr() }

// SetDeadline sets both direction deadlines. A deadline expiry fails
// the blocked operation with the stdlib timeout error and is not
// terminal for the connection.
func (c *Conn) SetDeadline(t time.Time) error { return c.engine.SetDeadline(t) }

// SetReadDeadline sets the read deadline.
func (c *Conn) SetReadDeadline(t time.Time) error { return c.engine.SetReadDeadline(t) }

// SetWriteDeadline sets the write deadline.
func (c *Conn) SetWriteDeadline(t time.Time) error { return c.engine.SetWriteDeadline(t) }

// stopWithError latches the first terminal error and tears down the
// transport so the peer and any blocked operation observe the failure
// promptly.
func (c *Conn) stopWithError(err error) {
	if c.connErr.CompareAndSwap(nil, struct{ error }{err}) {
		c.log.Debugf("conn stopped: %v", err)
	}
	_ = c.adapter.Close()
}

func (c *Conn) connError() error {
	if v, ok := c.connErr.Load().(struct{ error }); ok {
		return v.error
	}

	return nil
}

var _ net.Conn = (*Conn)(nil)
