// SPDX-FileCopyrightText: 2026 The tlstream authors
// SPDX-License-Identifier: MIT

// Package spipe provides an in-memory full-duplex byte-stream pipe
// with independent half-close per direction. Unlike net.Pipe it is
// asynchronous, supports CloseWrite, honors deadlines, and follows
// TCP-like shutdown semantics: a peer's full close delivers buffered
// data first and a plain end-of-stream after.
package spipe

import (
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/pion/transport/v3/deadline"
)

const chanSize = 1000

// Pipe creates both ends of a connected in-memory stream.
func Pipe() (net.Conn, net.Conn) {
	ch0 := make(chan []byte, chanSize)
	ch1 := make(chan []byte, chanSize)
	done0 := make(chan struct{})
	done1 := make(chan struct{})

	c0 := &conn{
		rCh:           ch0,
		wCh:           ch1,
		localDone:     done0,
		peerDone:      done1,
		readDeadline:  deadline.New(),
		writeDeadline: deadline.New(),
	}
	c1 := &conn{
		rCh:           ch1,
		wCh:           ch0,
		localDone:     done1,
		peerDone:      done0,
		readDeadline:  deadline.New(),
		writeDeadline: deadline.New(),
	}

	return c0, c1
}

type pipeAddr struct{}

func (pipeAddr) Network() string { return "spipe" }
func (pipeAddr) String() string  { return "spipe" }

type conn struct {
	rCh chan []byte
	wCh chan []byte

	localDone chan struct{}
	peerDone  chan struct{}

	readMu   sync.Mutex // serializes Read and guards leftover
	leftover []byte

	writeMu      sync.Mutex // serializes Write against CloseWrite
	writeClosed  bool
	closeOnce    sync.Once
	closeWrOnce  sync.Once

	readDeadline  *deadline.Deadline
	writeDeadline *deadline.Deadline
}

func (*conn) LocalAddr() net.Addr  { return pipeAddr{} }
func (*conn) RemoteAddr() net.Addr { return pipeAddr{} }

func (c *conn) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	c.readMu.Lock()
	defer c.readMu.Unlock()

	if len(c.leftover) > 0 {
		n := copy(p, c.leftover)
		c.leftover = c.leftover[n:]

		return n, nil
	}

	select {
	case <-c.localDone:
		return 0, net.ErrClosed
	default:
	}

	select {
	case d, ok := <-c.rCh:
		return c.deliver(p, d, ok)
	case <-c.localDone:
		return 0, net.ErrClosed
	case <-c.peerDone:
		// The peer closed abruptly. Bytes already queued (a closed
		// channel drains its buffer first) still arrive in order.
		select {
		case d, ok := <-c.rCh:
			return c.deliver(p, d, ok)
		default:
			return 0, io.EOF
		}
	case <-c.readDeadline.Done():
		return 0, os.ErrDeadlineExceeded
	}
}

func (c *conn) deliver(p, d []byte, ok bool) (int, error) {
	if !ok {
		return 0, io.EOF
	}
	n := copy(p, d)
	if n < len(d) {
		c.leftover = d[n:]
	}

	return n, nil
}

func (c *conn) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeClosed {
		return 0, io.ErrClosedPipe
	}
	select {
	case <-c.localDone:
		return 0, net.ErrClosed
	default:
	}

	d := make([]byte, len(p))
	copy(d, p)

	select {
	case c.wCh <- d:
		return len(p), nil
	case <-c.localDone:
		return 0, net.ErrClosed
	case <-c.peerDone:
		return 0, io.ErrClosedPipe
	case <-c.writeDeadline.Done():
		return 0, os.ErrDeadlineExceeded
	}
}

// CloseWrite half-closes the outbound direction. The peer drains any
// queued bytes and then reads a clean end-of-stream.
func (c *conn) CloseWrite() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeClosed {
		return nil
	}
	c.writeClosed = true
	c.closeWrOnce.Do(func() { close(c.wCh) })

	return nil
}

// Close tears down both directions, interrupting any outstanding
// operation on either end.
func (c *conn) Close() error {
	c.closeOnce.Do(func() { close(c.localDone) })

	return nil
}

func (c *conn) SetDeadline(t time.Time) error {
	c.readDeadline.Set(t)
	c.writeDeadline.Set(t)

	return nil
}

func (c *conn) SetReadDeadline(t time.Time) error {
	c.readDeadline.Set(t)

	return nil
}

func (c *conn) SetWriteDeadline(t time.Time) error {
	c.writeDeadline.Set(t)

	return nil
}
