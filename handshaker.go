// SPDX-FileCopyrightText: 2026 The tlstream authors
// SPDX-License-Identifier: MIT

package tlstream

import (
	"context"
	"crypto/tls"
	"sync"

	"github.com/pion/logging"
)

// HandshakeState is the connection's position in the negotiation
// lifecycle. Transitions are monotonic; a completed handshake is
// re-entered only in the sense that further drives return the cached
// outcome.
type HandshakeState uint8

// Handshake states.
const (
	HandshakeErrored HandshakeState = iota
	HandshakeNotStarted
	HandshakeInProgress
	HandshakeCompleted
)

func (s HandshakeState) String() string {
	switch s {
	case HandshakeErrored:
		return "Errored"
	case HandshakeNotStarted:
		return "NotStarted"
	case HandshakeInProgress:
		return "InProgress"
	case HandshakeCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

func srvCliStr(isClient bool) string {
	if isClient {
		return "client"
	}

	return "server"
}

// handshakeFSM drives the record engine's negotiation exactly once
// and caches the outcome. It is not reentrant; concurrent Drive calls
// serialize internally and observe the same result. Post-handshake
// in-band exchanges (key updates, tickets) are consumed by the engine
// inside Read/Write, so a drive after completion never touches bytes
// already in flight.
type handshakeFSM struct {
	mu       sync.Mutex
	state    HandshakeState
	engine   *tls.Conn
	isClient bool
	log      logging.LeveledLogger

	// translate maps engine errors onto the package taxonomy; it is
	// supplied by the owning conn, which knows the close state.
	translate func(error) error

	proto string
	err   error
}

func newHandshakeFSM(engine *tls.Conn, isClient bool, translate func(error) error, log logging.LeveledLogger) *handshakeFSM {
	return &handshakeFSM{
		state:     HandshakeNotStarted,
		engine:    engine,
		isClient:  isClient,
		translate: translate,
		log:       log,
	}
}

// Drive runs the exchange to completion, or returns the cached
// outcome of a previous run. On success it reports the negotiated
// protocol, empty when ALPN was not in play.
func (f *handshakeFSM) Drive(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.state {
	case HandshakeCompleted:
		return f.proto, nil
	case HandshakeErrored:
		return "", f.err
	case HandshakeNotStarted, HandshakeInProgress:
	}

	f.state = HandshakeInProgress
	f.log.Tracef("[handshake:%s] %s", srvCliStr(f.isClient), f.state)

	if err := f.engine.HandshakeContext(ctx); err != nil {
		f.err = f.translate(err)
		f.state = HandshakeErrored
		f.log.Debugf("[handshake:%s] %s: %v", srvCliStr(f.isClient), f.state, f.err)

		return "", f.err
	}

	f.proto = f.engine.ConnectionState().NegotiatedProtocol
	f.state = HandshakeCompleted
	f.log.Tracef("[handshake:%s] %s (alpn=%q)", srvCliStr(f.isClient), f.state, f.proto)

	return f.proto, nil
}

// State reports the current lifecycle position.
func (f *handshakeFSM) State() HandshakeState {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.state
}

// Protocol reports the negotiated ALPN protocol, empty before
// completion.
func (f *handshakeFSM) Protocol() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.proto
}
