// SPDX-FileCopyrightText: 2026 The tlstream authors
// SPDX-License-Identifier: MIT

package tlstream

import (
	"context"
	"net"

	"github.com/pion/logging"

	"github.com/netseam/tlstream/internal/sockopt"
)

// Listen binds the address and returns a listener producing encrypted
// connections in the accepting role. Certificate material resolves at
// bind time, so delegated load failures surface here rather than on
// the first accept. A conflicting bind without effective address
// reuse fails with the addr-in-use kind.
func Listen(network, address string, config *Config) (*Listener, error) {
	if config == nil {
		return nil, errNoConfigProvided
	}
	if len(config.Certificates) == 0 && len(config.CertificateSources) == 0 {
		return nil, errServerMustHaveCert
	}
	if _, err := buildEngineConfig(config, false); err != nil {
		return nil, err
	}

	lc := net.ListenConfig{
		Control: sockopt.Control(config.ReuseAddress, config.ReusePort),
	}
	parent, err := lc.Listen(context.Background(), network, address)
	if err != nil {
		if sockopt.IsAddrInUse(err) {
			return nil, &Error{Kind: KindAddrInUse, Err: err}
		}

		return nil, err
	}

	l := &Listener{
		parent: parent,
		config: config,
		log:    config.loggerFactory().NewLogger("listener"),
	}
	l.log.Debugf("listening on %s", parent.Addr())

	return l, nil
}

// Listener accepts a lazy, unbounded sequence of encrypted
// connections. Transient accept failures surface to the caller, which
// may simply retry; the sequence keeps producing afterwards.
type Listener struct {
	parent net.Listener
	config *Config
	log    logging.LeveledLogger
}

// Accept waits for the next transport and wraps it into a fresh Conn
// in the accepting role. The handshake is not yet driven; it runs
// lazily on first use or via Handshake.
func (l *Listener) Accept() (*Conn, error) {
	raw, err := l.parent.Accept()
	if err != nil {
		return nil, err
	}
	l.log.Tracef("accepted %s", raw.RemoteAddr())

	conn, err := Server(raw, l.config)
	if err != nil {
		_ = raw.Close()

		return nil, err
	}

	return conn, nil
}

// Close stops future accepts, unblocking a pending one. Connections
// already produced are unaffected.
func (l *Listener) Close() error {
	return l.parent.Close()
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr {
	return l.parent.Addr()
}
