// SPDX-FileCopyrightText: 2026 The tlstream authors
// SPDX-License-Identifier: MIT

package tlstream

import (
	"errors"
	"net"
)

// Dial connects to the given network address and prepares an
// encrypted connection in the initiating role. Certificate and trust
// material is resolved and validated before any network I/O; the
// handshake itself is driven lazily.
func Dial(network, address string, config *Config) (*Conn, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	if _, err := buildEngineConfig(config, true); err != nil {
		return nil, err
	}

	raw, err := net.Dial(network, address)
	if err != nil {
		var addrErr *net.AddrError
		if errors.As(err, &addrErr) {
			return nil, &Error{Kind: KindInvalidData, Err: err}
		}

		return nil, err
	}

	return Client(raw, config)
}

// Client starts an encrypted session over an existing transport in
// the initiating role. The session requires exclusive ownership of
// the transport for its whole life: when the transport already has an
// owner or an uncoordinated operation outstanding, Client fails with
// the bad-resource kind instead of racing it.
func Client(conn net.Conn, config *Config) (*Conn, error) {
	return createConn(conn, config, true)
}

// Upgrade is Client under the name the operation is commonly known
// by: it upgrades an already-connected cleartext transport to an
// encrypted stream, subject to the same exclusivity rules.
func Upgrade(conn net.Conn, config *Config) (*Conn, error) {
	return Client(conn, config)
}
