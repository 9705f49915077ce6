// SPDX-FileCopyrightText: 2026 The tlstream authors
// SPDX-License-Identifier: MIT

package tlstream

import "net"

// Server starts an encrypted session over an existing transport in
// the accepting role. A server must be able to present a certificate
// chain. The same transport-exclusivity rules as for Client apply.
func Server(conn net.Conn, config *Config) (*Conn, error) {
	if config == nil {
		return nil, errNoConfigProvided
	}
	if len(config.Certificates) == 0 && len(config.CertificateSources) == 0 {
		return nil, errServerMustHaveCert
	}

	return createConn(conn, config, false)
}
