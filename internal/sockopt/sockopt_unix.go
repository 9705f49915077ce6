// SPDX-FileCopyrightText: 2026 The tlstream authors
// SPDX-License-Identifier: MIT

//go:build unix

// Package sockopt applies address-reuse socket options at bind time
// and classifies bind conflicts, keeping the platform-specific parts
// behind one small surface.
package sockopt

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

// Control returns a net.ListenConfig control function applying the
// requested reuse options, or nil when nothing was requested.
func Control(reuseAddress, reusePort bool) func(network, address string, rc syscall.RawConn) error {
	if !reuseAddress && !reusePort {
		return nil
	}

	return func(_, _ string, rc syscall.RawConn) error {
		var serr error
		err := rc.Control(func(fd uintptr) {
			if reuseAddress {
				serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			}
			if serr == nil && reusePort {
				// Inert on platforms without SO_REUSEPORT; an
				// unsupported reuse request is accepted, not an error.
				serr = setReusePort(int(fd))
			}
		})
		if err != nil {
			return err
		}

		return serr
	}
}

// IsAddrInUse reports whether err is a conflicting-bind failure.
func IsAddrInUse(err error) bool {
	return errors.Is(err, unix.EADDRINUSE)
}
