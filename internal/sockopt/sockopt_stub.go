// SPDX-FileCopyrightText: 2026 The tlstream authors
// SPDX-License-Identifier: MIT

//go:build !unix

package sockopt

import "syscall"

// ReusePortSupported reports whether the platform honors SO_REUSEPORT.
const ReusePortSupported = false

// Control is inert on platforms without the reuse socket options; a
// reuse request is accepted and has no effect.
func Control(bool, bool) func(network, address string, rc syscall.RawConn) error {
	return nil
}

// IsAddrInUse reports whether err is a conflicting-bind failure.
func IsAddrInUse(error) bool { return false }
