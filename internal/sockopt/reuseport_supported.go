// SPDX-FileCopyrightText: 2026 The tlstream authors
// SPDX-License-Identifier: MIT

//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package sockopt

import "golang.org/x/sys/unix"

// ReusePortSupported reports whether the platform honors SO_REUSEPORT.
const ReusePortSupported = true

func setReusePort(fd int) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
}
