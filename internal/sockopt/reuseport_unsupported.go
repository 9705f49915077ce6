// SPDX-FileCopyrightText: 2026 The tlstream authors
// SPDX-License-Identifier: MIT

//go:build unix && !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package sockopt

// ReusePortSupported reports whether the platform honors SO_REUSEPORT.
const ReusePortSupported = false

func setReusePort(int) error { return nil }
