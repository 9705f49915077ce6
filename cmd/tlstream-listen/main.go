// SPDX-FileCopyrightText: 2026 The tlstream authors
// SPDX-License-Identifier: MIT

// Command tlstream-listen serves an encrypted chat hub: every line
// read from stdin is broadcast to all connected peers, every message
// from a peer is printed.
package main

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"os"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/pion/logging"
	"github.com/spf13/pflag"

	"github.com/netseam/tlstream"
	"github.com/netseam/tlstream/pkg/crypto/selfsign"
)

const bufSize = 8192

func main() {
	var (
		addr      = pflag.String("addr", "127.0.0.1:4444", "address to bind")
		certFile  = pflag.String("cert", "", "certificate chain file (PEM); self-signed when empty")
		keyFile   = pflag.String("key", "", "private key file (PEM)")
		alpn      = pflag.StringSlice("alpn", nil, "application protocols to offer")
		reuseAddr = pflag.Bool("reuse-addr", false, "bind with SO_REUSEADDR")
		reusePort = pflag.Bool("reuse-port", false, "bind with SO_REUSEPORT where supported")
		verbose   = pflag.BoolP("verbose", "v", false, "trace-level logging")
	)
	pflag.Parse()

	loggerFactory := logging.NewDefaultLoggerFactory()
	if *verbose {
		loggerFactory.DefaultLogLevel = logging.LogLevelTrace
	}
	log := loggerFactory.NewLogger("listen")

	config := &tlstream.Config{
		SupportedProtocols: *alpn,
		ReuseAddress:       *reuseAddr,
		ReusePort:          *reusePort,
		LoggerFactory:      loggerFactory,
	}
	if *certFile != "" {
		config.CertificateSources = []tlstream.CertificateSource{
			{CertificateFile: *certFile, KeyFile: *keyFile},
		}
	} else {
		certificate, err := selfsign.GenerateSelfSigned()
		check(err)
		config.Certificates = []tls.Certificate{certificate}
	}

	listener, err := tlstream.Listen("tcp", *addr, config)
	check(err)
	defer func() {
		check(listener.Close())
	}()
	log.Infof("listening on %s", listener.Addr())

	hub := newHub(log)
	go hub.chat()

	for {
		conn, err := listener.Accept()
		check(err)
		hub.register(conn)
	}
}

// hub fans messages out to every connected peer.
type hub struct {
	conns cmap.ConcurrentMap[string, *tlstream.Conn]
	log   logging.LeveledLogger
}

func newHub(log logging.LeveledLogger) *hub {
	return &hub{conns: cmap.New[*tlstream.Conn](), log: log}
}

func (h *hub) register(conn *tlstream.Conn) {
	key := conn.RemoteAddr().String()
	h.conns.Set(key, conn)

	go func() {
		proto, err := conn.Handshake()
		if err != nil {
			h.log.Warnf("handshake with %s failed: %v", key, err)
			h.unregister(key, conn)

			return
		}
		h.log.Infof("connected to %s (alpn=%q)", key, proto)

		b := make([]byte, bufSize)
		for {
			n, err := conn.Read(b)
			if err != nil {
				h.log.Infof("disconnecting %s: %v", key, err)
				h.unregister(key, conn)

				return
			}
			fmt.Printf("%s: %s", key, string(b[:n]))
		}
	}()
}

func (h *hub) unregister(key string, conn *tlstream.Conn) {
	h.conns.Remove(key)
	_ = conn.Close()
}

func (h *hub) broadcast(msg []byte) {
	h.conns.IterCb(func(key string, conn *tlstream.Conn) {
		if _, err := conn.Write(msg); err != nil {
			h.log.Warnf("write to %s failed: %v", key, err)
		}
	})
}

func (h *hub) chat() {
	reader := bufio.NewReader(os.Stdin)
	for {
		msg, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		h.broadcast([]byte(msg))
	}
}

func check(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
