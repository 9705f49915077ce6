// SPDX-FileCopyrightText: 2026 The tlstream authors
// SPDX-License-Identifier: MIT

// Command tlstream-dial connects to an encrypted listener. On a
// terminal it runs a line-oriented chat; otherwise it pipes stdin and
// stdout through the connection, netcat style.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/pion/logging"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/netseam/tlstream"
)

const bufSize = 8192

func main() {
	var (
		addr       = pflag.String("addr", "127.0.0.1:4444", "address to connect to")
		serverName = pflag.String("server-name", "", "expected host of the peer certificate")
		alpn       = pflag.StringSlice("alpn", nil, "application protocols to offer")
		caFile     = pflag.String("ca", "", "trust roots file (PEM); host roots when empty")
		insecure   = pflag.Bool("insecure", false, "skip peer certificate validation")
		retries    = pflag.Uint64("retries", 0, "connect retries with exponential backoff")
		verbose    = pflag.BoolP("verbose", "v", false, "trace-level logging")
	)
	pflag.Parse()

	loggerFactory := logging.NewDefaultLoggerFactory()
	if *verbose {
		loggerFactory.DefaultLogLevel = logging.LogLevelTrace
	}
	log := loggerFactory.NewLogger("dial")

	config := &tlstream.Config{
		ServerName:         *serverName,
		SupportedProtocols: *alpn,
		InsecureSkipVerify: *insecure,
		LoggerFactory:      loggerFactory,
	}
	if *caFile != "" {
		pem, err := os.ReadFile(*caFile)
		check(err)
		roots, err := tlstream.NewCertificateStore(nil, loggerFactory).TrustRoots(pem)
		check(err)
		config.RootCAs = roots
	}

	conn, err := backoff.RetryWithData(func() (*tlstream.Conn, error) {
		c, dialErr := tlstream.Dial("tcp", *addr, config)
		if dialErr != nil {
			log.Warnf("dial %s: %v", *addr, dialErr)
		}

		return c, dialErr
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), *retries))
	check(err)
	defer func() {
		_ = conn.Close()
	}()

	proto, err := conn.Handshake()
	check(err)
	log.Infof("connected to %s (alpn=%q)", conn.RemoteAddr(), proto)

	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Println("connected; type 'exit' to shut down gracefully")
		chat(conn)

		return
	}
	pipe(conn)
}

func chat(conn *tlstream.Conn) {
	go func() {
		b := make([]byte, bufSize)
		for {
			n, err := conn.Read(b)
			if err != nil {
				fmt.Fprintf(os.Stderr, "read: %v\n", err)

				return
			}
			fmt.Printf("got message: %s", string(b[:n]))
		}
	}()

	reader := bufio.NewReader(os.Stdin)
	for {
		text, err := reader.ReadString('\n')
		check(err)

		if strings.TrimSpace(text) == "exit" {
			check(conn.CloseWrite())

			return
		}

		_, err = conn.Write([]byte(text))
		check(err)
	}
}

func pipe(conn *tlstream.Conn) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = io.Copy(os.Stdout, conn)
	}()

	_, err := io.Copy(conn, os.Stdin)
	check(err)
	check(conn.CloseWrite())
	<-done
}

func check(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
