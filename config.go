// SPDX-FileCopyrightText: 2026 The tlstream authors
// SPDX-License-Identifier: MIT

package tlstream

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"time"

	"github.com/pion/logging"
)

// Config is used to configure a client or server connection, or a
// listener. After a Config is passed to a function of this package it
// must not be modified.
type Config struct {
	// Certificates contains already-resolved chains to present to the
	// other side. Servers MUST provide certificate material through
	// this or CertificateSources; clients SHOULD, so certificate
	// requests can be answered.
	Certificates []tls.Certificate

	// CertificateSources is resolved through the CertificateStore at
	// construction time, before any network I/O.
	CertificateSources []CertificateSource

	// FileLoader resolves delegated certificate/key references from
	// CertificateSources. Nil means the local filesystem.
	FileLoader FileLoader

	// RootCAs is the pool the peer's chain is validated against on
	// the client side. Nil means the host's root set.
	RootCAs *x509.CertPool

	// ClientCAs is the pool client chains are validated against when
	// ClientAuth requires verification.
	ClientCAs *x509.CertPool

	// ClientAuth declares the server's policy for requesting and
	// verifying a client certificate. The default is NoClientCert.
	ClientAuth ClientAuthType

	// ServerName is the expected host of the peer certificate. Empty
	// skips hostname verification but still validates the chain.
	ServerName string

	// SupportedProtocols is the ALPN preference list, most preferred
	// first. Empty disables protocol negotiation.
	SupportedProtocols []string

	// InsecureSkipVerify accepts any peer chain. Test use only.
	InsecureSkipVerify bool

	// ReuseAddress and ReusePort apply at bind time only. A reuse
	// request on a platform lacking the capability is accepted and
	// has no effect.
	ReuseAddress bool
	ReusePort    bool

	// LoggerFactory is used to produce per-component loggers.
	LoggerFactory logging.LoggerFactory

	// ConnectContextMaker bounds implicitly driven handshakes. The
	// default allows 30 seconds.
	ConnectContextMaker func() (context.Context, func())
}

// ClientAuthType declares the policy the server will follow for
// client certificate authentication.
type ClientAuthType int

// ClientAuthType enums.
const (
	NoClientCert ClientAuthType = iota
	RequestClientCert
	RequireAnyClientCert
	VerifyClientCertIfGiven
	RequireAndVerifyClientCert
)

func validateConfig(config *Config) error {
	if config == nil {
		return errNoConfigProvided
	}

	return nil
}

func (c *Config) loggerFactory() logging.LoggerFactory {
	if c.LoggerFactory != nil {
		return c.LoggerFactory
	}

	return logging.NewDefaultLoggerFactory()
}

func (c *Config) connectContextMaker() (context.Context, func()) {
	if c.ConnectContextMaker != nil {
		return c.ConnectContextMaker()
	}

	return context.WithTimeout(context.Background(), 30*time.Second)
}

// buildEngineConfig resolves all certificate material and assembles
// the record engine configuration for one role. All resolution and
// validation failures surface here, before the transport is touched.
func buildEngineConfig(config *Config, isClient bool) (*tls.Config, error) {
	store := NewCertificateStore(config.FileLoader, config.loggerFactory())

	certs := make([]tls.Certificate, 0, len(config.Certificates)+len(config.CertificateSources))
	certs = append(certs, config.Certificates...)
	for _, src := range config.CertificateSources {
		cert, err := store.Resolve(src)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}

	engine := &tls.Config{
		Certificates: certs,
		NextProtos:   config.SupportedProtocols,
		ServerName:   config.ServerName,
		ClientCAs:    config.ClientCAs,
		MinVersion:   tls.VersionTLS12,
	}

	if isClient {
		// Chain validation goes through the CertificateStore so every
		// failure reason lands in the package taxonomy; the engine's
		// own verification is bypassed.
		engine.InsecureSkipVerify = true
		if !config.InsecureSkipVerify {
			roots := config.RootCAs
			if roots == nil {
				systemRoots, err := x509.SystemCertPool()
				if err != nil {
					return nil, &Error{Kind: KindNotFound, Err: err}
				}
				roots = systemRoots
			}
			engine.VerifyPeerCertificate = store.verifyPeerCallback(roots, config.ServerName)
		}

		return engine, nil
	}

	switch config.ClientAuth {
	case RequestClientCert:
		engine.ClientAuth = tls.RequestClientCert
	case RequireAnyClientCert:
		engine.ClientAuth = tls.RequireAnyClientCert
	case VerifyClientCertIfGiven:
		engine.ClientAuth = tls.VerifyClientCertIfGiven
	case RequireAndVerifyClientCert:
		engine.ClientAuth = tls.RequireAndVerifyClientCert
	default:
		engine.ClientAuth = tls.NoClientCert
	}

	return engine, nil
}
