// SPDX-FileCopyrightText: 2026 The tlstream authors
// SPDX-License-Identifier: MIT

package tlstream

import (
	"crypto/tls"
	"errors"
	"testing"

	"github.com/netseam/tlstream/internal/net/spipe"
)

func TestValidateConfig(t *testing.T) {
	ca, cb := spipe.Pipe()
	defer func() {
		_ = ca.Close()
		_ = cb.Close()
	}()

	if _, err := Client(ca, nil); !errors.Is(err, errNoConfigProvided) {
		t.Errorf("client with nil config = %v, want errNoConfigProvided", err)
	}
	if _, err := Server(cb, nil); !errors.Is(err, errNoConfigProvided) {
		t.Errorf("server with nil config = %v, want errNoConfigProvided", err)
	}
	if _, err := Client(nil, &Config{InsecureSkipVerify: true}); !errors.Is(err, errNilTransport) {
		t.Errorf("client with nil transport = %v, want errNilTransport", err)
	}
	if _, err := Server(cb, &Config{}); !errors.Is(err, errServerMustHaveCert) {
		t.Errorf("server without certificate = %v, want errServerMustHaveCert", err)
	}
	if _, err := Listen("tcp", "127.0.0.1:0", &Config{}); !errors.Is(err, errServerMustHaveCert) {
		t.Errorf("listen without certificate = %v, want errServerMustHaveCert", err)
	}
	if _, err := Listen("tcp", "127.0.0.1:0", nil); !errors.Is(err, errNoConfigProvided) {
		t.Errorf("listen with nil config = %v, want errNoConfigProvided", err)
	}
}

func TestBuildEngineConfig(t *testing.T) {
	certPEM, keyPEM, _ := testPEM(t)

	config := &Config{
		CertificateSources: []CertificateSource{{CertificatePEM: certPEM, KeyPEM: keyPEM}},
		SupportedProtocols: []string{"a", "b"},
		ClientAuth:         RequireAndVerifyClientCert,
	}
	engine, err := buildEngineConfig(config, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(engine.Certificates) != 1 {
		t.Errorf("expected one resolved certificate, got %d", len(engine.Certificates))
	}
	if len(engine.NextProtos) != 2 {
		t.Errorf("protocol preferences not carried: %v", engine.NextProtos)
	}
	if engine.ClientAuth != tls.RequireAndVerifyClientCert {
		t.Errorf("client auth policy not mapped: %v", engine.ClientAuth)
	}
	if engine.MinVersion != tls.VersionTLS12 {
		t.Errorf("unexpected minimum version: %x", engine.MinVersion)
	}

	// Resolution failures surface before any transport is touched.
	bad := &Config{
		CertificateSources: []CertificateSource{{CertificatePEM: []byte("junk"), KeyPEM: keyPEM}},
	}
	if _, err = buildEngineConfig(bad, false); !IsKind(err, KindInvalidData) {
		t.Errorf("malformed source = %v, want InvalidData", err)
	}
}

func TestClientCertificateRequired(t *testing.T) {
	clientCfg, serverCfg := createTestConfigs(t, nil, nil)
	serverCfg.ClientAuth = RequireAndVerifyClientCert
	serverCfg.ClientCAs = clientCfg.RootCAs

	// Without a client certificate the handshake fails on both ends.
	if _, _, err := pipeConfig(clientCfg, serverCfg); !IsKind(err, KindInvalidData) {
		t.Fatalf("handshake without client certificate = %v, want InvalidData", err)
	}

	// Presenting a chain trusted by the server succeeds.
	clientCfg.Certificates = serverCfg.Certificates
	client, server, err := pipeConfig(clientCfg, serverCfg)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = client.Close()
		_ = server.Close()
	}()

	state := server.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		t.Fatal("server did not record the client chain")
	}
}
