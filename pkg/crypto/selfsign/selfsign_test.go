// SPDX-FileCopyrightText: 2026 The tlstream authors
// SPDX-License-Identifier: MIT

package selfsign

import (
	"crypto/tls"
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelfSign(t *testing.T) {
	cert, err := GenerateSelfSigned()
	assert.NoError(t, err)
	assert.NotNil(t, cert.Leaf)
	assert.NotNil(t, cert.PrivateKey)
}

func TestSelfSignWithDNS(t *testing.T) {
	cert, err := GenerateSelfSignedWithDNS("example.invalid", "a.example.invalid", "b.example.invalid")
	assert.NoError(t, err)

	assert.Equal(t, "example.invalid", cert.Leaf.Subject.CommonName)
	assert.ElementsMatch(t, []string{"a.example.invalid", "b.example.invalid"}, cert.Leaf.DNSNames)
	assert.Contains(t, cert.Leaf.ExtKeyUsage, x509.ExtKeyUsageServerAuth)
	assert.Contains(t, cert.Leaf.ExtKeyUsage, x509.ExtKeyUsageClientAuth)
}

func TestEncodePEM(t *testing.T) {
	cert, err := GenerateSelfSigned()
	assert.NoError(t, err)

	certPEM, keyPEM, err := EncodePEM(cert)
	assert.NoError(t, err)

	reloaded, err := tls.X509KeyPair(certPEM, keyPEM)
	assert.NoError(t, err)
	assert.Equal(t, cert.Certificate[0], reloaded.Certificate[0])
}
