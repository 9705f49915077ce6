// SPDX-FileCopyrightText: 2026 The tlstream authors
// SPDX-License-Identifier: MIT

package tlstream

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pion/logging"
)

// FileLoader resolves a delegated certificate/key reference to its
// raw bytes. The default loader reads the filesystem; callers embed
// their own to enforce sandboxing or fetch from elsewhere.
type FileLoader func(path string) ([]byte, error)

// CertificateSource describes where one local certificate chain and
// its private key come from: inline PEM bytes, or file references
// resolved through the store's loader. Inline material wins when both
// are set. A source is immutable once handed to a Config.
type CertificateSource struct {
	CertificatePEM []byte
	KeyPEM         []byte

	CertificateFile string
	KeyFile         string
}

// CertificateStore resolves local certificate material and validates
// peer chains. Trust material is read-only after construction and
// safe to share across concurrent validations.
type CertificateStore struct {
	loader FileLoader
	log    logging.LeveledLogger
}

// NewCertificateStore builds a store around the given loader. A nil
// loader falls back to reading the filesystem.
func NewCertificateStore(loader FileLoader, loggerFactory logging.LoggerFactory) *CertificateStore {
	if loader == nil {
		loader = func(path string) ([]byte, error) {
			return os.ReadFile(filepath.Clean(path))
		}
	}
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}

	return &CertificateStore{
		loader: loader,
		log:    loggerFactory.NewLogger("certs"),
	}
}

// Resolve produces a usable certificate chain and key from a source.
// A missing delegated path fails with the not-found kind, a refused
// one with permission-denied, and empty or unparsable material with
// invalid-data. Failures are reported before any network I/O happens.
func (s *CertificateStore) Resolve(src CertificateSource) (tls.Certificate, error) {
	certPEM := src.CertificatePEM
	keyPEM := src.KeyPEM

	var err error
	if len(certPEM) == 0 && src.CertificateFile != "" {
		if certPEM, err = s.load(src.CertificateFile); err != nil {
			return tls.Certificate{}, err
		}
	}
	if len(keyPEM) == 0 && src.KeyFile != "" {
		if keyPEM, err = s.load(src.KeyFile); err != nil {
			return tls.Certificate{}, err
		}
	}

	if len(certPEM) == 0 {
		return tls.Certificate{}, errEmptyCertificate
	}
	if len(keyPEM) == 0 {
		return tls.Certificate{}, errEmptyPrivateKey
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, &Error{Kind: KindInvalidData, Err: err}
	}
	if cert.Leaf == nil && len(cert.Certificate) > 0 {
		// Best effort; identity logging only.
		cert.Leaf, _ = x509.ParseCertificate(cert.Certificate[0])
	}
	if cert.Leaf != nil {
		s.log.Debugf("resolved certificate chain, leaf subject %q", cert.Leaf.Subject)
	}

	return cert, nil
}

func (s *CertificateStore) load(path string) ([]byte, error) {
	b, err := s.loader(path)
	switch {
	case err == nil:
		return b, nil
	case errors.Is(err, fs.ErrNotExist):
		return nil, &Error{Kind: KindNotFound, Err: fmt.Errorf("load %s: %w", path, err)}
	case errors.Is(err, fs.ErrPermission):
		return nil, &Error{Kind: KindPermissionDenied, Err: fmt.Errorf("load %s: %w", path, err)}
	default:
		return nil, err
	}
}

// TrustRoots parses a PEM bundle into a verification pool. It fails
// with invalid-data when no certificate can be decoded from it.
func (s *CertificateStore) TrustRoots(pemBytes []byte) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemBytes) {
		return nil, errNoTrustRoots
	}

	return pool, nil
}

// VerifyPeer validates a presented chain against the trust roots and,
// when non-empty, the expected host. Self-signed, unknown-issuer and
// hostname-mismatch chains all fail with the same invalid-data kind,
// distinguished only by the cause text.
func (s *CertificateStore) VerifyPeer(rawCerts [][]byte, roots *x509.CertPool, serverName string) ([][]*x509.Certificate, error) {
	if len(rawCerts) == 0 {
		return nil, &Error{Kind: KindInvalidData, Err: errors.New("peer presented no certificates")}
	}

	certs := make([]*x509.Certificate, len(rawCerts))
	for i, raw := range rawCerts {
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			return nil, &Error{Kind: KindInvalidData, Err: fmt.Errorf("malformed peer certificate: %w", err)}
		}
		certs[i] = cert
	}

	opts := x509.VerifyOptions{
		Roots:         roots,
		DNSName:       serverName,
		Intermediates: x509.NewCertPool(),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}
	for _, cert := range certs[1:] {
		opts.Intermediates.AddCert(cert)
	}

	chains, err := certs[0].Verify(opts)
	if err != nil {
		s.log.Debugf("peer validation failed: %v", err)

		return nil, &Error{Kind: KindInvalidData, Err: err}
	}

	return chains, nil
}

// verifyPeerCallback adapts VerifyPeer to the record engine's
// verification hook.
func (s *CertificateStore) verifyPeerCallback(roots *x509.CertPool, serverName string) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		_, err := s.VerifyPeer(rawCerts, roots, serverName)

		return err
	}
}
