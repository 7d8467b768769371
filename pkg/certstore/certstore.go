// Package certstore loads the CA certificate and certificate revocation list
// that authenticate the server's identity (and, indirectly, every
// certificate the CA has signed) during the handshake's M2 verification step.
//
// Grounded on the original client's build_store_certificate_and_validate_check,
// which built an OpenSSL X509_STORE from the CA certificate and CRL and ran
// X509_verify_cert against it; this package does the equivalent with
// crypto/x509's CertPool and VerifyOptions, following the validator
// organization (sentinel errors per failure mode, a single Validate entry
// point) of backkem-matter/pkg/securechannel/certvalidator.go.
package certstore

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"os"
	"time"

	qerrors "github.com/sts-chat/go-client/internal/errors"
)

// Store holds the trusted CA certificate and its revocation list.
type Store struct {
	caCert *x509.Certificate
	caPool *x509.CertPool
	crl    *x509.RevocationList
}

// Load reads the CA certificate and CRL from the given PEM files.
func Load(caCertPath, crlPath string) (*Store, error) {
	caPEM, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, qerrors.NewCryptoError("certstore.Load", qerrors.ErrKeyFileMissing)
	}
	block, _ := pem.Decode(caPEM)
	if block == nil {
		return nil, qerrors.NewCryptoError("certstore.Load", qerrors.ErrCertificateInvalid)
	}
	caCert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, qerrors.NewCryptoError("certstore.Load", qerrors.ErrCertificateInvalid)
	}

	pool := x509.NewCertPool()
	pool.AddCert(caCert)

	var crl *x509.RevocationList
	if crlPath != "" {
		crlPEM, err := os.ReadFile(crlPath)
		if err != nil {
			return nil, qerrors.NewCryptoError("certstore.Load", qerrors.ErrKeyFileMissing)
		}
		crlBlock, _ := pem.Decode(crlPEM)
		der := crlPEM
		if crlBlock != nil {
			der = crlBlock.Bytes
		}
		crl, err = x509.ParseRevocationList(der)
		if err != nil {
			return nil, qerrors.NewCryptoError("certstore.Load", err)
		}
		if err := crl.CheckSignatureFrom(caCert); err != nil {
			return nil, qerrors.NewCryptoError("certstore.Load", err)
		}
	}

	return &Store{caCert: caCert, caPool: pool, crl: crl}, nil
}

// Validate verifies certDER against the CA store (chain + validity period)
// and checks it against the CRL. Returns the parsed leaf certificate on
// success.
func (s *Store) Validate(certDER []byte, now time.Time) (*x509.Certificate, error) {
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, qerrors.NewCryptoError("certstore.Validate", qerrors.ErrCertificateInvalid)
	}

	opts := x509.VerifyOptions{
		Roots:     s.caPool,
		CurrentTime: now,
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}
	if _, err := cert.Verify(opts); err != nil {
		return nil, qerrors.NewCryptoError("certstore.Validate", qerrors.ErrCertificateInvalid)
	}

	if s.revoked(cert.SerialNumber) {
		return nil, qerrors.NewCryptoError("certstore.Validate", qerrors.ErrRevoked)
	}

	return cert, nil
}

func (s *Store) revoked(serial interface{ String() string }) bool {
	if s.crl == nil {
		return false
	}
	for _, entry := range s.crl.RevokedCertificateEntries {
		if entry.SerialNumber.String() == serial.String() {
			return true
		}
	}
	return false
}

// CACertificate returns the loaded CA certificate.
func (s *Store) CACertificate() *x509.Certificate {
	return s.caCert
}

// RevokedSerials returns the serial numbers present on the loaded CRL, for
// diagnostics/testing.
func (s *Store) RevokedSerials() []pkix.RevokedCertificate {
	if s.crl == nil {
		return nil
	}
	out := make([]pkix.RevokedCertificate, 0, len(s.crl.RevokedCertificateEntries))
	for _, e := range s.crl.RevokedCertificateEntries {
		out = append(out, pkix.RevokedCertificate{
			SerialNumber:   e.SerialNumber,
			RevocationTime: e.RevocationTime,
		})
	}
	return out
}
