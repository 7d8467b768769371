package certstore

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writePEM(t *testing.T, dir, name string, der []byte, blockType string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	defer f.Close()
	if err := pem.Encode(f, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		t.Fatalf("encode %s: %v", name, err)
	}
	return path
}

func generateCA(t *testing.T) (*rsa.PrivateKey, *x509.Certificate, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate ca key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour * 24 * 365),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create ca cert: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse ca cert: %v", err)
	}
	return key, cert, der
}

func generateLeaf(t *testing.T, caKey *rsa.PrivateKey, caCert *x509.Certificate, serial int64) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate leaf key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: "server"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour * 24 * 30),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, caCert, &key.PublicKey, caKey)
	if err != nil {
		t.Fatalf("create leaf cert: %v", err)
	}
	return der
}

func generateCRL(t *testing.T, caKey *rsa.PrivateKey, caCert *x509.Certificate, revoked ...int64) []byte {
	t.Helper()
	var entries []x509.RevocationListEntry
	for _, s := range revoked {
		entries = append(entries, x509.RevocationListEntry{
			SerialNumber:   big.NewInt(s),
			RevocationTime: time.Now(),
		})
	}
	tmpl := &x509.RevocationList{
		Number:                    big.NewInt(1),
		ThisUpdate:                time.Now().Add(-time.Hour),
		NextUpdate:                time.Now().Add(time.Hour * 24),
		RevokedCertificateEntries: entries,
	}
	der, err := x509.CreateRevocationList(rand.Reader, tmpl, caCert, caKey)
	if err != nil {
		t.Fatalf("create crl: %v", err)
	}
	return der
}

func TestLoadAndValidateAcceptsLeafSignedByCA(t *testing.T) {
	dir := t.TempDir()
	caKey, caCert, caDER := generateCA(t)
	leafDER := generateLeaf(t, caKey, caCert, 2)
	crlDER := generateCRL(t, caKey, caCert)

	caPath := writePEM(t, dir, "ca.pem", caDER, "CERTIFICATE")
	crlPath := writePEM(t, dir, "crl.pem", crlDER, "X509 CRL")

	store, err := Load(caPath, crlPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	cert, err := store.Validate(leafDER, time.Now())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cert.Subject.CommonName != "server" {
		t.Errorf("unexpected subject: %s", cert.Subject.CommonName)
	}
}

func TestValidateRejectsRevokedCertificate(t *testing.T) {
	dir := t.TempDir()
	caKey, caCert, caDER := generateCA(t)
	leafDER := generateLeaf(t, caKey, caCert, 7)
	crlDER := generateCRL(t, caKey, caCert, 7)

	caPath := writePEM(t, dir, "ca.pem", caDER, "CERTIFICATE")
	crlPath := writePEM(t, dir, "crl.pem", crlDER, "X509 CRL")

	store, err := Load(caPath, crlPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if _, err := store.Validate(leafDER, time.Now()); err == nil {
		t.Error("expected revoked certificate to be rejected")
	}
}

func TestValidateRejectsUnknownIssuer(t *testing.T) {
	dir := t.TempDir()
	_, caCert, caDER := generateCA(t)
	otherKey, otherCert, _ := generateCA(t)
	leafDER := generateLeaf(t, otherKey, otherCert, 3)

	caPath := writePEM(t, dir, "ca.pem", caDER, "CERTIFICATE")

	store, err := Load(caPath, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	_ = caCert

	if _, err := store.Validate(leafDER, time.Now()); err == nil {
		t.Error("expected certificate from an unrelated CA to be rejected")
	}
}

func TestLoadFailsOnMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/ca.pem", ""); err == nil {
		t.Error("expected error loading a missing CA certificate")
	}
}
