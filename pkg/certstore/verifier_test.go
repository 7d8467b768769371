package certstore

import (
	"testing"
	"time"
)

func TestVerifyResponderIdentityAcceptsMatchingCommonName(t *testing.T) {
	dir := t.TempDir()
	caKey, caCert, caDER := generateCA(t)
	leafDER := generateLeaf(t, caKey, caCert, 11)
	crlDER := generateCRL(t, caKey, caCert)

	caPath := writePEM(t, dir, "ca.pem", caDER, "CERTIFICATE")
	crlPath := writePEM(t, dir, "crl.pem", crlDER, "X509 CRL")

	store, err := Load(caPath, crlPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	pub, err := store.VerifyResponderIdentity("server", leafDER)
	if err != nil {
		t.Fatalf("VerifyResponderIdentity: %v", err)
	}
	if pub == nil {
		t.Fatal("expected a non-nil public key")
	}
}

func TestVerifyResponderIdentityRejectsUsernameMismatch(t *testing.T) {
	dir := t.TempDir()
	caKey, caCert, caDER := generateCA(t)
	leafDER := generateLeaf(t, caKey, caCert, 12)

	caPath := writePEM(t, dir, "ca.pem", caDER, "CERTIFICATE")

	store, err := Load(caPath, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if _, err := store.VerifyResponderIdentity("not-the-server", leafDER); err == nil {
		t.Error("expected a Common Name mismatch to be rejected")
	}
}

func TestVerifyResponderIdentityRejectsInvalidCertificate(t *testing.T) {
	dir := t.TempDir()
	_, _, caDER := generateCA(t)
	caPath := writePEM(t, dir, "ca.pem", caDER, "CERTIFICATE")

	store, err := Load(caPath, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if _, err := store.VerifyResponderIdentity("server", []byte("not a certificate")); err == nil {
		t.Error("expected malformed DER to be rejected")
	}
}

var _ = time.Now
