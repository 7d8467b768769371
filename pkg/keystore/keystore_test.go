package keystore

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"

	qerrors "github.com/sts-chat/go-client/internal/errors"
)

func genPrivateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func encodePrivatePEM(priv *rsa.PrivateKey) []byte {
	der := x509.MarshalPKCS1PrivateKey(priv)
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der})
}

func TestValidateUsername(t *testing.T) {
	cases := []struct {
		name    string
		wantErr bool
	}{
		{"alice", false},
		{"", true},
		{"a/b", true},
		{`a\b`, true},
		{"a..b", true},
		{"alice\x00", true},
		{string(make([]byte, 300)), true},
	}
	for _, c := range cases {
		err := ValidateUsername(c.name)
		if (err != nil) != c.wantErr {
			t.Errorf("ValidateUsername(%q): got err=%v, want wantErr=%v", c.name, err, c.wantErr)
		}
	}
}

func TestLoadPrivateReadsAndParsesKey(t *testing.T) {
	dir := t.TempDir()
	priv := genPrivateKey(t)
	if err := os.WriteFile(filepath.Join(dir, "alice.pem"), encodePrivatePEM(priv), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}

	s := New(Paths{KeyDir: dir})
	loaded, err := s.LoadPrivate("alice")
	if err != nil {
		t.Fatalf("LoadPrivate: %v", err)
	}
	if loaded.N.Cmp(priv.N) != 0 {
		t.Error("loaded key does not match written key")
	}
}

func TestLoadPrivateRejectsPathTraversal(t *testing.T) {
	s := New(Paths{KeyDir: t.TempDir()})
	if _, err := s.LoadPrivate("../etc/passwd"); err == nil {
		t.Error("expected path-traversal username to be rejected")
	}
}

func TestLoadPrivateMissingFile(t *testing.T) {
	s := New(Paths{KeyDir: t.TempDir()})
	_, err := s.LoadPrivate("nobody")
	if !errors.Is(err, qerrors.ErrKeyFileMissing) {
		t.Errorf("got %v, want ErrKeyFileMissing", err)
	}
}

func TestDefaultPathsUsesWellKnownLocations(t *testing.T) {
	p := DefaultPaths()
	if p.KeyDir == "" || p.CACertPath == "" || p.CRLPath == "" {
		t.Errorf("DefaultPaths left a field empty: %+v", p)
	}
}
