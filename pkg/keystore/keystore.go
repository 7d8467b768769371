// Package keystore provides the two operations the handshake engine
// consumes for long-term key material: loading a user's own private signing
// key and fetching a peer's certified public signing key. Keeping these
// behind a narrow interface avoids embedding certificate- and filesystem-
// handling details into the handshake state machine (section 9's design
// note names exactly these two operations).
//
// Grounded on the original client's KeyStore-shaped constructor arguments
// (private key path, CA cert, CRL) and on backkem-matter/pkg/credentials'
// PEM-loading idiom, adapted to RSA signing keys instead of device
// certificates.
package keystore

import (
	"crypto/rsa"
	"os"
	"path/filepath"
	"strings"

	"github.com/sts-chat/go-client/internal/constants"
	qerrors "github.com/sts-chat/go-client/internal/errors"
	"github.com/sts-chat/go-client/pkg/signing"
)

// Paths locates the on-disk files the store reads from (section 6).
type Paths struct {
	// KeyDir holds per-user private signing keys named <username>.pem.
	KeyDir string
	// CACertPath is the CA certificate used to validate the server's and
	// peers' signing-key bindings.
	CACertPath string
	// CRLPath is the certificate revocation list checked alongside the CA.
	CRLPath string
}

// DefaultPaths returns the well-known relative paths from section 6.
func DefaultPaths() Paths {
	return Paths{
		KeyDir:     constants.KeyFileDir,
		CACertPath: constants.CACertificateFile,
		CRLPath:    constants.CRLFile,
	}
}

// PeerKeyFetcher fetches another user's certified public signing key. In
// production this is backed by a server-session control request; tests
// substitute a static map.
type PeerKeyFetcher interface {
	FetchPeerPublicKey(username string) (*rsa.PublicKey, error)
}

// Store loads the local user's private signing key and validates usernames
// before they are substituted into any on-disk path.
type Store struct {
	paths Paths
}

// New returns a Store rooted at paths.
func New(paths Paths) *Store {
	return &Store{paths: paths}
}

// ValidateUsername rejects usernames that are empty, too long, or that
// contain characters that could escape KeyDir when substituted into a file
// path (section 6: "Usernames are validated to contain no /, \, or .. before
// being substituted into these paths").
func ValidateUsername(username string) error {
	if username == "" || len(username) > constants.MaxUsernameLength {
		return qerrors.NewProtocolError("keystore", qerrors.ErrBadUsername)
	}
	if strings.ContainsAny(username, "/\\") || strings.Contains(username, "..") {
		return qerrors.NewProtocolError("keystore", qerrors.ErrBadUsername)
	}
	for _, r := range username {
		if r < 0x20 || r == 0x7f {
			return qerrors.NewProtocolError("keystore", qerrors.ErrBadUsername)
		}
	}
	return nil
}

// LoadPrivate reads and parses the private signing key for username from
// KeyDir/<username>.pem (KeyStore::load_private in section 9).
func (s *Store) LoadPrivate(username string) (*rsa.PrivateKey, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	path := filepath.Join(s.paths.KeyDir, username+".pem")
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, qerrors.NewCryptoError("keystore.LoadPrivate", qerrors.ErrKeyFileMissing)
	}
	key, err := signing.ParsePrivateKeyPEM(pemBytes)
	if err != nil {
		return nil, err
	}
	return key, nil
}

// CACertPath returns the configured CA certificate path.
func (s *Store) CACertPath() string { return s.paths.CACertPath }

// CRLPath returns the configured CRL path.
func (s *Store) CRLPath() string { return s.paths.CRLPath }
