package certstore

import (
	"crypto/rsa"
	"time"

	qerrors "github.com/sts-chat/go-client/internal/errors"
)

// VerifyResponderIdentity implements handshake.IdentityVerifier for the
// client-server handshake run at login: identityPayload is the server's DER
// X.509 certificate, validated against the CA store and CRL, and its
// Subject Common Name must equal username (the server's own identity, which
// the client already knows before dialing).
func (s *Store) VerifyResponderIdentity(username string, identityPayload []byte) (*rsa.PublicKey, error) {
	cert, err := s.Validate(identityPayload, time.Now())
	if err != nil {
		return nil, err
	}
	if cert.Subject.CommonName != username {
		return nil, qerrors.NewCryptoError("certstore.VerifyResponderIdentity", qerrors.ErrCertificateInvalid)
	}
	rsaKey, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, qerrors.NewCryptoError("certstore.VerifyResponderIdentity", qerrors.ErrInvalidKeySize)
	}
	return rsaKey, nil
}
