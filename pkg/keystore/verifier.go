package keystore

import (
	"crypto/rsa"
	"crypto/x509"

	qerrors "github.com/sts-chat/go-client/internal/errors"
	"github.com/sts-chat/go-client/pkg/crypto"
	"github.com/sts-chat/go-client/pkg/signing"
)

// PeerBitwiseVerifier implements handshake.IdentityVerifier for the
// client-client (peer) handshake: it fetches the expected public key from
// the server and compares it bitwise to the key the responder presents in
// M2, as section 4.2 mandates for the peer case (the server case instead
// verifies a CA-issued certificate; see pkg/certstore.Store).
type PeerBitwiseVerifier struct {
	Fetcher PeerKeyFetcher
}

// VerifyResponderIdentity fetches username's certified public key from the
// server and checks it matches identityPayload (a PKIX-encoded public key)
// byte for byte.
func (v *PeerBitwiseVerifier) VerifyResponderIdentity(username string, identityPayload []byte) (*rsa.PublicKey, error) {
	expected, err := v.Fetcher.FetchPeerPublicKey(username)
	if err != nil {
		return nil, err
	}
	presented, err := signing.ParsePublicKeyPEM(identityPayload)
	if err != nil {
		return nil, qerrors.NewCryptoError("PeerBitwiseVerifier.VerifyResponderIdentity", err)
	}

	expectedDER, err := x509.MarshalPKIXPublicKey(expected)
	if err != nil {
		return nil, qerrors.NewCryptoError("PeerBitwiseVerifier.VerifyResponderIdentity", err)
	}
	presentedDER, err := x509.MarshalPKIXPublicKey(presented)
	if err != nil {
		return nil, qerrors.NewCryptoError("PeerBitwiseVerifier.VerifyResponderIdentity", err)
	}
	if !crypto.ConstantTimeCompare(expectedDER, presentedDER) {
		return nil, qerrors.NewCryptoError("PeerBitwiseVerifier.VerifyResponderIdentity", qerrors.ErrCertificateInvalid)
	}
	return expected, nil
}
