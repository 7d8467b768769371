// Package signing implements the RSA-PSS signatures that authenticate each
// party's ephemeral Diffie-Hellman public in the Station-to-Station
// handshake (section 4.2: SIG_B(g^b ‖ g^a), SIG_A(g^a ‖ g^b)).
//
// Grounded on the original client's sign_message/verify_server_signature/
// send_sig/decrypt_and_verify_sign, which used OpenSSL EVP_PKEY_CTX with
// RSA-PSS padding and SHA-256 over the concatenated public values; this
// package keeps the same construction using crypto/rsa's RSA-PSS support.
package signing

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"

	qerrors "github.com/sts-chat/go-client/internal/errors"
)

var pssOptions = &rsa.PSSOptions{
	SaltLength: rsa.PSSSaltLengthEqualsHash,
	Hash:       crypto.SHA256,
}

// Sign produces an RSA-PSS signature over the SHA-256 digest of message
// using the given private key. message is expected to already be the exact
// byte concatenation the handshake specifies (e.g. g^b ‖ g^a).
func Sign(priv *rsa.PrivateKey, message []byte) ([]byte, error) {
	digest := sha256.Sum256(message)
	sig, err := rsa.SignPSS(rand.Reader, priv, crypto.SHA256, digest[:], pssOptions)
	if err != nil {
		return nil, qerrors.NewCryptoError("signing.Sign", err)
	}
	return sig, nil
}

// Verify checks an RSA-PSS signature over message against pub. Returns
// ErrSignatureInvalid (wrapped) if verification fails.
func Verify(pub *rsa.PublicKey, message, signature []byte) error {
	digest := sha256.Sum256(message)
	if err := rsa.VerifyPSS(pub, crypto.SHA256, digest[:], signature, pssOptions); err != nil {
		return qerrors.NewCryptoError("signing.Verify", qerrors.ErrSignatureInvalid)
	}
	return nil
}

// ParsePrivateKeyPEM decodes a PKCS#1 or PKCS#8 PEM-encoded RSA private key,
// as read from keys/<username>.pem (see pkg/keystore).
func ParsePrivateKeyPEM(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, qerrors.NewCryptoError("signing.ParsePrivateKeyPEM", qerrors.ErrKeyFileMissing)
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, qerrors.NewCryptoError("signing.ParsePrivateKeyPEM", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, qerrors.NewCryptoError("signing.ParsePrivateKeyPEM", qerrors.ErrInvalidKeySize)
	}
	return rsaKey, nil
}

// ParsePublicKeyPEM decodes a PKIX PEM-encoded RSA public key, as fetched
// from the server via KeyStore.fetch_peer_pub.
func ParsePublicKeyPEM(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, qerrors.NewCryptoError("signing.ParsePublicKeyPEM", qerrors.ErrInvalidKeySize)
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, qerrors.NewCryptoError("signing.ParsePublicKeyPEM", err)
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, qerrors.NewCryptoError("signing.ParsePublicKeyPEM", qerrors.ErrInvalidKeySize)
	}
	return rsaKey, nil
}

// EncodePublicKeyPEM serializes an RSA public key to PKIX PEM, the wire
// representation exchanged for KeyStore.fetch_peer_pub and the round-trip
// law "serialize-then-deserialize of a signing public key is identity".
func EncodePublicKeyPEM(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, qerrors.NewCryptoError("signing.EncodePublicKeyPEM", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}
