// aead.go implements Authenticated Encryption with Associated Data (AEAD).
//
// This package supports two AEAD algorithms:
//   - AES-256-GCM: FIPS-approved, hardware-accelerated on modern CPUs, mandated
//     for the secure channel and handshake envelopes.
//   - ChaCha20-Poly1305: available for ambient, non-mandated uses.
//
// Mathematical Foundation:
//
// AES-256-GCM:
//   - AES: Block cipher with 256-bit key, 128-bit blocks
//   - GCM: Galois/Counter Mode for authenticated encryption
//   - Security: IND-CCA2 secure, 128-bit authentication tag
//   - Nonce: 96-bit, MUST be unique per (key, plaintext) pair
//
// ChaCha20-Poly1305:
//   - ChaCha20: Stream cipher with 256-bit key, 96-bit nonce
//   - Poly1305: One-time authenticator for MAC
//   - Security: IND-CCA2 secure, 128-bit authentication tag
//   - Nonce: 96-bit, MUST be unique per (key, plaintext) pair
//
// Nonce management is the caller's responsibility here: the secure channel
// samples a fresh random IV per frame and binds the per-direction counter in
// as additional authenticated data, rather than deriving the nonce from a
// counter itself (see pkg/securechannel).
package crypto

import (
	"crypto/aes"
	"crypto/cipher"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/sts-chat/go-client/internal/constants"
	qerrors "github.com/sts-chat/go-client/internal/errors"
)

// AEAD represents an authenticated encryption cipher bound to one key.
type AEAD struct {
	cipher cipher.AEAD
	suite  constants.CipherSuite
}

// NewAEAD creates a new AEAD cipher with the specified suite and key.
//
// Parameters:
//   - suite: CipherSuiteAES256GCM or CipherSuiteChaCha20Poly1305
//   - key: 32-byte encryption key
//
// Returns:
//   - AEAD: The initialized cipher
//   - error: Non-nil if the key size is wrong or suite unsupported
func NewAEAD(suite constants.CipherSuite, key []byte) (*AEAD, error) {
	if len(key) != constants.AESKeySize {
		return nil, qerrors.ErrInvalidKeySize
	}

	var aeadCipher cipher.AEAD
	var err error

	switch suite {
	case constants.CipherSuiteAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, qerrors.NewCryptoError("NewAEAD", err)
		}
		aeadCipher, err = cipher.NewGCM(block)
		if err != nil {
			return nil, qerrors.NewCryptoError("NewAEAD", err)
		}

	case constants.CipherSuiteChaCha20Poly1305:
		aeadCipher, err = chacha20poly1305.New(key)
		if err != nil {
			return nil, qerrors.NewCryptoError("NewAEAD", err)
		}

	default:
		return nil, qerrors.NewCryptoError("NewAEAD", qerrors.ErrInvalidKeySize)
	}

	return &AEAD{cipher: aeadCipher, suite: suite}, nil
}

// SealWithNonce encrypts plaintext under an explicit, caller-supplied nonce.
//
// The caller (pkg/securechannel, pkg/handshake) owns nonce generation and
// uniqueness: the secure channel samples a fresh random IV per frame, the
// handshake envelopes use the fixed handshake AAD tag with a fresh IV per
// message. additionalData is authenticated but not encrypted.
//
// Returns ciphertext || auth tag (the nonce itself is not included; the
// caller places it in the frame separately).
func (a *AEAD) SealWithNonce(nonce, plaintext, additionalData []byte) ([]byte, error) {
	if len(nonce) != a.cipher.NonceSize() {
		return nil, qerrors.NewCryptoError("SealWithNonce", qerrors.ErrInvalidKeySize)
	}
	return a.cipher.Seal(nil, nonce, plaintext, additionalData), nil
}

// OpenWithNonce decrypts and authenticates ciphertext || tag under an
// explicit nonce and additional data, mirroring SealWithNonce.
func (a *AEAD) OpenWithNonce(nonce, ciphertext, additionalData []byte) ([]byte, error) {
	if len(nonce) != a.cipher.NonceSize() {
		return nil, qerrors.NewCryptoError("OpenWithNonce", qerrors.ErrInvalidKeySize)
	}
	if len(ciphertext) < a.cipher.Overhead() {
		return nil, qerrors.ErrInvalidCiphertext
	}
	plaintext, err := a.cipher.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, qerrors.ErrAuthFailed
	}
	return plaintext, nil
}

// Suite returns the cipher suite identifier.
func (a *AEAD) Suite() constants.CipherSuite {
	return a.suite
}

// Overhead returns the number of bytes the authentication tag adds.
func (a *AEAD) Overhead() int {
	return a.cipher.Overhead()
}

// NonceSize returns the required nonce size in bytes.
func (a *AEAD) NonceSize() int {
	return a.cipher.NonceSize()
}
