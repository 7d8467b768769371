// Package crypto implements key derivation primitives for the handshake engine.
//
// The security-critical session key is derived with plain SHA-256 over the
// raw Diffie-Hellman shared secret, exactly as the STS handshake mandates
// (section 4.2: "k is derived from the shared DH secret by hashing with
// SHA-256 and taking the first 32 bytes"). SHAKE-256 (FIPS 202), an
// extendable-output function over the Keccak sponge, backs the non-secret
// auxiliary derivations DeriveKey and DeriveKeyMultiple, and TranscriptHash
// computes a non-secret transcript fingerprint with SHA3-256; no security
// property depends on either matching the handshake's mandated SHA-256 step.
package crypto

import (
	"crypto/sha256"
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	"github.com/sts-chat/go-client/internal/constants"
	qerrors "github.com/sts-chat/go-client/internal/errors"
)

// DeriveSessionKey derives the STS session key k from a raw Diffie-Hellman
// shared secret: k = SHA-256(secret)[:32]. This is the one key-derivation
// step whose exact algorithm the handshake specifies; every other KDF use
// in this package is auxiliary and uses SHAKE-256 instead.
func DeriveSessionKey(sharedSecret []byte) ([]byte, error) {
	if len(sharedSecret) == 0 {
		return nil, qerrors.NewCryptoError("DeriveSessionKey", qerrors.ErrInvalidKeySize)
	}
	sum := sha256.Sum256(sharedSecret)
	key := make([]byte, constants.SessionKeySize)
	copy(key, sum[:])
	return key, nil
}

// DeriveKey derives key material using SHAKE-256 with domain separation.
//
// The derivation follows the construction:
//
//	output = SHAKE-256(
//	    domain_separator_length || domain_separator ||
//	    input_length || input,
//	    output_length
//	)
//
// Length prefixes are 4-byte big-endian integers to ensure unambiguous parsing.
// This is used only where the caller needs an arbitrary-length, non-secret
// derivation (e.g. a log fingerprint); the session key itself always goes
// through DeriveSessionKey.
func DeriveKey(domain string, input []byte, outputLen int) ([]byte, error) {
	if outputLen <= 0 || outputLen > 1<<20 { // Max 1MB
		return nil, qerrors.NewCryptoError("DeriveKey", qerrors.ErrInvalidKeySize)
	}

	h := sha3.NewShake256()

	domainBytes := []byte(domain)
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(domainBytes)))
	h.Write(lenBuf)
	h.Write(domainBytes)

	binary.BigEndian.PutUint32(lenBuf, uint32(len(input)))
	h.Write(lenBuf)
	h.Write(input)

	output := make([]byte, outputLen)
	_, _ = h.Read(output) // SHAKE256.Read never fails

	return output, nil
}

// DeriveKeyMultiple derives key material from multiple inputs with domain separation.
func DeriveKeyMultiple(domain string, inputs [][]byte, outputLen int) ([]byte, error) {
	if outputLen <= 0 || outputLen > 1<<20 {
		return nil, qerrors.NewCryptoError("DeriveKeyMultiple", qerrors.ErrInvalidKeySize)
	}

	h := sha3.NewShake256()
	lenBuf := make([]byte, 4)

	domainBytes := []byte(domain)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(domainBytes)))
	h.Write(lenBuf)
	h.Write(domainBytes)

	binary.BigEndian.PutUint32(lenBuf, uint32(len(inputs)))
	h.Write(lenBuf)

	for _, input := range inputs {
		binary.BigEndian.PutUint32(lenBuf, uint32(len(input)))
		h.Write(lenBuf)
		h.Write(input)
	}

	output := make([]byte, outputLen)
	_, _ = h.Read(output)

	return output, nil
}

// TranscriptHash computes a non-secret fingerprint of a handshake transcript
// for logging and tracing. It is never used as key material.
//
// Parameters:
//   - components: Ordered list of transcript components (e.g. M1, M2, M3 bytes)
//
// Returns:
//   - hash: 32-byte transcript fingerprint
func TranscriptHash(components ...[]byte) []byte {
	h := sha3.New256()
	lenBuf := make([]byte, 4)

	binary.BigEndian.PutUint32(lenBuf, uint32(len(components)))
	h.Write(lenBuf)

	for _, component := range components {
		binary.BigEndian.PutUint32(lenBuf, uint32(len(component)))
		h.Write(lenBuf)
		h.Write(component)
	}

	return h.Sum(nil)
}
