package crypto_test

import (
	"bytes"
	"testing"

	"github.com/sts-chat/go-client/internal/constants"
	"github.com/sts-chat/go-client/pkg/crypto"
)

// --- Random tests ---

func TestSecureRandom(t *testing.T) {
	buf := make([]byte, 32)
	if err := crypto.SecureRandom(buf); err != nil {
		t.Fatalf("SecureRandom failed: %v", err)
	}

	allZeros := true
	for _, b := range buf {
		if b != 0 {
			allZeros = false
			break
		}
	}
	if allZeros {
		t.Error("SecureRandom returned all zeros")
	}
}

func TestSecureRandomBytes(t *testing.T) {
	sizes := []int{constants.AESNonceSize, constants.SessionKeySize, 64, 128}
	for _, size := range sizes {
		buf, err := crypto.SecureRandomBytes(size)
		if err != nil {
			t.Fatalf("SecureRandomBytes(%d) failed: %v", size, err)
		}
		if len(buf) != size {
			t.Errorf("SecureRandomBytes(%d) returned %d bytes", size, len(buf))
		}
	}
}

func TestConstantTimeCompare(t *testing.T) {
	a := []byte("hello world")
	b := []byte("hello world")
	c := []byte("hello worlD")
	d := []byte("hello")

	if !crypto.ConstantTimeCompare(a, b) {
		t.Error("equal slices should compare equal")
	}
	if crypto.ConstantTimeCompare(a, c) {
		t.Error("differing slices should not compare equal")
	}
	if crypto.ConstantTimeCompare(a, d) {
		t.Error("different-length slices should not compare equal")
	}
}

func TestZeroize(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	crypto.Zeroize(buf)
	for i, b := range buf {
		if b != 0 {
			t.Errorf("Zeroize left index %d = %d, want 0", i, b)
		}
	}
}

func TestZeroizeMultiple(t *testing.T) {
	a := []byte{1, 2, 3}
	b := []byte{4, 5, 6}
	crypto.ZeroizeMultiple(a, b)
	if !bytes.Equal(a, []byte{0, 0, 0}) || !bytes.Equal(b, []byte{0, 0, 0}) {
		t.Error("ZeroizeMultiple did not clear all slices")
	}
}

// --- AEAD tests ---

func TestAEADSealOpenRoundTrip(t *testing.T) {
	key := make([]byte, constants.AESKeySize)
	crypto.MustSecureRandom(key)

	for _, suite := range []constants.CipherSuite{constants.CipherSuiteAES256GCM, constants.CipherSuiteChaCha20Poly1305} {
		aead, err := crypto.NewAEAD(suite, key)
		if err != nil {
			t.Fatalf("NewAEAD(%s) failed: %v", suite, err)
		}
		nonce := make([]byte, aead.NonceSize())
		crypto.MustSecureRandom(nonce)

		plaintext := []byte("hi")
		aad := []byte{0x00, 0x00, 0x00, 0x07}

		ciphertext, err := aead.SealWithNonce(nonce, plaintext, aad)
		if err != nil {
			t.Fatalf("SealWithNonce failed: %v", err)
		}
		got, err := aead.OpenWithNonce(nonce, ciphertext, aad)
		if err != nil {
			t.Fatalf("OpenWithNonce failed: %v", err)
		}
		if !bytes.Equal(got, plaintext) {
			t.Errorf("round trip mismatch: got %q, want %q", got, plaintext)
		}
	}
}

func TestAEADOpenRejectsTamperedTag(t *testing.T) {
	key := make([]byte, constants.AESKeySize)
	crypto.MustSecureRandom(key)
	aead, err := crypto.NewAEAD(constants.CipherSuiteAES256GCM, key)
	if err != nil {
		t.Fatalf("NewAEAD failed: %v", err)
	}
	nonce := make([]byte, aead.NonceSize())
	ciphertext, err := aead.SealWithNonce(nonce, []byte("payload"), nil)
	if err != nil {
		t.Fatalf("SealWithNonce failed: %v", err)
	}
	ciphertext[len(ciphertext)-1] ^= 0xFF

	if _, err := aead.OpenWithNonce(nonce, ciphertext, nil); err == nil {
		t.Error("OpenWithNonce accepted a tampered tag")
	}
}

func TestAEADOpenRejectsWrongAAD(t *testing.T) {
	key := make([]byte, constants.AESKeySize)
	crypto.MustSecureRandom(key)
	aead, _ := crypto.NewAEAD(constants.CipherSuiteAES256GCM, key)
	nonce := make([]byte, aead.NonceSize())
	ciphertext, _ := aead.SealWithNonce(nonce, []byte("payload"), []byte{0, 0, 0, 1})

	if _, err := aead.OpenWithNonce(nonce, ciphertext, []byte{0, 0, 0, 2}); err == nil {
		t.Error("OpenWithNonce accepted a frame under the wrong AAD")
	}
}

func TestNewAEADRejectsWrongKeySize(t *testing.T) {
	if _, err := crypto.NewAEAD(constants.CipherSuiteAES256GCM, make([]byte, 16)); err == nil {
		t.Error("NewAEAD accepted a 16-byte key")
	}
}

// --- KDF tests ---

func TestDeriveSessionKeyIsDeterministic(t *testing.T) {
	secret := []byte("a shared diffie-hellman secret")
	k1, err := crypto.DeriveSessionKey(secret)
	if err != nil {
		t.Fatalf("DeriveSessionKey failed: %v", err)
	}
	k2, err := crypto.DeriveSessionKey(secret)
	if err != nil {
		t.Fatalf("DeriveSessionKey failed: %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Error("DeriveSessionKey is not deterministic over the same secret")
	}
	if len(k1) != constants.SessionKeySize {
		t.Errorf("DeriveSessionKey returned %d bytes, want %d", len(k1), constants.SessionKeySize)
	}
}

func TestDeriveSessionKeyRejectsEmptySecret(t *testing.T) {
	if _, err := crypto.DeriveSessionKey(nil); err == nil {
		t.Error("DeriveSessionKey accepted an empty secret")
	}
}

func TestDeriveSessionKeyDiffersAcrossSecrets(t *testing.T) {
	k1, _ := crypto.DeriveSessionKey([]byte("secret-one"))
	k2, _ := crypto.DeriveSessionKey([]byte("secret-two"))
	if bytes.Equal(k1, k2) {
		t.Error("DeriveSessionKey produced the same key for two different secrets")
	}
}

func TestDeriveKeyRespectsOutputLength(t *testing.T) {
	out, err := crypto.DeriveKey("domain", []byte("input"), 48)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	if len(out) != 48 {
		t.Errorf("DeriveKey returned %d bytes, want 48", len(out))
	}
}

func TestDeriveKeyMultipleDiffersFromDeriveKey(t *testing.T) {
	single, _ := crypto.DeriveKey("domain", []byte("ab"), 32)
	multi, _ := crypto.DeriveKeyMultiple("domain", [][]byte{[]byte("a"), []byte("b")}, 32)
	if bytes.Equal(single, multi) {
		t.Error("DeriveKeyMultiple should domain-separate its inputs from a flat concatenation")
	}
}

func TestTranscriptHashIsOrderSensitive(t *testing.T) {
	h1 := crypto.TranscriptHash([]byte("m1"), []byte("m2"))
	h2 := crypto.TranscriptHash([]byte("m2"), []byte("m1"))
	if bytes.Equal(h1, h2) {
		t.Error("TranscriptHash should depend on component order")
	}
	if len(h1) != constants.TranscriptHashSize {
		t.Errorf("TranscriptHash returned %d bytes, want %d", len(h1), constants.TranscriptHashSize)
	}
}

// --- Buffer pool tests ---

func TestBufferPoolNonceRoundTrip(t *testing.T) {
	pool := crypto.NewBufferPool()
	buf := pool.GetNonce()
	if len(buf) != constants.AESNonceSize {
		t.Fatalf("GetNonce returned %d bytes, want %d", len(buf), constants.AESNonceSize)
	}
	for i := range buf {
		buf[i] = byte(i + 1)
	}
	pool.PutNonce(buf)

	reused := pool.GetNonce()
	for i, b := range reused {
		if b != 0 {
			t.Errorf("GetNonce after PutNonce returned dirty byte at %d: %d", i, b)
		}
	}
}

func TestBufferPoolCiphertextSizeClasses(t *testing.T) {
	pool := crypto.NewBufferPool()
	for _, size := range []int{64, 2048, 32768, 1 << 20} {
		buf := pool.GetCiphertext(size)
		if len(buf) != size {
			t.Errorf("GetCiphertext(%d) returned %d bytes", size, len(buf))
		}
		pool.PutCiphertext(buf)
	}
}

func TestBufferPoolPutCiphertextZeroes(t *testing.T) {
	pool := crypto.NewBufferPool()
	buf := pool.GetCiphertext(64)
	for i := range buf {
		buf[i] = 0xAA
	}
	pool.PutCiphertext(buf)

	reused := pool.GetCiphertext(64)
	for i, b := range reused {
		if b != 0 {
			t.Errorf("GetCiphertext after PutCiphertext returned dirty byte at %d: %d", i, b)
		}
	}
}

func TestGlobalCryptoBufferHelpers(t *testing.T) {
	buf := crypto.GetCryptoBuffer(128)
	if len(buf) != 128 {
		t.Fatalf("GetCryptoBuffer(128) returned %d bytes", len(buf))
	}
	crypto.PutCryptoBuffer(buf)

	nonce := crypto.GetNonceBuffer()
	if len(nonce) != constants.AESNonceSize {
		t.Fatalf("GetNonceBuffer returned %d bytes, want %d", len(nonce), constants.AESNonceSize)
	}
	crypto.PutNonceBuffer(nonce)
}
