// Package crypto implements cryptographic primitives for the stschat client.
//
// This file (buffer_pool.go) provides buffer pooling to reduce memory allocations
// during encryption/decryption, which matters on the hot path of a live talk
// where every line typed is encrypted and every line received is decrypted.
// The pool uses size classes optimized for typical AEAD operations.
package crypto

import (
	"sync"

	"github.com/sts-chat/go-client/internal/constants"
)

// BufferPool provides pooled byte slices for cryptographic operations.
type BufferPool struct {
	// Nonce buffers (12 bytes for AES-GCM and ChaCha20-Poly1305)
	nonce sync.Pool

	// Small ciphertext buffers (typical chat lines up to 1KB)
	small sync.Pool

	// Medium ciphertext buffers (up to 16KB)
	medium sync.Pool

	// Large ciphertext buffers (up to 64KB)
	large sync.Pool
}

// Buffer size class thresholds for crypto operations.
const (
	nonceBufferSize        = constants.AESNonceSize // 12 bytes
	smallCryptoBufferSize  = 1024 + constants.AESNonceSize + constants.AESTagSize
	mediumCryptoBufferSize = 16*1024 + constants.AESNonceSize + constants.AESTagSize
	largeCryptoBufferSize  = 64*1024 + constants.AESNonceSize + constants.AESTagSize
)

// globalCryptoPool is the default crypto buffer pool instance.
var globalCryptoPool = NewBufferPool()

// NewBufferPool creates a new crypto buffer pool.
func NewBufferPool() *BufferPool {
	return &BufferPool{
		nonce: sync.Pool{
			New: func() any {
				buf := make([]byte, nonceBufferSize)
				return &buf
			},
		},
		small: sync.Pool{
			New: func() any {
				buf := make([]byte, smallCryptoBufferSize)
				return &buf
			},
		},
		medium: sync.Pool{
			New: func() any {
				buf := make([]byte, mediumCryptoBufferSize)
				return &buf
			},
		},
		large: sync.Pool{
			New: func() any {
				buf := make([]byte, largeCryptoBufferSize)
				return &buf
			},
		},
	}
}

// GetNonce returns a nonce-sized buffer from the pool. The caller fills it
// with fresh random bytes (see SecureRandomBytes); the pool only saves the
// allocation, never the randomness.
func (p *BufferPool) GetNonce() []byte {
	bufPtr := p.nonce.Get().(*[]byte)
	buf := *bufPtr
	for i := range buf {
		buf[i] = 0
	}
	return buf
}

// PutNonce returns a nonce buffer to the pool.
func (p *BufferPool) PutNonce(buf []byte) {
	if buf == nil || cap(buf) != nonceBufferSize {
		return
	}
	for i := range buf[:cap(buf)] {
		buf[i] = 0
	}
	buf = buf[:cap(buf)]
	p.nonce.Put(&buf)
}

// GetCiphertext returns a ciphertext buffer of at least the requested size.
// The size should include space for IV and tag overhead.
func (p *BufferPool) GetCiphertext(size int) []byte {
	if size <= 0 {
		return nil
	}

	var bufPtr *[]byte

	switch {
	case size <= smallCryptoBufferSize:
		bufPtr = p.small.Get().(*[]byte)
	case size <= mediumCryptoBufferSize:
		bufPtr = p.medium.Get().(*[]byte)
	case size <= largeCryptoBufferSize:
		bufPtr = p.large.Get().(*[]byte)
	default:
		// Too large for pool, allocate directly
		return make([]byte, size)
	}

	return (*bufPtr)[:size]
}

// PutCiphertext returns a ciphertext buffer to the pool.
func (p *BufferPool) PutCiphertext(buf []byte) {
	if buf == nil {
		return
	}

	bufCap := cap(buf)
	if bufCap == 0 {
		return
	}

	// Extend slice to full capacity for zeroing
	buf = buf[:bufCap]

	// Zero before returning to pool: clears any key material or plaintext.
	for i := range buf {
		buf[i] = 0
	}

	bufPtr := &buf

	switch bufCap {
	case smallCryptoBufferSize:
		p.small.Put(bufPtr)
	case mediumCryptoBufferSize:
		p.medium.Put(bufPtr)
	case largeCryptoBufferSize:
		p.large.Put(bufPtr)
		// Non-standard sizes are not returned to pool
	}
}

// GetCryptoBuffer returns a buffer from the global crypto pool.
func GetCryptoBuffer(size int) []byte {
	return globalCryptoPool.GetCiphertext(size)
}

// PutCryptoBuffer returns a buffer to the global crypto pool.
func PutCryptoBuffer(buf []byte) {
	globalCryptoPool.PutCiphertext(buf)
}

// GetNonceBuffer returns a nonce buffer from the global pool.
func GetNonceBuffer() []byte {
	return globalCryptoPool.GetNonce()
}

// PutNonceBuffer returns a nonce buffer to the global pool.
func PutNonceBuffer(buf []byte) {
	globalCryptoPool.PutNonce(buf)
}

// SealPooled encrypts using a pooled ciphertext buffer and a caller-supplied,
// already-random IV (see SecureRandomBytes). The caller must call
// PutCryptoBuffer on the returned ciphertext when done, and PutNonceBuffer on
// the IV if it came from GetNonceBuffer.
func (a *AEAD) SealPooled(iv, plaintext, additionalData []byte) ([]byte, error) {
	if len(iv) != a.NonceSize() {
		return nil, errInvalidIVSize
	}

	ciphertext := GetCryptoBuffer(len(plaintext) + a.Overhead())
	out := a.cipher.Seal(ciphertext[:0], iv, plaintext, additionalData)
	return out, nil
}

var errInvalidIVSize = &ivSizeError{}

type ivSizeError struct{}

func (e *ivSizeError) Error() string {
	return "crypto: invalid IV size"
}
