// Package errors defines custom error types for the stschat client.
// These errors provide detailed information for debugging while maintaining
// security by not leaking sensitive information in error messages.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for transport-layer operations (Secure Channel framing).
var (
	// ErrShortRead indicates the socket returned fewer bytes than the frame required.
	ErrShortRead = errors.New("transport: short read")

	// ErrWriteFailed indicates a socket write did not complete.
	ErrWriteFailed = errors.New("transport: write failed")

	// ErrOversizedFrame indicates a frame's declared length exceeds the configured cap.
	ErrOversizedFrame = errors.New("transport: oversized frame")
)

// Sentinel errors for cryptographic operations.
var (
	// ErrAuthFailed indicates AEAD tag verification failed.
	ErrAuthFailed = errors.New("crypto: authentication failed")

	// ErrReplayOrReorder indicates a received counter did not match the expected value.
	ErrReplayOrReorder = errors.New("crypto: replay or reorder detected")

	// ErrCounterOverflow indicates a direction counter has reached its maximum value.
	ErrCounterOverflow = errors.New("crypto: counter overflow")

	// ErrSignatureInvalid indicates an RSA-PSS signature failed verification.
	ErrSignatureInvalid = errors.New("crypto: signature invalid")

	// ErrCertificateInvalid indicates an X.509 certificate failed chain or usage validation.
	ErrCertificateInvalid = errors.New("crypto: certificate invalid")

	// ErrRevoked indicates a certificate appears on the CRL.
	ErrRevoked = errors.New("crypto: certificate revoked")

	// ErrInvalidKeySize indicates a key has an incorrect size for its algorithm.
	ErrInvalidKeySize = errors.New("crypto: invalid key size")

	// ErrInvalidCiphertext indicates ciphertext is malformed or the wrong length.
	ErrInvalidCiphertext = errors.New("crypto: invalid ciphertext")
)

// Sentinel errors for protocol-level operations.
var (
	// ErrUnexpectedType indicates a message type byte did not match what the state machine expected.
	ErrUnexpectedType = errors.New("protocol: unexpected message type")

	// ErrWrongState indicates an operation was attempted from an invalid talk or handshake state.
	ErrWrongState = errors.New("protocol: wrong state")

	// ErrDeadlineExceeded indicates a handshake step or control reply did not complete in time.
	ErrDeadlineExceeded = errors.New("protocol: deadline exceeded")

	// ErrDuplicateRequest indicates a peer talk request arrived while one was already pending.
	ErrDuplicateRequest = errors.New("protocol: duplicate request")

	// ErrSessionClosed indicates an operation was attempted on a torn-down session.
	ErrSessionClosed = errors.New("protocol: session closed")
)

// Sentinel errors for local, non-network failures.
var (
	// ErrBadUsername indicates a username failed the path-traversal/charset check.
	ErrBadUsername = errors.New("local: bad username")

	// ErrKeyFileMissing indicates a required key, certificate, or CRL file could not be read.
	ErrKeyFileMissing = errors.New("local: key file missing")

	// ErrUserAbort indicates the interactive user declined or cancelled an operation.
	ErrUserAbort = errors.New("local: user abort")
)

// CryptoError wraps a cryptographic error with additional context.
type CryptoError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

// NewCryptoError creates a new CryptoError.
func NewCryptoError(op string, err error) *CryptoError {
	return &CryptoError{Op: op, Err: err}
}

// ProtocolError wraps a protocol error with additional context.
type ProtocolError struct {
	Phase string // Protocol phase (e.g., "handshake", "secure-channel")
	Err   error  // Underlying error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol %s: %v", e.Phase, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// NewProtocolError creates a new ProtocolError.
func NewProtocolError(phase string, err error) *ProtocolError {
	return &ProtocolError{Phase: phase, Err: err}
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
