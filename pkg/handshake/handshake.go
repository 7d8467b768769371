// Package handshake implements the Station-to-Station (STS) authenticated
// Diffie-Hellman key-establishment protocol (section 4.2). The same engine
// runs twice in a live client: once as the client authenticating the server
// at login, and once between two clients mediated by the server at talk
// setup. Only the identity-verification strategy differs between the two
// uses; the three-message wire protocol and state machine are identical.
//
// Grounded on the handshake state-machine shape of
// pzverkov-Quantum-Go's pkg/tunnel/handshake.go (message-by-message
// Create*/Process* methods, a transcript buffer, a high-level
// InitiatorHandshake/ResponderHandshake entry point) adapted from CH-KEM
// encapsulation to classical DH + RSA-PSS signatures, per the original
// client's sign_message/verify_server_signature and get_dh2048.
package handshake

import (
	"context"
	"crypto/rsa"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/sts-chat/go-client/internal/constants"
	qerrors "github.com/sts-chat/go-client/internal/errors"
	"github.com/sts-chat/go-client/pkg/crypto"
	"github.com/sts-chat/go-client/pkg/dhgroup"
	"github.com/sts-chat/go-client/pkg/signing"
)

// State names the handshake's position in the state machines of section 4.2.
type State int

const (
	StateInit State = iota
	StateSentM1
	StateRecvM2
	StateSentM3
	StateRecvM1
	StateSentM2
	StateRecvM3
	StateReady
	StateFail
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateSentM1:
		return "SENT_M1"
	case StateRecvM2:
		return "RECV_M2"
	case StateSentM3:
		return "SENT_M3"
	case StateRecvM1:
		return "RECV_M1"
	case StateSentM2:
		return "SENT_M2"
	case StateRecvM3:
		return "RECV_M3"
	case StateReady:
		return "READY"
	case StateFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// Deadline is the total time budget for one handshake run (section 4.2,
// section 5).
const Deadline = constants.HandshakeDeadlineSeconds * time.Second

// IdentityVerifier validates the identity payload a responder presents in
// M2 and returns the RSA public key the M2/M3 signatures must verify
// against. Two implementations are grounded in section 4.2: a CA-backed
// verifier for the server case (pkg/certstore) and a bitwise-compare
// verifier for the peer case (pkg/keystore.PeerKeyFetcher).
type IdentityVerifier interface {
	VerifyResponderIdentity(username string, identityPayload []byte) (*rsa.PublicKey, error)
}

// Result is the successful output of a handshake run: a fresh session key
// with counters implicitly zero (section 4.2 "Output") and the confirmed
// peer username.
type Result struct {
	Key          []byte
	PeerUsername string
}

// InitiatorConfig parameterizes the initiator (A) side of a handshake run.
type InitiatorConfig struct {
	LocalUsername       string
	LocalPrivateKey     *rsa.PrivateKey
	ExpectedPeerUsername string
	Verifier            IdentityVerifier
}

// ResponderConfig parameterizes the responder (B) side of a handshake run.
type ResponderConfig struct {
	LocalPrivateKey *rsa.PrivateKey
	// IdentityPayload is the bytes presented as cert_B in M2: a DER X.509
	// certificate for the server case, or a PKIX-encoded public key for the
	// peer case.
	IdentityPayload []byte
	// InitiatorPublicKey, when set, authenticates M3: its signature must
	// verify under this key (section 4.2 "Same rule mirrored for M3"). The
	// client only ever plays the responder role for peer talks (accepting
	// an incoming request), where this is the initiating peer's public key
	// fetched from the server over the server session before the handshake
	// runs; it is left nil only by a caller that has no such binding to
	// check against.
	InitiatorPublicKey *rsa.PublicKey
}

// RunInitiator drives the A→B→A leg of the STS protocol over rw: sends M1,
// receives and verifies M2, sends M3, and returns the derived session key.
// Any verification or I/O failure closes rw (if it implements io.Closer)
// and returns an error; no partial key material is returned.
func RunInitiator(ctx context.Context, rw io.ReadWriter, cfg InitiatorConfig) (*Result, error) {
	state := StateInit
	fail := func(err error) (*Result, error) {
		wrapped := fmt.Errorf("handshake: failed in state %s: %w", state, err)
		state = StateFail
		closeIfPossible(rw)
		return nil, wrapped
	}

	ctx, cancel := context.WithTimeout(ctx, Deadline)
	defer cancel()
	applyDeadline(ctx, rw)

	grp := dhgroup.Default()
	kp, err := grp.Generate()
	if err != nil {
		return fail(qerrors.NewCryptoError("handshake.RunInitiator", err))
	}
	defer kp.Zeroize()

	gA := dhgroup.EncodePublic(kp.Public)
	if err := writeMessage(rw, concatLP(gA, []byte(cfg.LocalUsername))); err != nil {
		return fail(qerrors.NewCryptoError("handshake.RunInitiator", qerrors.ErrWriteFailed))
	}
	state = StateSentM1

	m2, err := readMessage(rw)
	if err != nil {
		return fail(qerrors.NewCryptoError("handshake.RunInitiator", qerrors.ErrShortRead))
	}
	gBBytes, encBlob, err := splitLP(m2)
	if err != nil {
		return fail(qerrors.NewProtocolError("handshake", qerrors.ErrUnexpectedType))
	}
	gB := dhgroup.DecodePublic(gBBytes)

	secret, err := kp.SharedSecret(grp, gB)
	if err != nil {
		return fail(qerrors.NewCryptoError("handshake.RunInitiator", err))
	}
	defer crypto.Zeroize(secret)

	k, err := crypto.DeriveSessionKey(secret)
	if err != nil {
		return fail(qerrors.NewCryptoError("handshake.RunInitiator", err))
	}

	plaintext, err := decryptHandshakeEnvelope(k, encBlob)
	if err != nil {
		crypto.Zeroize(k)
		return fail(qerrors.NewCryptoError("handshake.RunInitiator", qerrors.ErrAuthFailed))
	}
	sigB, certB, err := splitLP(plaintext)
	if err != nil {
		crypto.Zeroize(k)
		return fail(qerrors.NewProtocolError("handshake", qerrors.ErrUnexpectedType))
	}

	peerPub, err := cfg.Verifier.VerifyResponderIdentity(cfg.ExpectedPeerUsername, certB)
	if err != nil {
		crypto.Zeroize(k)
		return fail(err)
	}

	signedM2 := append(append([]byte{}, dhgroup.EncodePublic(gB)...), gA...)
	if err := signing.Verify(peerPub, signedM2, sigB); err != nil {
		crypto.Zeroize(k)
		return fail(err)
	}
	state = StateRecvM2

	signedM3 := append(append([]byte{}, gA...), dhgroup.EncodePublic(gB)...)
	sigA, err := signing.Sign(cfg.LocalPrivateKey, signedM3)
	if err != nil {
		crypto.Zeroize(k)
		return fail(qerrors.NewCryptoError("handshake.RunInitiator", err))
	}

	m3Plain := concatLP(sigA)
	m3Enc, err := encryptHandshakeEnvelope(k, m3Plain)
	if err != nil {
		crypto.Zeroize(k)
		return fail(qerrors.NewCryptoError("handshake.RunInitiator", err))
	}
	if err := writeMessage(rw, m3Enc); err != nil {
		crypto.Zeroize(k)
		return fail(qerrors.NewCryptoError("handshake.RunInitiator", qerrors.ErrWriteFailed))
	}
	state = StateSentM3
	state = StateReady

	return &Result{Key: k, PeerUsername: cfg.ExpectedPeerUsername}, nil
}

// RunResponder drives the B side of the STS protocol over rw: receives M1,
// sends M2, receives and verifies M3, and returns the derived session key
// plus the initiator's claimed (and now signature-bound) username.
func RunResponder(ctx context.Context, rw io.ReadWriter, cfg ResponderConfig) (*Result, error) {
	state := StateInit
	fail := func(err error) (*Result, error) {
		wrapped := fmt.Errorf("handshake: failed in state %s: %w", state, err)
		state = StateFail
		closeIfPossible(rw)
		return nil, wrapped
	}

	ctx, cancel := context.WithTimeout(ctx, Deadline)
	defer cancel()
	applyDeadline(ctx, rw)

	m1, err := readMessage(rw)
	if err != nil {
		return fail(qerrors.NewCryptoError("handshake.RunResponder", qerrors.ErrShortRead))
	}
	gABytes, usernameBytes, err := splitLP(m1)
	if err != nil {
		return fail(qerrors.NewProtocolError("handshake", qerrors.ErrUnexpectedType))
	}
	peerUsername := string(usernameBytes)
	gA := dhgroup.DecodePublic(gABytes)
	state = StateRecvM1

	grp := dhgroup.Default()
	kp, err := grp.Generate()
	if err != nil {
		return fail(qerrors.NewCryptoError("handshake.RunResponder", err))
	}
	defer kp.Zeroize()
	gB := dhgroup.EncodePublic(kp.Public)

	secret, err := kp.SharedSecret(grp, gA)
	if err != nil {
		return fail(qerrors.NewCryptoError("handshake.RunResponder", err))
	}
	defer crypto.Zeroize(secret)

	k, err := crypto.DeriveSessionKey(secret)
	if err != nil {
		return fail(qerrors.NewCryptoError("handshake.RunResponder", err))
	}

	signedM2 := append(append([]byte{}, gB...), gABytes...)
	sigB, err := signing.Sign(cfg.LocalPrivateKey, signedM2)
	if err != nil {
		crypto.Zeroize(k)
		return fail(qerrors.NewCryptoError("handshake.RunResponder", err))
	}

	plaintext := concatLP(sigB, cfg.IdentityPayload)
	encBlob, err := encryptHandshakeEnvelope(k, plaintext)
	if err != nil {
		crypto.Zeroize(k)
		return fail(qerrors.NewCryptoError("handshake.RunResponder", err))
	}
	if err := writeMessage(rw, concatLP(gB, encBlob)); err != nil {
		crypto.Zeroize(k)
		return fail(qerrors.NewCryptoError("handshake.RunResponder", qerrors.ErrWriteFailed))
	}
	state = StateSentM2

	m3, err := readMessage(rw)
	if err != nil {
		crypto.Zeroize(k)
		return fail(qerrors.NewCryptoError("handshake.RunResponder", qerrors.ErrShortRead))
	}
	m3Plain, err := decryptHandshakeEnvelope(k, m3)
	if err != nil {
		crypto.Zeroize(k)
		return fail(qerrors.NewCryptoError("handshake.RunResponder", qerrors.ErrAuthFailed))
	}
	sigA, rest, err := takeLP(m3Plain)
	if err == nil && len(rest) != 0 {
		err = qerrors.ErrUnexpectedType
	}
	if err != nil {
		crypto.Zeroize(k)
		return fail(qerrors.NewProtocolError("handshake", qerrors.ErrUnexpectedType))
	}

	if cfg.InitiatorPublicKey != nil {
		signedM3 := append(append([]byte{}, gABytes...), gB...)
		if err := signing.Verify(cfg.InitiatorPublicKey, signedM3, sigA); err != nil {
			crypto.Zeroize(k)
			return fail(err)
		}
	}
	state = StateRecvM3
	state = StateReady

	return &Result{Key: k, PeerUsername: peerUsername}, nil
}

func applyDeadline(ctx context.Context, rw io.ReadWriter) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return
	}
	if d, ok := rw.(interface{ SetDeadline(time.Time) error }); ok {
		_ = d.SetDeadline(deadline)
	}
}

func closeIfPossible(rw io.ReadWriter) {
	if c, ok := rw.(io.Closer); ok {
		_ = c.Close()
	}
}

// writeMessage frames body with a 4-byte big-endian length prefix, the same
// convention the Secure Channel uses for its outer frame, so handshake
// traffic and post-handshake traffic share one read loop shape. The prefix
// and body are issued as a single Write so a transport that tunnels one
// Write call per logical message (talksession's peer-handshake tunnel)
// carries one complete handshake message per call.
func writeMessage(w io.Writer, body []byte) error {
	frame := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[4:], body)
	_, err := w.Write(frame)
	return err
}

func readMessage(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length > uint32(constants.DefaultMaxFrameSize) {
		return nil, qerrors.ErrOversizedFrame
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// concatLP concatenates each part with its own 4-byte big-endian length
// prefix, giving an unambiguous parse regardless of part contents.
func concatLP(parts ...[]byte) []byte {
	out := make([]byte, 0, 4*len(parts))
	var lenBuf [4]byte
	for _, p := range parts {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(p)))
		out = append(out, lenBuf[:]...)
		out = append(out, p...)
	}
	return out
}

// splitLP parses exactly two length-prefixed parts out of buf.
func splitLP(buf []byte) (a, b []byte, err error) {
	a, rest, err := takeLP(buf)
	if err != nil {
		return nil, nil, err
	}
	b, rest, err = takeLP(rest)
	if err != nil {
		return nil, nil, err
	}
	if len(rest) != 0 {
		return nil, nil, qerrors.ErrUnexpectedType
	}
	return a, b, nil
}

func takeLP(buf []byte) (part, rest []byte, err error) {
	if len(buf) < 4 {
		return nil, nil, qerrors.ErrShortRead
	}
	n := binary.BigEndian.Uint32(buf[:4])
	if uint32(len(buf)-4) < n {
		return nil, nil, qerrors.ErrShortRead
	}
	return buf[4 : 4+n], buf[4+n:], nil
}

// encryptHandshakeEnvelope seals plaintext under k with a fresh IV and the
// fixed handshake AAD tag (section 4.2: "ENC_k(x) ... AAD = handshake tag
// 0x00, 12-byte IV prepended, 16-byte tag appended").
func encryptHandshakeEnvelope(k, plaintext []byte) ([]byte, error) {
	aead, err := crypto.NewAEAD(constants.CipherSuiteAES256GCM, k)
	if err != nil {
		return nil, err
	}
	iv, err := crypto.SecureRandomBytes(constants.AESNonceSize)
	if err != nil {
		return nil, err
	}
	aad := []byte{constants.HandshakeAAD}
	ciphertext, err := aead.SealWithNonce(iv, plaintext, aad)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(iv)+len(ciphertext))
	out = append(out, iv...)
	out = append(out, ciphertext...)
	return out, nil
}

func decryptHandshakeEnvelope(k, envelope []byte) ([]byte, error) {
	if len(envelope) < constants.AESNonceSize {
		return nil, qerrors.ErrInvalidCiphertext
	}
	aead, err := crypto.NewAEAD(constants.CipherSuiteAES256GCM, k)
	if err != nil {
		return nil, err
	}
	iv := envelope[:constants.AESNonceSize]
	ciphertext := envelope[constants.AESNonceSize:]
	aad := []byte{constants.HandshakeAAD}
	return aead.OpenWithNonce(iv, ciphertext, aad)
}
