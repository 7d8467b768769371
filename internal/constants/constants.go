// Package constants defines security parameters and wire-protocol constants for
// the stschat client: the fixed Diffie-Hellman group, AEAD sizes, frame layout,
// message type bytes, and timing budgets used throughout the handshake and
// secure-channel packages.
package constants

// Protocol version and identification.
const (
	// ProtocolVersion is the current version of the stschat wire protocol.
	ProtocolVersion uint16 = 0x0001

	// ProtocolName is used for domain separation in key derivation and logging.
	ProtocolName = "STS-CHAT-v1"
)

// DHGroup2048Prime is the 2048-bit MODP safe prime from RFC 3526 Group 14,
// used as the fixed Diffie-Hellman group for both the client-server and the
// client-client Station-to-Station handshakes.
const DHGroup2048Prime = "" +
	"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E08" +
	"8A67CC74020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B" +
	"302B0A6DF25F14374FE1356D6D51C245E485B576625E7EC6F44C42E9" +
	"A637ED6B0BFF5CB6F406B7EDEE386BFB5A899FA5AE9F24117C4B1FE6" +
	"49286651ECE45B3DC2007CB8A163BF0598DA48361C55D39A69163FA8" +
	"FD24CF5F83655D23DCA3AD961C62F356208552BB9ED529077096966D" +
	"670C354E4ABC9804F1746C08CA18217C32905E462E36CE3BE39E772C" +
	"180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF695581718" +
	"3995497CEA956AE515D2261898FA051015728E5A8AACAA68FFFFFFFF" +
	"FFFFFFFF"

// DHGenerator is the generator used with DHGroup2048Prime.
const DHGenerator = 2

// DH key-material sizes.
const (
	// DHPrimeBits is the bit length of the fixed safe prime.
	DHPrimeBits = 2048

	// DHPublicMaxBytes is the maximum byte length of a DH public value, used
	// for the network-byte-order length prefix applied before signing.
	DHPublicMaxBytes = DHPrimeBits / 8
)

// Symmetric Encryption Parameters (AES-256-GCM).
const (
	// AESKeySize is the size of AES-256 keys in bytes.
	AESKeySize = 32

	// AESNonceSize is the size of the AES-GCM IV in bytes (96 bits).
	AESNonceSize = 12

	// AESTagSize is the size of the AES-GCM authentication tag in bytes.
	AESTagSize = 16

	// ChaCha20KeySize is the size of ChaCha20-Poly1305 keys in bytes.
	ChaCha20KeySize = 32

	// ChaCha20NonceSize is the size of ChaCha20-Poly1305 nonces in bytes.
	ChaCha20NonceSize = 12
)

// Secure Channel frame layout (see pkg/securechannel).
const (
	// LengthPrefixSize is the size of the big-endian total-length field.
	LengthPrefixSize = 4

	// CounterSize is the size of the big-endian per-direction counter, also
	// used verbatim as the GCM additional authenticated data.
	CounterSize = 4

	// FrameOverhead is the non-ciphertext portion of a secure-channel frame:
	// IV + counter + tag (the length prefix itself is not counted in L).
	FrameOverhead = AESNonceSize + CounterSize + AESTagSize

	// DefaultMaxFrameSize is the default cap on a frame's declared length L.
	DefaultMaxFrameSize = 16 << 20 // 16 MiB

	// MaxPlaintextSize is the largest plaintext payload the secure channel
	// accepts on send, per the transport contract in section 4.1.
	MaxPlaintextSize = 1<<24 - 1

	// MaxCounter is the counter value at which sending stops: a send whose
	// counter has reached MaxCounter fails with a counter-overflow error
	// instead of transmitting, so MaxCounter-1 is the last counter used.
	MaxCounter = 1<<32 - 1
)

// Key Derivation Parameters.
const (
	// SessionKeySize is the size of the derived STS session key in bytes.
	SessionKeySize = 32

	// TranscriptHashSize is the size of an auxiliary transcript fingerprint
	// used only for logging/tracing, never for key material.
	TranscriptHashSize = 32

	// HandshakeAAD is the fixed AAD tag used for the AES-256-GCM envelopes
	// that wrap the M2/M3 signature payloads during the handshake.
	HandshakeAAD = 0x00

	// DomainSeparatorTranscript labels the non-secret transcript fingerprint.
	DomainSeparatorTranscript = "STS-CHAT-v1-Transcript"
)

// Timing budgets (section 5).
const (
	// HandshakeDeadlineSeconds bounds the total duration of one STS run.
	HandshakeDeadlineSeconds = 30

	// ControlReplyDeadlineSeconds bounds how long TSC waits for a SERVER_OK
	// or SERVER_ERR reply to an outstanding control request.
	ControlReplyDeadlineSeconds = 10
)

// Identity constraints (section 3).
const (
	// MaxUsernameLength is the maximum printable length of a username.
	MaxUsernameLength = 255
)

// Well-known persisted-state file names (section 6).
const (
	// KeyFileDir is the directory holding per-user private signing keys.
	KeyFileDir = "keys"

	// CACertificateFile is the CA certificate used to validate server and
	// peer certificates.
	CACertificateFile = "FoundationsOfCybersecurity_cert.pem"

	// CRLFile is the certificate revocation list checked alongside the CA.
	CRLFile = "FoundationsOfCybersecurity_crl.pem"
)

// Client-to-server message type bytes (section 6).
const (
	MsgShow        byte = 0x00
	MsgTalk        byte = 0x01
	MsgExit        byte = 0x02
	MsgAcceptTalk  byte = 0x03
	MsgTalking     byte = 0x04
	MsgEndTalk     byte = 0x05
	MsgRefuseTalk  byte = 0x13
	MsgClientError byte = 0xFF

	// MsgFetchPeerKey is a client-to-server extension beyond the core
	// client-to-server message types listed above: it requests a peer's certified public signing key
	// (KeyStore.fetch_peer_pub, section 9), a wire mechanic the
	// specification deliberately leaves to an external collaborator. The
	// server answers it exactly like any other control request, through
	// SERVER_OK/SERVER_ERR.
	MsgFetchPeerKey byte = 0x06
)

// Server-to-client message type bytes (section 6).
const (
	MsgServerOK            byte = 0x00
	MsgServerRequestToTalk byte = 0x01
	MsgServerEndTalk       byte = 0x02
	MsgServerError         byte = 0xFF
)

// Error sub-codes carried in the payload of a MsgServerError/MsgClientError frame.
const (
	ErrSubWrongType byte = 0x02
	ErrSubGeneric   byte = 0xFF
)

// CipherSuite identifies the AEAD algorithm securing a channel.
type CipherSuite uint16

const (
	// CipherSuiteAES256GCM uses AES-256-GCM, mandated for the secure channel
	// and handshake envelopes.
	CipherSuiteAES256GCM CipherSuite = 0x0001

	// CipherSuiteChaCha20Poly1305 is available as an ambient alternative for
	// contexts outside the mandated secure-channel framing.
	CipherSuiteChaCha20Poly1305 CipherSuite = 0x0002
)

// String returns a human-readable name for the cipher suite.
func (cs CipherSuite) String() string {
	switch cs {
	case CipherSuiteAES256GCM:
		return "AES-256-GCM"
	case CipherSuiteChaCha20Poly1305:
		return "ChaCha20-Poly1305"
	default:
		return "Unknown"
	}
}

// IsSupported returns true if the cipher suite is supported.
func (cs CipherSuite) IsSupported() bool {
	return cs == CipherSuiteAES256GCM || cs == CipherSuiteChaCha20Poly1305
}

// IsFIPSApproved returns true if the cipher suite is FIPS 140-3 approved.
// Only AES-256-GCM is FIPS approved; ChaCha20-Poly1305 is not.
func (cs CipherSuite) IsFIPSApproved() bool {
	return cs == CipherSuiteAES256GCM
}
