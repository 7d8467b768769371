// Package session implements the data-model tuple from section 3: a named
// peer identity bound to a Secure Channel over a 256-bit symmetric key. A
// client holds at most two of these at once — the server session (control
// traffic, spanning login to exit) and the peer session (chat payload only,
// tunneled inside the server session, spanning one talk).
//
// Grounded on the role/state bookkeeping in pzverkov-Quantum-Go's
// pkg/tunnel/session.go, stripped of that package's rekeying and CH-KEM
// fields: this protocol has no mid-session rekey (section 9's documented
// limitation) and derives its key once from the STS handshake.
package session

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"github.com/sts-chat/go-client/pkg/crypto"
	"github.com/sts-chat/go-client/pkg/securechannel"
)

// ErrNotTunneled is returned by EncryptTunneled/DecryptTunneled on a Session
// built with New instead of NewTunneled.
var ErrNotTunneled = errors.New("session: not a tunneled peer session")

// memTransport is a half-duplex, synchronous io.ReadWriter over in-memory
// buffers: Send's single Write captures one outgoing frame for the caller
// to embed as a server-session TALKING payload; Feed primes one incoming
// frame for the next Receive to parse. Grounded on the loopback
// io.ReadWriter idiom pzverkov-Quantum-Go's own tests use to drive
// Session.Encrypt/Decrypt without a real socket.
type memTransport struct {
	mu    sync.Mutex
	out   bytes.Buffer
	in    *bytes.Reader
}

func (m *memTransport) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.out.Write(p)
}

func (m *memTransport) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.in == nil {
		return 0, io.EOF
	}
	return m.in.Read(p)
}

func (m *memTransport) takeWritten() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]byte(nil), m.out.Bytes()...)
	m.out.Reset()
	return out
}

func (m *memTransport) feed(frame []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.in = bytes.NewReader(frame)
}

// Role records which side of a handshake established this session, kept
// for diagnostics; it carries no behavioral asymmetry once the channel is
// established.
type Role int

const (
	RoleInitiator Role = iota
	RoleResponder
)

// Session is the ⟨peer-username, key, send-counter, recv-counter⟩ tuple of
// section 3, plus the Secure Channel built over that key.
type Session struct {
	PeerUsername string
	Role         Role

	channel *securechannel.Channel
	key     []byte
	mt      *memTransport
}

// New wraps rw with a Secure Channel keyed by key and records the peer's
// username and this party's role. The caller retains ownership of key's
// backing array for diagnostics only; Zeroize clears the Session's own copy.
func New(peerUsername string, role Role, rw interface {
	Read([]byte) (int, error)
	Write([]byte) (int, error)
}, key []byte, maxFrameSize int) (*Session, error) {
	owned := make([]byte, len(key))
	copy(owned, key)

	ch, err := securechannel.New(rw, owned, maxFrameSize)
	if err != nil {
		crypto.Zeroize(owned)
		return nil, err
	}
	return &Session{PeerUsername: peerUsername, Role: role, channel: ch, key: owned}, nil
}

// NewTunneled builds a peer session with no socket of its own: its frames
// are never written to or read from the network directly. Instead
// EncryptTunneled/DecryptTunneled hand the caller (TSC, NRL) complete Secure
// Channel frames to embed in, or extract from, the payload of a
// server-session TALKING frame (section 4.4 "Tunneling").
func NewTunneled(peerUsername string, role Role, key []byte, maxFrameSize int) (*Session, error) {
	mt := &memTransport{}
	s, err := New(peerUsername, role, mt, key, maxFrameSize)
	if err != nil {
		return nil, err
	}
	s.mt = mt
	return s, nil
}

// EncryptTunneled encrypts plaintext under the peer session and returns the
// complete Secure Channel frame to embed as a TALKING payload.
func (s *Session) EncryptTunneled(plaintext []byte) ([]byte, error) {
	if s.mt == nil {
		return nil, ErrNotTunneled
	}
	if err := s.channel.Send(plaintext); err != nil {
		return nil, err
	}
	return s.mt.takeWritten(), nil
}

// DecryptTunneled parses and decrypts one Secure Channel frame extracted
// from a TALKING payload.
func (s *Session) DecryptTunneled(frame []byte) ([]byte, error) {
	if s.mt == nil {
		return nil, ErrNotTunneled
	}
	s.mt.feed(frame)
	return s.channel.Receive()
}

// Channel returns the underlying Secure Channel for Send/Receive.
func (s *Session) Channel() *securechannel.Channel {
	return s.channel
}

// SendCounter reports the session's current send-direction counter.
func (s *Session) SendCounter() uint32 {
	return s.channel.SendCounter()
}

// RecvCounter reports the session's current receive-direction counter.
func (s *Session) RecvCounter() uint32 {
	return s.channel.RecvCounter()
}

// Zeroize clears the session's copy of the symmetric key (invariant I2: key
// material is zeroed on drop). It must be called exactly once, when the
// session is torn down.
func (s *Session) Zeroize() {
	crypto.Zeroize(s.key)
}
