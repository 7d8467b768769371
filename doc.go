// Package stschat implements the client side of a two-party end-to-end
// encrypted chat system brokered by a trusted rendezvous server.
//
// Users log in to the server, list currently online peers, and start
// authenticated, encrypted conversations with them; the server relays bytes
// between two talking clients but never holds key material that lets it read
// them. Every client maintains up to two live sessions at once: a server
// session for control traffic (login, show, talk setup, end-talk), and a peer
// session tunneled inside it for the actual chat payload.
//
// # Quick Start
//
// Establishing the server session and running the interactive command loop:
//
//	import "github.com/sts-chat/go-client/pkg/talksession"
//
//	ks := keystore.New(keystore.Paths{KeyDir: "keys", CACertPath: caCert, CRLPath: crl})
//	priv, _ := ks.LoadPrivate("alice")
//	store, _ := certstore.Load(caCert, crl)
//	conn, _ := net.Dial("tcp", "localhost:8443")
//	ctl, _ := talksession.Login(ctx, conn, talksession.LoginConfig{
//		Username:       "alice",
//		PrivateKey:     priv,
//		ServerUsername: "server",
//		CertStore:      store,
//	})
//	ctl.Run(ctx, os.Stdin, os.Stdout)
//
// # Package Structure
//
//   - pkg/dhgroup: fixed 2048-bit safe-prime Diffie-Hellman group operations
//   - pkg/signing: RSA-PSS signing and certificate-bound verification
//   - pkg/certstore: CA certificate and CRL loading/validation
//   - pkg/keystore: per-user private key and peer public key retrieval
//   - pkg/crypto: low-level AEAD, key derivation, and CSPRNG primitives
//   - pkg/protocol: cipher-suite lists and the protocol version value
//   - pkg/securechannel: framed, authenticated, replay-protected transport (SC)
//   - pkg/handshake: the Station-to-Station handshake engine (HSE)
//   - pkg/session: the server/peer session tuple (key + per-direction counters)
//   - pkg/threadbridge: the reader/main thread synchronization object (TB)
//   - pkg/talksession: the main thread's command dispatch state machine (TSC)
//   - pkg/networkreader: the reader thread's frame-dispatch loop (NRL)
//   - pkg/metrics: structured logging, metrics, and tracing
//   - internal/constants: security parameters and wire-protocol constants
//   - internal/errors: custom error types for detailed, secret-free error handling
//
// # Security Properties
//
//   - Station-to-Station authenticated key exchange over a fixed 2048-bit
//     Diffie-Hellman group, run twice: once client-server, once client-client.
//   - Authenticated encryption: AES-256-GCM with a fresh random IV per frame
//     and the per-direction counter bound in as additional authenticated data.
//   - Strict replay/reorder protection: a received counter must equal the
//     expected value exactly, not merely fall within a window.
//   - Long-term identity bound by X.509 certificate and checked against a CRL.
//   - Key material is zeroed on session teardown and never logged.
//
// # Non-goals
//
// Multi-party talks, forward-secret re-keying within a live talk, offline or
// store-and-forward messaging, and server-side password authentication are
// out of scope; the server identifies clients by username, and client
// authenticity rests on the certified long-term signing key instead.
package stschat
