// Package talksession implements the Talk Session Controller (TSC, section
// 4.4): the main-thread state machine that turns the five user-facing
// commands (show, talk, accept, end-talk, exit) into server control
// requests and, for talk/accept, a tunneled STS handshake that establishes
// the peer session those requests are negotiating.
//
// Grounded on the command-dispatch shape of
// pzverkov-Quantum-Go's cmd/quantum-vpn/main.go (a single controller type
// exposing one method per CLI verb, each sending a request and blocking on
// its reply) combined with that repo's pkg/tunnel/session.go ownership
// pattern for the one live peer session a client holds at a time.
package talksession

import (
	"bytes"
	"context"
	"crypto/rsa"
	"sync"
	"time"

	"github.com/sts-chat/go-client/internal/constants"
	qerrors "github.com/sts-chat/go-client/internal/errors"
	"github.com/sts-chat/go-client/pkg/crypto"
	"github.com/sts-chat/go-client/pkg/handshake"
	"github.com/sts-chat/go-client/pkg/keystore"
	"github.com/sts-chat/go-client/pkg/metrics"
	"github.com/sts-chat/go-client/pkg/networkreader"
	"github.com/sts-chat/go-client/pkg/session"
	"github.com/sts-chat/go-client/pkg/signing"
	"github.com/sts-chat/go-client/pkg/threadbridge"
)

// Config parameterizes one Controller.
type Config struct {
	LocalUsername   string
	LocalPrivateKey *rsa.PrivateKey

	ServerSession *session.Session
	Bridge        *threadbridge.Bridge
	Replies       *networkreader.ReplyBox
	PeerKeys      keystore.PeerKeyFetcher

	MaxFrameSize int

	Logger  *metrics.Logger
	Metrics *metrics.Collector
}

// Controller is the Talk Session Controller. It owns the peer session for
// the lifetime of one talk and the handshake tunnel mailbox while one is in
// progress; both are read concurrently by the network-reader thread through
// PeerSession and HandshakeSink, so access is mutex-guarded (section 4.3:
// "TB owns the only cross-thread handoff; TSC owns what TB hands off").
type Controller struct {
	cfg Config

	mu           sync.Mutex
	peer         *session.Session
	handshakeBox *networkreader.HandshakeBox

	// endTalkAck is a one-slot handoff from Run's chat-relay goroutine (the
	// sole caller of Bridge.WaitForMessage, section 4.3) to a blocked
	// EndTalk call: it fires when that goroutine sees the SERVER_END_TALK
	// sentinel NRL pushes into the bridge (networkreader.go's
	// MsgServerEndTalk case). Keeping a single WaitForMessage caller avoids
	// two goroutines racing to drain the bridge's one-slot inbox.
	endTalkAck chan struct{}
}

// New returns a Controller ready to issue commands over cfg.ServerSession.
func New(cfg Config) *Controller {
	return &Controller{cfg: cfg, endTalkAck: make(chan struct{}, 1)}
}

// notifyEndTalkAcked wakes a pending EndTalk call, if any. Called only by
// the chat-relay goroutine Run starts (see Run in login.go).
func (c *Controller) notifyEndTalkAcked() {
	select {
	case c.endTalkAck <- struct{}{}:
	default:
	}
}

// PeerSession implements networkreader.PeerSessionProvider.
func (c *Controller) PeerSession() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peer
}

// HandshakeSink implements networkreader.HandshakeSinkProvider.
func (c *Controller) HandshakeSink() *networkreader.HandshakeBox {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handshakeBox
}

func (c *Controller) setPeer(s *session.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peer = s
}

func (c *Controller) setHandshakeBox(b *networkreader.HandshakeBox) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handshakeBox = b
}

// Show requests the list of currently online usernames (section 4.4
// "show"). The reply payload is returned verbatim; its format is a
// newline-separated username list, an external-collaborator contract
// (section 9) this package does not parse further.
func (c *Controller) Show() ([]byte, error) {
	if err := c.cfg.ServerSession.Channel().Send([]byte{constants.MsgShow}); err != nil {
		return nil, qerrors.NewCryptoError("talksession.Show", err)
	}
	reply, err := c.cfg.Replies.Wait(constants.ControlReplyDeadlineSeconds * time.Second)
	if err != nil {
		return nil, err
	}
	if !reply.OK {
		return nil, qerrors.NewProtocolError("talksession", qerrors.ErrWrongState)
	}
	return reply.Payload, nil
}

// Talk initiates a talk with peerUsername (section 4.4 "talk"): it asks the
// server to relay the request, and on SERVER_OK tunnels an STS handshake,
// playing the initiator role, through the server session. On success the
// established peer session becomes the Controller's live peer session and
// the bridge's talk state becomes YES.
func (c *Controller) Talk(ctx context.Context, peerUsername string) error {
	if c.cfg.Bridge.GetState() != threadbridge.StateNo {
		return qerrors.NewProtocolError("talksession", qerrors.ErrWrongState)
	}
	if err := keystore.ValidateUsername(peerUsername); err != nil {
		return err
	}

	req := append([]byte{constants.MsgTalk}, []byte(peerUsername)...)
	if err := c.cfg.ServerSession.Channel().Send(req); err != nil {
		return qerrors.NewCryptoError("talksession.Talk", err)
	}
	reply, err := c.cfg.Replies.Wait(constants.ControlReplyDeadlineSeconds * time.Second)
	if err != nil {
		return err
	}
	if !reply.OK {
		return qerrors.NewProtocolError("talksession", qerrors.ErrWrongState)
	}

	box := networkreader.NewHandshakeBox()
	c.setHandshakeBox(box)
	defer c.setHandshakeBox(nil)

	tunnel := newTunnelRW(c.cfg.ServerSession, box)
	result, err := handshake.RunInitiator(ctx, tunnel, handshake.InitiatorConfig{
		LocalUsername:        c.cfg.LocalUsername,
		LocalPrivateKey:      c.cfg.LocalPrivateKey,
		ExpectedPeerUsername: peerUsername,
		Verifier:             &keystore.PeerBitwiseVerifier{Fetcher: c.cfg.PeerKeys},
	})
	if err != nil {
		if c.cfg.Metrics != nil {
			c.cfg.Metrics.SessionFailed()
		}
		return err
	}

	peer, err := session.NewTunneled(result.PeerUsername, session.RoleInitiator, result.Key, c.cfg.MaxFrameSize)
	crypto.Zeroize(result.Key)
	if err != nil {
		return err
	}
	c.setPeer(peer)
	c.cfg.Bridge.SetState(threadbridge.StateYes)
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.TalkStarted()
	}
	if c.cfg.Logger != nil {
		c.cfg.Logger.Info("talk established", metrics.Fields{"peer": result.PeerUsername, "role": "initiator"})
	}
	return nil
}

// Accept completes an incoming talk request (section 4.4 "accept"): it
// tells the server to let the request through, then runs the responder
// side of the tunneled handshake.
func (c *Controller) Accept(ctx context.Context, req threadbridge.Request) error {
	accept := append([]byte{constants.MsgAcceptTalk}, []byte(req.PeerUsername)...)
	if err := c.cfg.ServerSession.Channel().Send(accept); err != nil {
		return qerrors.NewCryptoError("talksession.Accept", err)
	}
	reply, err := c.cfg.Replies.Wait(constants.ControlReplyDeadlineSeconds * time.Second)
	if err != nil {
		return err
	}
	if !reply.OK {
		return qerrors.NewProtocolError("talksession", qerrors.ErrWrongState)
	}

	initiatorPub, err := c.cfg.PeerKeys.FetchPeerPublicKey(req.PeerUsername)
	if err != nil {
		return err
	}
	identityPayload, err := signing.EncodePublicKeyPEM(&c.cfg.LocalPrivateKey.PublicKey)
	if err != nil {
		return err
	}

	box := networkreader.NewHandshakeBox()
	c.setHandshakeBox(box)
	defer c.setHandshakeBox(nil)

	tunnel := newTunnelRW(c.cfg.ServerSession, box)
	result, err := handshake.RunResponder(ctx, tunnel, handshake.ResponderConfig{
		LocalPrivateKey:    c.cfg.LocalPrivateKey,
		IdentityPayload:    identityPayload,
		InitiatorPublicKey: initiatorPub,
	})
	if err != nil {
		if c.cfg.Metrics != nil {
			c.cfg.Metrics.SessionFailed()
		}
		return err
	}

	peer, err := session.NewTunneled(result.PeerUsername, session.RoleResponder, result.Key, c.cfg.MaxFrameSize)
	crypto.Zeroize(result.Key)
	if err != nil {
		return err
	}
	c.setPeer(peer)
	c.cfg.Bridge.SetState(threadbridge.StateYes)
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.TalkStarted()
	}
	if c.cfg.Logger != nil {
		c.cfg.Logger.Info("talk established", metrics.Fields{"peer": result.PeerUsername, "role": "responder"})
	}
	return nil
}

// Reject declines an incoming talk request (section 4.4, the REFUSE_TALK
// branch of "accept"/"talk"): it leaves the talk state at NO and frees the
// request slot for a future request.
func (c *Controller) Reject(req threadbridge.Request) error {
	refuse := append([]byte{constants.MsgRefuseTalk}, []byte(req.PeerUsername)...)
	if err := c.cfg.ServerSession.Channel().Send(refuse); err != nil {
		return qerrors.NewCryptoError("talksession.Reject", err)
	}
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.RequestRejected()
	}
	return nil
}

// CheckIncoming reports a pending peer-initiated talk request, if any,
// without blocking (wraps threadbridge.Bridge.CheckRequest).
func (c *Controller) CheckIncoming() (threadbridge.Request, bool) {
	return c.cfg.Bridge.CheckRequest()
}

// SendLine encrypts line under the live peer session and sends it as a
// TALKING frame over the server session (section 4.4 "during a talk").
func (c *Controller) SendLine(line []byte) error {
	peer := c.PeerSession()
	if peer == nil {
		return qerrors.NewProtocolError("talksession", qerrors.ErrWrongState)
	}
	frame, err := peer.EncryptTunneled(line)
	if err != nil {
		return qerrors.NewCryptoError("talksession.SendLine", err)
	}
	payload := append([]byte{constants.MsgTalking}, frame...)
	if err := c.cfg.ServerSession.Channel().Send(payload); err != nil {
		return qerrors.NewCryptoError("talksession.SendLine", err)
	}
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.RecordBytesSent(uint64(len(line)))
	}
	return nil
}

// RecvLine blocks for the next plaintext peer message (section 4.4, the
// bridge consumer side). ok is false when the talk ended or the bridge was
// force-released, distinguishable from a legitimate empty line: the bridge
// never delivers a zero-length non-nil slice for EndTalk's sentinel.
func (c *Controller) RecvLine() (line []byte, ok bool) {
	return c.cfg.Bridge.WaitForMessage()
}

// EndTalk tears down the live talk (section 4.4 "end-talk", invariant I4:
// YES -> CLOSING only by END_TALK send/receive, CLOSING -> NO only after the
// server's SERVER_END_TALK acknowledgement). It sets CLOSING, sends
// END_TALK, then blocks for that acknowledgement before zeroing the peer
// session; networkreader.go's MsgServerEndTalk case is left as the sole
// place state actually moves to NO.
func (c *Controller) EndTalk() error {
	if c.cfg.Bridge.GetState() != threadbridge.StateYes {
		return nil
	}
	c.cfg.Bridge.SetState(threadbridge.StateClosing)
	if err := c.cfg.ServerSession.Channel().Send([]byte{constants.MsgEndTalk}); err != nil {
		return qerrors.NewCryptoError("talksession.EndTalk", err)
	}

	select {
	case <-c.endTalkAck:
	case <-time.After(constants.ControlReplyDeadlineSeconds * time.Second):
	}

	if peer := c.PeerSession(); peer != nil {
		peer.Zeroize()
		c.setPeer(nil)
	}
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.TalkEnded()
	}
	return nil
}

// Exit logs the client out of the server (section 4.4 "exit"): it sends
// EXIT, waits for SERVER_OK, and tears down any live talk first.
func (c *Controller) Exit() error {
	if c.cfg.Bridge.GetState() == threadbridge.StateYes {
		if err := c.EndTalk(); err != nil && c.cfg.Logger != nil {
			c.cfg.Logger.Warn("end-talk during exit failed", metrics.Fields{"error": err.Error()})
		}
	}
	if err := c.cfg.ServerSession.Channel().Send([]byte{constants.MsgExit}); err != nil {
		return qerrors.NewCryptoError("talksession.Exit", err)
	}
	reply, err := c.cfg.Replies.Wait(constants.ControlReplyDeadlineSeconds * time.Second)
	if err != nil {
		return err
	}
	if !reply.OK {
		return qerrors.NewProtocolError("talksession", qerrors.ErrWrongState)
	}
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.SessionEnded()
	}
	return nil
}

// tunnelRW adapts one server session plus one HandshakeBox into the
// io.ReadWriter + SetDeadline shape handshake.RunInitiator/RunResponder
// expect, so the STS engine can run unmodified over a tunnel instead of a
// real socket. Each Write call embeds its argument verbatim as one TALKING
// payload; each Read call drains the next whole payload the reader thread
// delivered, buffering any bytes the caller didn't take yet so a handshake
// message split across several small Read calls (section 4.2's length
// prefix followed by body) still resolves correctly.
type tunnelRW struct {
	server *session.Session
	sink   *networkreader.HandshakeBox

	mu       sync.Mutex
	buf      *bytes.Reader
	deadline time.Time
}

func newTunnelRW(server *session.Session, sink *networkreader.HandshakeBox) *tunnelRW {
	return &tunnelRW{server: server, sink: sink, deadline: time.Now().Add(handshake.Deadline)}
}

func (t *tunnelRW) Write(p []byte) (int, error) {
	payload := make([]byte, 0, 1+len(p))
	payload = append(payload, constants.MsgTalking)
	payload = append(payload, p...)
	if err := t.server.Channel().Send(payload); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (t *tunnelRW) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for t.buf == nil || t.buf.Len() == 0 {
		timeout := time.Until(t.deadline)
		if timeout <= 0 {
			return 0, qerrors.ErrDeadlineExceeded
		}
		data, err := t.sink.Wait(timeout)
		if err != nil {
			return 0, err
		}
		t.buf = bytes.NewReader(data)
	}
	return t.buf.Read(p)
}

// SetDeadline implements the optional deadline interface
// handshake.applyDeadline probes for.
func (t *tunnelRW) SetDeadline(deadline time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deadline = deadline
	return nil
}
