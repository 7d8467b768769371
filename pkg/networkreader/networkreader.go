// Package networkreader implements the Network Reader Loop (NRL, section
// 4.5): the secondary thread that continuously receives server-session
// frames from login to exit and dispatches each by its first plaintext
// byte, handing peer traffic and talk requests to the Thread Bridge and
// control replies to a one-slot reply box.
//
// Grounded on the receive/dispatch shape of
// pzverkov-Quantum-Go's pkg/tunnel/transport.go (handleMessage switch over
// a message-type byte, a blocking Receive loop run from its own goroutine in
// the Listener.Accept pattern), adapted from that package's single data
// message type to the four server-to-client message types of section 6
// plus forwarded TALKING frames.
package networkreader

import (
	"time"

	"github.com/sts-chat/go-client/internal/constants"
	qerrors "github.com/sts-chat/go-client/internal/errors"
	"github.com/sts-chat/go-client/pkg/metrics"
	"github.com/sts-chat/go-client/pkg/session"
	"github.com/sts-chat/go-client/pkg/threadbridge"
)

// ControlReply is a completed SERVER_OK/SERVER_ERR reply to an outstanding
// control request (section 4.5: "delivered to TSC via a one-slot reply
// channel, not TB").
type ControlReply struct {
	OK      bool
	Payload []byte
}

// ReplyBox is the one-slot control-reply channel between NRL and TSC.
type ReplyBox struct {
	ch chan ControlReply
}

// NewReplyBox returns an empty one-slot reply box.
func NewReplyBox() *ReplyBox {
	return &ReplyBox{ch: make(chan ControlReply, 1)}
}

// deliver stores reply, replacing any prior undelivered reply: only one
// control request is ever outstanding at a time in this protocol (show,
// talk, end-talk are sent and awaited sequentially by TSC).
func (b *ReplyBox) deliver(reply ControlReply) {
	select {
	case b.ch <- reply:
	default:
		select {
		case <-b.ch:
		default:
		}
		b.ch <- reply
	}
}

// Wait blocks for a reply up to the control-reply deadline (section 5, 10
// seconds), returning ErrDeadlineExceeded on timeout.
func (b *ReplyBox) Wait(timeout time.Duration) (ControlReply, error) {
	select {
	case reply := <-b.ch:
		return reply, nil
	case <-time.After(timeout):
		return ControlReply{}, qerrors.NewProtocolError("networkreader", qerrors.ErrDeadlineExceeded)
	}
}

// PeerSessionProvider supplies the currently active peer session, if any.
// TSC owns the peer session's lifecycle; NRL only ever reads through this
// accessor, never mutates it.
type PeerSessionProvider interface {
	PeerSession() *session.Session
}

// HandshakeBox is a one-slot FIFO handoff for raw peer-handshake bytes
// tunneled inside server-session TALKING frames before a peer Secure
// Channel exists to decrypt them under (section 4.4: HSE runs "tunneled
// through server session"). Unlike ReplyBox, delivery blocks rather than
// replacing a pending item: handshake messages must not be dropped.
type HandshakeBox struct {
	ch chan []byte
}

// NewHandshakeBox returns an empty handshake tunnel mailbox.
func NewHandshakeBox() *HandshakeBox {
	return &HandshakeBox{ch: make(chan []byte, 1)}
}

func (b *HandshakeBox) deliver(payload []byte) {
	b.ch <- payload
}

// Wait blocks for the next tunneled handshake message up to timeout.
func (b *HandshakeBox) Wait(timeout time.Duration) ([]byte, error) {
	select {
	case data := <-b.ch:
		return data, nil
	case <-time.After(timeout):
		return nil, qerrors.NewProtocolError("networkreader", qerrors.ErrDeadlineExceeded)
	}
}

// HandshakeSinkProvider supplies the HandshakeBox for an in-progress peer
// handshake, or nil when no handshake is running. TSC owns this lifecycle.
type HandshakeSinkProvider interface {
	HandshakeSink() *HandshakeBox
}

// SessionEnder tears down a live peer session after a recoverable error on
// it (section 7: "Errors on a peer session are recoverable: the client
// sends END_TALK, transitions to NO, and returns to the command prompt").
// talksession.Login wires this to Controller.EndTalk.
type SessionEnder interface {
	EndTalk() error
}

// Config parameterizes one NRL run.
type Config struct {
	ServerSession  *session.Session
	Bridge         *threadbridge.Bridge
	Replies        *ReplyBox
	PeerSessions   PeerSessionProvider
	HandshakeSinks HandshakeSinkProvider
	SessionEnder   SessionEnder
	Logger         *metrics.Logger
	Metrics        *metrics.Collector
}

// Run executes the Network Reader Loop: it blocks receiving server-session
// frames until a Secure Channel error occurs, at which point it marks the
// talk state ERR, force-releases the bridge, and returns (section 4.5,
// last paragraph). It never returns nil; the caller (main) inspects the
// error only for diagnostics, since ForceRelease has already unblocked
// every waiter.
func Run(cfg Config) error {
	log := cfg.Logger
	for {
		plaintext, err := cfg.ServerSession.Channel().Receive()
		if err != nil {
			cfg.Bridge.SetState(threadbridge.StateErr)
			cfg.Bridge.ForceRelease()
			if cfg.Metrics != nil {
				cfg.Metrics.SessionFailed()
			}
			if log != nil {
				log.Error("server session read failed", metrics.Fields{"error": err.Error()})
			}
			return err
		}
		if len(plaintext) == 0 {
			continue
		}
		dispatch(cfg, plaintext[0], plaintext[1:])
	}
}

func dispatch(cfg Config, msgType byte, payload []byte) {
	switch msgType {
	case constants.MsgServerOK:
		cfg.Replies.deliver(ControlReply{OK: true, Payload: payload})

	case constants.MsgServerError:
		cfg.Replies.deliver(ControlReply{OK: false, Payload: payload})

	case constants.MsgServerRequestToTalk:
		peerUsername := string(payload)
		if cfg.Bridge.AddRequest(peerUsername) == threadbridge.RequestRejected {
			refuse := append([]byte{constants.MsgRefuseTalk}, payload...)
			_ = cfg.ServerSession.Channel().Send(refuse)
			if cfg.Metrics != nil {
				cfg.Metrics.RequestRejected()
			}
		}

	case constants.MsgServerEndTalk:
		if st := cfg.Bridge.GetState(); st == threadbridge.StateYes || st == threadbridge.StateClosing {
			cfg.Bridge.SetState(threadbridge.StateNo)
			cfg.Bridge.NotifyMessage(nil)
			if cfg.Metrics != nil {
				cfg.Metrics.TalkEnded()
			}
		}

	case constants.MsgTalking:
		if cfg.HandshakeSinks != nil {
			if hs := cfg.HandshakeSinks.HandshakeSink(); hs != nil {
				hs.deliver(payload)
				return
			}
		}
		peer := cfg.PeerSessions.PeerSession()
		if peer == nil {
			// No active peer session to decrypt under; the server should
			// not forward TALKING frames outside a live talk, but a race
			// between END_TALK processing and an in-flight frame is
			// possible. Drop it rather than fail the server session.
			return
		}
		plaintext, err := peer.DecryptTunneled(payload)
		if err != nil {
			if cfg.Logger != nil {
				cfg.Logger.Warn("peer frame decrypt failed", metrics.Fields{"error": err.Error()})
			}
			if cfg.Metrics != nil {
				cfg.Metrics.RecordDecryptError()
			}
			// Section 8 scenario 6 / properties P1, P3: a replayed or
			// tampered TALKING frame must not just be rejected
			// cryptographically, it must tear the talk down - send
			// END_TALK, zeroize the peer session, return to NO. Run
			// asynchronously: EndTalk blocks awaiting the SERVER_END_TALK
			// echo that this same Run loop still has to receive and
			// dispatch, so calling it inline here would deadlock the loop
			// against itself.
			if cfg.SessionEnder != nil {
				go func() {
					if err := cfg.SessionEnder.EndTalk(); err != nil && cfg.Logger != nil {
						cfg.Logger.Warn("end-talk after peer frame failure did not complete cleanly", metrics.Fields{"error": err.Error()})
					}
				}()
			}
			return
		}
		cfg.Bridge.NotifyMessage(plaintext)

	default:
		if cfg.Logger != nil {
			cfg.Logger.Warn("unexpected server message type", metrics.Fields{"type": msgType})
		}
	}
}
