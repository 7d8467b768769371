package talksession

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net"
	"testing"
	"time"

	"github.com/sts-chat/go-client/internal/constants"
	qerrors "github.com/sts-chat/go-client/internal/errors"
	"github.com/sts-chat/go-client/pkg/networkreader"
	"github.com/sts-chat/go-client/pkg/session"
	"github.com/sts-chat/go-client/pkg/threadbridge"
)

func genKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func sessionKey(seed byte) []byte {
	key := make([]byte, constants.SessionKeySize)
	for i := range key {
		key[i] = seed + byte(i)
	}
	return key
}

type fixedKeyFetcher map[string]*rsa.PublicKey

func (f fixedKeyFetcher) FetchPeerPublicKey(username string) (*rsa.PublicKey, error) {
	k, ok := f[username]
	if !ok {
		return nil, qerrors.ErrKeyFileMissing
	}
	return k, nil
}

// harness wires one Controller to an in-memory server-session pair over a
// net.Pipe, with the controller's own network-reader loop already running
// in the background, mirroring how cmd/stschat-client wires Login's output.
type harness struct {
	ctl        *Controller
	fakeServer *session.Session
	bridge     *threadbridge.Bridge
}

func newHarness(t *testing.T, username string, priv *rsa.PrivateKey, peerKeys fixedKeyFetcher) *harness {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close(); serverConn.Close() })

	key := sessionKey(1)
	clientSide, err := session.New("server", session.RoleInitiator, clientConn, key, 0)
	if err != nil {
		t.Fatalf("client session: %v", err)
	}
	serverSide, err := session.New(username, session.RoleResponder, serverConn, key, 0)
	if err != nil {
		t.Fatalf("server session: %v", err)
	}

	bridge := threadbridge.New()
	replies := networkreader.NewReplyBox()
	ctl := New(Config{
		LocalUsername:   username,
		LocalPrivateKey: priv,
		ServerSession:   clientSide,
		Bridge:          bridge,
		Replies:         replies,
		PeerKeys:        peerKeys,
	})
	go networkreader.Run(networkreader.Config{
		ServerSession:  clientSide,
		Bridge:         bridge,
		Replies:        replies,
		PeerSessions:   ctl,
		HandshakeSinks: ctl,
	})
	return &harness{ctl: ctl, fakeServer: serverSide, bridge: bridge}
}

func TestShowRequestsAndReturnsPayload(t *testing.T) {
	h := newHarness(t, "alice", genKey(t), nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		req, err := h.fakeServer.Channel().Receive()
		if err != nil {
			t.Errorf("receive: %v", err)
			return
		}
		if len(req) == 0 || req[0] != constants.MsgShow {
			t.Errorf("unexpected request frame: %v", req)
			return
		}
		reply := append([]byte{constants.MsgServerOK}, []byte("alice\nbob")...)
		if err := h.fakeServer.Channel().Send(reply); err != nil {
			t.Errorf("send reply: %v", err)
		}
	}()

	payload, err := h.ctl.Show()
	if err != nil {
		t.Fatalf("Show: %v", err)
	}
	if string(payload) != "alice\nbob" {
		t.Errorf("got %q", payload)
	}
	<-done
}

func TestTalkRejectsWhenAlreadyTalking(t *testing.T) {
	h := newHarness(t, "alice", genKey(t), nil)
	h.bridge.SetState(threadbridge.StateYes)

	if err := h.ctl.Talk(context.Background(), "bob"); !qerrors.Is(err, qerrors.ErrWrongState) {
		t.Errorf("got %v, want ErrWrongState", err)
	}
}

func TestTalkRejectsBadUsername(t *testing.T) {
	h := newHarness(t, "alice", genKey(t), nil)
	if err := h.ctl.Talk(context.Background(), "../etc"); err == nil {
		t.Error("expected a path-traversal peer username to be rejected before any I/O")
	}
}

func TestRejectSendsRefusal(t *testing.T) {
	h := newHarness(t, "alice", genKey(t), nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		req, err := h.fakeServer.Channel().Receive()
		if err != nil {
			t.Errorf("receive: %v", err)
			return
		}
		if len(req) == 0 || req[0] != constants.MsgRefuseTalk || string(req[1:]) != "bob" {
			t.Errorf("unexpected refusal frame: %v", req)
		}
	}()

	if err := h.ctl.Reject(threadbridge.Request{PeerUsername: "bob"}); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	<-done
}

func TestEndTalkResetsStateAndZeroizesPeer(t *testing.T) {
	h := newHarness(t, "alice", genKey(t), nil)
	peer, err := session.NewTunneled("bob", session.RoleInitiator, sessionKey(9), 0)
	if err != nil {
		t.Fatalf("NewTunneled: %v", err)
	}
	h.ctl.setPeer(peer)
	h.bridge.SetState(threadbridge.StateYes)

	done := make(chan struct{})
	go func() {
		defer close(done)
		req, err := h.fakeServer.Channel().Receive()
		if err != nil {
			t.Errorf("receive: %v", err)
			return
		}
		if len(req) == 0 || req[0] != constants.MsgEndTalk {
			t.Errorf("unexpected frame: %v", req)
			return
		}
		_ = h.fakeServer.Channel().Send([]byte{constants.MsgServerEndTalk})
	}()

	// Stands in for login.go Run's chat-relay goroutine, the bridge's sole
	// WaitForMessage caller: drain the SERVER_END_TALK sentinel and wake
	// the blocked EndTalk call.
	go func() {
		if _, ok := h.ctl.RecvLine(); !ok {
			h.ctl.notifyEndTalkAcked()
		}
	}()

	if err := h.ctl.EndTalk(); err != nil {
		t.Fatalf("EndTalk: %v", err)
	}
	<-done

	if h.bridge.GetState() != threadbridge.StateNo {
		t.Errorf("got state %v want NO", h.bridge.GetState())
	}
	if h.ctl.PeerSession() != nil {
		t.Error("expected the peer session to be cleared")
	}
}

func TestExitSendsExitAndAwaitsOK(t *testing.T) {
	h := newHarness(t, "alice", genKey(t), nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		req, err := h.fakeServer.Channel().Receive()
		if err != nil {
			t.Errorf("receive: %v", err)
			return
		}
		if len(req) == 0 || req[0] != constants.MsgExit {
			t.Errorf("unexpected frame: %v", req)
			return
		}
		_ = h.fakeServer.Channel().Send([]byte{constants.MsgServerOK})
	}()

	if err := h.ctl.Exit(); err != nil {
		t.Fatalf("Exit: %v", err)
	}
	<-done
}

// TestSendRecvLineRoundTrip exercises SendLine/RecvLine against a
// self-looping peer session: the fake server simply echoes whatever TALKING
// frame it receives back to the same client, which is enough to validate
// the encrypt-send / receive-decrypt-notify path without a second peer.
func TestSendRecvLineRoundTrip(t *testing.T) {
	h := newHarness(t, "alice", genKey(t), nil)
	peer, err := session.NewTunneled("bob", session.RoleInitiator, sessionKey(9), 0)
	if err != nil {
		t.Fatalf("NewTunneled: %v", err)
	}
	h.ctl.setPeer(peer)

	go func() {
		frame, err := h.fakeServer.Channel().Receive()
		if err != nil {
			t.Errorf("receive: %v", err)
			return
		}
		if err := h.fakeServer.Channel().Send(frame); err != nil {
			t.Errorf("echo: %v", err)
		}
	}()

	if err := h.ctl.SendLine([]byte("hello")); err != nil {
		t.Fatalf("SendLine: %v", err)
	}
	line, ok := h.ctl.RecvLine()
	if !ok {
		t.Fatal("expected RecvLine to deliver the echoed line")
	}
	if string(line) != "hello" {
		t.Errorf("got %q want %q", line, "hello")
	}
}

// fakeRendezvous is a minimal stand-in for the server's relay behavior
// between two clients named "alice" and "bob". It blindly forwards TALKING
// frames in both directions, since the server never needs to interpret
// tunneled handshake or chat bytes (section 4.4's "Tunneling"), but defers
// SERVER_OK for alice's TALK request until bob has both accepted and had a
// chance to set up its own handshake tunnel, so alice's first handshake
// message is never delivered before bob is listening for it.
func fakeRendezvous(t *testing.T, alice, bob *session.Session) {
	t.Helper()
	go func() {
		for {
			frame, err := alice.Channel().Receive()
			if err != nil {
				return
			}
			switch frame[0] {
			case constants.MsgTalk:
				notice := append([]byte{constants.MsgServerRequestToTalk}, []byte("alice")...)
				_ = bob.Channel().Send(notice)
			case constants.MsgTalking:
				_ = bob.Channel().Send(frame)
			case constants.MsgEndTalk, constants.MsgExit:
				_ = alice.Channel().Send([]byte{constants.MsgServerOK})
			}
		}
	}()
	go func() {
		for {
			frame, err := bob.Channel().Receive()
			if err != nil {
				return
			}
			switch frame[0] {
			case constants.MsgAcceptTalk:
				_ = bob.Channel().Send([]byte{constants.MsgServerOK})
				// Give bob's Accept time to install its handshake box before
				// alice's first handshake message can possibly arrive.
				time.Sleep(50 * time.Millisecond)
				_ = alice.Channel().Send([]byte{constants.MsgServerOK})
			case constants.MsgTalking:
				_ = alice.Channel().Send(frame)
			case constants.MsgEndTalk, constants.MsgExit:
				_ = bob.Channel().Send([]byte{constants.MsgServerOK})
			}
		}
	}()
}

func TestTalkAndAcceptEstablishMatchingPeerSessions(t *testing.T) {
	aliceKey := genKey(t)
	bobKey := genKey(t)

	aliceHarness := newHarness(t, "alice", aliceKey, fixedKeyFetcher{"bob": &bobKey.PublicKey})
	bobHarness := newHarness(t, "bob", bobKey, fixedKeyFetcher{"alice": &aliceKey.PublicKey})

	fakeRendezvous(t, aliceHarness.fakeServer, bobHarness.fakeServer)

	talkErr := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		talkErr <- aliceHarness.ctl.Talk(ctx, "bob")
	}()

	var req threadbridge.Request
	deadline := time.After(5 * time.Second)
	for {
		var ok bool
		req, ok = bobHarness.ctl.CheckIncoming()
		if ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("bob never saw alice's talk request")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if req.PeerUsername != "alice" {
		t.Fatalf("got request from %q want alice", req.PeerUsername)
	}

	acceptErr := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		acceptErr <- bobHarness.ctl.Accept(ctx, req)
	}()

	if err := <-talkErr; err != nil {
		t.Fatalf("Talk: %v", err)
	}
	if err := <-acceptErr; err != nil {
		t.Fatalf("Accept: %v", err)
	}

	if aliceHarness.ctl.PeerSession().PeerUsername != "bob" {
		t.Errorf("alice's peer session is not bound to bob")
	}
	if bobHarness.ctl.PeerSession().PeerUsername != "alice" {
		t.Errorf("bob's peer session is not bound to alice")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		line, ok := bobHarness.ctl.RecvLine()
		if !ok {
			t.Error("bob never received alice's chat line")
			return
		}
		if string(line) != "hi bob" {
			t.Errorf("got %q want %q", line, "hi bob")
		}
	}()
	if err := aliceHarness.ctl.SendLine([]byte("hi bob")); err != nil {
		t.Fatalf("SendLine: %v", err)
	}
	<-done
}
