// Package threadbridge implements the synchronization object that mediates
// between the network-reader thread (NRL) and the main thread (TSC):
// handing off incoming peer-message bytes and incoming talk requests, and
// tracking the shared talk-state (section 4.3).
//
// Grounded on the atomic-state-plus-mutex idiom of
// pzverkov-Quantum-Go's pkg/tunnel/session.go (atomic.Int32 state field
// guarded by a dedicated accessor) and the producer/consumer handoff shape
// of its pkg/tunnel/transport.go Send/Receive pair, adapted from a single
// shared session object into a two-thread mailbox as section 9's design
// note directs: "in a task-oriented implementation it maps to a bounded
// (capacity 1) channel for inbox, an atomic cell for request, and an atomic
// for talk_state."
package threadbridge

import (
	"sync"
	"sync/atomic"
)

// TalkState is one of the four states a live talk can be in (section 3).
type TalkState int32

const (
	StateNo TalkState = iota
	StateYes
	StateClosing
	StateErr
)

func (s TalkState) String() string {
	switch s {
	case StateNo:
		return "NO"
	case StateYes:
		return "YES"
	case StateClosing:
		return "CLOSING"
	case StateErr:
		return "ERR"
	default:
		return "UNKNOWN"
	}
}

// Request is a peer-initiated talk request queued for the main thread.
type Request struct {
	PeerUsername string
}

// Bridge is the reader-thread/main-thread synchronization object of
// section 4.3. The zero value is not usable; use New.
type Bridge struct {
	state atomic.Int32

	inboxMu   sync.Mutex
	inboxCond *sync.Cond
	inboxFull bool
	inbox     []byte

	reqMu   sync.Mutex
	request *Request

	released atomic.Bool
}

// New returns a Bridge with talk state NO and empty slots.
func New() *Bridge {
	b := &Bridge{}
	b.inboxCond = sync.NewCond(&b.inboxMu)
	b.state.Store(int32(StateNo))
	return b
}

// GetState reads the current talk state (sequentially consistent per
// section 4.3).
func (b *Bridge) GetState() TalkState {
	return TalkState(b.state.Load())
}

// SetState stores a new talk state (sequentially consistent per section
// 4.3). The main thread (TSC) calls it for its own transitions; the reader
// thread (NRL) also calls it, to move a talk to NO on SERVER_END_TALK and to
// ERR when the server session fails.
func (b *Bridge) SetState(s TalkState) {
	b.state.Store(int32(s))
}

// NotifyMessage stores plaintext into the inbox slot, blocking until any
// prior message has been consumed, then wakes the consumer. Called by the
// reader thread.
func (b *Bridge) NotifyMessage(plaintext []byte) {
	b.inboxMu.Lock()
	defer b.inboxMu.Unlock()
	for b.inboxFull && !b.released.Load() {
		b.inboxCond.Wait()
	}
	if b.released.Load() {
		return
	}
	b.inbox = plaintext
	b.inboxFull = true
	b.inboxCond.Broadcast()
}

// WaitForMessage blocks until the inbox is non-empty, then atomically
// drains it and signals the producer. Called by the main thread. A nil
// return (with ok=false) means ForceRelease fired while waiting: the
// caller's loop should treat this as "talk ended".
func (b *Bridge) WaitForMessage() (plaintext []byte, ok bool) {
	b.inboxMu.Lock()
	defer b.inboxMu.Unlock()
	for !b.inboxFull && !b.released.Load() {
		b.inboxCond.Wait()
	}
	if b.released.Load() && !b.inboxFull {
		return nil, false
	}
	msg := b.inbox
	b.inbox = nil
	b.inboxFull = false
	b.inboxCond.Broadcast()
	if msg == nil {
		return nil, false
	}
	return msg, true
}

// CheckRequest returns the currently pending talk request, if any, without
// blocking. Called by the main thread (polling).
func (b *Bridge) CheckRequest() (Request, bool) {
	b.reqMu.Lock()
	defer b.reqMu.Unlock()
	if b.request == nil {
		return Request{}, false
	}
	req := *b.request
	b.request = nil
	return req, true
}

// AddRequestResult is the outcome of AddRequest.
type AddRequestResult int

const (
	RequestAccepted AddRequestResult = iota
	RequestRejected
)

// AddRequest queues a peer-initiated talk request if, and only if, the
// request slot is empty and the talk state is NO (section 4.3, property
// P6: at-most-one request). Called by the reader thread; never blocks.
func (b *Bridge) AddRequest(peerUsername string) AddRequestResult {
	if b.GetState() != StateNo {
		return RequestRejected
	}
	b.reqMu.Lock()
	defer b.reqMu.Unlock()
	if b.request != nil {
		return RequestRejected
	}
	b.request = &Request{PeerUsername: peerUsername}
	return RequestAccepted
}

// ForceRelease is invoked at shutdown: it sets the talk state to ERR,
// marks the bridge released, empties the inbox and request slots so any
// blocked WaitForMessage caller returns with ok=false, and wakes every
// waiter. No further operations are
// valid after ForceRelease (section 4.3).
func (b *Bridge) ForceRelease() {
	b.released.Store(true)
	b.state.Store(int32(StateErr))

	b.inboxMu.Lock()
	b.inbox = nil
	b.inboxFull = false
	b.inboxCond.Broadcast()
	b.inboxMu.Unlock()

	b.reqMu.Lock()
	b.request = nil
	b.reqMu.Unlock()
}

// Released reports whether ForceRelease has fired.
func (b *Bridge) Released() bool {
	return b.released.Load()
}
