package talksession

import (
	"bufio"
	"context"
	"crypto/rsa"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sts-chat/go-client/internal/constants"
	"github.com/sts-chat/go-client/pkg/certstore"
	"github.com/sts-chat/go-client/pkg/crypto"
	"github.com/sts-chat/go-client/pkg/handshake"
	"github.com/sts-chat/go-client/pkg/keystore"
	"github.com/sts-chat/go-client/pkg/metrics"
	"github.com/sts-chat/go-client/pkg/networkreader"
	"github.com/sts-chat/go-client/pkg/session"
	"github.com/sts-chat/go-client/pkg/threadbridge"
)

// LoginConfig groups everything Login needs to authenticate conn as the
// server session and hand back a running Controller (section 4.2, the
// client↔server run of HSE; section 4.4, "established at login").
type LoginConfig struct {
	Username   string
	PrivateKey *rsa.PrivateKey

	// ServerUsername is the server's well-known username (section 3: "The
	// server holds a certified signing keypair under a well-known
	// username"), the identity the CA certificate presented in M2 must
	// carry as its Subject Common Name.
	ServerUsername string
	CertStore      *certstore.Store

	MaxFrameSize int
	Logger       *metrics.Logger
	Metrics      *metrics.Collector
}

// Login runs the client↔server STS handshake over conn, playing the
// initiator role, and on success starts the Network Reader Loop in a new
// goroutine and returns a Controller ready to serve commands (section 4.4,
// 4.5).
func Login(ctx context.Context, conn io.ReadWriter, cfg LoginConfig) (*Controller, error) {
	maxFrame := cfg.MaxFrameSize
	if maxFrame <= 0 {
		maxFrame = constants.DefaultMaxFrameSize
	}

	result, err := handshake.RunInitiator(ctx, conn, handshake.InitiatorConfig{
		LocalUsername:        cfg.Username,
		LocalPrivateKey:      cfg.PrivateKey,
		ExpectedPeerUsername: cfg.ServerUsername,
		Verifier:             cfg.CertStore,
	})
	if err != nil {
		return nil, err
	}

	serverSession, err := session.New(result.PeerUsername, session.RoleInitiator, conn, result.Key, maxFrame)
	crypto.Zeroize(result.Key)
	if err != nil {
		return nil, err
	}

	bridge := threadbridge.New()
	replies := networkreader.NewReplyBox()
	peerKeys := keystore.NewServerKeyFetcher(serverSession, replies, 0)
	ctl := New(Config{
		LocalUsername:   cfg.Username,
		LocalPrivateKey: cfg.PrivateKey,
		ServerSession:   serverSession,
		Bridge:          bridge,
		Replies:         replies,
		PeerKeys:        peerKeys,
		MaxFrameSize:    maxFrame,
		Logger:          cfg.Logger,
		Metrics:         cfg.Metrics,
	})

	go func() {
		_ = networkreader.Run(networkreader.Config{
			ServerSession:  serverSession,
			Bridge:         bridge,
			Replies:        replies,
			PeerSessions:   ctl,
			HandshakeSinks: ctl,
			SessionEnder:   ctl,
			Logger:         cfg.Logger,
			Metrics:        cfg.Metrics,
		})
	}()

	if cfg.Metrics != nil {
		cfg.Metrics.SessionStarted()
	}
	if cfg.Logger != nil {
		cfg.Logger.Info("logged in", metrics.Fields{"user": cfg.Username, "server": result.PeerUsername})
	}
	return ctl, nil
}

// Run drives the interactive command loop of section 4.4's command table
// (show, talk, exit, a chat line, :q) reading from in and writing prompts
// and incoming chat/request text to out, until in is exhausted, the context
// is cancelled, or the user exits. It is the main-thread loop TSC owns; NRL
// keeps running concurrently in its own goroutine (started by Login).
func (c *Controller) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	// This goroutine is the only caller of Bridge.WaitForMessage (via
	// RecvLine) for the life of Run: a nil/ok=false result means either the
	// server's SERVER_END_TALK sentinel or a ForceRelease landed in the
	// inbox. It wakes any blocked EndTalk call via notifyEndTalkAcked and,
	// unless the bridge was force-released, keeps looping so a later talk's
	// messages still reach the UI.
	peerLines := make(chan []byte)
	go func() {
		defer close(peerLines)
		for {
			line, ok := c.RecvLine()
			if !ok {
				c.notifyEndTalkAcked()
				select {
				case peerLines <- nil:
				case <-ctx.Done():
					return
				}
				if c.cfg.Bridge.Released() {
					return
				}
				continue
			}
			select {
			case peerLines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	requests := make(chan threadbridge.Request)
	go func() {
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if req, ok := c.CheckIncoming(); ok {
					select {
					case requests <- req:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	var pendingRequest *threadbridge.Request
	fmt.Fprint(out, "> ")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case line, ok := <-lines:
			if !ok {
				return c.Exit()
			}
			if pendingRequest != nil {
				req := *pendingRequest
				pendingRequest = nil
				if strings.EqualFold(strings.TrimSpace(line), "y") {
					if err := c.Accept(ctx, req); err != nil {
						fmt.Fprintf(out, "accept failed: %v\n", err)
					} else {
						fmt.Fprintf(out, "talking with %s\n", req.PeerUsername)
					}
				} else {
					if err := c.Reject(req); err != nil {
						fmt.Fprintf(out, "reject failed: %v\n", err)
					}
				}
				fmt.Fprint(out, "> ")
				continue
			}
			if err := c.runCommand(ctx, line, out); err != nil {
				if err == errExit {
					return nil
				}
				fmt.Fprintf(out, "error: %v\n", err)
			}
			fmt.Fprint(out, "> ")

		case msg, ok := <-peerLines:
			if !ok || msg == nil {
				fmt.Fprintln(out, "talk ended")
				fmt.Fprint(out, "> ")
				continue
			}
			fmt.Fprintf(out, "%s\n> ", msg)

		case req := <-requests:
			pendingRequest = &req
			fmt.Fprintf(out, "\nincoming talk request from %s, accept? [y/n] ", req.PeerUsername)
		}
	}
}

var errExit = fmt.Errorf("talksession: exit requested")

// runCommand dispatches one line of user input per section 4.4's command
// table. A line beginning with ":q" ends the current talk; "exit" logs out
// and ends Run; "talk <peer>" and "show" are control requests; anything
// else, while talking, is chat payload.
func (c *Controller) runCommand(ctx context.Context, line string, out io.Writer) error {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return nil

	case trimmed == "exit":
		if err := c.Exit(); err != nil {
			return err
		}
		return errExit

	case trimmed == ":q":
		return c.EndTalk()

	case trimmed == "show":
		payload, err := c.Show()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(payload))
		return nil

	case strings.HasPrefix(trimmed, "talk "):
		peer := strings.TrimSpace(strings.TrimPrefix(trimmed, "talk "))
		return c.Talk(ctx, peer)

	default:
		return c.SendLine([]byte(line))
	}
}
