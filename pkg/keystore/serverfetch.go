package keystore

import (
	"crypto/rsa"
	"time"

	"github.com/sts-chat/go-client/internal/constants"
	qerrors "github.com/sts-chat/go-client/internal/errors"
	"github.com/sts-chat/go-client/pkg/networkreader"
	"github.com/sts-chat/go-client/pkg/session"
	"github.com/sts-chat/go-client/pkg/signing"
)

// ServerKeyFetcher implements PeerKeyFetcher by asking the rendezvous
// server for a peer's certified public signing key over the already
// established server session (KeyStore::fetch_peer_pub, section 9). The
// wire mechanic for this request is not one of the core message types
// section 6 enumerates — distributing peer keys is
// named there only as an external collaborator contract — so this sends a
// dedicated control message the core dispatch loop forwards through the
// same one-slot reply path as SERVER_OK/SERVER_ERR.
type ServerKeyFetcher struct {
	session *session.Session
	replies *networkreader.ReplyBox
	timeout time.Duration
}

// NewServerKeyFetcher returns a fetcher that issues requests over
// serverSession and waits on replies for at most timeout (section 5's
// 10-second control-reply deadline if timeout is 0).
func NewServerKeyFetcher(serverSession *session.Session, replies *networkreader.ReplyBox, timeout time.Duration) *ServerKeyFetcher {
	if timeout <= 0 {
		timeout = constants.ControlReplyDeadlineSeconds * time.Second
	}
	return &ServerKeyFetcher{session: serverSession, replies: replies, timeout: timeout}
}

// FetchPeerPublicKey requests username's certified public signing key from
// the server and parses the PKIX-PEM reply.
func (f *ServerKeyFetcher) FetchPeerPublicKey(username string) (*rsa.PublicKey, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	req := append([]byte{constants.MsgFetchPeerKey}, []byte(username)...)
	if err := f.session.Channel().Send(req); err != nil {
		return nil, qerrors.NewCryptoError("keystore.FetchPeerPublicKey", err)
	}
	reply, err := f.replies.Wait(f.timeout)
	if err != nil {
		return nil, err
	}
	if !reply.OK {
		return nil, qerrors.NewProtocolError("keystore", qerrors.ErrKeyFileMissing)
	}
	return signing.ParsePublicKeyPEM(reply.Payload)
}
