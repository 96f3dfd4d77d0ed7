package node

import (
	"encoding/hex"
	"time"

	"github.com/Klingon-tech/klingnet-mesh/pkg/crypto"
	"github.com/Klingon-tech/klingnet-mesh/pkg/mesherr"
	"github.com/Klingon-tech/klingnet-mesh/pkg/types"
)

// heartbeatPayload marks a liveness announcement.
var heartbeatPayload = []byte("heartbeat")

// heartbeatLoop broadcasts a signed liveness message every configured
// interval. Receipt refreshes the sender's last-seen timestamp.
func (c *core) heartbeatLoop() {
	interval := time.Duration(c.cfg.Mesh.HeartbeatInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if !c.running.Load() {
				return
			}
			c.sendHeartbeat()
		}
	}
}

func (c *core) sendHeartbeat() {
	m := types.NewBroadcast(c.nodeID, heartbeatPayload)
	m.Kind = types.KindControl
	c.signMessage(m)

	if err := c.transport.BroadcastMessage(m); err != nil {
		c.logger.Debug().Err(err).Msg("Heartbeat broadcast incomplete")
	}
}

// signMessage attaches an Ed25519 signature over the BLAKE3 digest of
// the message's transit-immutable fields.
func (c *core) signMessage(m *types.Message) {
	digest := crypto.Hash(m.SigningBytes())
	m.Signature = c.signer.Sign(digest[:])
}

// verifyPeerSignature checks a message signature against the public
// key the peer announced in its discovery metadata. Peers without a
// known key are accepted unverified.
func verifyPeerSignature(p *types.Peer, m *types.Message) error {
	pkHex, ok := p.Metadata["pubkey"]
	if !ok {
		return nil
	}
	pk, err := hex.DecodeString(pkHex)
	if err != nil {
		return mesherr.Wrap(mesherr.KindCrypto, err, "peer pubkey")
	}
	digest := crypto.Hash(m.SigningBytes())
	if err := crypto.Verify(pk, digest[:], m.Signature); err != nil {
		return mesherr.ErrAuthenticationFailed
	}
	return nil
}

// VerifyMessage checks a message signature against an explicit public
// key. Exposed for user handlers that track peer keys themselves.
func VerifyMessage(publicKey []byte, m *types.Message) error {
	digest := crypto.Hash(m.SigningBytes())
	return crypto.Verify(publicKey, digest[:], m.Signature)
}
