package node

import (
	"github.com/Klingon-tech/klingnet-mesh/pkg/mesherr"
	"github.com/Klingon-tech/klingnet-mesh/pkg/types"
)

// dispatchLoop pulls inbound messages from the transport, resolves
// their source peer, and feeds them through the handling pipeline.
// A message from an endpoint not in the peer table is attributed to
// its origin when that origin is tabled; otherwise it is dropped and
// counted rather than attributed to a synthetic peer.
func (c *core) dispatchLoop() {
	for c.running.Load() {
		in, ok := c.transport.Receive()
		if !ok {
			return // Transport closed.
		}

		// Dialed streams resolve by endpoint; accepted streams carry
		// the sender's ephemeral port, so fall back to the message's
		// origin when that origin is already tabled. Anything else is
		// dropped and counted, never attributed to a synthetic peer.
		fromPeer, ok := c.peerByEndpoint(in.Addr.String())
		if !ok {
			if _, tabled := c.tabledPeer(in.Message.From); tabled {
				fromPeer = in.Message.From
			} else {
				c.stats.UnknownSource.Add(1)
				c.logger.Debug().
					Str("addr", in.Addr.String()).
					Uint64("msg_id", in.Message.ID).
					Msg("Dropping message from unknown endpoint")
				continue
			}
		}

		c.handleMessage(in.Message, fromPeer)
	}
}

// handleMessage routes one inbound message: protocol engine first,
// then outbound consequences, then user handlers. Protocol failures
// drop the message for that protocol but still reach user handlers.
func (c *core) handleMessage(m *types.Message, fromPeer types.NodeID) {
	c.touchPeer(m, fromPeer)

	// Direct messages carry no dissemination protocol; everything
	// else goes through the registry keyed by the message's own tag.
	if m.ProtocolTag != types.TagDirect {
		outputs, err := c.registry.HandleMessage(m, fromPeer)
		if err != nil {
			c.logger.Warn().
				Uint64("msg_id", m.ID).
				Str("tag", string(m.ProtocolTag)).
				Err(err).
				Msg("Protocol handler failed")
		}
		for _, out := range outputs {
			c.ship(out)
		}
	}

	deliver := c.openForDelivery(m)

	c.handlersMu.RLock()
	handlers := make([]MessageHandler, len(c.handlers))
	copy(handlers, c.handlers)
	c.handlersMu.RUnlock()

	for _, h := range handlers {
		if err := h(deliver, fromPeer); err != nil {
			c.logger.Error().Uint64("msg_id", m.ID).Err(err).Msg("Message handler failed")
		}
	}
}

// ship sends one protocol output: to its destination when addressed,
// otherwise to every connected peer.
func (c *core) ship(m *types.Message) {
	var err error
	if m.To != nil {
		err = c.transport.SendMessage(m, *m.To)
	} else {
		err = c.transport.BroadcastMessage(m)
	}
	if err != nil {
		c.logger.Debug().Uint64("msg_id", m.ID).Err(err).Msg("Forward failed")
	}
}

// openForDelivery unseals an encrypted payload for user handlers when
// a cipher is configured. The sealed message is delivered unchanged
// when unsealing is not possible.
func (c *core) openForDelivery(m *types.Message) *types.Message {
	if m.Kind != types.KindEncrypted || c.cipher == nil {
		return m
	}
	plain, err := c.cipher.Decrypt(m.Payload, []byte(m.From.String()))
	if err != nil {
		c.logger.Warn().Uint64("msg_id", m.ID).Err(err).Msg("Payload unseal failed")
		return m
	}
	out := m.Clone()
	out.Kind = types.KindData
	out.Payload = plain
	return out
}

// SendMessage ships a locally-originated message: to its destination
// when addressed, otherwise as a broadcast. Messages from this node
// are signed before they leave.
func (n *Node) SendMessage(m *types.Message) error {
	if err := m.Validate(); err != nil {
		return mesherr.Wrap(mesherr.KindInvalidParameter, err, "send message")
	}
	if m.From == n.nodeID && m.Signature == nil {
		n.signMessage(m)
	}

	if m.To != nil {
		return n.transport.SendMessage(m, *m.To)
	}
	return n.transport.BroadcastMessage(m)
}

// SendEncrypted seals a payload with the mesh cipher and ships it as
// an encrypted unicast (or broadcast when to is nil).
func (n *Node) SendEncrypted(to *types.NodeID, payload []byte) error {
	if n.cipher == nil {
		return mesherr.InvalidParameter("encryption not enabled")
	}
	sealed, err := n.cipher.Encrypt(payload, []byte(n.nodeID.String()))
	if err != nil {
		return err
	}

	m := types.NewMessage(n.nodeID, sealed)
	m.Kind = types.KindEncrypted
	if to != nil {
		dst := *to
		m.To = &dst
	}
	return n.SendMessage(m)
}
