package node

import (
	"math/rand"

	"github.com/Klingon-tech/klingnet-mesh/pkg/mesherr"
	"github.com/Klingon-tech/klingnet-mesh/pkg/types"
)

// AddPeer connects to the peer through the transport and installs it
// in the peer table. The connected-peer cap is enforced here;
// discovery-learned peers do not count until they are connected.
func (n *Node) AddPeer(peer *types.Peer) error {
	if n.transport.PeerCount() >= n.cfg.Mesh.MaxPeers {
		return mesherr.ErrResourceExhausted
	}

	if err := n.transport.ConnectToPeer(peer); err != nil {
		return err
	}

	p := peer.Clone()
	p.Connected = true
	p.Touch()

	n.mu.Lock()
	n.peers[p.ID] = p
	n.mu.Unlock()

	if n.consensus != nil {
		n.consensus.AddPeer(p)
	}
	return nil
}

// RemovePeer disconnects and removes a peer.
func (n *Node) RemovePeer(id types.NodeID) error {
	n.transport.DisconnectPeer(id)

	n.mu.Lock()
	_, known := n.peers[id]
	delete(n.peers, id)
	n.mu.Unlock()

	if n.consensus != nil {
		n.consensus.RemovePeer(id)
	}
	if !known {
		return mesherr.PeerNotFound("peer %s", id.Short())
	}
	return nil
}

// Peers returns a snapshot of the peer table.
func (n *Node) Peers() []*types.Peer {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*types.Peer, 0, len(n.peers))
	for _, p := range n.peers {
		out = append(out, p.Clone())
	}
	return out
}

// DiscoveredPeers returns the peers learned by multicast discovery.
func (n *Node) DiscoveredPeers() []*types.Peer {
	if n.disc == nil {
		return nil
	}
	return n.disc.Peers()
}

// GetPeer returns a copy of one peer table entry.
func (n *Node) GetPeer(id types.NodeID) (*types.Peer, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	p, ok := n.peers[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// tabledPeer reports whether the id is in the peer table.
func (c *core) tabledPeer(id types.NodeID) (*types.Peer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.peers[id]
	return p, ok
}

// peerByEndpoint resolves a source endpoint to a peer id.
func (c *core) peerByEndpoint(addr string) (types.NodeID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for id, p := range c.peers {
		for _, a := range p.Addresses {
			if a == addr {
				return id, true
			}
		}
	}
	return types.NodeID{}, false
}

// touchPeer refreshes the sender's last-seen timestamp. Signed
// heartbeats from peers with a known public key are verified first;
// a bad signature refuses the refresh.
func (c *core) touchPeer(m *types.Message, fromPeer types.NodeID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.peers[m.From]
	if !ok {
		if p, ok = c.peers[fromPeer]; !ok {
			return
		}
	}

	if m.Kind == types.KindControl && len(m.Signature) > 0 {
		if err := verifyPeerSignature(p, m); err != nil {
			c.logger.Warn().Str("peer", p.ID.Short()).Err(err).Msg("Heartbeat signature rejected")
			return
		}
	}
	p.Touch()
}

// selectRandomPeers picks up to n distinct connected peers, excluding
// the given peer. Wired into the gossip protocol as its fanout source.
func (c *core) selectRandomPeers(n int, exclude types.NodeID) []types.NodeID {
	c.mu.RLock()
	candidates := make([]types.NodeID, 0, len(c.peers))
	for id, p := range c.peers {
		if id == exclude || id == c.nodeID || !p.Connected {
			continue
		}
		candidates = append(candidates, id)
	}
	c.mu.RUnlock()

	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}
