package node

import (
	"time"

	"github.com/Klingon-tech/klingnet-mesh/internal/peerstore"
)

// persistLoop saves the peer table on a fixed cadence and prunes
// stale records.
func (c *core) persistLoop() {
	ticker := time.NewTicker(peerstore.PersistInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.persistPeers()
			c.store.PruneStale(peerstore.StaleThreshold)
		}
	}
}

// persistPeers writes a snapshot of the peer table. Best-effort;
// individual save errors are logged and skipped.
func (c *core) persistPeers() {
	c.mu.RLock()
	records := make([]peerstore.Record, 0, len(c.peers))
	for _, p := range c.peers {
		source := "connect"
		if s, ok := p.Metadata["source"]; ok {
			source = s
		}
		records = append(records, peerstore.RecordFromPeer(p, source))
	}
	c.mu.RUnlock()

	for _, rec := range records {
		if err := c.store.Save(rec); err != nil {
			c.logger.Debug().Str("peer", rec.ID).Err(err).Msg("Persist peer failed")
		}
	}
}

// reconnectPersistedPeers prunes the store, then re-dials every
// surviving record. Best-effort; the mesh heals through discovery
// and heartbeats either way.
func (c *core) reconnectPersistedPeers() {
	c.store.PruneStale(peerstore.StaleThreshold)

	records, err := c.store.LoadAll()
	if err != nil {
		c.logger.Warn().Err(err).Msg("Load persisted peers failed")
		return
	}

	reconnected := 0
	for _, rec := range records {
		peer, err := rec.Peer()
		if err != nil || peer.ID == c.nodeID || len(peer.Addresses) == 0 {
			continue
		}
		if c.transport.PeerCount() >= c.cfg.Mesh.MaxPeers {
			break
		}
		if err := c.transport.ConnectToPeer(peer); err != nil {
			continue
		}
		peer.Connected = true
		c.mu.Lock()
		c.peers[peer.ID] = peer
		c.mu.Unlock()
		if c.consensus != nil {
			c.consensus.AddPeer(peer)
		}
		reconnected++
	}

	if reconnected > 0 {
		c.logger.Info().Int("peers", reconnected).Msg("Reconnected persisted peers")
	}
}
