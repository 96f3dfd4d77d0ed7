package types

import (
	"time"
)

// PeerAliveWindow is how recently a peer must have been seen to count
// as alive.
const PeerAliveWindow = 300 * time.Second

// Peer describes a known mesh participant. Peers are created by
// discovery or an explicit connect, refreshed by heartbeats, and
// removed explicitly or on unrecoverable transport failure.
type Peer struct {
	ID        NodeID            `json:"id"`
	Addresses []string          `json:"addresses"` // ip:port endpoints, preferred first
	LastSeen  uint64            `json:"last_seen"` // unix seconds
	Connected bool              `json:"connected"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewPeer creates a peer with a single endpoint, seen now.
func NewPeer(id NodeID, address string) *Peer {
	return &Peer{
		ID:        id,
		Addresses: []string{address},
		LastSeen:  uint64(time.Now().Unix()),
		Metadata:  make(map[string]string),
	}
}

// Touch refreshes the peer's last-seen timestamp.
func (p *Peer) Touch() {
	p.LastSeen = uint64(time.Now().Unix())
}

// IsAlive reports whether the peer was seen within the alive window.
func (p *Peer) IsAlive() bool {
	now := uint64(time.Now().Unix())
	if now < p.LastSeen {
		return true
	}
	return now-p.LastSeen < uint64(PeerAliveWindow/time.Second)
}

// Clone returns a deep copy of the peer.
func (p *Peer) Clone() *Peer {
	out := *p
	out.Addresses = append([]string(nil), p.Addresses...)
	if p.Metadata != nil {
		out.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
