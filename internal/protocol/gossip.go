package protocol

import (
	"context"

	"github.com/Klingon-tech/klingnet-mesh/pkg/types"
)

// Gossip defaults.
const (
	DefaultFanout = 3
	DefaultRounds = 3
)

// PeerSelector picks up to n connected peers for a gossip round,
// excluding the given peer. The node wires this to its peer table.
type PeerSelector func(n int, exclude types.NodeID) []types.NodeID

// Gossip retransmits every non-duplicate message to a bounded random
// fanout of the connected peers over a small number of rounds.
// Duplicate suppression is identical to flooding.
type Gossip struct {
	nodeID   types.NodeID
	fanout   int
	rounds   int
	selector PeerSelector
	seen     *seenSet
	stats    statCounters
}

// NewGossip creates a gossip protocol with the default fanout and
// rounds. The context owns the seen-set sweeper.
func NewGossip(ctx context.Context, nodeID types.NodeID) *Gossip {
	return &Gossip{
		nodeID: nodeID,
		fanout: DefaultFanout,
		rounds: DefaultRounds,
		seen:   newSeenSet(ctx, seenTTL, sweepInterval),
	}
}

// WithFanout sets the number of peers targeted per round.
func (g *Gossip) WithFanout(fanout int) *Gossip {
	if fanout > 0 {
		g.fanout = fanout
	}
	return g
}

// WithRounds sets the number of selection rounds per message.
func (g *Gossip) WithRounds(rounds int) *Gossip {
	if rounds > 0 {
		g.rounds = rounds
	}
	return g
}

// WithPeerSelector wires the random peer selection. Without a
// selector, gossip degrades to a single broadcast emission.
func (g *Gossip) WithPeerSelector(sel PeerSelector) *Gossip {
	g.selector = sel
	return g
}

// Fanout returns the configured fanout.
func (g *Gossip) Fanout() int { return g.fanout }

// Rounds returns the configured rounds.
func (g *Gossip) Rounds() int { return g.rounds }

// HandleMessage suppresses duplicates and expired messages, then
// emits one unicast clone per selected peer: a fresh random selection
// of up to fanout peers each round, targets deduplicated across
// rounds. Without a selector a single broadcast clone is emitted.
func (g *Gossip) HandleMessage(m *types.Message, fromPeer types.NodeID) ([]*types.Message, error) {
	g.stats.observe(m)

	if g.seen.Seen(m.ID) {
		return nil, nil
	}
	if m.Expired() {
		return nil, nil
	}

	if g.selector == nil {
		out := m.Forward(types.TagGossip)
		g.stats.sent.Add(1)
		return []*types.Message{out}, nil
	}

	targets := make(map[types.NodeID]struct{})
	for round := 0; round < g.rounds; round++ {
		for _, id := range g.selector(g.fanout, fromPeer) {
			if id == g.nodeID || id == fromPeer {
				continue
			}
			targets[id] = struct{}{}
		}
	}

	out := make([]*types.Message, 0, len(targets))
	for id := range targets {
		fwd := m.Forward(types.TagGossip)
		to := id
		fwd.To = &to
		out = append(out, fwd)
	}
	g.stats.sent.Add(uint64(len(out)))
	return out, nil
}

// Tag returns the gossip protocol tag.
func (g *Gossip) Tag() types.ProtocolTag {
	return types.TagGossip
}

// Stats returns a snapshot of the protocol counters.
func (g *Gossip) Stats() Stats {
	return g.stats.snapshot()
}
