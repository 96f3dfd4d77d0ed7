package protocol

import (
	"context"

	"github.com/Klingon-tech/klingnet-mesh/pkg/types"
)

// Flooding retransmits every non-duplicate, non-expired message. The
// forwarder does not know which peers have already seen a message;
// suppression relies entirely on the seen-set at each hop.
type Flooding struct {
	nodeID types.NodeID
	seen   *seenSet
	stats  statCounters
}

// NewFlooding creates a flooding protocol. The context owns the
// seen-set sweeper; cancel it at node shutdown.
func NewFlooding(ctx context.Context, nodeID types.NodeID) *Flooding {
	return &Flooding{
		nodeID: nodeID,
		seen:   newSeenSet(ctx, seenTTL, sweepInterval),
	}
}

// HandleMessage suppresses duplicates and expired messages, otherwise
// re-emits the message with hops incremented.
func (f *Flooding) HandleMessage(m *types.Message, fromPeer types.NodeID) ([]*types.Message, error) {
	f.stats.observe(m)

	if f.seen.Seen(m.ID) {
		return nil, nil // Duplicate; already flooded.
	}
	if m.Expired() {
		return nil, nil // Hop budget spent.
	}

	out := m.Forward(types.TagFlooding)
	f.stats.sent.Add(1)
	return []*types.Message{out}, nil
}

// Tag returns the flooding protocol tag.
func (f *Flooding) Tag() types.ProtocolTag {
	return types.TagFlooding
}

// Stats returns a snapshot of the protocol counters.
func (f *Flooding) Stats() Stats {
	return f.stats.snapshot()
}
