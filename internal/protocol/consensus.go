package protocol

import (
	"sync"
	"time"

	"github.com/Klingon-tech/klingnet-mesh/pkg/mesherr"
	"github.com/Klingon-tech/klingnet-mesh/pkg/types"
)

// DefaultProposalTimeout is how long a proposal may stay pending
// before it is rejected by timeout.
const DefaultProposalTimeout = 30 * time.Second

// Decision is the outcome of a consensus check.
type Decision int

const (
	Pending Decision = iota
	Approved
	Rejected
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case Approved:
		return "approved"
	case Rejected:
		return "rejected"
	default:
		return "pending"
	}
}

// Proposal is one in-flight consensus round.
type Proposal struct {
	ID       uint64
	Proposer types.NodeID
	Value    []byte
	Votes    map[types.NodeID]bool
	Started  time.Time
	Timeout  time.Duration
}

// Consensus is a lightweight quorum vote over the known peers. As a
// mesh protocol it currently answers any inbound message with a
// unicast ACK; the propose/vote bookkeeping drives the actual quorum
// decisions.
type Consensus struct {
	nodeID  types.NodeID
	timeout time.Duration

	mu        sync.RWMutex
	peers     map[types.NodeID]*types.Peer
	proposals map[uint64]*Proposal

	stats statCounters
}

// NewConsensus creates a consensus protocol.
func NewConsensus(nodeID types.NodeID) *Consensus {
	return &Consensus{
		nodeID:    nodeID,
		timeout:   DefaultProposalTimeout,
		peers:     make(map[types.NodeID]*types.Peer),
		proposals: make(map[uint64]*Proposal),
	}
}

// WithProposalTimeout overrides the proposal timeout.
func (c *Consensus) WithProposalTimeout(d time.Duration) *Consensus {
	if d > 0 {
		c.timeout = d
	}
	return c
}

// AddPeer registers a voting participant.
func (c *Consensus) AddPeer(p *types.Peer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peers[p.ID] = p.Clone()
}

// RemovePeer deregisters a participant.
func (c *Consensus) RemovePeer(id types.NodeID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.peers, id)
}

// quorum returns the majority threshold for the current membership:
// floor(N/2)+1 over peers plus self. Callers hold at least a read lock.
func (c *Consensus) quorum() (total, quorum int) {
	total = len(c.peers) + 1
	return total, total/2 + 1
}

// Propose inserts a proposal and records the proposer's own approval.
func (c *Consensus) Propose(id uint64, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.proposals[id]; exists {
		return mesherr.Protocol("proposal %d already exists", id)
	}
	c.proposals[id] = &Proposal{
		ID:       id,
		Proposer: c.nodeID,
		Value:    append([]byte(nil), value...),
		Votes:    map[types.NodeID]bool{c.nodeID: true},
		Started:  time.Now(),
		Timeout:  c.timeout,
	}
	return nil
}

// Vote records a participant's vote on a proposal. Re-voting
// overwrites the previous vote.
func (c *Consensus) Vote(id uint64, voter types.NodeID, approve bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.proposals[id]
	if !ok {
		return mesherr.Protocol("unknown proposal %d", id)
	}
	p.Votes[voter] = approve
	c.stats.processed.Add(1)
	return nil
}

// CheckConsensus evaluates a proposal. Rules, in order: approvals at
// or above quorum approve; rejections beyond the achievable quorum
// reject; an elapsed timeout rejects; otherwise the proposal is
// pending. Unknown proposals are pending.
func (c *Consensus) CheckConsensus(id uint64) Decision {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.proposals[id]
	if !ok {
		return Pending
	}

	total, quorum := c.quorum()
	approvals := 0
	for _, v := range p.Votes {
		if v {
			approvals++
		}
	}

	if approvals >= quorum {
		return Approved
	}
	if rejections := len(p.Votes) - approvals; rejections > total-quorum {
		return Rejected
	}
	if time.Since(p.Started) > p.Timeout {
		return Rejected
	}
	return Pending
}

// GetProposal returns a copy of a proposal's current state.
func (c *Consensus) GetProposal(id uint64) (*Proposal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.proposals[id]
	if !ok {
		return nil, false
	}
	out := &Proposal{
		ID:       p.ID,
		Proposer: p.Proposer,
		Value:    append([]byte(nil), p.Value...),
		Votes:    make(map[types.NodeID]bool, len(p.Votes)),
		Started:  p.Started,
		Timeout:  p.Timeout,
	}
	for k, v := range p.Votes {
		out.Votes[k] = v
	}
	return out, true
}

// HandleMessage acknowledges any inbound message with a unicast ACK
// to the sender. A fuller wire exchange of proposals and votes is
// intentionally not defined here.
func (c *Consensus) HandleMessage(m *types.Message, fromPeer types.NodeID) ([]*types.Message, error) {
	c.stats.observe(m)

	ack := types.NewUnicast(c.nodeID, fromPeer, []byte("ACK"))
	ack.ProtocolTag = types.TagConsensus
	c.stats.sent.Add(1)
	return []*types.Message{ack}, nil
}

// Tag returns the consensus protocol tag.
func (c *Consensus) Tag() types.ProtocolTag {
	return types.TagConsensus
}

// Stats returns a snapshot of the protocol counters.
func (c *Consensus) Stats() Stats {
	return c.stats.snapshot()
}
