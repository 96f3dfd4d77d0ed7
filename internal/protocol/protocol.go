// Package protocol implements the pluggable dissemination protocols:
// flooding, gossip, and a lightweight voting consensus, plus the
// registry that routes messages to them by protocol tag.
package protocol

import (
	"sync"
	"sync/atomic"

	"github.com/Klingon-tech/klingnet-mesh/pkg/mesherr"
	"github.com/Klingon-tech/klingnet-mesh/pkg/types"
)

// MeshProtocol is the contract every dissemination protocol
// implements. HandleMessage consumes one inbound message and returns
// the outbound consequences; the node ships each returned message to
// its destination or broadcasts it.
type MeshProtocol interface {
	HandleMessage(m *types.Message, fromPeer types.NodeID) ([]*types.Message, error)
	Tag() types.ProtocolTag
	Stats() Stats
}

// Stats is a snapshot of one protocol's counters.
type Stats struct {
	MessagesProcessed uint64 `json:"messages_processed"`
	MessagesSent      uint64 `json:"messages_sent"`
	BytesProcessed    uint64 `json:"bytes_processed"`
	Errors            uint64 `json:"errors"`
}

// statCounters is the live form of Stats.
type statCounters struct {
	processed atomic.Uint64
	sent      atomic.Uint64
	bytes     atomic.Uint64
	errors    atomic.Uint64
}

func (c *statCounters) observe(m *types.Message) {
	c.processed.Add(1)
	c.bytes.Add(uint64(len(m.Payload)))
}

func (c *statCounters) snapshot() Stats {
	return Stats{
		MessagesProcessed: c.processed.Load(),
		MessagesSent:      c.sent.Load(),
		BytesProcessed:    c.bytes.Load(),
		Errors:            c.errors.Load(),
	}
}

// Registry routes messages to registered protocols. The message's own
// protocol tag is authoritative for dispatch.
type Registry struct {
	mu        sync.RWMutex
	protocols map[types.ProtocolTag]MeshProtocol
}

// NewRegistry creates an empty protocol registry.
func NewRegistry() *Registry {
	return &Registry{protocols: make(map[types.ProtocolTag]MeshProtocol)}
}

// Register installs a protocol under its own tag, replacing any
// previous registration.
func (r *Registry) Register(p MeshProtocol) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.protocols[p.Tag()] = p
}

// Get returns the protocol registered for the tag, or nil.
func (r *Registry) Get(tag types.ProtocolTag) MeshProtocol {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.protocols[tag]
}

// Tags returns the registered protocol tags.
func (r *Registry) Tags() []types.ProtocolTag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.ProtocolTag, 0, len(r.protocols))
	for tag := range r.protocols {
		out = append(out, tag)
	}
	return out
}

// HandleMessage dispatches the message to the protocol matching its
// tag. An unregistered tag is a protocol error.
func (r *Registry) HandleMessage(m *types.Message, fromPeer types.NodeID) ([]*types.Message, error) {
	p := r.Get(m.ProtocolTag)
	if p == nil {
		return nil, mesherr.Protocol("no protocol registered for tag %q", m.ProtocolTag)
	}
	return p.HandleMessage(m, fromPeer)
}

// StatsFor returns the stats of the protocol registered for the tag.
func (r *Registry) StatsFor(tag types.ProtocolTag) (Stats, bool) {
	p := r.Get(tag)
	if p == nil {
		return Stats{}, false
	}
	return p.Stats(), true
}
