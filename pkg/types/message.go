package types

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"
)

// MessageKind classifies a mesh message.
type MessageKind string

const (
	KindData      MessageKind = "data"
	KindControl   MessageKind = "control"
	KindDiscovery MessageKind = "discovery"
	KindEncrypted MessageKind = "encrypted"
	KindBroadcast MessageKind = "broadcast"
	KindUnicast   MessageKind = "unicast"
	KindMulticast MessageKind = "multicast"
)

// Valid reports whether the kind is one of the defined values.
func (k MessageKind) Valid() bool {
	switch k {
	case KindData, KindControl, KindDiscovery, KindEncrypted,
		KindBroadcast, KindUnicast, KindMulticast:
		return true
	}
	return false
}

// ProtocolTag selects the dissemination protocol that handles a message.
type ProtocolTag string

const (
	TagFlooding  ProtocolTag = "flooding"
	TagGossip    ProtocolTag = "gossip"
	TagConsensus ProtocolTag = "consensus"
	TagDirect    ProtocolTag = "direct"
)

// Valid reports whether the tag is one of the defined values.
func (t ProtocolTag) Valid() bool {
	switch t {
	case TagFlooding, TagGossip, TagConsensus, TagDirect:
		return true
	}
	return false
}

// ParseProtocolTag converts a CLI/config string into a ProtocolTag.
func ParseProtocolTag(s string) (ProtocolTag, error) {
	t := ProtocolTag(s)
	if !t.Valid() {
		return "", fmt.Errorf("invalid protocol %q (want flooding, gossip, consensus, or direct)", s)
	}
	return t, nil
}

// DefaultTTL is the hop budget assigned to messages at origin.
const DefaultTTL = 64

// Message is a mesh message. The id is set exactly once at origin and
// is the mesh-wide deduplication key; from is never rewritten by
// forwarders; hops is incremented on each forward and the message is
// expired once hops reaches ttl.
type Message struct {
	ID          uint64      `json:"id"`
	Kind        MessageKind `json:"kind"`
	ProtocolTag ProtocolTag `json:"protocol_tag"`
	From        NodeID      `json:"from"`
	To          *NodeID     `json:"to,omitempty"`
	Payload     []byte      `json:"payload"`
	Timestamp   uint64      `json:"timestamp"`
	TTL         uint32      `json:"ttl"`
	Hops        uint32      `json:"hops"`
	Signature   []byte      `json:"signature,omitempty"`
}

// NewMessage creates a direct data message from the given origin.
func NewMessage(from NodeID, payload []byte) *Message {
	return &Message{
		ID:          NewMessageID(),
		Kind:        KindData,
		ProtocolTag: TagDirect,
		From:        from,
		Payload:     payload,
		Timestamp:   uint64(time.Now().Unix()),
		TTL:         DefaultTTL,
	}
}

// NewBroadcast creates a broadcast message from the given origin.
func NewBroadcast(from NodeID, payload []byte) *Message {
	m := NewMessage(from, payload)
	m.Kind = KindBroadcast
	return m
}

// NewUnicast creates a unicast message addressed to a single peer.
func NewUnicast(from, to NodeID, payload []byte) *Message {
	m := NewMessage(from, payload)
	m.Kind = KindUnicast
	m.To = &to
	return m
}

// Expired reports whether the message's hop budget is spent.
// Expired messages must never be retransmitted.
func (m *Message) Expired() bool {
	return m.Hops >= m.TTL
}

// Validate rejects malformed messages. A missing destination together
// with a unicast or multicast kind is malformed.
func (m *Message) Validate() error {
	if !m.Kind.Valid() {
		return fmt.Errorf("invalid message kind %q", m.Kind)
	}
	if !m.ProtocolTag.Valid() {
		return fmt.Errorf("invalid protocol tag %q", m.ProtocolTag)
	}
	if m.To == nil && (m.Kind == KindUnicast || m.Kind == KindMulticast) {
		return fmt.Errorf("%s message without destination", m.Kind)
	}
	return nil
}

// Forward returns a copy with hops incremented and the protocol tag
// set, leaving id, from, and payload untouched.
func (m *Message) Forward(tag ProtocolTag) *Message {
	out := m.Clone()
	out.Hops++
	out.ProtocolTag = tag
	return out
}

// SigningBytes returns the canonical byte string covered by the
// message signature: the fields immutable in transit. Hops, ttl, and
// the protocol tag are excluded so forwarding preserves signature
// validity.
func (m *Message) SigningBytes() []byte {
	buf := make([]byte, 0, 8+len(m.Kind)+2*NodeIDSize+len(m.Payload)+8)
	var id [8]byte
	binary.BigEndian.PutUint64(id[:], m.ID)
	buf = append(buf, id[:]...)
	buf = append(buf, m.Kind...)
	buf = append(buf, m.From[:]...)
	if m.To != nil {
		buf = append(buf, m.To[:]...)
	}
	buf = append(buf, m.Payload...)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], m.Timestamp)
	buf = append(buf, ts[:]...)
	return buf
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	out := *m
	if m.To != nil {
		to := *m.To
		out.To = &to
	}
	if m.Payload != nil {
		out.Payload = append([]byte(nil), m.Payload...)
	}
	if m.Signature != nil {
		out.Signature = append([]byte(nil), m.Signature...)
	}
	return &out
}

// Equal reports deep equality of two messages.
func (m *Message) Equal(o *Message) bool {
	a, err := json.Marshal(m)
	if err != nil {
		return false
	}
	b, err := json.Marshal(o)
	if err != nil {
		return false
	}
	return string(a) == string(b)
}
