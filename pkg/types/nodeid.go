// Package types defines core primitive types for the Klingnet mesh.
package types

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// NodeIDSize is the length of a node identifier in bytes.
const NodeIDSize = 32

// NodeID is a 256-bit mesh node identifier. Equality and hashing are
// byte-wise; the canonical textual form is lowercase hex.
type NodeID [NodeIDSize]byte

// NewNodeID generates a random node ID from a cryptographically
// strong source.
func NewNodeID() NodeID {
	var id NodeID
	if _, err := rand.Read(id[:]); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(fmt.Sprintf("read random node id: %v", err))
	}
	return id
}

// NodeIDFromBytes creates a NodeID from a 32-byte slice.
func NodeIDFromBytes(b []byte) (NodeID, error) {
	if len(b) != NodeIDSize {
		return NodeID{}, fmt.Errorf("node id must be %d bytes, got %d", NodeIDSize, len(b))
	}
	var id NodeID
	copy(id[:], b)
	return id, nil
}

// HexToNodeID parses the canonical 64-character hex form.
func HexToNodeID(s string) (NodeID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return NodeID{}, fmt.Errorf("invalid node id hex: %w", err)
	}
	return NodeIDFromBytes(b)
}

// IsZero returns true if the node ID is all zeros.
func (id NodeID) IsZero() bool {
	return id == NodeID{}
}

// Bytes returns a copy of the node ID as a byte slice.
func (id NodeID) Bytes() []byte {
	b := make([]byte, NodeIDSize)
	copy(b, id[:])
	return b
}

// String returns the hex-encoded node ID.
func (id NodeID) String() string {
	return hex.EncodeToString(id[:])
}

// Short returns the 16-character hex prefix used in logs.
func (id NodeID) Short() string {
	return id.String()[:16]
}

// MarshalJSON encodes the node ID as a hex string.
func (id NodeID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON decodes a hex string into a node ID.
func (id *NodeID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*id = NodeID{}
		return nil
	}
	decoded, err := HexToNodeID(s)
	if err != nil {
		return err
	}
	*id = decoded
	return nil
}

// NewMessageID draws a uniformly random 64-bit message identifier,
// the mesh-wide deduplication key.
func NewMessageID() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("read random message id: %v", err))
	}
	return binary.BigEndian.Uint64(b[:])
}
