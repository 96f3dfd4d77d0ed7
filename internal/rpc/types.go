package rpc

import (
	"github.com/Klingon-tech/klingnet-mesh/internal/protocol"
	"github.com/Klingon-tech/klingnet-mesh/pkg/types"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotFound       = -32000
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      interface{} `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ── Param types ─────────────────────────────────────────────────────────

// SendParam is used by mesh_send.
type SendParam struct {
	To      string `json:"to"`      // destination node id (hex)
	Message string `json:"message"` // payload text
}

// BroadcastParam is used by mesh_broadcast.
type BroadcastParam struct {
	Message string `json:"message"`
}

// ConnectParam is used by mesh_connect. NodeID is optional; when
// absent a stable ephemeral id is derived from the address.
type ConnectParam struct {
	Address string `json:"address"`
	NodeID  string `json:"node_id,omitempty"`
}

// ProposeParam is used by mesh_propose.
type ProposeParam struct {
	ProposalID uint64 `json:"proposal_id"`
	Value      string `json:"value"`
}

// VoteParam is used by mesh_vote.
type VoteParam struct {
	ProposalID uint64 `json:"proposal_id"`
	Voter      string `json:"voter,omitempty"` // hex; defaults to this node
	Approve    bool   `json:"approve"`
}

// ProposalParam is used by mesh_checkConsensus.
type ProposalParam struct {
	ProposalID uint64 `json:"proposal_id"`
}

// ── Result types ────────────────────────────────────────────────────────

// StatusResult describes the running node.
type StatusResult struct {
	NodeID   string `json:"node_id"`
	Addr     string `json:"addr"`
	Protocol string `json:"protocol"`
	Running  bool   `json:"running"`
}

// PeersResult lists the peer table and discovery view.
type PeersResult struct {
	Peers      []*types.Peer `json:"peers"`
	Discovered []*types.Peer `json:"discovered,omitempty"`
}

// StatsResult combines node counters with per-protocol stats.
type StatsResult struct {
	Mesh      types.MeshStats                      `json:"mesh"`
	Protocols map[types.ProtocolTag]protocol.Stats `json:"protocols"`
}

// SendResult reports a shipped message.
type SendResult struct {
	MessageID uint64 `json:"message_id"`
}

// ConnectResult reports a new peer connection.
type ConnectResult struct {
	PeerID string `json:"peer_id"`
}

// ConsensusResult reports a proposal's decision.
type ConsensusResult struct {
	ProposalID uint64 `json:"proposal_id"`
	Decision   string `json:"decision"`
}
