package rpc

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-mesh/internal/protocol"
	"github.com/Klingon-tech/klingnet-mesh/pkg/crypto"
	"github.com/Klingon-tech/klingnet-mesh/pkg/types"
)

// ── Node endpoints ──────────────────────────────────────────────────────

func (s *Server) handleStatus(req *Request) (interface{}, *Error) {
	return &StatusResult{
		NodeID:   s.node.NodeID().String(),
		Addr:     s.node.Addr(),
		Protocol: s.node.Config().Mesh.Protocol,
		Running:  s.node.Running(),
	}, nil
}

func (s *Server) handlePeers(req *Request) (interface{}, *Error) {
	return &PeersResult{
		Peers:      s.node.Peers(),
		Discovered: s.node.DiscoveredPeers(),
	}, nil
}

func (s *Server) handleStats(req *Request) (interface{}, *Error) {
	protoStats := make(map[types.ProtocolTag]protocol.Stats)
	for _, tag := range s.node.Registry().Tags() {
		if st, ok := s.node.Registry().StatsFor(tag); ok {
			protoStats[tag] = st
		}
	}
	return &StatsResult{
		Mesh:      s.node.Stats(),
		Protocols: protoStats,
	}, nil
}

// ── Messaging endpoints ─────────────────────────────────────────────────

func (s *Server) handleSend(req *Request) (interface{}, *Error) {
	var params SendParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.To == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "to is required"}
	}

	to, err := types.HexToNodeID(params.To)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: "invalid node id: must be 32-byte hex"}
	}

	m := types.NewUnicast(s.node.NodeID(), to, []byte(params.Message))
	if sendErr := s.node.SendMessage(m); sendErr != nil {
		return nil, &Error{Code: CodeInternalError, Message: fmt.Sprintf("send failed: %v", sendErr)}
	}
	return &SendResult{MessageID: m.ID}, nil
}

func (s *Server) handleBroadcast(req *Request) (interface{}, *Error) {
	var params BroadcastParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}

	m := types.NewBroadcast(s.node.NodeID(), []byte(params.Message))
	m.ProtocolTag = types.ProtocolTag(s.node.Config().Mesh.Protocol)
	if sendErr := s.node.SendMessage(m); sendErr != nil {
		return nil, &Error{Code: CodeInternalError, Message: fmt.Sprintf("broadcast failed: %v", sendErr)}
	}
	return &SendResult{MessageID: m.ID}, nil
}

func (s *Server) handleConnect(req *Request) (interface{}, *Error) {
	var params ConnectParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Address == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "address is required"}
	}

	var peerID types.NodeID
	if params.NodeID != "" {
		id, err := types.HexToNodeID(params.NodeID)
		if err != nil {
			return nil, &Error{Code: CodeInvalidParams, Message: "invalid node id: must be 32-byte hex"}
		}
		peerID = id
	} else {
		// No id supplied: derive a stable ephemeral id from the
		// endpoint so reconnects key the same table entry.
		peerID = types.NodeID(crypto.Hash([]byte(params.Address)))
	}

	peer := types.NewPeer(peerID, params.Address)
	if err := s.node.AddPeer(peer); err != nil {
		return nil, &Error{Code: CodeInternalError, Message: fmt.Sprintf("connect failed: %v", err)}
	}
	return &ConnectResult{PeerID: peerID.String()}, nil
}

// ── Consensus endpoints ─────────────────────────────────────────────────

func (s *Server) consensusOrError() (*protocol.Consensus, *Error) {
	c := s.node.Consensus()
	if c == nil {
		return nil, &Error{Code: CodeNotFound, Message: "consensus protocol not installed"}
	}
	return c, nil
}

func (s *Server) handlePropose(req *Request) (interface{}, *Error) {
	var params ProposeParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	c, rpcErr := s.consensusOrError()
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := c.Propose(params.ProposalID, []byte(params.Value)); err != nil {
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return &ConsensusResult{
		ProposalID: params.ProposalID,
		Decision:   c.CheckConsensus(params.ProposalID).String(),
	}, nil
}

func (s *Server) handleVote(req *Request) (interface{}, *Error) {
	var params VoteParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	c, rpcErr := s.consensusOrError()
	if rpcErr != nil {
		return nil, rpcErr
	}

	voter := s.node.NodeID()
	if params.Voter != "" {
		id, err := types.HexToNodeID(params.Voter)
		if err != nil {
			return nil, &Error{Code: CodeInvalidParams, Message: "invalid voter id"}
		}
		voter = id
	}

	if err := c.Vote(params.ProposalID, voter, params.Approve); err != nil {
		return nil, &Error{Code: CodeNotFound, Message: err.Error()}
	}
	return &ConsensusResult{
		ProposalID: params.ProposalID,
		Decision:   c.CheckConsensus(params.ProposalID).String(),
	}, nil
}

func (s *Server) handleCheckConsensus(req *Request) (interface{}, *Error) {
	var params ProposalParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	c, rpcErr := s.consensusOrError()
	if rpcErr != nil {
		return nil, rpcErr
	}
	return &ConsensusResult{
		ProposalID: params.ProposalID,
		Decision:   c.CheckConsensus(params.ProposalID).String(),
	}, nil
}
