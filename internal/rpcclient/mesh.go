package rpcclient

import (
	"github.com/Klingon-tech/klingnet-mesh/internal/protocol"
	"github.com/Klingon-tech/klingnet-mesh/internal/rpc"
	"github.com/Klingon-tech/klingnet-mesh/pkg/types"
)

// Typed wrappers over the mesh control methods.

// Status fetches node identity and liveness.
func (c *Client) Status() (*rpc.StatusResult, error) {
	var out rpc.StatusResult
	if err := c.Call("mesh_status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Peers fetches the node's peer table and discovery view.
func (c *Client) Peers() (*rpc.PeersResult, error) {
	var out rpc.PeersResult
	if err := c.Call("mesh_peers", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats fetches combined node and per-protocol counters.
func (c *Client) Stats() (types.MeshStats, map[types.ProtocolTag]protocol.Stats, error) {
	var out rpc.StatsResult
	if err := c.Call("mesh_stats", nil, &out); err != nil {
		return types.MeshStats{}, nil, err
	}
	return out.Mesh, out.Protocols, nil
}

// Send ships a unicast text payload to the given node id (hex).
func (c *Client) Send(toHex, message string) (uint64, error) {
	var out rpc.SendResult
	err := c.Call("mesh_send", rpc.SendParam{To: toHex, Message: message}, &out)
	return out.MessageID, err
}

// Broadcast ships a text payload to every connected peer.
func (c *Client) Broadcast(message string) (uint64, error) {
	var out rpc.SendResult
	err := c.Call("mesh_broadcast", rpc.BroadcastParam{Message: message}, &out)
	return out.MessageID, err
}

// Connect dials a peer by address, optionally pinning its node id.
func (c *Client) Connect(address, nodeIDHex string) (string, error) {
	var out rpc.ConnectResult
	err := c.Call("mesh_connect", rpc.ConnectParam{Address: address, NodeID: nodeIDHex}, &out)
	return out.PeerID, err
}
