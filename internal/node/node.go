// Package node implements the mesh node runtime: it composes the
// transport, discovery, the protocol registry, crypto, the peer
// table, and the message-handling pipeline.
package node

import (
	"context"
	"encoding/hex"
	"net"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Klingon-tech/klingnet-mesh/config"
	"github.com/Klingon-tech/klingnet-mesh/internal/codec"
	"github.com/Klingon-tech/klingnet-mesh/internal/discovery"
	klog "github.com/Klingon-tech/klingnet-mesh/internal/log"
	"github.com/Klingon-tech/klingnet-mesh/internal/peerstore"
	"github.com/Klingon-tech/klingnet-mesh/internal/protocol"
	"github.com/Klingon-tech/klingnet-mesh/internal/storage"
	"github.com/Klingon-tech/klingnet-mesh/internal/transport"
	"github.com/Klingon-tech/klingnet-mesh/pkg/crypto"
	"github.com/Klingon-tech/klingnet-mesh/pkg/mesherr"
	"github.com/Klingon-tech/klingnet-mesh/pkg/types"
	"github.com/rs/zerolog"
)

// MessageHandler is a user callback invoked for every inbound message.
type MessageHandler func(m *types.Message, fromPeer types.NodeID) error

// core holds exactly the state the dispatcher task shares with the
// public Node value. Both reference the same core, which avoids
// cloning the node into its own background task.
type core struct {
	cfg    *config.Config
	nodeID types.NodeID

	transport *transport.Transport
	disc      *discovery.Discovery // nil unless the listen address is multicast
	registry  *protocol.Registry
	consensus *protocol.Consensus // nil unless installed
	gossip    *protocol.Gossip    // nil unless installed

	cipher *crypto.Cipher // nil unless encryption is enabled
	signer *crypto.Signer

	mu    sync.RWMutex
	peers map[types.NodeID]*types.Peer

	handlersMu sync.RWMutex
	handlers   []MessageHandler

	stats   types.StatCounters
	started time.Time
	running atomic.Bool

	db    storage.DB       // nil when DataDir is unset
	store *peerstore.Store // nil when DataDir is unset

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	logger    zerolog.Logger
}

// Node is a mesh node. Create with New, then Start.
type Node struct {
	*core
}

// New builds a node from the given configuration. The transport is
// bound immediately; background tasks start with Start.
func New(cfg *config.Config) (*Node, error) {
	nodeID, err := resolveNodeID(cfg.NodeID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &core{
		cfg:    cfg,
		nodeID: nodeID,
		peers:  make(map[types.NodeID]*types.Peer),
		ctx:    ctx,
		cancel: cancel,
		logger: klog.Node.With().Str("node_id", nodeID.Short()).Logger(),
	}

	wire := codec.Codec{Compress: cfg.Mesh.EnableCompression}
	c.transport, err = transport.New(nodeID, cfg.Mesh.ListenAddr, wire)
	if err != nil {
		cancel()
		return nil, err
	}

	// Discovery runs only when the configured listen address is a
	// multicast address; unicast nodes join the mesh by explicit
	// connects or persisted peers.
	if isMulticastListen(cfg.Mesh.ListenAddr) {
		c.disc, err = discovery.New(nodeID, cfg.Mesh.ListenAddr, cfg.Mesh.DiscoveryGroup)
		if err != nil {
			c.transport.Close()
			cancel()
			return nil, err
		}
	}

	c.registry = protocol.NewRegistry()
	c.registerProtocols()

	c.signer, err = crypto.NewSigner()
	if err != nil {
		c.close()
		return nil, err
	}
	if c.disc != nil {
		c.disc.SetSelfMetadata(map[string]string{
			"pubkey": hex.EncodeToString(c.signer.PublicKey()),
		})
	}

	if cfg.Mesh.EnableEncryption {
		if err := c.initCipher(); err != nil {
			c.close()
			return nil, err
		}
	}

	if cfg.DataDir != "" {
		c.db, err = storage.NewBadger(filepath.Join(cfg.DataDir, "peers"))
		if err != nil {
			c.close()
			return nil, mesherr.Wrap(mesherr.KindInternal, err, "open peer store")
		}
		c.store = peerstore.New(c.db)
	}

	return &Node{core: c}, nil
}

// registerProtocols installs the protocol selected by config, or all
// three when the configured tag is not a dissemination protocol.
func (c *core) registerProtocols() {
	fanout := c.cfg.Mesh.GossipFanout
	rounds := c.cfg.Mesh.GossipRounds

	newGossip := func() *protocol.Gossip {
		return protocol.NewGossip(c.ctx, c.nodeID).
			WithFanout(fanout).
			WithRounds(rounds).
			WithPeerSelector(c.selectRandomPeers)
	}

	switch types.ProtocolTag(c.cfg.Mesh.Protocol) {
	case types.TagFlooding:
		c.registry.Register(protocol.NewFlooding(c.ctx, c.nodeID))
	case types.TagGossip:
		c.gossip = newGossip()
		c.registry.Register(c.gossip)
	case types.TagConsensus:
		c.consensus = protocol.NewConsensus(c.nodeID)
		c.registry.Register(c.consensus)
	default:
		c.registry.Register(protocol.NewFlooding(c.ctx, c.nodeID))
		c.gossip = newGossip()
		c.registry.Register(c.gossip)
		c.consensus = protocol.NewConsensus(c.nodeID)
		c.registry.Register(c.consensus)
	}
}

// initCipher derives the mesh encryption key and builds the cipher.
func (c *core) initCipher() error {
	var master []byte
	if c.cfg.Mesh.MasterKey != "" {
		b, err := hex.DecodeString(c.cfg.Mesh.MasterKey)
		if err != nil {
			return mesherr.Crypto("master key hex: %v", err)
		}
		master = b
	} else {
		master = crypto.RandomBytes(crypto.KeySize)
		c.logger.Warn().Msg("No master key configured, using a random per-run key")
	}

	encKey, _, err := crypto.DeriveMeshKeys(master, c.nodeID)
	if err != nil {
		return err
	}
	cipher, err := crypto.NewCipher(crypto.Suite(c.cfg.Mesh.CipherSuite), encKey)
	if err != nil {
		return err
	}
	c.cipher = cipher
	return nil
}

// Start brings the node online: transport, discovery, the dispatcher,
// heartbeats, and the persistence loop. It fails when already running.
func (n *Node) Start() error {
	if !n.running.CompareAndSwap(false, true) {
		return mesherr.InvalidParameter("node already running")
	}
	n.started = time.Now()

	n.transport.Start()
	if n.disc != nil {
		n.disc.Start()
	}

	go n.dispatchLoop()
	go n.heartbeatLoop()

	if n.store != nil {
		go n.reconnectPersistedPeers()
		go n.persistLoop()
	}

	n.logger.Info().
		Str("addr", n.transport.Addr()).
		Str("protocol", n.cfg.Mesh.Protocol).
		Bool("encryption", n.cipher != nil).
		Msg("Node started")
	return nil
}

// Stop requests cooperative shutdown. Background loops observe the
// running flag or the context at their next iteration.
func (n *Node) Stop() error {
	if n.running.CompareAndSwap(true, false) {
		if n.store != nil {
			n.persistPeers()
		}
		n.logger.Info().Msg("Node stopped")
	}
	n.close()
	return nil
}

// close tears down sockets, loops, and the peer store. Idempotent.
func (c *core) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		if c.transport != nil {
			c.transport.Close()
		}
		if c.disc != nil {
			c.disc.Close()
		}
		if c.db != nil {
			c.db.Close()
		}
	})
}

// NodeID returns this node's identifier.
func (n *Node) NodeID() types.NodeID {
	return n.nodeID
}

// Addr returns the bound listen address.
func (n *Node) Addr() string {
	return n.transport.Addr()
}

// Config returns the node configuration.
func (n *Node) Config() *config.Config {
	return n.cfg
}

// Running reports whether the node has been started and not stopped.
func (n *Node) Running() bool {
	return n.running.Load()
}

// Consensus returns the consensus protocol, or nil when not installed.
func (n *Node) Consensus() *protocol.Consensus {
	return n.consensus
}

// Registry returns the protocol registry.
func (n *Node) Registry() *protocol.Registry {
	return n.registry
}

// RegisterMessageHandler appends a user handler. Handlers run on
// every inbound message in registration order; a failing handler is
// logged and does not stop the rest.
func (n *Node) RegisterMessageHandler(h MessageHandler) {
	n.handlersMu.Lock()
	defer n.handlersMu.Unlock()
	n.handlers = append(n.handlers, h)
}

// Stats returns the node counters combined with the transport's.
func (n *Node) Stats() types.MeshStats {
	s := n.stats.Snapshot()
	s.Add(n.transport.Stats())
	s.PeersConnected = n.transport.PeerCount()
	if n.disc != nil {
		s.PeersDiscovered = n.disc.Count()
	}
	if n.running.Load() {
		s.UptimeSeconds = uint64(time.Since(n.started) / time.Second)
	}
	return s
}

// resolveNodeID parses the configured hex id or generates a new one.
func resolveNodeID(hexID string) (types.NodeID, error) {
	if hexID == "" {
		return types.NewNodeID(), nil
	}
	id, err := types.HexToNodeID(hexID)
	if err != nil {
		return types.NodeID{}, mesherr.Wrap(mesherr.KindInvalidParameter, err, "node id")
	}
	return id, nil
}

// isMulticastListen reports whether the listen address names a
// multicast group.
func isMulticastListen(listenAddr string) bool {
	host, _, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsMulticast()
}
