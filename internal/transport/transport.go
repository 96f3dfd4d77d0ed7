// Package transport implements the mesh connection layer: a framed
// TCP stream path and a datagram path bound to the same endpoint,
// per-peer write locking, and a single inbound message stream.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Klingon-tech/klingnet-mesh/internal/codec"
	klog "github.com/Klingon-tech/klingnet-mesh/internal/log"
	"github.com/Klingon-tech/klingnet-mesh/pkg/mesherr"
	"github.com/Klingon-tech/klingnet-mesh/pkg/types"
	"github.com/rs/zerolog"
)

const (
	// dialTimeout bounds outbound connection attempts.
	dialTimeout = 5 * time.Second

	// inboundQueueSize is the buffer of the decoded-message queue.
	inboundQueueSize = 1024
)

// Inbound is one decoded message with its source endpoint.
type Inbound struct {
	Message *types.Message
	Addr    net.Addr
}

// Transport owns the stream listener, the datagram socket, and the
// per-peer connections. All methods are safe for concurrent use.
type Transport struct {
	nodeID types.NodeID
	codec  codec.Codec

	ln  *net.TCPListener
	udp *net.UDPConn

	mu    sync.RWMutex
	conns map[types.NodeID]*peerConn

	inbound chan Inbound
	stats   types.StatCounters

	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger

	// fatalErr records an accept-loop failure; it surfaces on the
	// next public call.
	fatalErr atomic.Pointer[error]
}

// peerConn owns one peer's socket. Writes are serialized under wmu so
// frames do not interleave.
type peerConn struct {
	peer *types.Peer
	conn net.Conn

	wmu      sync.Mutex
	lastSeen time.Time
}

// New binds a stream listener and a datagram socket on the given
// endpoint. Bind failures are immediate.
func New(nodeID types.NodeID, listenAddr string, c codec.Codec) (*Transport, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", listenAddr)
	if err != nil {
		return nil, mesherr.Wrap(mesherr.KindNetwork, err, "resolve listen address %s", listenAddr)
	}
	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, mesherr.Wrap(mesherr.KindNetwork, err, "bind stream listener on %s", listenAddr)
	}
	// Bind the datagram socket on the same port the listener got,
	// so a :0 listen address keeps both paths on one endpoint.
	udpAddr := &net.UDPAddr{IP: tcpAddr.IP, Port: ln.Addr().(*net.TCPAddr).Port}
	udp, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		ln.Close()
		return nil, mesherr.Wrap(mesherr.KindNetwork, err, "bind datagram socket on %s", udpAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Transport{
		nodeID:  nodeID,
		codec:   c,
		ln:      ln,
		udp:     udp,
		conns:   make(map[types.NodeID]*peerConn),
		inbound: make(chan Inbound, inboundQueueSize),
		ctx:     ctx,
		cancel:  cancel,
		logger:  klog.Transport,
	}, nil
}

// Addr returns the bound stream listener address.
func (t *Transport) Addr() string {
	return t.ln.Addr().String()
}

// Start spawns the accept loop and the datagram read loop.
func (t *Transport) Start() {
	go t.acceptLoop()
	go t.datagramLoop()
}

// Close shuts down the listener, the datagram socket, and every peer
// connection. Pending Receive calls unblock.
func (t *Transport) Close() {
	t.cancel()
	t.ln.Close()
	t.udp.Close()

	t.mu.Lock()
	for id, pc := range t.conns {
		pc.wmu.Lock()
		if pc.conn != nil {
			pc.conn.Close()
			pc.conn = nil
		}
		pc.wmu.Unlock()
		delete(t.conns, id)
	}
	t.mu.Unlock()
}

// checkFatal surfaces a recorded accept-loop failure.
func (t *Transport) checkFatal() error {
	if p := t.fatalErr.Load(); p != nil {
		return *p
	}
	return nil
}

// ConnectToPeer dials the peer's first endpoint and installs the
// connection keyed by the peer's id.
func (t *Transport) ConnectToPeer(peer *types.Peer) error {
	if err := t.checkFatal(); err != nil {
		return err
	}
	if len(peer.Addresses) == 0 {
		return mesherr.Network("peer %s has no addresses", peer.ID.Short())
	}

	addr := peer.Addresses[0]
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return mesherr.Wrap(mesherr.KindNetwork, err, "dial peer %s at %s", peer.ID.Short(), addr)
	}

	p := peer.Clone()
	p.Connected = true
	p.Touch()
	pc := &peerConn{peer: p, conn: conn, lastSeen: time.Now()}

	t.mu.Lock()
	if old, ok := t.conns[peer.ID]; ok {
		old.wmu.Lock()
		if old.conn != nil {
			old.conn.Close()
			old.conn = nil
		}
		old.wmu.Unlock()
	}
	t.conns[peer.ID] = pc
	t.mu.Unlock()

	// Replies arrive on the same stream.
	go t.readLoop(conn, conn.RemoteAddr(), &peer.ID)

	t.logger.Info().Str("peer", peer.ID.Short()).Str("addr", addr).Msg("Peer connected")
	return nil
}

// SendMessage serializes the message and writes one frame to the
// given peer.
func (t *Transport) SendMessage(m *types.Message, peerID types.NodeID) error {
	if err := t.checkFatal(); err != nil {
		return err
	}

	t.mu.RLock()
	pc, ok := t.conns[peerID]
	t.mu.RUnlock()
	if !ok {
		return mesherr.PeerNotFound("peer %s", peerID.Short())
	}

	pc.wmu.Lock()
	conn := pc.conn
	if conn == nil {
		pc.wmu.Unlock()
		return mesherr.Network("no active connection to peer %s", peerID.Short())
	}
	n, err := t.codec.WriteFrame(conn, m)
	pc.wmu.Unlock()
	if err != nil {
		return mesherr.Wrap(mesherr.KindNetwork, err, "send to peer %s", peerID.Short())
	}

	t.stats.MessagesSent.Add(1)
	t.stats.BytesSent.Add(uint64(n))
	return nil
}

// BroadcastMessage sends to every connected peer. All peers are
// attempted; the returned error summarizes the failure count.
func (t *Transport) BroadcastMessage(m *types.Message) error {
	t.mu.RLock()
	ids := make([]types.NodeID, 0, len(t.conns))
	for id := range t.conns {
		ids = append(ids, id)
	}
	t.mu.RUnlock()

	failures := 0
	for _, id := range ids {
		if err := t.SendMessage(m, id); err != nil {
			failures++
			t.logger.Debug().Str("peer", id.Short()).Err(err).Msg("Broadcast send failed")
		}
	}
	if failures > 0 {
		return mesherr.Network("broadcast failed for %d of %d peers", failures, len(ids))
	}
	return nil
}

// Receive pulls one decoded message from the inbound queue. The
// second return is false once the transport is closed.
func (t *Transport) Receive() (Inbound, bool) {
	select {
	case in := <-t.inbound:
		return in, true
	case <-t.ctx.Done():
		return Inbound{}, false
	}
}

// DisconnectPeer closes and removes the peer's connection. The Peer
// record may live on in the node's peer table.
func (t *Transport) DisconnectPeer(peerID types.NodeID) {
	t.mu.Lock()
	pc, ok := t.conns[peerID]
	if ok {
		delete(t.conns, peerID)
	}
	t.mu.Unlock()
	if ok {
		pc.wmu.Lock()
		if pc.conn != nil {
			pc.conn.Close()
			pc.conn = nil
		}
		pc.wmu.Unlock()
	}
}

// Peers returns a snapshot of the connected peers.
func (t *Transport) Peers() []*types.Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*types.Peer, 0, len(t.conns))
	for _, pc := range t.conns {
		pc.wmu.Lock()
		out = append(out, pc.peer.Clone())
		pc.wmu.Unlock()
	}
	return out
}

// PeerCount returns the number of connected peers.
func (t *Transport) PeerCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.conns)
}

// Stats returns a snapshot of the transport counters.
func (t *Transport) Stats() types.MeshStats {
	s := t.stats.Snapshot()
	s.PeersConnected = t.PeerCount()
	return s
}

// acceptLoop accepts inbound streams and spawns a reader per
// connection. Accept failures terminate the listener and are fatal
// to the node.
func (t *Transport) acceptLoop() {
	for {
		conn, err := t.ln.Accept()
		if err != nil {
			select {
			case <-t.ctx.Done():
				return
			default:
			}
			t.logger.Error().Err(err).Msg("Accept failed, stopping listener")
			fatal := error(mesherr.Wrap(mesherr.KindNetwork, err, "stream listener failed"))
			t.fatalErr.Store(&fatal)
			return
		}
		go t.readLoop(conn, conn.RemoteAddr(), nil)
	}
}

// readLoop reads frames from one stream until it fails or closes.
// Read errors terminate only this connection.
func (t *Transport) readLoop(conn net.Conn, addr net.Addr, peerID *types.NodeID) {
	defer func() {
		conn.Close()
		if peerID != nil {
			// Keep the PeerConnection tabled but drop its stream:
			// sends now fail with a network error until a reconnect
			// replaces the stream or the peer is disconnected.
			t.mu.Lock()
			if pc, ok := t.conns[*peerID]; ok {
				pc.wmu.Lock()
				if pc.conn == conn {
					pc.conn = nil
					pc.peer.Connected = false
				}
				pc.wmu.Unlock()
			}
			t.mu.Unlock()
		}
	}()

	for {
		m, n, err := t.codec.ReadFrame(conn)
		if err != nil {
			switch mesherr.KindOf(err) {
			case mesherr.KindJson, mesherr.KindSerialization:
				// Framing survived; only this message was bad.
				t.stats.DecodeErrors.Add(1)
				continue
			case mesherr.KindConnectionClosed:
				t.logger.Debug().Str("addr", addr.String()).Msg("Connection closed by peer")
			default:
				if !errors.Is(err, net.ErrClosed) {
					t.logger.Warn().Str("addr", addr.String()).Err(err).Msg("Stream read failed")
				}
			}
			return
		}

		t.stats.MessagesReceived.Add(1)
		t.stats.BytesReceived.Add(uint64(n))
		if peerID != nil {
			t.mu.RLock()
			pc, ok := t.conns[*peerID]
			t.mu.RUnlock()
			if ok {
				pc.wmu.Lock()
				pc.lastSeen = time.Now()
				pc.peer.Touch()
				pc.wmu.Unlock()
			}
		}

		select {
		case t.inbound <- Inbound{Message: m, Addr: addr}:
		case <-t.ctx.Done():
			return
		}
	}
}

// datagramLoop reads and decodes datagrams. Single-datagram decode
// failures are dropped and counted, not fatal.
func (t *Transport) datagramLoop() {
	buf := make([]byte, codec.MaxDatagramSize)
	for {
		n, addr, err := t.udp.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-t.ctx.Done():
			default:
				if !errors.Is(err, net.ErrClosed) {
					t.logger.Error().Err(err).Msg("Datagram read failed")
				}
			}
			return
		}

		m, err := t.codec.DecodeMessage(buf[:n])
		if err != nil {
			t.stats.DecodeErrors.Add(1)
			continue
		}

		t.stats.MessagesReceived.Add(1)
		t.stats.BytesReceived.Add(uint64(n))

		select {
		case t.inbound <- Inbound{Message: m, Addr: addr}:
		case <-t.ctx.Done():
			return
		}
	}
}

// String implements fmt.Stringer for log output.
func (t *Transport) String() string {
	return fmt.Sprintf("transport(%s, %s)", t.nodeID.Short(), t.Addr())
}
