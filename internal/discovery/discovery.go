// Package discovery implements datagram-multicast peer announcement
// and learning.
package discovery

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/Klingon-tech/klingnet-mesh/internal/codec"
	klog "github.com/Klingon-tech/klingnet-mesh/internal/log"
	"github.com/Klingon-tech/klingnet-mesh/pkg/mesherr"
	"github.com/Klingon-tech/klingnet-mesh/pkg/types"
	"github.com/rs/zerolog"
)

const (
	// DefaultGroup is the default multicast announcement endpoint.
	DefaultGroup = "224.0.0.1:9999"

	// announceInterval is the self-announcement cadence.
	announceInterval = 30 * time.Second

	// maxAnnouncementSize bounds received peer records.
	maxAnnouncementSize = 1024
)

// Discovery joins a multicast group, learns peers from received
// announcements, and periodically announces this node. It is purely
// additive: learned peers are never removed; liveness is the peer's
// own alive predicate.
type Discovery struct {
	nodeID     types.NodeID
	listenAddr string
	group      *net.UDPAddr
	recv       *net.UDPConn
	send       *net.UDPConn

	mu       sync.RWMutex
	peers    map[types.NodeID]*types.Peer
	selfMeta map[string]string

	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger
}

// New joins the multicast group and prepares the announcer.
func New(nodeID types.NodeID, listenAddr, group string) (*Discovery, error) {
	groupAddr, err := net.ResolveUDPAddr("udp4", group)
	if err != nil {
		return nil, mesherr.Wrap(mesherr.KindNetwork, err, "resolve multicast group %s", group)
	}
	if !groupAddr.IP.IsMulticast() {
		return nil, mesherr.Network("%s is not a multicast address", group)
	}

	recv, err := net.ListenMulticastUDP("udp4", nil, groupAddr)
	if err != nil {
		return nil, mesherr.Wrap(mesherr.KindNetwork, err, "join multicast group %s", group)
	}

	send, err := net.DialUDP("udp4", nil, groupAddr)
	if err != nil {
		recv.Close()
		return nil, mesherr.Wrap(mesherr.KindNetwork, err, "open announce socket for %s", group)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Discovery{
		nodeID:     nodeID,
		listenAddr: listenAddr,
		group:      groupAddr,
		recv:       recv,
		send:       send,
		peers:      make(map[types.NodeID]*types.Peer),
		ctx:        ctx,
		cancel:     cancel,
		logger:     klog.Discovery,
	}, nil
}

// Start spawns the announcement reader and the periodic announcer.
func (d *Discovery) Start() {
	go d.readLoop()
	go d.announceLoop()
}

// Close stops both loops and releases the sockets.
func (d *Discovery) Close() {
	d.cancel()
	d.recv.Close()
	d.send.Close()
}

// SetSelfMetadata attaches metadata to this node's announcements
// (e.g. the signing public key). Call before Start.
func (d *Discovery) SetSelfMetadata(meta map[string]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selfMeta = meta
}

// Peers returns a snapshot of the discovered peers.
func (d *Discovery) Peers() []*types.Peer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*types.Peer, 0, len(d.peers))
	for _, p := range d.peers {
		out = append(out, p.Clone())
	}
	return out
}

// Count returns the number of discovered peers.
func (d *Discovery) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.peers)
}

func (d *Discovery) readLoop() {
	buf := make([]byte, maxAnnouncementSize)
	for {
		n, addr, err := d.recv.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-d.ctx.Done():
			default:
				if !errors.Is(err, net.ErrClosed) {
					d.logger.Error().Err(err).Msg("Discovery read failed")
				}
			}
			return
		}

		peer, err := codec.DecodePeer(buf[:n])
		if err != nil {
			continue // Malformed announcement.
		}
		if peer.ID == d.nodeID {
			continue // Our own announcement.
		}
		peer.Touch()

		d.mu.Lock()
		_, known := d.peers[peer.ID]
		d.peers[peer.ID] = peer
		d.mu.Unlock()

		if !known {
			d.logger.Info().
				Str("peer", peer.ID.Short()).
				Str("addr", addr.String()).
				Msg("Discovered peer")
		}
	}
}

func (d *Discovery) announceLoop() {
	ticker := time.NewTicker(announceInterval)
	defer ticker.Stop()

	d.announce()
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.announce()
		}
	}
}

func (d *Discovery) announce() {
	self := types.NewPeer(d.nodeID, d.listenAddr)
	d.mu.RLock()
	for k, v := range d.selfMeta {
		self.Metadata[k] = v
	}
	d.mu.RUnlock()
	data, err := codec.EncodePeer(self)
	if err != nil {
		d.logger.Error().Err(err).Msg("Encode announcement failed")
		return
	}
	if _, err := d.send.Write(data); err != nil {
		d.logger.Debug().Err(err).Msg("Announce failed")
	}
}
