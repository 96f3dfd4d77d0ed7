package types

import "sync/atomic"

// MeshStats is a point-in-time snapshot of node counters.
type MeshStats struct {
	MessagesSent     uint64 `json:"messages_sent"`
	MessagesReceived uint64 `json:"messages_received"`
	BytesSent        uint64 `json:"bytes_sent"`
	BytesReceived    uint64 `json:"bytes_received"`
	PeersConnected   int    `json:"peers_connected"`
	PeersDiscovered  int    `json:"peers_discovered"`
	UptimeSeconds    uint64 `json:"uptime_seconds"`
	DecodeErrors     uint64 `json:"decode_errors"`
	UnknownSource    uint64 `json:"unknown_source"`
}

// Add merges another snapshot's counters into this one.
func (s *MeshStats) Add(o MeshStats) {
	s.MessagesSent += o.MessagesSent
	s.MessagesReceived += o.MessagesReceived
	s.BytesSent += o.BytesSent
	s.BytesReceived += o.BytesReceived
	s.DecodeErrors += o.DecodeErrors
	s.UnknownSource += o.UnknownSource
}

// StatCounters is the live, concurrency-safe form of MeshStats.
// Counter updates are lock-free; Snapshot copies the current values.
type StatCounters struct {
	MessagesSent     atomic.Uint64
	MessagesReceived atomic.Uint64
	BytesSent        atomic.Uint64
	BytesReceived    atomic.Uint64
	DecodeErrors     atomic.Uint64
	UnknownSource    atomic.Uint64
}

// Snapshot copies the counters into a MeshStats value.
func (c *StatCounters) Snapshot() MeshStats {
	return MeshStats{
		MessagesSent:     c.MessagesSent.Load(),
		MessagesReceived: c.MessagesReceived.Load(),
		BytesSent:        c.BytesSent.Load(),
		BytesReceived:    c.BytesReceived.Load(),
		DecodeErrors:     c.DecodeErrors.Load(),
		UnknownSource:    c.UnknownSource.Load(),
	}
}
