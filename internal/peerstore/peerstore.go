// Package peerstore persists known peers so a restarted node can
// re-join the mesh without waiting for discovery.
package peerstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Klingon-tech/klingnet-mesh/internal/storage"
	"github.com/Klingon-tech/klingnet-mesh/pkg/types"
)

const (
	peerKeyPrefix = "peer/"

	// StaleThreshold is how long an unseen record survives.
	StaleThreshold = 24 * time.Hour

	// PersistInterval is the node's periodic save cadence.
	PersistInterval = 5 * time.Minute

	// maxRecords caps the store; new peers beyond the cap are skipped.
	maxRecords = 500
)

// Record is a persisted peer entry.
type Record struct {
	ID        string   `json:"id"`        // canonical hex node id
	Addresses []string `json:"addresses"` // ip:port endpoints
	LastSeen  int64    `json:"last_seen"` // unix timestamp
	Source    string   `json:"source"`    // "discovery", "connect", "heartbeat"
}

// RecordFromPeer converts a live peer into its persisted form.
func RecordFromPeer(p *types.Peer, source string) Record {
	return Record{
		ID:        p.ID.String(),
		Addresses: append([]string(nil), p.Addresses...),
		LastSeen:  int64(p.LastSeen),
		Source:    source,
	}
}

// Peer converts a record back into a live peer.
func (r Record) Peer() (*types.Peer, error) {
	id, err := types.HexToNodeID(r.ID)
	if err != nil {
		return nil, fmt.Errorf("record node id: %w", err)
	}
	return &types.Peer{
		ID:        id,
		Addresses: append([]string(nil), r.Addresses...),
		LastSeen:  uint64(r.LastSeen),
		Metadata:  map[string]string{"source": r.Source},
	}, nil
}

// Store persists peer records in a storage.DB under the "peer/" prefix.
type Store struct {
	db storage.DB
}

// New creates a peer store backed by the given DB.
func New(db storage.DB) *Store {
	return &Store{db: db}
}

func peerKey(id string) []byte {
	return []byte(peerKeyPrefix + id)
}

// Save persists a peer record. If the store already holds maxRecords
// and this is a new peer, the save is silently skipped.
func (s *Store) Save(rec Record) error {
	key := peerKey(rec.ID)

	exists, err := s.db.Has(key)
	if err != nil {
		return fmt.Errorf("check peer exists: %w", err)
	}
	if !exists {
		count, err := s.Count()
		if err != nil {
			return fmt.Errorf("count peers: %w", err)
		}
		if count >= maxRecords {
			return nil // At capacity, skip new peers.
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal peer record: %w", err)
	}
	return s.db.Put(key, data)
}

// Load retrieves a single peer record by node id.
func (s *Store) Load(id types.NodeID) (*Record, error) {
	data, err := s.db.Get(peerKey(id.String()))
	if err != nil {
		return nil, fmt.Errorf("get peer record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal peer record: %w", err)
	}
	return &rec, nil
}

// LoadAll returns all persisted peer records.
func (s *Store) LoadAll() ([]Record, error) {
	var records []Record
	err := s.db.ForEach([]byte(peerKeyPrefix), func(key, value []byte) error {
		var rec Record
		if err := json.Unmarshal(value, &rec); err != nil {
			return nil // Skip corrupt records.
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate peer records: %w", err)
	}
	return records, nil
}

// Delete removes a peer record.
func (s *Store) Delete(id types.NodeID) error {
	return s.db.Delete(peerKey(id.String()))
}

// PruneStale removes records older than the threshold. Returns the
// number pruned.
func (s *Store) PruneStale(threshold time.Duration) (int, error) {
	cutoff := time.Now().Add(-threshold).Unix()
	var toDelete [][]byte

	err := s.db.ForEach([]byte(peerKeyPrefix), func(key, value []byte) error {
		var rec Record
		if err := json.Unmarshal(value, &rec); err != nil {
			// Corrupt record, prune it too.
			keyCopy := make([]byte, len(key))
			copy(keyCopy, key)
			toDelete = append(toDelete, keyCopy)
			return nil
		}
		if rec.LastSeen < cutoff {
			keyCopy := make([]byte, len(key))
			copy(keyCopy, key)
			toDelete = append(toDelete, keyCopy)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("iterate for prune: %w", err)
	}

	for _, k := range toDelete {
		if err := s.db.Delete(k); err != nil {
			return 0, fmt.Errorf("delete stale peer: %w", err)
		}
	}
	return len(toDelete), nil
}

// Count returns the number of persisted peer records.
func (s *Store) Count() (int, error) {
	count := 0
	err := s.db.ForEach([]byte(peerKeyPrefix), func(key, value []byte) error {
		count++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count peers: %w", err)
	}
	return count, nil
}
