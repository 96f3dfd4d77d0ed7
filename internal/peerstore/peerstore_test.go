package peerstore

import (
	"testing"
	"time"

	"github.com/Klingon-tech/klingnet-mesh/internal/storage"
	"github.com/Klingon-tech/klingnet-mesh/pkg/types"
)

func newTestStore() *Store {
	return New(storage.NewMemory())
}

func testRecord(source string) (types.NodeID, Record) {
	id := types.NewNodeID()
	return id, Record{
		ID:        id.String(),
		Addresses: []string{"192.168.1.1:7000"},
		LastSeen:  time.Now().Unix(),
		Source:    source,
	}
}

func TestStore_SaveLoad(t *testing.T) {
	s := newTestStore()
	id, rec := testRecord("discovery")

	if err := s.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := s.Load(id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ID != rec.ID {
		t.Errorf("ID mismatch: got %q, want %q", loaded.ID, rec.ID)
	}
	if len(loaded.Addresses) != 1 || loaded.Addresses[0] != rec.Addresses[0] {
		t.Errorf("Addresses mismatch: got %v, want %v", loaded.Addresses, rec.Addresses)
	}
	if loaded.LastSeen != rec.LastSeen {
		t.Errorf("LastSeen mismatch: got %d, want %d", loaded.LastSeen, rec.LastSeen)
	}
	if loaded.Source != rec.Source {
		t.Errorf("Source mismatch: got %q, want %q", loaded.Source, rec.Source)
	}
}

func TestStore_LoadAll(t *testing.T) {
	s := newTestStore()
	for i := 0; i < 3; i++ {
		_, rec := testRecord("connect")
		if err := s.Save(rec); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}

	all, err := s.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 records, got %d", len(all))
	}
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore()
	id, rec := testRecord("connect")
	s.Save(rec)

	if err := s.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Load(id); err == nil {
		t.Error("record still loadable after Delete")
	}
}

func TestStore_PruneStale(t *testing.T) {
	s := newTestStore()

	_, fresh := testRecord("discovery")
	s.Save(fresh)

	staleID := types.NewNodeID()
	s.Save(Record{
		ID:        staleID.String(),
		Addresses: []string{"10.0.0.1:7000"},
		LastSeen:  time.Now().Add(-48 * time.Hour).Unix(),
		Source:    "discovery",
	})

	pruned, err := s.PruneStale(StaleThreshold)
	if err != nil {
		t.Fatalf("PruneStale: %v", err)
	}
	if pruned != 1 {
		t.Errorf("pruned %d records, want 1", pruned)
	}

	count, _ := s.Count()
	if count != 1 {
		t.Errorf("count after prune = %d, want 1", count)
	}
	if _, err := s.Load(staleID); err == nil {
		t.Error("stale record survived prune")
	}
}

func TestStore_CorruptRecordsPruned(t *testing.T) {
	db := storage.NewMemory()
	s := New(db)

	db.Put([]byte("peer/bogus"), []byte("{corrupt"))
	_, rec := testRecord("connect")
	s.Save(rec)

	// LoadAll skips the corrupt entry.
	all, err := s.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("LoadAll = %d records, want 1", len(all))
	}

	// PruneStale removes it.
	pruned, err := s.PruneStale(StaleThreshold)
	if err != nil {
		t.Fatalf("PruneStale: %v", err)
	}
	if pruned != 1 {
		t.Errorf("pruned %d, want 1 (the corrupt record)", pruned)
	}
}

func TestRecord_PeerRoundTrip(t *testing.T) {
	p := types.NewPeer(types.NewNodeID(), "10.9.8.7:7000")
	rec := RecordFromPeer(p, "heartbeat")

	back, err := rec.Peer()
	if err != nil {
		t.Fatalf("Peer: %v", err)
	}
	if back.ID != p.ID {
		t.Error("round trip changed the peer id")
	}
	if back.Addresses[0] != p.Addresses[0] {
		t.Error("round trip changed the addresses")
	}
	if back.Metadata["source"] != "heartbeat" {
		t.Errorf("source metadata = %q", back.Metadata["source"])
	}

	if _, err := (Record{ID: "nothex"}).Peer(); err == nil {
		t.Error("corrupt id round-tripped")
	}
}
