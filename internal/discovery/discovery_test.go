package discovery

import (
	"testing"
	"time"

	"github.com/Klingon-tech/klingnet-mesh/internal/codec"
	"github.com/Klingon-tech/klingnet-mesh/pkg/types"
)

func TestNew_RejectsUnicastGroup(t *testing.T) {
	_, err := New(types.NewNodeID(), "127.0.0.1:0", "10.0.0.1:9999")
	if err == nil {
		t.Error("unicast group address accepted")
	}
}

func TestNew_RejectsGarbageGroup(t *testing.T) {
	_, err := New(types.NewNodeID(), "127.0.0.1:0", "not-an-address")
	if err == nil {
		t.Error("malformed group address accepted")
	}
}

func TestNew_JoinsDefaultGroup(t *testing.T) {
	d, err := New(types.NewNodeID(), "127.0.0.1:0", DefaultGroup)
	if err != nil {
		t.Skipf("multicast unavailable in this environment: %v", err)
	}
	defer d.Close()

	if d.Count() != 0 {
		t.Errorf("fresh discovery knows %d peers, want 0", d.Count())
	}
}

func TestDiscovery_LearnsPeersAdditively(t *testing.T) {
	self := types.NewNodeID()
	d, err := New(self, "127.0.0.1:0", DefaultGroup)
	if err != nil {
		t.Skipf("multicast unavailable in this environment: %v", err)
	}
	defer d.Close()
	d.Start()

	// Announce two fake peers and our own id into the group.
	other1 := types.NewPeer(types.NewNodeID(), "10.0.0.1:7000")
	other2 := types.NewPeer(types.NewNodeID(), "10.0.0.2:7000")
	selfAnnounce := types.NewPeer(self, "10.0.0.3:7000")

	for _, p := range []*types.Peer{other1, other2, selfAnnounce} {
		data, err := codec.EncodePeer(p)
		if err != nil {
			t.Fatalf("EncodePeer: %v", err)
		}
		if _, err := d.send.Write(data); err != nil {
			t.Skipf("multicast send unavailable: %v", err)
		}
	}

	deadline := time.Now().Add(3 * time.Second)
	for d.Count() < 2 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}

	peers := d.Peers()
	if len(peers) == 0 {
		t.Skip("multicast loopback unavailable in this environment")
	}
	if len(peers) != 2 {
		t.Fatalf("learned %d peers, want 2 (own announcement excluded)", len(peers))
	}
	for _, p := range peers {
		if p.ID == self {
			t.Error("discovery learned our own announcement")
		}
	}
}

func TestDiscovery_SelfMetadataOnAnnouncements(t *testing.T) {
	d, err := New(types.NewNodeID(), "127.0.0.1:0", DefaultGroup)
	if err != nil {
		t.Skipf("multicast unavailable in this environment: %v", err)
	}
	defer d.Close()

	d.SetSelfMetadata(map[string]string{"pubkey": "cafe"})

	// The announcement payload carries the metadata.
	self := types.NewPeer(d.nodeID, d.listenAddr)
	d.mu.RLock()
	for k, v := range d.selfMeta {
		self.Metadata[k] = v
	}
	d.mu.RUnlock()

	data, err := codec.EncodePeer(self)
	if err != nil {
		t.Fatalf("EncodePeer: %v", err)
	}
	got, err := codec.DecodePeer(data)
	if err != nil {
		t.Fatalf("DecodePeer: %v", err)
	}
	if got.Metadata["pubkey"] != "cafe" {
		t.Errorf("announcement metadata = %v", got.Metadata)
	}
}
