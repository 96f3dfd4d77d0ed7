package protocol

import (
	"context"
	"testing"

	"github.com/Klingon-tech/klingnet-mesh/pkg/types"
)

func newTestFlooding(t *testing.T) *Flooding {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewFlooding(ctx, types.NewNodeID())
}

func TestFlooding_SuppressesDuplicates(t *testing.T) {
	f := newTestFlooding(t)
	origin := types.NewNodeID()

	m := types.NewBroadcast(origin, []byte("hi"))
	m.ID = 0x00000000CAFEBABE
	m.ProtocolTag = types.TagFlooding
	m.TTL = 4
	m.Hops = 0

	out, err := f.HandleMessage(m, types.NewNodeID())
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("first delivery produced %d messages, want 1", len(out))
	}
	if out[0].Hops != 1 {
		t.Errorf("forwarded hops = %d, want 1", out[0].Hops)
	}
	if out[0].ID != m.ID || out[0].From != origin {
		t.Error("forward changed id or origin")
	}
	if out[0].ProtocolTag != types.TagFlooding {
		t.Errorf("forwarded tag = %q, want flooding", out[0].ProtocolTag)
	}

	// Second delivery of the same id is suppressed.
	out, err = f.HandleMessage(m, types.NewNodeID())
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("duplicate delivery produced %d messages, want 0", len(out))
	}
}

func TestFlooding_DuplicateWithDifferentPayloadStillSuppressed(t *testing.T) {
	f := newTestFlooding(t)

	m := types.NewBroadcast(types.NewNodeID(), []byte("original"))
	m.ProtocolTag = types.TagFlooding
	if out, _ := f.HandleMessage(m, types.NewNodeID()); len(out) != 1 {
		t.Fatalf("first delivery produced %d messages, want 1", len(out))
	}

	forged := m.Clone()
	forged.Payload = []byte("different body, same id")
	if out, _ := f.HandleMessage(forged, types.NewNodeID()); len(out) != 0 {
		t.Error("duplicate id with differing payload was forwarded")
	}
}

func TestFlooding_TTLExpiry(t *testing.T) {
	f := newTestFlooding(t)

	m := types.NewBroadcast(types.NewNodeID(), []byte("hi"))
	m.ID = 0x00000000CAFEBABE
	m.ProtocolTag = types.TagFlooding
	m.TTL = 1
	m.Hops = 1

	out, err := f.HandleMessage(m, types.NewNodeID())
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expired message produced %d messages, want 0", len(out))
	}
}

func TestFlooding_ZeroTTL(t *testing.T) {
	f := newTestFlooding(t)

	m := types.NewBroadcast(types.NewNodeID(), nil)
	m.ProtocolTag = types.TagFlooding
	m.TTL = 0

	if out, _ := f.HandleMessage(m, types.NewNodeID()); len(out) != 0 {
		t.Error("ttl 0 message was forwarded")
	}
}

func TestFlooding_Stats(t *testing.T) {
	f := newTestFlooding(t)

	m := types.NewBroadcast(types.NewNodeID(), []byte("abcd"))
	m.ProtocolTag = types.TagFlooding
	f.HandleMessage(m, types.NewNodeID())
	f.HandleMessage(m, types.NewNodeID())

	st := f.Stats()
	if st.MessagesProcessed != 2 {
		t.Errorf("MessagesProcessed = %d, want 2", st.MessagesProcessed)
	}
	if st.MessagesSent != 1 {
		t.Errorf("MessagesSent = %d, want 1", st.MessagesSent)
	}
	if st.BytesProcessed != 8 {
		t.Errorf("BytesProcessed = %d, want 8", st.BytesProcessed)
	}
}
