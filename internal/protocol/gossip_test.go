package protocol

import (
	"context"
	"testing"

	"github.com/Klingon-tech/klingnet-mesh/pkg/types"
)

func newTestGossip(t *testing.T) *Gossip {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewGossip(ctx, types.NewNodeID())
}

func TestGossip_DefaultsAndTuning(t *testing.T) {
	g := newTestGossip(t)
	if g.Fanout() != DefaultFanout || g.Rounds() != DefaultRounds {
		t.Errorf("defaults = %d/%d, want %d/%d", g.Fanout(), g.Rounds(), DefaultFanout, DefaultRounds)
	}

	g.WithFanout(5).WithRounds(2)
	if g.Fanout() != 5 || g.Rounds() != 2 {
		t.Errorf("tuned = %d/%d, want 5/2", g.Fanout(), g.Rounds())
	}

	// Non-positive values are ignored.
	g.WithFanout(0).WithRounds(-1)
	if g.Fanout() != 5 || g.Rounds() != 2 {
		t.Error("non-positive tuning values applied")
	}
}

func TestGossip_WithoutSelectorEmitsBroadcast(t *testing.T) {
	g := newTestGossip(t)

	m := types.NewBroadcast(types.NewNodeID(), []byte("g"))
	m.ProtocolTag = types.TagGossip

	out, err := g.HandleMessage(m, types.NewNodeID())
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("produced %d messages, want 1", len(out))
	}
	if out[0].To != nil {
		t.Error("selector-less gossip addressed its output")
	}
	if out[0].Hops != m.Hops+1 || out[0].ID != m.ID {
		t.Error("forward invariants violated")
	}

	if dup, _ := g.HandleMessage(m, types.NewNodeID()); len(dup) != 0 {
		t.Error("duplicate delivery was forwarded")
	}
}

func TestGossip_FanoutSelection(t *testing.T) {
	g := newTestGossip(t)
	g.WithFanout(2).WithRounds(3)

	peers := make([]types.NodeID, 6)
	for i := range peers {
		peers[i] = types.NewNodeID()
	}
	next := 0
	g.WithPeerSelector(func(n int, exclude types.NodeID) []types.NodeID {
		// Deterministic rotation through the peer set.
		out := make([]types.NodeID, 0, n)
		for len(out) < n {
			out = append(out, peers[next%len(peers)])
			next++
		}
		return out
	})

	origin := types.NewNodeID()
	m := types.NewBroadcast(origin, []byte("epidemic"))
	m.ProtocolTag = types.TagGossip

	from := types.NewNodeID()
	out, err := g.HandleMessage(m, from)
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	// 3 rounds × fanout 2 over 6 distinct peers: every output is a
	// distinct unicast, at most fanout×rounds of them.
	if len(out) == 0 || len(out) > 6 {
		t.Fatalf("produced %d messages, want 1..6", len(out))
	}
	seen := make(map[types.NodeID]bool)
	for _, o := range out {
		if o.To == nil {
			t.Fatal("fanout output has no destination")
		}
		if seen[*o.To] {
			t.Errorf("peer %s targeted twice", o.To.Short())
		}
		seen[*o.To] = true
		if o.ID != m.ID || o.From != origin || o.Hops != m.Hops+1 {
			t.Error("forward invariants violated")
		}
		if o.ProtocolTag != types.TagGossip {
			t.Errorf("output tag = %q, want gossip", o.ProtocolTag)
		}
	}
}

func TestGossip_SelectorExcludesSourceAndSelf(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	self := types.NewNodeID()
	g := NewGossip(ctx, self)

	from := types.NewNodeID()
	other := types.NewNodeID()
	g.WithPeerSelector(func(n int, exclude types.NodeID) []types.NodeID {
		// A sloppy selector that returns everyone; the protocol must
		// still filter self and the source peer.
		return []types.NodeID{self, from, other}
	})

	m := types.NewBroadcast(types.NewNodeID(), nil)
	m.ProtocolTag = types.TagGossip

	out, _ := g.HandleMessage(m, from)
	if len(out) != 1 {
		t.Fatalf("produced %d messages, want 1", len(out))
	}
	if *out[0].To != other {
		t.Error("self or source peer selected as gossip target")
	}
}

func TestGossip_ExpiredNotGossiped(t *testing.T) {
	g := newTestGossip(t)

	m := types.NewBroadcast(types.NewNodeID(), nil)
	m.ProtocolTag = types.TagGossip
	m.TTL = 2
	m.Hops = 2

	if out, _ := g.HandleMessage(m, types.NewNodeID()); len(out) != 0 {
		t.Error("expired message was gossiped")
	}
}
