package protocol

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Klingon-tech/klingnet-mesh/pkg/mesherr"
	"github.com/Klingon-tech/klingnet-mesh/pkg/types"
)

func TestSeenSet_SeenInserts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newSeenSet(ctx, time.Minute, time.Minute)

	if s.Seen(42) {
		t.Error("first sighting reported as seen")
	}
	if !s.Seen(42) {
		t.Error("second sighting not reported as seen")
	}
	if !s.Contains(42) {
		t.Error("Contains false after insert")
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestSeenSet_SweepEvictsOldEntries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newSeenSet(ctx, 30*time.Millisecond, 10*time.Millisecond)

	s.Seen(1)
	deadline := time.Now().Add(time.Second)
	for s.Contains(1) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.Contains(1) {
		t.Error("entry survived past its ttl")
	}
}

func TestSeenSet_ConcurrentSeen(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newSeenSet(ctx, time.Minute, time.Minute)

	// Exactly one of N racing sightings of the same id wins.
	const racers = 16
	var wg sync.WaitGroup
	firsts := make(chan bool, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !s.Seen(7) {
				firsts <- true
			}
		}()
	}
	wg.Wait()
	close(firsts)

	count := 0
	for range firsts {
		count++
	}
	if count != 1 {
		t.Errorf("%d racers claimed the first sighting, want 1", count)
	}
}

func TestRegistry_Dispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	self := types.NewNodeID()
	r := NewRegistry()
	r.Register(NewFlooding(ctx, self))

	m := types.NewBroadcast(types.NewNodeID(), []byte("route me"))
	m.ProtocolTag = types.TagFlooding

	out, err := r.HandleMessage(m, types.NewNodeID())
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(out) != 1 {
		t.Errorf("produced %d messages, want 1", len(out))
	}

	// The message's own tag is authoritative: a gossip-tagged message
	// finds no handler here.
	m2 := types.NewBroadcast(types.NewNodeID(), nil)
	m2.ProtocolTag = types.TagGossip
	_, err = r.HandleMessage(m2, types.NewNodeID())
	if err == nil {
		t.Fatal("unregistered tag dispatched")
	}
	if mesherr.KindOf(err) != mesherr.KindProtocol {
		t.Errorf("unregistered tag error = %v, want protocol kind", err)
	}
}

func TestRegistry_StatsFor(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRegistry()
	r.Register(NewGossip(ctx, types.NewNodeID()))

	if _, ok := r.StatsFor(types.TagGossip); !ok {
		t.Error("StatsFor missed a registered protocol")
	}
	if _, ok := r.StatsFor(types.TagConsensus); ok {
		t.Error("StatsFor invented an unregistered protocol")
	}
	if len(r.Tags()) != 1 {
		t.Errorf("Tags() = %v, want one tag", r.Tags())
	}
}
