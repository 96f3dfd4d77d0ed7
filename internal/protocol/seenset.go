package protocol

import (
	"context"
	"sync"
	"time"
)

const (
	// seenTTL is how long a message id stays in the seen-set.
	seenTTL = 300 * time.Second

	// sweepInterval is how often expired entries are evicted.
	sweepInterval = 60 * time.Second
)

// seenSet memoizes message ids for duplicate suppression. Reads are
// lock-free; a background sweeper evicts entries older than the TTL.
// The sweeper exits when the constructor context is cancelled.
type seenSet struct {
	entries sync.Map // message id (uint64) → insertion time (time.Time)
	ttl     time.Duration
}

// newSeenSet creates a seen-set and starts its sweeper. The caller's
// context owns the sweeper's lifetime.
func newSeenSet(ctx context.Context, ttl, sweep time.Duration) *seenSet {
	s := &seenSet{ttl: ttl}
	go s.sweepLoop(ctx, sweep)
	return s
}

// Seen atomically tests membership and inserts. It returns true when
// the id was already present.
func (s *seenSet) Seen(id uint64) bool {
	_, loaded := s.entries.LoadOrStore(id, time.Now())
	return loaded
}

// Contains tests membership without inserting.
func (s *seenSet) Contains(id uint64) bool {
	_, ok := s.entries.Load(id)
	return ok
}

// Len counts the current entries.
func (s *seenSet) Len() int {
	n := 0
	s.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (s *seenSet) sweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

func (s *seenSet) sweep(now time.Time) {
	s.entries.Range(func(key, value any) bool {
		if now.Sub(value.(time.Time)) >= s.ttl {
			s.entries.Delete(key)
		}
		return true
	})
}
