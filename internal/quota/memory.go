package quota

import (
	"container/list"
	"context"
	"sync"
	"time"
)

type entry struct {
	at     float64
	tokens int64
}

// MemoryStore is a per-process sliding window counter, grounded on the
// original gateway's InMemoryMeterStore. Not safe for multi-process
// deployments; each replica keeps its own counters.
type MemoryStore struct {
	mu     sync.Mutex
	window time.Duration
	data   map[string]*list.List
	now    func() time.Time
}

// NewMemoryStore builds a MemoryStore with the given sliding window.
func NewMemoryStore(window time.Duration) *MemoryStore {
	return &MemoryStore{
		window: window,
		data:   make(map[string]*list.List),
		now:    time.Now,
	}
}

func (s *MemoryStore) Increment(_ context.Context, user string, tokens int64) (int64, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := float64(s.now().UnixNano()) / 1e9
	dq, ok := s.data[user]
	if !ok {
		dq = list.New()
		s.data[user] = dq
	}
	dq.PushBack(entry{at: now, tokens: tokens})

	cutoff := now - s.window.Seconds()
	for dq.Len() > 0 {
		front := dq.Front().Value.(entry)
		if front.at >= cutoff {
			break
		}
		dq.Remove(dq.Front())
	}

	var total int64
	oldest := now
	for e := dq.Front(); e != nil; e = e.Next() {
		v := e.Value.(entry)
		total += v.tokens
	}
	if dq.Len() > 0 {
		oldest = dq.Front().Value.(entry).at
	}
	return total, oldest, nil
}
