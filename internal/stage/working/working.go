// Package working implements the volatile in-process tier: a bounded
// LRU store with TTL-aware eviction. It is the mandatory first home of
// every entry and the only tier that evicts by policy.
package working

import (
	"container/list"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/patchwork-labs/stratum/internal/memory"
)

// Store is the working-tier backend. The list front holds the most
// recently used entry; eviction pops from the back.
type Store struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	order    *list.List // of *memory.Entry
}

// New creates a working store. capacity <= 0 selects 1000 entries.
func New(capacity int, ttl time.Duration) *Store {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Store{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Store upserts an entry and makes room by evicting the least recently
// used entries when over capacity. Evicted count is reported via Stats
// deltas; Store itself never fails on duplicates.
func (s *Store) Store(_ context.Context, e *memory.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[e.ID]; ok {
		el.Value = e.Clone()
		s.order.MoveToFront(el)
		return nil
	}

	s.items[e.ID] = s.order.PushFront(e.Clone())
	for s.order.Len() > s.capacity {
		s.evictLocked(s.order.Back())
	}
	return nil
}

func (s *Store) GetByID(_ context.Context, id string) (*memory.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[id]
	if !ok {
		return nil, memory.ErrNotFound
	}
	return el.Value.(*memory.Entry).Clone(), nil
}

// Search does a case-insensitive substring match over rendered content,
// returning the most important matches first.
func (s *Store) Search(_ context.Context, query string, limit int) ([]*memory.Entry, error) {
	q := strings.ToLower(query)
	s.mu.Lock()
	var hits []*memory.Entry
	for el := s.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*memory.Entry)
		if strings.Contains(strings.ToLower(e.Text()), q) {
			hits = append(hits, e.Clone())
		}
	}
	s.mu.Unlock()

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Importance > hits[j].Importance
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *Store) GetForConsolidation(_ context.Context, threshold float64, limit int) ([]*memory.Entry, error) {
	s.mu.Lock()
	var out []*memory.Entry
	for el := s.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*memory.Entry)
		if e.Importance >= threshold && !e.Consolidated() {
			out = append(out, e.Clone())
		}
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[id]
	if !ok {
		return memory.ErrNotFound
	}
	s.evictLocked(el)
	return nil
}

func (s *Store) Touch(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[id]
	if !ok {
		return memory.ErrNotFound
	}
	el.Value.(*memory.Entry).Touch(time.Now())
	s.order.MoveToFront(el)
	return nil
}

func (s *Store) Stats(_ context.Context) (memory.StageStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return memory.StageStats{
		Stage:       memory.StageWorking,
		Count:       s.order.Len(),
		Capacity:    s.capacity,
		Utilization: float64(s.order.Len()) / float64(s.capacity),
	}, nil
}

func (s *Store) Close() error { return nil }

// Sweep applies the decay manager's eviction pass: while the tier is at
// capacity, least-recently-used entries that are past their TTL or
// whose decayed effective importance fell below minRetention are
// evicted. Returns the number of entries removed.
func (s *Store) Sweep(now time.Time, ratePerDay, floor, minRetention float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for s.order.Len() >= s.capacity {
		el := s.order.Back()
		if el == nil {
			break
		}
		e := el.Value.(*memory.Entry)
		expired := s.ttl > 0 && now.Sub(e.CreatedAt) > s.ttl
		effective := memory.DecayFactor(e, ratePerDay, floor, now) * e.Importance
		if !expired && effective >= minRetention {
			break
		}
		s.evictLocked(el)
		removed++
	}
	return removed
}

func (s *Store) evictLocked(el *list.Element) {
	if el == nil {
		return
	}
	e := el.Value.(*memory.Entry)
	s.order.Remove(el)
	delete(s.items, e.ID)
}
