package engine

import (
	"context"
	"sync"
	"time"

	"github.com/patchwork-labs/stratum/internal/memory"
)

// Stats is a point-in-time snapshot of system activity.
type Stats struct {
	State                  string                       `json:"state"`
	UptimeSeconds          float64                      `json:"uptime_seconds"`
	Stores                 int64                        `json:"stores"`
	SecondaryWriteFailures int64                        `json:"secondary_write_failures"`
	Retrievals             int64                        `json:"retrievals"`
	Hits                   int64                        `json:"hits"`
	SearchFailures         int64                        `json:"search_failures"`
	Promotions             int64                        `json:"promotions"`
	Evictions              int64                        `json:"evictions"`
	ConsolidationRuns      int64                        `json:"consolidation_runs"`
	Stages                 map[string]memory.StageStats `json:"stages"`
}

type collector struct {
	mu                     sync.Mutex
	stores                 int64
	secondaryWriteFailures int64
	retrievals             int64
	hits                   int64
	searchFailures         int64
	promotions             int64
	evictions              int64
	consolidationRuns      int64
}

func newCollector() *collector { return &collector{} }

func (c *collector) stored() {
	c.mu.Lock()
	c.stores++
	c.mu.Unlock()
}

func (c *collector) secondaryWriteFailure() {
	c.mu.Lock()
	c.secondaryWriteFailures++
	c.mu.Unlock()
}

func (c *collector) retrieved(hits int) {
	c.mu.Lock()
	c.retrievals++
	c.hits += int64(hits)
	c.mu.Unlock()
}

func (c *collector) searchFailure() {
	c.mu.Lock()
	c.searchFailures++
	c.mu.Unlock()
}

func (c *collector) promoted() {
	c.mu.Lock()
	c.promotions++
	c.mu.Unlock()
}

func (c *collector) evicted(n int) {
	c.mu.Lock()
	c.evictions += int64(n)
	c.mu.Unlock()
}

func (c *collector) consolidationRun() {
	c.mu.Lock()
	c.consolidationRuns++
	c.mu.Unlock()
}

func (c *collector) snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Stores:                 c.stores,
		SecondaryWriteFailures: c.secondaryWriteFailures,
		Retrievals:             c.retrievals,
		Hits:                   c.hits,
		SearchFailures:         c.searchFailures,
		Promotions:             c.promotions,
		Evictions:              c.evictions,
		ConsolidationRuns:      c.consolidationRuns,
	}
}

// Stats reports counters plus per-stage occupancy. Stage backends that
// fail to report are omitted from the snapshot rather than failing it.
func (s *System) Stats(ctx context.Context) Stats {
	snap := s.stats.snapshot()
	snap.State = s.State().String()
	if !s.startedAt.IsZero() {
		snap.UptimeSeconds = time.Since(s.startedAt).Seconds()
	}

	snap.Stages = make(map[string]memory.StageStats, len(s.backends))
	for st, b := range s.backends {
		stats, err := b.Stats(ctx)
		if err != nil {
			continue
		}
		snap.Stages[st.String()] = stats
	}
	return snap
}
