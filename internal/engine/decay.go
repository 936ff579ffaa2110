package engine

import (
	"log"
	"time"

	"github.com/patchwork-labs/stratum/internal/memory"
)

// SweepDecay runs one decay pass on demand. Decay itself is computed
// at rank time from entry age; the sweep's job is reclaiming working
// tier space from expired or faded entries.
func (s *System) SweepDecay() (int, error) {
	if err := s.running(); err != nil {
		return 0, err
	}
	return s.sweep(), nil
}

func (s *System) sweep() int {
	removed := s.working.Sweep(
		time.Now(),
		s.cfg.DecayRate(memory.StageWorking.String()),
		s.cfg.Decay.Floor,
		s.cfg.Decay.MinRetention,
	)
	if removed > 0 {
		s.stats.evicted(removed)
		log.Printf("decay: evicted %d working entries", removed)
	}
	return removed
}

func (s *System) decayLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.DecayInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}
