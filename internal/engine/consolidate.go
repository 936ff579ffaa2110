package engine

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/patchwork-labs/stratum/internal/memory"
)

// ConsolidationResult summarizes one consolidation run.
type ConsolidationResult struct {
	RunID    string        `json:"run_id"`
	Examined int           `json:"examined"`
	Promoted int           `json:"promoted"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration_ns"`
}

// Consolidate runs one consolidation pass on demand.
func (s *System) Consolidate(ctx context.Context) (ConsolidationResult, error) {
	if err := s.running(); err != nil {
		return ConsolidationResult{}, err
	}
	return s.consolidate(ctx)
}

// consolidate promotes entries from each stage into the next one when
// their importance meets the next stage's threshold. Runs are
// serialized so overlapping ticks or manual triggers cannot promote
// the same entry twice.
func (s *System) consolidate(ctx context.Context) (ConsolidationResult, error) {
	s.consolidateMu.Lock()
	defer s.consolidateMu.Unlock()

	res := ConsolidationResult{RunID: uuid.NewString()}
	start := time.Now()

	// Adjacent tier pairs, lowest first. An entry important enough for
	// a higher tier can climb through several transitions in one run.
	for _, src := range []memory.Stage{memory.StageWorking, memory.StageEpisodic, memory.StageSemantic} {
		target, _ := src.Next()
		threshold := s.stageThreshold(target)

		candidates, err := s.backends[src].GetForConsolidation(ctx, threshold, s.cfg.Consolidation.BatchSize)
		if err != nil {
			log.Printf("consolidation %s: scan %s stage: %v", res.RunID, src, err)
			res.Failed++
			continue
		}

		for _, e := range candidates {
			res.Examined++
			if err := s.promote(ctx, src, target, e); err != nil {
				log.Printf("consolidation %s: promote %s from %s: %v", res.RunID, e.ID, src, err)
				res.Failed++
				continue
			}
			res.Promoted++
			s.stats.promoted()
		}
	}

	res.Duration = time.Since(start)
	s.stats.consolidationRun()
	if res.Examined > 0 {
		log.Printf("consolidation %s: examined=%d promoted=%d failed=%d in %s",
			res.RunID, res.Examined, res.Promoted, res.Failed, res.Duration.Round(time.Millisecond))
	}
	return res, nil
}

func (s *System) stageThreshold(st memory.Stage) float64 {
	switch st {
	case memory.StageEpisodic:
		return s.cfg.Thresholds.Episodic
	case memory.StageSemantic:
		return s.cfg.Thresholds.Semantic
	case memory.StagePersistent:
		return s.cfg.Thresholds.Persistent
	default:
		return 0
	}
}

// promote moves one entry up a stage. The copy is written to the
// target before the source is updated, so a failure mid-promotion
// leaves a duplicate rather than a loss. Entries whose recorded stage
// already is at or above the target were write-through routed at store
// time; for those only the source-side bookkeeping remains.
func (s *System) promote(ctx context.Context, src, target memory.Stage, e *memory.Entry) error {
	if e.Stage < target {
		dup := e.Clone()
		dup.Stage = target
		if err := s.backends[target].Store(ctx, dup); err != nil {
			return err
		}
	}

	if src == memory.StageWorking {
		// The working tier forgets promoted entries outright.
		return s.backends[src].Remove(ctx, e.ID)
	}

	e.MarkConsolidated(time.Now())
	return s.backends[src].Store(ctx, e)
}

func (s *System) consolidationLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.ConsolidationInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.consolidate(context.Background()); err != nil {
				log.Printf("consolidation loop: %v", err)
			}
		case <-s.stopCh:
			return
		}
	}
}
