package engine

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/patchwork-labs/stratum/internal/memory"
)

// Result is one retrieval hit with its score breakdown.
type Result struct {
	Entry     *memory.Entry `json:"entry"`
	Relevance float64       `json:"relevance"`
	Decay     float64       `json:"decay"`
	Score     float64       `json:"score"`
}

type stageHits struct {
	stage   memory.Stage
	entries []*memory.Entry
	err     error
}

// Retrieve fans the query out to all stages concurrently, then fuses
// the partial results: duplicates collapse to their highest stage,
// each survivor is scored relevance x importance x decay, zero scores
// drop, and the rest come back best first. A failed or timed-out stage
// contributes an empty partial instead of failing the query.
func (s *System) Retrieve(ctx context.Context, query string, limit int) ([]Result, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.cfg.Retrieval.DefaultLimit
	}
	overfetch := limit * s.cfg.Retrieval.Overfetch

	ch := make(chan stageHits, len(s.backends))
	for _, st := range memory.Stages() {
		go func(st memory.Stage) {
			qctx, cancel := context.WithTimeout(ctx, s.cfg.BackendTimeout())
			defer cancel()

			entries, err := s.backends[st].Search(qctx, query, overfetch)
			ch <- stageHits{stage: st, entries: entries, err: err}
		}(st)
	}

	// Dedupe by ID, keeping the copy from the highest stage.
	best := make(map[string]*memory.Entry)
	owner := make(map[string]memory.Stage)
	for range s.backends {
		hits := <-ch
		if hits.err != nil {
			s.stats.searchFailure()
			continue
		}
		for _, e := range hits.entries {
			if prev, ok := best[e.ID]; ok && prev.Stage >= e.Stage {
				continue
			}
			best[e.ID] = e
			owner[e.ID] = hits.stage
		}
	}

	now := time.Now()
	results := make([]Result, 0, len(best))
	for _, e := range best {
		rel := relevance(query, e.Text())
		if rel == 0 {
			continue
		}
		decay := memory.DecayFactor(e, s.cfg.DecayRate(e.Stage.String()), s.cfg.Decay.Floor, now)
		score := rel * e.Importance * decay
		if score == 0 {
			continue
		}
		results = append(results, Result{Entry: e, Relevance: rel, Decay: decay, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}

	for _, r := range results {
		if err := s.backends[owner[r.Entry.ID]].Touch(ctx, r.Entry.ID); err != nil {
			log.Printf("retrieve: touch %s in %s: %v", r.Entry.ID, owner[r.Entry.ID], err)
		}
	}

	s.stats.retrieved(len(results))
	return results, nil
}

// relevance scores how well content matches the query: 1.0 for an
// exact substring match, otherwise the fraction of query terms present
// in the content.
func relevance(query, content string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	c := strings.ToLower(content)
	if q == "" {
		return 0
	}
	if strings.Contains(c, q) {
		return 1.0
	}

	terms := strings.Fields(q)
	if len(terms) == 0 {
		return 0
	}
	matched := 0
	for _, t := range terms {
		if strings.Contains(c, t) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}
