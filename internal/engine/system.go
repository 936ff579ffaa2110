// Package engine orchestrates the tiered memory hierarchy: routing
// writes across stages, consolidating important entries upward,
// decaying stale ones, and fusing retrieval results.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/patchwork-labs/stratum/internal/config"
	"github.com/patchwork-labs/stratum/internal/embed"
	"github.com/patchwork-labs/stratum/internal/memory"
	"github.com/patchwork-labs/stratum/internal/stage/semantic"
	"github.com/patchwork-labs/stratum/internal/stage/sqlite"
	"github.com/patchwork-labs/stratum/internal/stage/working"
)

// State is the lifecycle state of a System.
type State int

const (
	StateUninitialized State = iota
	StateRunning
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// System is the facade over all four stages. All public methods are
// safe for concurrent use.
type System struct {
	cfg      config.Config
	working  *working.Store
	backends map[memory.Stage]memory.Backend
	stats    *collector

	stateMu sync.RWMutex
	state   State

	consolidateMu sync.Mutex
	stopCh        chan struct{}
	wg            sync.WaitGroup
	startedAt     time.Time
}

// Open builds a System from config. Durable stages live under
// cfg.Storage.DataDir; with an empty DataDir they are in-memory and
// last only for the process lifetime.
func Open(cfg config.Config) (*System, error) {
	wk := working.New(cfg.Working.Capacity, cfg.WorkingTTL())

	episodic, persistent, err := openDurable(cfg)
	if err != nil {
		return nil, err
	}

	sem, err := openSemantic(cfg)
	if err != nil {
		episodic.Close()
		persistent.Close()
		return nil, fmt.Errorf("semantic stage: %w: %w", memory.ErrBackendUnavailable, err)
	}

	return &System{
		cfg:     cfg,
		working: wk,
		backends: map[memory.Stage]memory.Backend{
			memory.StageWorking:    wk,
			memory.StageEpisodic:   episodic,
			memory.StageSemantic:   sem,
			memory.StagePersistent: persistent,
		},
		stats:  newCollector(),
		state:  StateUninitialized,
		stopCh: make(chan struct{}),
	}, nil
}

func openDurable(cfg config.Config) (*sqlite.Store, *sqlite.Store, error) {
	if cfg.Storage.DataDir == "" {
		episodic, err := sqlite.OpenMemory(memory.StageEpisodic)
		if err != nil {
			return nil, nil, fmt.Errorf("episodic stage: %w: %w", memory.ErrBackendUnavailable, err)
		}
		persistent, err := sqlite.OpenMemory(memory.StagePersistent)
		if err != nil {
			episodic.Close()
			return nil, nil, fmt.Errorf("persistent stage: %w: %w", memory.ErrBackendUnavailable, err)
		}
		return episodic, persistent, nil
	}

	episodic, err := sqlite.Open(filepath.Join(cfg.Storage.DataDir, "episodic.db"), memory.StageEpisodic)
	if err != nil {
		return nil, nil, fmt.Errorf("episodic stage: %w: %w", memory.ErrBackendUnavailable, err)
	}
	persistent, err := sqlite.Open(filepath.Join(cfg.Storage.DataDir, "persistent.db"), memory.StagePersistent)
	if err != nil {
		episodic.Close()
		return nil, nil, fmt.Errorf("persistent stage: %w: %w", memory.ErrBackendUnavailable, err)
	}
	return episodic, persistent, nil
}

func openSemantic(cfg config.Config) (*semantic.Store, error) {
	if cfg.Storage.DataDir == "" {
		return semantic.New(newEmbedder(cfg))
	}
	return semantic.Open(filepath.Join(cfg.Storage.DataDir, "semantic"), newEmbedder(cfg))
}

func newEmbedder(cfg config.Config) embed.Embedder {
	if cfg.Embedding.Provider == "ollama" && embed.ProbeOllama(cfg.Embedding.OllamaURL, cfg.Embedding.Model) {
		log.Printf("embedding: using ollama model %s", cfg.Embedding.Model)
		return embed.NewOllamaEmbedder(cfg.Embedding.OllamaURL, cfg.Embedding.Model, cfg.Embedding.Dimensions)
	}
	return embed.NewHashEmbedder(cfg.Embedding.Dimensions)
}

// Start transitions the system to running and launches the background
// consolidation and decay workers.
func (s *System) Start() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if s.state != StateUninitialized {
		return fmt.Errorf("start from state %s", s.state)
	}
	s.state = StateRunning
	s.startedAt = time.Now()

	if s.cfg.Consolidation.Auto && s.cfg.ConsolidationInterval() > 0 {
		s.wg.Add(1)
		go s.consolidationLoop()
	}
	if s.cfg.DecayInterval() > 0 {
		s.wg.Add(1)
		go s.decayLoop()
	}
	return nil
}

// Shutdown stops the workers, runs a final consolidation pass so
// nothing important is stranded in volatile tiers, and closes the
// backends. The final pass runs even when auto-consolidation is off,
// so short-lived runs still leave durable state behind. Safe to call
// more than once.
func (s *System) Shutdown(ctx context.Context) error {
	s.stateMu.Lock()
	if s.state != StateRunning {
		s.stateMu.Unlock()
		return nil
	}
	s.state = StateShuttingDown
	s.stateMu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	if _, err := s.consolidate(ctx); err != nil {
		log.Printf("shutdown consolidation: %v", err)
	}

	var errs []error
	for st, b := range s.backends {
		if err := b.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s stage: %w", st, err))
		}
	}

	s.stateMu.Lock()
	s.state = StateStopped
	s.stateMu.Unlock()
	return errors.Join(errs...)
}

// State returns the current lifecycle state.
func (s *System) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *System) running() error {
	if s.State() != StateRunning {
		return memory.ErrNotRunning
	}
	return nil
}

// Store estimates importance for the content and writes it through
// the hierarchy.
func (s *System) Store(ctx context.Context, content any, metadata map[string]any) (*memory.Entry, error) {
	return s.StoreWithImportance(ctx, content, metadata, memory.EstimateImportance(content, metadata))
}

// StoreWithImportance writes content through the working tier and
// routes a copy to the single highest durable stage whose threshold
// the given importance meets. Only the working-tier write is a hard
// failure; a failed secondary write leaves the entry working-only and
// is surfaced through stats.
func (s *System) StoreWithImportance(ctx context.Context, content any, metadata map[string]any, importance float64) (*memory.Entry, error) {
	if err := s.running(); err != nil {
		return nil, err
	}

	e := memory.NewEntry(content, metadata, importance, time.Now())

	target := s.routeTarget(e.Importance)
	if target != memory.StageWorking {
		dup := e.Clone()
		dup.Stage = target
		if err := s.backends[target].Store(ctx, dup); err != nil {
			log.Printf("store: %s stage write failed, entry %s stays working-only: %v", target, e.ID, err)
			s.stats.secondaryWriteFailure()
		} else {
			e.Stage = target
		}
	}

	if err := s.backends[memory.StageWorking].Store(ctx, e); err != nil {
		return nil, fmt.Errorf("working stage write: %w", err)
	}

	s.stats.stored()
	return e.Clone(), nil
}

// routeTarget picks the highest stage whose threshold the importance
// meets. Below every threshold the entry stays working-only.
func (s *System) routeTarget(importance float64) memory.Stage {
	t := s.cfg.Thresholds
	switch {
	case importance >= t.Persistent:
		return memory.StagePersistent
	case importance >= t.Semantic:
		return memory.StageSemantic
	case importance >= t.Episodic:
		return memory.StageEpisodic
	default:
		return memory.StageWorking
	}
}

// Get returns an entry by ID, probing stages from working outward, and
// records the access on the owning backend.
func (s *System) Get(ctx context.Context, id string) (*memory.Entry, error) {
	if err := s.running(); err != nil {
		return nil, err
	}

	for _, st := range memory.Stages() {
		e, err := s.backends[st].GetByID(ctx, id)
		if errors.Is(err, memory.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s stage get: %w", st, err)
		}
		if err := s.backends[st].Touch(ctx, id); err != nil {
			log.Printf("get: touch %s in %s: %v", id, st, err)
		}
		return e, nil
	}
	return nil, memory.ErrNotFound
}

// Remove deletes an entry from every stage that holds it.
func (s *System) Remove(ctx context.Context, id string) error {
	if err := s.running(); err != nil {
		return err
	}

	found := false
	for _, st := range memory.Stages() {
		err := s.backends[st].Remove(ctx, id)
		if errors.Is(err, memory.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%s stage remove: %w", st, err)
		}
		found = true
	}
	if !found {
		return memory.ErrNotFound
	}
	return nil
}
