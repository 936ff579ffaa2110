package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/patchwork-labs/stratum/internal/memory"
)

func TestSweepDecayEvictsExpiredAtCapacity(t *testing.T) {
	cfg := testConfig()
	cfg.Working.Capacity = 1
	cfg.Thresholds.Episodic = 0.9
	sys := openRunning(t, cfg)
	ctx := context.Background()

	stale := memory.NewEntry("stale scratch note", nil, 0.5, time.Now().Add(-2*time.Hour))
	if err := sys.backends[memory.StageWorking].Store(ctx, stale); err != nil {
		t.Fatalf("seed: %v", err)
	}

	removed, err := sys.SweepDecay()
	if err != nil {
		t.Fatalf("SweepDecay: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := sys.backends[memory.StageWorking].GetByID(ctx, stale.ID); !errors.Is(err, memory.ErrNotFound) {
		t.Error("expired entry survived sweep")
	}

	st := sys.Stats(ctx)
	if st.Evictions != 1 {
		t.Errorf("evictions = %d, want 1", st.Evictions)
	}
}

func TestSweepDecayKeepsFreshEntries(t *testing.T) {
	cfg := testConfig()
	cfg.Working.Capacity = 1
	cfg.Thresholds.Episodic = 0.9
	sys := openRunning(t, cfg)
	ctx := context.Background()

	if _, err := sys.Store(ctx, "fresh scratch note", nil); err != nil {
		t.Fatalf("Store: %v", err)
	}

	removed, err := sys.SweepDecay()
	if err != nil {
		t.Fatalf("SweepDecay: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
}
