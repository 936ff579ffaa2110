package cli

import (
	"context"
	"fmt"

	"github.com/patchwork-labs/stratum/internal/config"
	"github.com/patchwork-labs/stratum/internal/engine"
)

// withSystem runs fn against an in-process System opened from config.
// One-shot commands disable the background workers; consolidation and
// decay belong to the serve loop.
func withSystem(fn func(ctx context.Context, sys *engine.System) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = defaultDataDir()
	}
	cfg.Consolidation.Auto = false
	cfg.Decay.SweepIntervalSeconds = 0

	sys, err := engine.Open(cfg)
	if err != nil {
		return fmt.Errorf("open system: %w", err)
	}
	if err := sys.Start(); err != nil {
		return fmt.Errorf("start system: %w", err)
	}

	ctx := context.Background()
	runErr := fn(ctx, sys)
	if err := sys.Shutdown(ctx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
