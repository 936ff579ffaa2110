package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/patchwork-labs/stratum/internal/engine"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-stage occupancy and counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSystem(func(ctx context.Context, sys *engine.System) error {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(sys.Stats(ctx))
		})
	},
}

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Run one consolidation pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSystem(func(ctx context.Context, sys *engine.System) error {
			res, err := sys.Consolidate(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("run %s: examined=%d promoted=%d failed=%d\n",
				res.RunID, res.Examined, res.Promoted, res.Failed)
			return nil
		})
	},
}
