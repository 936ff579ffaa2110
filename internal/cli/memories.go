package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/patchwork-labs/stratum/internal/engine"
	"github.com/patchwork-labs/stratum/internal/memory"
)

var (
	putMeta       []string
	putImportance float64
)

var putCmd = &cobra.Command{
	Use:   "put <content>",
	Short: "Store a memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		metadata := make(map[string]any, len(putMeta))
		for _, kv := range putMeta {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("metadata %q: want key=value", kv)
			}
			metadata[k] = v
		}

		return withSystem(func(ctx context.Context, sys *engine.System) error {
			var e *memory.Entry
			var err error
			if putImportance >= 0 {
				e, err = sys.StoreWithImportance(ctx, args[0], metadata, putImportance)
			} else {
				e, err = sys.Store(ctx, args[0], metadata)
			}
			if err != nil {
				return err
			}
			fmt.Printf("%s  stage=%s  importance=%.2f\n", e.ID, e.Stage, e.Importance)
			return nil
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Fetch a memory by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSystem(func(ctx context.Context, sys *engine.System) error {
			e, err := sys.Get(ctx, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(e)
		})
	},
}

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search memories across all stages",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		return withSystem(func(ctx context.Context, sys *engine.System) error {
			results, err := sys.Retrieve(ctx, query, searchLimit)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("no matches")
				return nil
			}
			for _, r := range results {
				fmt.Printf("%.3f  [%s]  %s\n", r.Score, r.Entry.Stage, r.Entry.Text())
			}
			return nil
		})
	},
}

func init() {
	putCmd.Flags().StringArrayVar(&putMeta, "meta", nil, "metadata key=value (repeatable)")
	putCmd.Flags().Float64Var(&putImportance, "importance", -1, "override estimated importance [0,1]")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum results")
}
