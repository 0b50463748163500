package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/enrich"
)

var (
	batchFile        string
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Enrich a batch of tasks from a JSON file",
	Long:  "Reads a JSON array of tasks ({record_id, tenant_id, field, payload}) and enriches them concurrently.",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(batchFile)
		if err != nil {
			return eris.Wrapf(err, "read batch file %s", batchFile)
		}

		var tasks []enrich.Task
		if err := json.Unmarshal(raw, &tasks); err != nil {
			return eris.Wrap(err, "parse batch file")
		}
		if len(tasks) == 0 {
			return eris.New("batch file contains no tasks")
		}

		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := batchConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.Concurrency
		}

		outcomes, err := env.Enricher.RunBatch(ctx, tasks, concurrency)
		if err != nil {
			zap.L().Error("batch aborted", zap.Error(err))
		}

		counts := map[string]int{}
		for _, o := range outcomes {
			counts[o.Status]++
		}
		fmt.Printf("batch finished: %d tasks\n", len(tasks))
		for _, status := range []string{
			enrich.StatusApplied,
			enrich.StatusPendingReview,
			enrich.StatusSkippedRateLimited,
			enrich.StatusSkippedProviderError,
			enrich.StatusError,
		} {
			if counts[status] > 0 {
				fmt.Printf("  %-24s %d\n", status, counts[status])
			}
		}

		snap := env.Enricher.Metrics().Snapshot()
		fmt.Printf("provider calls: %d, cache hits: %d, cost: $%.4f\n",
			snap.ProviderCalls, snap.CacheHits, snap.CostUSD)
		return err
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "path to JSON tasks file (required)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "worker count (default from config)")
	_ = batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}
