package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/enrich-cli/internal/ledger"
	"github.com/sells-group/enrich-cli/internal/model"
)

var statusRecordID string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ledger state and pending review depth",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if statusRecordID != "" {
			entries, err := env.Store.GetByRecord(ctx, statusRecordID)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Printf("no ledger entries for record %s\n", statusRecordID)
				return nil
			}
			out, _ := json.MarshalIndent(entries, "", "  ")
			fmt.Println(string(out))
			return nil
		}

		for _, d := range []model.Disposition{
			model.DispositionApplied,
			model.DispositionPendingReview,
			model.DispositionRejected,
			model.DispositionError,
		} {
			entries, err := env.Store.ListByDisposition(ctx, d, 1000)
			if err != nil {
				return err
			}
			fmt.Printf("%-16s %d\n", d, len(entries))
		}

		pending, err := env.Reviews.List(ctx, ledger.ReviewFilter{Status: model.ReviewPending, Limit: 1000})
		if err != nil {
			return err
		}
		fmt.Printf("pending reviews: %d\n", len(pending))
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusRecordID, "record", "", "show ledger entries for one record")
	rootCmd.AddCommand(statusCmd)
}
