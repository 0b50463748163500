package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/enrich-cli/internal/ledger"
	"github.com/sells-group/enrich-cli/internal/model"
)

var (
	reviewsStatus   string
	reviewsTenant   string
	reviewsLimit    int
	reviewsReviewer string
	reviewsReason   string
	reviewsNotes    string
)

var reviewsCmd = &cobra.Command{
	Use:   "reviews",
	Short: "Manage the manual review queue",
}

var reviewsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List review items",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		items, err := env.Reviews.List(ctx, ledger.ReviewFilter{
			Status:   model.ReviewStatus(reviewsStatus),
			TenantID: reviewsTenant,
			Limit:    reviewsLimit,
		})
		if err != nil {
			return err
		}

		if len(items) == 0 {
			fmt.Println("no review items")
			return nil
		}
		for _, item := range items {
			fmt.Printf("%s  %-10s  %s/%s  %s\n",
				item.ID, item.Status, item.Request.RecordID, item.Request.Field, item.Reason)
		}
		return nil
	},
}

var reviewsShowCmd = &cobra.Command{
	Use:   "show <item-id>",
	Short: "Show one review item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		item, err := env.Reviews.Get(ctx, args[0])
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(item, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

func resolveCmd(use, short string, resolve func(ctx context.Context, env *pipelineEnv, itemID string) (*model.ReviewItem, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <item-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env, err := initEnv(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			item, err := resolve(ctx, env, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s is now %s\n", item.ID, item.Status)
			return nil
		},
	}
}

func init() {
	reviewsListCmd.Flags().StringVar(&reviewsStatus, "status", "", "filter by status (pending|approved|rejected|escalated)")
	reviewsListCmd.Flags().StringVar(&reviewsTenant, "tenant", "", "filter by tenant ID")
	reviewsListCmd.Flags().IntVar(&reviewsLimit, "limit", 100, "max items")

	reviewsCmd.PersistentFlags().StringVar(&reviewsReviewer, "reviewer", "", "reviewer ID")
	reviewsCmd.PersistentFlags().StringVar(&reviewsNotes, "notes", "", "resolution notes")

	approveCmd := resolveCmd("approve", "Approve a review item and apply its value", func(ctx context.Context, env *pipelineEnv, itemID string) (*model.ReviewItem, error) {
		return env.Reviews.Approve(ctx, itemID, reviewsReviewer, reviewsNotes)
	})
	rejectCmd := resolveCmd("reject", "Reject a review item", func(ctx context.Context, env *pipelineEnv, itemID string) (*model.ReviewItem, error) {
		return env.Reviews.Reject(ctx, itemID, reviewsReviewer, reviewsReason, reviewsNotes)
	})
	rejectCmd.Flags().StringVar(&reviewsReason, "reason", "", "why the value is wrong")
	escalateCmd := resolveCmd("escalate", "Escalate a review item", func(ctx context.Context, env *pipelineEnv, itemID string) (*model.ReviewItem, error) {
		return env.Reviews.Escalate(ctx, itemID, reviewsReviewer, reviewsNotes)
	})

	reviewsCmd.AddCommand(reviewsListCmd, reviewsShowCmd, approveCmd, rejectCmd, escalateCmd)
	rootCmd.AddCommand(reviewsCmd)
}
