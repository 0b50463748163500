package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/enrich-cli/internal/enrich"
	"github.com/sells-group/enrich-cli/internal/model"
)

var (
	runRecordID    string
	runTenantID    string
	runField       string
	runPayload     string
	runPayloadFile string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Enrich a single record field",
	RunE: func(cmd *cobra.Command, args []string) error {
		payload := runPayload
		if runPayloadFile != "" {
			raw, err := os.ReadFile(runPayloadFile)
			if err != nil {
				return eris.Wrapf(err, "read payload file %s", runPayloadFile)
			}
			payload = string(raw)
		}
		if payload == "" {
			return eris.New("one of --payload or --payload-file is required")
		}

		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		req := model.NewEnrichmentRequest(runRecordID, runTenantID, runField, payload)
		outcome, err := env.Enricher.Enrich(ctx, req, payload)
		if err != nil {
			var rateErr *enrich.RateLimitError
			if errors.As(err, &rateErr) {
				fmt.Printf("refused: tenant %s is over quota (remaining: %v)\n", rateErr.TenantID, rateErr.Remaining)
				return err
			}
			return err
		}

		out, _ := json.MarshalIndent(outcome, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runRecordID, "record", "", "record ID (required)")
	runCmd.Flags().StringVar(&runTenantID, "tenant", "", "tenant ID (required)")
	runCmd.Flags().StringVar(&runField, "field", "", "field to enrich (required)")
	runCmd.Flags().StringVar(&runPayload, "payload", "", "record payload text")
	runCmd.Flags().StringVar(&runPayloadFile, "payload-file", "", "path to record payload file")
	_ = runCmd.MarkFlagRequired("record")
	_ = runCmd.MarkFlagRequired("tenant")
	_ = runCmd.MarkFlagRequired("field")
	rootCmd.AddCommand(runCmd)
}
