package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/prospeqta/leadgen-cli/internal/model"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich <lead-id>",
	Short: "Run the deep-dive enrichment on a stored lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd, func(e *env) error {
			lead, err := e.Store.GetLead(cmd.Context(), scanTenant, args[0])
			if err != nil {
				return err
			}
			if lead == nil {
				return eris.Errorf("lead not found: %s", args[0])
			}

			enrichErr := e.Enricher.Enrich(cmd.Context(), lead)
			// Persist whatever state enrichment reached before reporting.
			if err := e.Store.SaveLead(cmd.Context(), *lead); err != nil {
				return err
			}
			if enrichErr != nil {
				return enrichErr
			}

			out, err := json.MarshalIndent(lead, "", "  ")
			if err != nil {
				return eris.Wrap(err, "marshal lead")
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			zap.L().Info("enrichment complete",
				zap.String("lead", lead.ID),
				zap.String("status", string(model.StatusEnriched)),
			)
			return nil
		})
	},
}

func init() {
	enrichCmd.Flags().StringVar(&scanTenant, "tenant", "", "tenant id (required)")
	rootCmd.AddCommand(enrichCmd)
}
