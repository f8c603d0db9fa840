package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/prospeqta/leadgen-cli/internal/export"
	"github.com/prospeqta/leadgen-cli/internal/model"
	"github.com/prospeqta/leadgen-cli/internal/store"
)

var exportStatus string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored leads to a spreadsheet or CRM",
}

func exportLeads(cmd *cobra.Command, e *env) ([]model.Lead, error) {
	return e.Store.ListLeads(cmd.Context(), scanTenant, store.LeadFilter{
		Status: model.Status(exportStatus),
	})
}

var exportXLSXCmd = &cobra.Command{
	Use:   "xlsx <file>",
	Short: "Write leads to an .xlsx spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd, func(e *env) error {
			leads, err := exportLeads(cmd, e)
			if err != nil {
				return err
			}

			f, err := os.Create(args[0])
			if err != nil {
				return eris.Wrapf(err, "create %s", args[0])
			}
			defer f.Close()

			if err := export.WriteLeadsXLSX(f, leads); err != nil {
				return err
			}
			zap.L().Info("xlsx export complete",
				zap.String("file", args[0]),
				zap.Int("leads", len(leads)),
			)
			return nil
		})
	},
}

var exportNotionCmd = &cobra.Command{
	Use:   "notion",
	Short: "Push leads into the configured Notion database",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd, func(e *env) error {
			if e.Notion == nil {
				return eris.New("notion export not configured")
			}
			leads, err := exportLeads(cmd, e)
			if err != nil {
				return err
			}
			for _, lead := range leads {
				if err := e.Notion.ExportLead(cmd.Context(), lead); err != nil {
					zap.L().Error("notion export failed",
						zap.String("lead", lead.ID),
						zap.Error(err),
					)
					continue
				}
			}
			zap.L().Info("notion export complete", zap.Int("leads", len(leads)))
			return nil
		})
	},
}

var exportSalesforceCmd = &cobra.Command{
	Use:   "salesforce",
	Short: "Push leads into Salesforce",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd, func(e *env) error {
			if e.Salesforce == nil {
				return eris.New("salesforce export not configured")
			}
			leads, err := exportLeads(cmd, e)
			if err != nil {
				return err
			}
			for _, lead := range leads {
				if err := e.Salesforce.ExportLead(cmd.Context(), lead); err != nil {
					zap.L().Error("salesforce export failed",
						zap.String("lead", lead.ID),
						zap.Error(err),
					)
					continue
				}
			}
			zap.L().Info("salesforce export complete", zap.Int("leads", len(leads)))
			return nil
		})
	},
}

func init() {
	exportCmd.PersistentFlags().StringVar(&scanTenant, "tenant", "", "tenant id (required)")
	exportCmd.PersistentFlags().StringVar(&exportStatus, "status", "", "only export leads in this status")

	exportCmd.AddCommand(exportXLSXCmd, exportNotionCmd, exportSalesforceCmd)
	rootCmd.AddCommand(exportCmd)
}
