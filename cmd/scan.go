package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/prospeqta/leadgen-cli/internal/discovery"
	"github.com/prospeqta/leadgen-cli/internal/model"
)

var (
	scanTenant    string
	scanLocation  string
	scanUF        string
	scanPages     int
	scanRate      float64
	scanPageToken string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run discovery scans from the command line",
}

var scanGeoCmd = &cobra.Command{
	Use:   "geo <keyword>",
	Short: "Scan businesses around a location",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if scanLocation == "" {
			return eris.New("--location is required")
		}
		return withEnv(cmd, func(e *env) error {
			result, err := e.Geo.Scan(cmd.Context(), scanTenant, args[0], scanLocation, scanPageToken)
			if err != nil {
				return err
			}
			if result.NextPageToken != "" {
				zap.L().Info("more results available", zap.String("page_token", result.NextPageToken))
			}
			return saveAndPrint(cmd, e, result.Leads)
		})
	},
}

var scanRegistryCmd = &cobra.Command{
	Use:   "registry <keyword-or-cnpj>",
	Short: "Scan the company registry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd, func(e *env) error {
			leads, err := e.Registry.Scan(cmd.Context(), scanTenant, args[0], scanUF)
			if err != nil {
				return err
			}
			return saveAndPrint(cmd, e, leads)
		})
	},
}

var scanCompetitorCmd = &cobra.Command{
	Use:   "competitor <name-or-handle>",
	Short: "Scan public mentions of a competitor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd, func(e *env) error {
			return runPaged(cmd, e, func(ctx context.Context, page int) ([]model.Lead, bool, error) {
				leads, err := e.Competitor.Scan(ctx, scanTenant, args[0], page)
				return leads, len(leads) == 0, err
			})
		})
	},
}

var scanIntentCmd = &cobra.Command{
	Use:   "intent <keyword>",
	Short: "Scan for buyer-intent posts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(cmd, func(e *env) error {
			return runPaged(cmd, e, func(ctx context.Context, page int) ([]model.Lead, bool, error) {
				leads, err := e.Intent.Scan(ctx, scanTenant, args[0], page)
				return leads, len(leads) == 0, err
			})
		})
	},
}

// runPaged drives a paged strategy through the continuous-scan loop, so
// multi-page runs are throttled and stop cleanly on Ctrl-C.
func runPaged(cmd *cobra.Command, e *env, fetch discovery.PageFunc) error {
	var all []model.Lead
	err := discovery.NewContinuous(scanRate, scanPages).Run(cmd.Context(), fetch, func(leads []model.Lead) {
		all = append(all, leads...)
	})
	if err != nil {
		return err
	}
	return saveAndPrint(cmd, e, all)
}

// withEnv runs fn against a fully initialized environment and tears it down.
func withEnv(cmd *cobra.Command, fn func(*env) error) error {
	if scanTenant == "" {
		return eris.New("--tenant is required")
	}
	e, err := initEnv(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(e)
}

func saveAndPrint(cmd *cobra.Command, e *env, leads []model.Lead) error {
	if err := e.Store.SaveLeads(cmd.Context(), leads); err != nil {
		return err
	}
	out, err := json.MarshalIndent(leads, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal leads")
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	zap.L().Info("scan complete", zap.Int("leads", len(leads)))
	return nil
}

func init() {
	scanCmd.PersistentFlags().StringVar(&scanTenant, "tenant", "", "tenant id (required)")

	scanGeoCmd.Flags().StringVar(&scanLocation, "location", "", "city or region to scan")
	scanGeoCmd.Flags().StringVar(&scanPageToken, "page-token", "", "continuation token from a previous page")
	scanRegistryCmd.Flags().StringVar(&scanUF, "uf", "", "two-letter state filter")
	for _, c := range []*cobra.Command{scanCompetitorCmd, scanIntentCmd} {
		c.Flags().IntVar(&scanPages, "pages", 1, "number of result pages to walk")
		c.Flags().Float64Var(&scanRate, "rate", 0.5, "pages per second")
	}

	scanCmd.AddCommand(scanGeoCmd, scanRegistryCmd, scanCompetitorCmd, scanIntentCmd)
	rootCmd.AddCommand(scanCmd)
}
