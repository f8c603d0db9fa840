package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/prospeqta/leadgen-cli/internal/model"
)

var (
	tenantDomain       string
	brandingName       string
	brandingLogo       string
	brandingColor      string
	brandingSupportVal string
)

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Manage tenants, credits, keys and branding",
}

var tenantCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a tenant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		tenant, err := e.Store.CreateTenant(cmd.Context(), args[0], tenantDomain)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tenant.ID)
		zap.L().Info("tenant created",
			zap.String("id", tenant.ID),
			zap.String("name", tenant.Name),
		)
		return nil
	},
}

var tenantGrantCmd = &cobra.Command{
	Use:   "grant-credits <tenant-id> <amount>",
	Short: "Grant credits to a tenant",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", args[1], err)
		}

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.Store.GrantCredits(cmd.Context(), args[0], amount, "manual", "cli grant"); err != nil {
			return err
		}
		balance, err := e.Store.CreditBalance(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "balance: %d\n", balance)
		return nil
	},
}

var tenantSetKeyCmd = &cobra.Command{
	Use:   "set-key <tenant-id> <api> <key>",
	Short: "Set a tenant's vendor API key (places, search or ai)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.Store.SetAPIKey(cmd.Context(), args[0], args[1], args[2]); err != nil {
			return err
		}
		zap.L().Info("api key set",
			zap.String("tenant", args[0]),
			zap.String("api", args[1]),
		)
		return nil
	},
}

var tenantBrandCmd = &cobra.Command{
	Use:   "set-branding <tenant-id>",
	Short: "Set a tenant's white-label branding",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		return e.Store.SetBranding(cmd.Context(), model.BrandingConfig{
			TenantID:     args[0],
			PlatformName: brandingName,
			LogoURL:      brandingLogo,
			PrimaryColor: brandingColor,
			CustomDomain: tenantDomain,
			SupportEmail: brandingSupportVal,
		})
	},
}

func init() {
	tenantCreateCmd.Flags().StringVar(&tenantDomain, "domain", "", "custom dashboard domain")
	tenantBrandCmd.Flags().StringVar(&brandingName, "name", "", "platform display name")
	tenantBrandCmd.Flags().StringVar(&brandingLogo, "logo", "", "logo URL")
	tenantBrandCmd.Flags().StringVar(&brandingColor, "color", "", "primary color hex")
	tenantBrandCmd.Flags().StringVar(&tenantDomain, "domain", "", "custom dashboard domain")
	tenantBrandCmd.Flags().StringVar(&brandingSupportVal, "support-email", "", "support contact email")

	tenantCmd.AddCommand(tenantCreateCmd, tenantGrantCmd, tenantSetKeyCmd, tenantBrandCmd)
	rootCmd.AddCommand(tenantCmd)
}
