package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadhunter/internal/discovery"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Find new leads",
	Long:  "Scan Google Places or the Sirene business registry for new leads and store them.",
}

var scanPlacesCmd = &cobra.Command{
	Use:   "places",
	Short: "Scan Google Places for businesses matching a query in a location",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := requireKey("places"); err != nil {
			return err
		}

		query, _ := cmd.Flags().GetString("query")
		location, _ := cmd.Flags().GetString("location")
		maxResults, _ := cmd.Flags().GetInt("max")
		auditSites, _ := cmd.Flags().GetBool("audit")
		if !cmd.Flags().Changed("max") {
			maxResults = cfg.Scan.MaxResults
		}
		if !cmd.Flags().Changed("audit") {
			auditSites = cfg.Scan.AuditWebsites
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Scanner.Places(ctx, discovery.PlacesRequest{
			Query:         query,
			Location:      location,
			MaxResults:    maxResults,
			AuditWebsites: auditSites,
		})
		if err != nil {
			return eris.Wrap(err, "scan places")
		}
		zap.L().Info("places scan complete",
			zap.Int("found", res.Found),
			zap.Int("inserted", res.Inserted),
			zap.Int("failures", len(res.Failures)),
		)
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var scanRegistryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Scan the Sirene registry for active establishments",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := requireKey("registry"); err != nil {
			return err
		}

		postalCode, _ := cmd.Flags().GetString("postal-code")
		city, _ := cmd.Flags().GetString("city")
		activity, _ := cmd.Flags().GetString("activity")
		maxResults, _ := cmd.Flags().GetInt("max")
		discover, _ := cmd.Flags().GetBool("discover-websites")

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Scanner.Registry(ctx, discovery.RegistryRequest{
			PostalCode:       postalCode,
			City:             city,
			Activity:         activity,
			MaxResults:       maxResults,
			DiscoverWebsites: discover,
		})
		if err != nil {
			return eris.Wrap(err, "scan registry")
		}
		zap.L().Info("registry scan complete",
			zap.Int("found", res.Found),
			zap.Int("inserted", res.Inserted),
			zap.Int("failures", len(res.Failures)),
		)
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	scanPlacesCmd.Flags().String("query", "", "business type to search for, e.g. \"coiffeur\" (required)")
	scanPlacesCmd.Flags().String("location", "", "city or area, e.g. \"Nantes\" (required)")
	scanPlacesCmd.Flags().Int("max", discovery.DefaultPlacesResults, "maximum results (up to 60)")
	scanPlacesCmd.Flags().Bool("audit", false, "audit the websites of new leads")
	_ = scanPlacesCmd.MarkFlagRequired("query")
	_ = scanPlacesCmd.MarkFlagRequired("location")

	scanRegistryCmd.Flags().String("postal-code", "", "postal code to search")
	scanRegistryCmd.Flags().String("city", "", "city to search")
	scanRegistryCmd.Flags().String("activity", "", "activity code (e.g. 96.02A) or name keyword")
	scanRegistryCmd.Flags().Int("max", discovery.DefaultRegistryResults, "maximum results")
	scanRegistryCmd.Flags().Bool("discover-websites", false, "look for a website for each new lead")
	scanRegistryCmd.MarkFlagsOneRequired("postal-code", "city")

	scanCmd.AddCommand(scanPlacesCmd, scanRegistryCmd)
	rootCmd.AddCommand(scanCmd)
}
