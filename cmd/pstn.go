package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ilhicas/webex-partner-ops/internal/cli"
)

var (
	pstnOrgs cli.OrgSource
	flipOpts cli.FlipOptions
)

func init() {
	pstnCmd := &cobra.Command{
		Use:   "pstn",
		Short: "Audit, discover and migrate location PSTN connections",
		Long: `Work on the PSTN connection of every location of the selected organizations.
Without --orgs-file or --org every customer organization is used.`,
	}
	orgFlags(pstnCmd.PersistentFlags(), &pstnOrgs)

	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Record the PSTN connection of every location",
		Run: func(cmd *cobra.Command, args []string) {
			requireAPI()
			run("PSTN audit", func(ctx context.Context) error {
				return cli.RunPSTNAudit(ctx, env(), pstnOrgs)
			})
		},
	}

	discoverCmd := &cobra.Command{
		Use:   "discover",
		Short: "List connection options matching the provider keyword",
		Run: func(cmd *cobra.Command, args []string) {
			requireAPI()
			run("PSTN discovery", func(ctx context.Context) error {
				return cli.RunPSTNDiscover(ctx, env(), pstnOrgs)
			})
		},
	}
	discoverCmd.Flags().String("keyword", "", "Provider keyword (default from config, veracity)")
	viper.BindPFlag("pstn.provider_keyword", discoverCmd.Flags().Lookup("keyword"))

	flipCmd := &cobra.Command{
		Use:   "flip",
		Short: "Move every location to the first accepted connection option",
		Run: func(cmd *cobra.Command, args []string) {
			requireAPI()
			run("PSTN flip", func(ctx context.Context) error {
				return cli.RunPSTNFlip(ctx, env(), pstnOrgs, flipOpts)
			})
		},
	}
	flipCmd.Flags().StringSliceVar(&flipOpts.OptionIDs, "option-id", nil, "Connection option IDs to try in order (default from config)")
	flipCmd.Flags().BoolVar(&flipOpts.DryRun, "dry-run", false, "List the intended changes without calling the API")

	pstnCmd.AddCommand(auditCmd, discoverCmd, flipCmd)
	rootCmd.AddCommand(pstnCmd)
}
