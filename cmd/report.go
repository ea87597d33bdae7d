package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ilhicas/webex-partner-ops/internal/cli"
)

var (
	licenseOrgs cli.OrgSource
	overageOrgs cli.OrgSource
	cleanOutput string
)

func init() {
	licensesCmd := &cobra.Command{
		Use:   "licenses",
		Short: "Generate the license report of customer organizations",
		Long: `Activate every organization, fetch all of its licenses and write the flat
license export, the pivoted LICENSE_REPORT (XLSX and CSV) and the success and
failure lists.`,
		Run: func(cmd *cobra.Command, args []string) {
			requireAPI()
			run("license report", func(ctx context.Context) error {
				return cli.RunLicenses(ctx, env(), licenseOrgs)
			})
		},
	}
	orgFlags(licensesCmd.Flags(), &licenseOrgs)

	overagesCmd := &cobra.Command{
		Use:   "overages",
		Short: "Clean overage exports and report license overages",
	}

	cleanCmd := &cobra.Command{
		Use:   "clean <raw-overages.csv>",
		Short: "Repair a raw overages export whose customer names contain commas",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			path, err := cli.RunOveragesClean(env(), args[0], cleanOutput)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error cleaning overages file: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Cleaned file written to: %s\n", path)
		},
	}
	cleanCmd.Flags().StringVar(&cleanOutput, "out", "", "Output path (default cleaned_overages_<Month>_<dd>_<HH-MM>.csv in the output directory)")

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Report per-license usage status with overages highlighted",
		Run: func(cmd *cobra.Command, args []string) {
			requireAPI()
			run("overage report", func(ctx context.Context) error {
				return cli.RunOveragesReport(ctx, env(), overageOrgs)
			})
		},
	}
	orgFlags(reportCmd.Flags(), &overageOrgs)

	overagesCmd.AddCommand(cleanCmd, reportCmd)
	rootCmd.AddCommand(licensesCmd, overagesCmd)
}
