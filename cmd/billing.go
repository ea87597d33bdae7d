package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ilhicas/webex-partner-ops/internal/cli"
)

func init() {
	billingCmd := &cobra.Command{
		Use:   "billing",
		Short: "Generate the wholesale billing report of the previous month",
		Long: `Reuse or create the wholesale billing report of the previous calendar month,
wait until it completes, download it and write the original export and the
export with BILLABLE_UNITS appended.`,
		Run: func(cmd *cobra.Command, args []string) {
			requireAPI()
			run("billing report", func(ctx context.Context) error {
				return cli.RunBilling(ctx, env())
			})
		},
	}

	billingCmd.Flags().Duration("poll-interval", 0, "Status poll interval (default from config, 10s)")
	billingCmd.Flags().Duration("max-wait", 0, "Give up waiting for the report after this long (default from config, 30m)")
	billingCmd.Flags().String("type", "", "Report type (default from config, CUSTOMER)")
	viper.BindPFlag("billing.poll_interval", billingCmd.Flags().Lookup("poll-interval"))
	viper.BindPFlag("billing.max_wait", billingCmd.Flags().Lookup("max-wait"))
	viper.BindPFlag("billing.report_type", billingCmd.Flags().Lookup("type"))

	rootCmd.AddCommand(billingCmd)
}
