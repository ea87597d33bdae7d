package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ilhicas/webex-partner-ops/internal/cli"
)

func init() {
	tokensCmd := &cobra.Command{
		Use:   "tokens",
		Short: "Manage integration OAuth tokens",
	}

	refreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the access token of every integration in the master file",
		Long: `Refresh every entry of the token master file, write a dated backup and a
refresh log, and overwrite the master file with the new tokens.`,
		Run: func(cmd *cobra.Command, args []string) {
			run("token refresh", func(ctx context.Context) error {
				return cli.RunTokens(ctx, env())
			})
		},
	}

	refreshCmd.Flags().String("master-file", "", "Token master file (default from config, tokens_master.json)")
	refreshCmd.Flags().String("backup-dir", "", "Backup directory (default from config, access_tokens)")
	refreshCmd.Flags().String("log-dir", "", "Refresh log directory (default from config, token_logs)")
	viper.BindPFlag("tokens.master_file", refreshCmd.Flags().Lookup("master-file"))
	viper.BindPFlag("tokens.backup_dir", refreshCmd.Flags().Lookup("backup-dir"))
	viper.BindPFlag("tokens.log_dir", refreshCmd.Flags().Lookup("log-dir"))

	tokensCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(tokensCmd)
}
