package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ilhicas/webex-partner-ops/internal/config"
)

var configPath string

func init() {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  `Manage configuration for the Webex partner operations tool.`,
	}

	generateConfigCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a default configuration file",
		Long:  `Generate a default configuration file with every setting and its default value.`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := generateDefaultConfig(configPath); err != nil {
				fmt.Fprintf(os.Stderr, "Error generating config: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Configuration file generated at: %s\n", configPath)
		},
	}

	generateConfigCmd.Flags().StringVarP(&configPath, "path", "p", config.DefaultFileName, "Path to save the configuration file")

	configCmd.AddCommand(generateConfigCmd)
	rootCmd.AddCommand(configCmd)
}

const defaultConfig = `# Webex Partner Ops Configuration

webex:
  base_url: https://webexapis.com/v1
  # Credentials are best set via environment or .env:
  #   ACCESS_TOKEN, CLIENT_ID, CLIENT_SECRET, REFRESH_TOKEN
  # access_token: YOUR_ACCESS_TOKEN
  timeout: 60s
  page_size: 100
  rate_limit:
    calls: 10
    period: 60s

retry:
  max_attempts: 8
  base_delay: 1.5s
  max_delay: 60s
  honor_retry_after: true

fetch:
  # Keep records fetched before a failure on the failed outcome
  keep_partial: false

billing:
  poll_interval: 10s
  max_wait: 30m
  report_type: CUSTOMER
  # Refresh the access token first when client credentials are set
  refresh_token: true

output:
  dir: .
  # table or json
  format: table

log:
  level: info
  # console or json
  format: console

pstn:
  provider_keyword: veracity
  # Connection option IDs tried in order by "pstn flip"
  option_ids: []

tokens:
  master_file: tokens_master.json
  backup_dir: access_tokens
  log_dir: token_logs

# Run summary sinks: log, cloudwatch, newrelic
sinks: []

aws:
  region: us-west-2
  profile: default
  namespace: WebexPartnerOps

newrelic:
  account_id: 0
  # Keys are best set via NEW_RELIC_API_KEY and NEW_RELIC_INSERT_KEY
  # insert_key: YOUR_INSERT_KEY
`

func generateDefaultConfig(path string) error {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("could not determine home directory: %w", err)
		}
		path = filepath.Join(home, config.DefaultFileName)
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists at %s, use --path to specify a different location or delete the existing file", path)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("could not create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(defaultConfig), 0644); err != nil {
		return fmt.Errorf("could not write configuration file: %w", err)
	}

	return nil
}
