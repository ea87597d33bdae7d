package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ilhicas/webex-partner-ops/internal/cli"
	"github.com/ilhicas/webex-partner-ops/internal/config"
	"github.com/ilhicas/webex-partner-ops/internal/logging"

	// Register the run summary sinks.
	_ "github.com/ilhicas/webex-partner-ops/internal/sinks/aws"
	_ "github.com/ilhicas/webex-partner-ops/internal/sinks/newrelic"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "webex-partner-ops",
	Short: "Automate Webex partner administration",
	Long: `A CLI tool that runs recurring Webex partner operations across customer
organizations: license and overage reports, wholesale billing reports,
PSTN audits and migrations, and bulk OAuth token refresh.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./"+config.DefaultFileName+" or $HOME/"+config.DefaultFileName+")")
	flags.StringP("output", "o", "table", "Console output format (table, json)")
	flags.String("output-dir", ".", "Directory for generated files")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "console", "Log format (console, json)")
	flags.StringSlice("sink", nil, "Run summary sinks (log, cloudwatch, newrelic)")

	viper.BindPFlag("config", flags.Lookup("config"))
	viper.BindPFlag("output.format", flags.Lookup("output"))
	viper.BindPFlag("output.dir", flags.Lookup("output-dir"))
	viper.BindPFlag("log.level", flags.Lookup("log-level"))
	viper.BindPFlag("log.format", flags.Lookup("log-format"))
	viper.BindPFlag("sinks", flags.Lookup("sink"))
}

func initConfig() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: could not read .env file: %v\n", err)
	}

	loaded, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	cfg = loaded

	logger = logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if used := config.ConfigFileUsed(); used != "" {
		logger.Debug().Str("file", used).Msg("using config file")
	}
}

// env builds the workflow environment for the current command.
func env() cli.Env {
	return cli.Env{Config: cfg, Logger: logger, Out: os.Stdout}
}

// requireAPI validates the settings API-backed commands need.
func requireAPI() {
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes a workflow and exits non-zero on failure.
func run(name string, fn func(ctx context.Context) error) {
	if err := fn(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error running %s: %v\n", name, err)
		os.Exit(1)
	}
}

// orgFlags registers the organization selection flags on fs.
func orgFlags(fs *pflag.FlagSet, src *cli.OrgSource) {
	fs.StringVarP(&src.File, "orgs-file", "f", "", "Cleaned overages CSV with Customer Name and Customer Org ID columns")
	fs.StringArrayVar(&src.Flags, "org", nil, "Organization as id or id=name (repeatable)")
}
