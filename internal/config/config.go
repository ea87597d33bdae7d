package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ilhicas/webex-partner-ops/internal/retry"
)

// DefaultFileName is the config file looked up in the working directory.
const DefaultFileName = "webex-partner-ops.yaml"

// Config holds the application configuration
type Config struct {
	Webex    WebexConfig    `mapstructure:"webex"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Billing  BillingConfig  `mapstructure:"billing"`
	Output   OutputConfig   `mapstructure:"output"`
	Log      LogConfig      `mapstructure:"log"`
	PSTN     PSTNConfig     `mapstructure:"pstn"`
	Tokens   TokensConfig   `mapstructure:"tokens"`
	Sinks    []string       `mapstructure:"sinks"`
	AWS      AWSConfig      `mapstructure:"aws"`
	NewRelic NewRelicConfig `mapstructure:"newrelic"`
}

// WebexConfig holds partner API connection settings and credentials
type WebexConfig struct {
	BaseURL      string          `mapstructure:"base_url"`
	AccessToken  string          `mapstructure:"access_token"`
	ClientID     string          `mapstructure:"client_id"`
	ClientSecret string          `mapstructure:"client_secret"`
	RefreshToken string          `mapstructure:"refresh_token"`
	Timeout      time.Duration   `mapstructure:"timeout"`
	PageSize     int             `mapstructure:"page_size"`
	RateLimit    RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig caps client-side request rate
type RateLimitConfig struct {
	Calls  int           `mapstructure:"calls"`
	Period time.Duration `mapstructure:"period"`
}

// RetryConfig holds the transient-failure retry policy
type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	BaseDelay       time.Duration `mapstructure:"base_delay"`
	MaxDelay        time.Duration `mapstructure:"max_delay"`
	HonorRetryAfter bool          `mapstructure:"honor_retry_after"`
}

// Policy converts the settings into a retry.Policy.
func (r RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts:     r.MaxAttempts,
		BaseDelay:       r.BaseDelay,
		MaxDelay:        r.MaxDelay,
		HonorRetryAfter: r.HonorRetryAfter,
	}
}

// FetchConfig holds org-scoped fetch behaviour
type FetchConfig struct {
	KeepPartial bool `mapstructure:"keep_partial"`
}

// BillingConfig holds the wholesale billing report settings
type BillingConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxWait      time.Duration `mapstructure:"max_wait"`
	ReportType   string        `mapstructure:"report_type"`
	RefreshToken bool          `mapstructure:"refresh_token"`
}

// OutputConfig holds output location and console format
type OutputConfig struct {
	Dir    string `mapstructure:"dir"`
	Format string `mapstructure:"format"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PSTNConfig holds PSTN discovery and flip settings
type PSTNConfig struct {
	ProviderKeyword string   `mapstructure:"provider_keyword"`
	OptionIDs       []string `mapstructure:"option_ids"`
}

// TokensConfig holds the bulk token refresh file locations
type TokensConfig struct {
	MasterFile string `mapstructure:"master_file"`
	BackupDir  string `mapstructure:"backup_dir"`
	LogDir     string `mapstructure:"log_dir"`
}

// AWSConfig holds AWS-specific configuration
type AWSConfig struct {
	Region    string `mapstructure:"region"`
	Profile   string `mapstructure:"profile"`
	Namespace string `mapstructure:"namespace"`
}

// NewRelicConfig holds New Relic-specific configuration
type NewRelicConfig struct {
	AccountID int    `mapstructure:"account_id"`
	APIKey    string `mapstructure:"api_key"`
	InsertKey string `mapstructure:"insert_key"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("webex.base_url", "https://webexapis.com/v1")
	v.SetDefault("webex.timeout", 60*time.Second)
	v.SetDefault("webex.page_size", 100)
	v.SetDefault("webex.rate_limit.calls", 10)
	v.SetDefault("webex.rate_limit.period", 60*time.Second)

	v.SetDefault("retry.max_attempts", 8)
	v.SetDefault("retry.base_delay", 1500*time.Millisecond)
	v.SetDefault("retry.max_delay", 60*time.Second)
	v.SetDefault("retry.honor_retry_after", true)

	v.SetDefault("fetch.keep_partial", false)

	v.SetDefault("billing.poll_interval", 10*time.Second)
	v.SetDefault("billing.max_wait", 30*time.Minute)
	v.SetDefault("billing.report_type", "CUSTOMER")
	v.SetDefault("billing.refresh_token", true)

	v.SetDefault("output.dir", ".")
	v.SetDefault("output.format", "table")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("pstn.provider_keyword", "veracity")
	v.SetDefault("pstn.option_ids", []string{})

	v.SetDefault("tokens.master_file", "tokens_master.json")
	v.SetDefault("tokens.backup_dir", "access_tokens")
	v.SetDefault("tokens.log_dir", "token_logs")

	v.SetDefault("sinks", []string{})
	v.SetDefault("aws.namespace", "WebexPartnerOps")
}

// envBindings maps config keys to the environment variables that may carry
// them, first match wins.
var envBindings = map[string][]string{
	"webex.access_token":  {"WEBEX_ACCESS_TOKEN", "ACCESS_TOKEN"},
	"webex.client_id":     {"WEBEX_CLIENT_ID", "CLIENT_ID"},
	"webex.client_secret": {"WEBEX_CLIENT_SECRET", "CLIENT_SECRET"},
	"webex.refresh_token": {"WEBEX_REFRESH_TOKEN", "REFRESH_TOKEN"},
	"webex.base_url":      {"WEBEX_BASE_URL"},
	"aws.region":          {"AWS_REGION", "AWS_DEFAULT_REGION"},
	"aws.profile":         {"AWS_PROFILE"},
	"newrelic.account_id": {"NEW_RELIC_ACCOUNT_ID"},
	"newrelic.api_key":    {"NEW_RELIC_API_KEY"},
	"newrelic.insert_key": {"NEW_RELIC_INSERT_KEY"},
	"log.level":           {"WEBEX_LOG_LEVEL"},
}

// Load loads configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the config file registered on v (if any), binds the
// environment and unmarshals the result.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	configFile := v.GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("error getting user home directory: %w", err)
		}

		v.AddConfigPath(".")
		v.AddConfigPath(home)
		v.SetConfigType("yaml")
		v.SetConfigName(strings.TrimSuffix(DefaultFileName, ".yaml"))
	}

	v.SetEnvPrefix("WPO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envBindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("error binding env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// ConfigFileUsed reports the file the global viper instance read, if any.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

// Validate checks the settings every API-backed command needs.
func (c *Config) Validate() error {
	var problems []string
	if c.Webex.AccessToken == "" {
		problems = append(problems, "webex.access_token is required (set ACCESS_TOKEN or WEBEX_ACCESS_TOKEN)")
	}
	if c.Retry.MaxAttempts < 1 {
		problems = append(problems, "retry.max_attempts must be at least 1")
	}
	if c.Retry.BaseDelay <= 0 || c.Retry.MaxDelay <= 0 {
		problems = append(problems, "retry delays must be positive")
	}
	if c.Billing.PollInterval <= 0 {
		problems = append(problems, "billing.poll_interval must be positive")
	}
	if c.Webex.RateLimit.Calls < 0 || c.Webex.RateLimit.Period < 0 {
		problems = append(problems, "webex.rate_limit values must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
