package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/email-guardian/")
	v.AddConfigPath("$HOME/.email-guardian")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("EMAIL_GUARDIAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Scoring defaults. These mirror the historical fixed constants; they
	// are configurable for parity with other deployments.
	v.SetDefault("scoring.severity_weights.low", 1.0)
	v.SetDefault("scoring.severity_weights.medium", 2.0)
	v.SetDefault("scoring.severity_weights.high", 3.0)
	v.SetDefault("scoring.severity_weights.critical", 5.0)
	v.SetDefault("scoring.combined_weights.security", 0.3)
	v.SetDefault("scoring.combined_weights.keyword", 0.2)
	v.SetDefault("scoring.combined_weights.ml", 0.25)
	v.SetDefault("scoring.combined_weights.advanced_ml", 0.25)
	v.SetDefault("scoring.flag_threshold", 5.0)
	v.SetDefault("scoring.security_flag_threshold", 3.0)
	v.SetDefault("scoring.case_threshold", 8.0)
	v.SetDefault("scoring.severity_bands.critical", 15.0)
	v.SetDefault("scoring.severity_bands.high", 10.0)
	v.SetDefault("scoring.severity_bands.medium", 5.0)
	v.SetDefault("scoring.neutral_score", 2.5)
	v.SetDefault("scoring.dampener_factor", 0.5)
	v.SetDefault("scoring.dampener_keywords", []string{
		"automated", "system notification", "no-reply", "unsubscribe",
	})

	// Pipeline defaults
	v.SetDefault("pipeline.batch_size", 10)

	// Behavioral analysis defaults
	v.SetDefault("behavior.window_days", 30)
	v.SetDefault("behavior.max_events_per_sender", 2000)

	// Communication graph defaults
	v.SetDefault("network.max_nodes", 1000)
	v.SetDefault("network.evict_edges", 100)

	// Adaptive feedback defaults
	v.SetDefault("feedback.buffer_size", 500)
	v.SetDefault("feedback.retrain_threshold", 100)
	v.SetDefault("feedback.confidence_threshold", 0.6)
	v.SetDefault("feedback.learning_rate", 0.1)
	v.SetDefault("feedback.forgetting_factor", 0.95)

	// Storage defaults
	v.SetDefault("storage.type", "sqlite")
	v.SetDefault("storage.sqlite_path", "/data/email_guardian.db")
	v.SetDefault("storage.mysql_dsn", "user:password@tcp(localhost:3306)/email_guardian")
	v.SetDefault("storage.postgres_dsn", "postgres://localhost:5432/email_guardian?sslmode=disable")

	// Ingest defaults
	v.SetDefault("ingest.spool_dir", "/var/spool/email-guardian")
	v.SetDefault("ingest.poll_frequency", "30s")

	// Reviewer defaults
	v.SetDefault("reviewer.provider", "none")

	// Bedrock defaults
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-v2")
	v.SetDefault("bedrock.max_tokens", 1000)
	v.SetDefault("bedrock.temperature", 0.1)
	v.SetDefault("bedrock.top_p", 0.9)
	v.SetDefault("bedrock.max_body_size", 4096)

	// Gemini defaults
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-pro")
	v.SetDefault("gemini.max_tokens", 1000)
	v.SetDefault("gemini.temperature", 0.1)
	v.SetDefault("gemini.top_p", 0.9)
	v.SetDefault("gemini.max_body_size", 4096)

	// OpenAI defaults
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model_name", "gpt-4")
	v.SetDefault("openai.max_tokens", 1000)
	v.SetDefault("openai.temperature", 0.1)
	v.SetDefault("openai.top_p", 0.9)
	v.SetDefault("openai.max_body_size", 4096)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
