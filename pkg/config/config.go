package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds everything the client needs to reach the hub. Values come
// from an env file (.env in the working directory or ~/.voicecli.env),
// from NIA_-prefixed environment variables, and finally from CLI flag
// overrides applied by the caller.
type Config struct {
	HubURL    string `mapstructure:"nia_hub_url"`
	APIKey    string `mapstructure:"nia_api_key"`
	HubCert   string `mapstructure:"nia_hub_cert"`
	Room      string `mapstructure:"nia_room"`
	LogLevel  string `mapstructure:"nia_log_level"`
	LogFormat string `mapstructure:"nia_log_format"`

	// MetricsFile enables an append-only JSONL sink for turn timings.
	MetricsFile string `mapstructure:"nia_metrics_file"`
	// RedactPII strips emails/phone numbers from logged transcripts.
	RedactPII bool `mapstructure:"nia_redact_pii"`

	// Source is the env file the values were loaded from, or "" when only
	// process environment variables were used.
	Source string `mapstructure:"-"`
}

// EnvFileCandidates returns the env file paths probed by Load, in order.
func EnvFileCandidates() []string {
	candidates := []string{".env"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".voicecli.env"))
	}
	return candidates
}

func Load() (Config, error) {
	return load(EnvFileCandidates())
}

func load(candidates []string) (Config, error) {
	v := viper.New()
	v.SetConfigType("env")
	v.SetDefault("nia_log_level", "warn")
	v.SetDefault("nia_log_format", "text")
	v.SetDefault("nia_redact_pii", true)

	var source string
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read env file %s: %w", path, err)
		}
		source = path
		break
	}

	// Process environment always wins over the env file.
	for _, key := range []string{"nia_hub_url", "nia_api_key", "nia_hub_cert", "nia_room", "nia_log_level", "nia_log_format", "nia_metrics_file", "nia_redact_pii"} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Source = source
	return cfg, nil
}

// Validate reports the first missing required field. Connection
// parameters are startup-fatal; everything else has a default.
func (c Config) Validate() error {
	if c.HubURL == "" {
		return fmt.Errorf("NIA_HUB_URL is not set")
	}
	if c.APIKey == "" {
		return fmt.Errorf("NIA_API_KEY is not set")
	}
	return nil
}
