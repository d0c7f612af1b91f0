package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// NowPlayingTimeout bounds best-effort now-playing updates
	NowPlayingTimeout time.Duration

	// SubmitTimeout bounds each scrobble submission attempt
	SubmitTimeout time.Duration

	// PollInterval is how often the worker checks for due retries
	PollInterval time.Duration

	// Backoff policy for failed submissions
	BackoffBase time.Duration
	BackoffMax  time.Duration

	// Last.fm API credentials
	LastFM LastFMConfig
}

// LastFMConfig holds Last.fm specific configuration
type LastFMConfig struct {
	APIKey     string
	APISecret  string
	SessionKey string
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Config file locations (in order of precedence)
	configDir := getConfigDir()
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	// Set defaults
	v.SetDefault("now_playing_timeout", "10s")
	v.SetDefault("submit_timeout", "30s")
	v.SetDefault("poll_interval", "15s")
	v.SetDefault("backoff_base", "10s")
	v.SetDefault("backoff_max", "30m")

	// Read config file (optional - don't fail if missing)
	_ = v.ReadInConfig()

	// Read from environment variables, e.g. SCROBBLED_LASTFM_API_KEY
	v.SetEnvPrefix("SCROBBLED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Map config to struct
	cfg := &Config{
		NowPlayingTimeout: v.GetDuration("now_playing_timeout"),
		SubmitTimeout:     v.GetDuration("submit_timeout"),
		PollInterval:      v.GetDuration("poll_interval"),
		BackoffBase:       v.GetDuration("backoff_base"),
		BackoffMax:        v.GetDuration("backoff_max"),
		LastFM: LastFMConfig{
			APIKey:     v.GetString("lastfm.api_key"),
			APISecret:  v.GetString("lastfm.api_secret"),
			SessionKey: v.GetString("lastfm.session_key"),
		},
	}

	return cfg, nil
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "scrobbled")

	// Create config directory if it doesn't exist
	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}

// Save writes configuration to file
func (c *Config) Save() error {
	v := viper.New()

	// Set config file path
	configDir := getConfigDir()
	configFile := filepath.Join(configDir, "config.yaml")

	// Set values in viper
	v.Set("now_playing_timeout", c.NowPlayingTimeout.String())
	v.Set("submit_timeout", c.SubmitTimeout.String())
	v.Set("poll_interval", c.PollInterval.String())
	v.Set("backoff_base", c.BackoffBase.String())
	v.Set("backoff_max", c.BackoffMax.String())
	v.Set("lastfm.api_key", c.LastFM.APIKey)
	v.Set("lastfm.api_secret", c.LastFM.APISecret)
	v.Set("lastfm.session_key", c.LastFM.SessionKey)

	// Write to file
	return v.WriteConfigAs(configFile)
}
