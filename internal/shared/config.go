package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Providers ProvidersConfig `toml:"providers"`
	Database  DatabaseConfig  `toml:"database"`
	Server    ServerConfig    `toml:"server"`
	Engine    EngineConfig    `toml:"engine"`
}

// ProvidersConfig contains provider-specific API credentials.
type ProvidersConfig struct {
	Spotify     SpotifyConfig     `toml:"spotify"`
	AppleMusic  AppleMusicConfig  `toml:"apple_music"`
	AmazonMusic AmazonMusicConfig `toml:"amazon_music"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// AppleMusicConfig contains Apple Music API credentials.
//
// Apple issues long-lived developer tokens; user tokens are stored per
// connection and cannot be refreshed server-side.
type AppleMusicConfig struct {
	DeveloperToken string `toml:"developer_token"`
}

// AmazonMusicConfig contains Amazon Music (Login with Amazon) credentials.
type AmazonMusicConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// EngineConfig contains reconciliation engine tuning knobs.
type EngineConfig struct {
	SongConcurrency   int     `toml:"song_concurrency"`
	RetryAttempts     int     `toml:"retry_attempts"`
	RateLimitPerSec   float64 `toml:"rate_limit_per_sec"`
	RateLimitBurst    int     `toml:"rate_limit_burst"`
	BackoffBaseMillis int     `toml:"backoff_base_millis"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
