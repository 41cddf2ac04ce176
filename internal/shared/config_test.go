package shared

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "mixtape.db" {
			t.Errorf("expected database path mixtape.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8484 {
			t.Errorf("expected server port 8484, got %d", config.Server.Port)
		}

		if config.Engine.SongConcurrency != 4 {
			t.Errorf("expected song concurrency 4, got %d", config.Engine.SongConcurrency)
		}

		if config.Providers.Spotify.RedirectURI == "" {
			t.Error("expected a default spotify redirect URI")
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/path.db"
max_open_conns = 20
max_idle_conns = 10

[server]
host = "0.0.0.0"
port = 9090

[providers.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
redirect_uri = "http://localhost:8080/callback"

[providers.apple_music]
developer_token = "test_developer_token"

[engine]
song_concurrency = 2
retry_attempts = 5
backoff_base_millis = 100
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected custom database path, got %s", config.Database.Path)
		}
		if config.Server.Port != 9090 {
			t.Errorf("expected port 9090, got %d", config.Server.Port)
		}
		if config.Providers.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected test_client_id, got %s", config.Providers.Spotify.ClientID)
		}
		if config.Providers.AppleMusic.DeveloperToken != "test_developer_token" {
			t.Errorf("expected developer token, got %s", config.Providers.AppleMusic.DeveloperToken)
		}
		if config.Engine.RetryAttempts != 5 {
			t.Errorf("expected 5 retry attempts, got %d", config.Engine.RetryAttempts)
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		if _, err := LoadConfig("/nonexistent/config.toml"); err == nil {
			t.Error("expected error for missing config file")
		}
	})

	t.Run("LoadConfig invalid TOML", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "bad.toml")
		if err := os.WriteFile(configPath, []byte("not [valid toml"), 0644); err != nil {
			t.Fatalf("failed to write bad config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected error for invalid TOML")
		}
	})
}
