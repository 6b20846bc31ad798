package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.App.Name != "mixdeck" {
			t.Errorf("expected app name mixdeck, got %s", config.App.Name)
		}

		if config.Database.Path != "./mixdeck.db" {
			t.Errorf("expected database path ./mixdeck.db, got %s", config.Database.Path)
		}

		if config.Server.Addr() != "127.0.0.1:8888" {
			t.Errorf("expected server addr 127.0.0.1:8888, got %s", config.Server.Addr())
		}

		if config.Download.MaxRetries != 1 {
			t.Errorf("expected max retries 1, got %d", config.Download.MaxRetries)
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

		testConfig := `[app]
name = "deck-test"
data_dir = "/tmp/deck"

[download]
max_retries = 3
workers = 8
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.App.Name != "deck-test" {
			t.Errorf("expected app name deck-test, got %s", config.App.Name)
		}

		if config.Download.MaxRetries != 3 || config.Download.Workers != 8 {
			t.Errorf("unexpected download config %+v", config.Download)
		}

		if config.Server.Port != 8888 {
			t.Errorf("missing keys should keep defaults, got port %d", config.Server.Port)
		}
	})

	t.Run("Invalid Config", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := os.WriteFile(configPath, []byte("[download]\nmax_retries = -1\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}

		if err := os.WriteFile(configPath, []byte("not = [valid"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig for parse failure, got %v", err)
		}
	})
}
