package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected default config to be valid, got: %v", err)
	}
	if cfg.Chat.HistoryLimit != 100 {
		t.Errorf("Expected chat history limit 100, got: %d", cfg.Chat.HistoryLimit)
	}
	if cfg.Signal.PingInterval != 30*time.Second {
		t.Errorf("Expected ping interval 30s, got: %v", cfg.Signal.PingInterval)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cfg.Server.Address != ":3000" {
		t.Errorf("Expected default address, got: %s", cfg.Server.Address)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("server:\n  address: \":9000\"\nchat:\n  history_limit: 7\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cfg.Server.Address != ":9000" {
		t.Errorf("Expected :9000, got: %s", cfg.Server.Address)
	}
	if cfg.Chat.HistoryLimit != 7 {
		t.Errorf("Expected history limit 7, got: %d", cfg.Chat.HistoryLimit)
	}
	// Untouched sections keep defaults.
	if cfg.Peer.Port != 3001 {
		t.Errorf("Expected default peer port, got: %d", cfg.Peer.Port)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Chat.HistoryLimit = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for zero chat history limit")
	}

	cfg = DefaultConfig()
	cfg.Signal.PongTimeout = cfg.Signal.PingInterval
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for pong timeout <= ping interval")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HUDDLE_SERVER_ADDRESS", ":4444")
	t.Setenv("HUDDLE_PEER_SECURE", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if cfg.Server.Address != ":4444" {
		t.Errorf("Expected :4444, got: %s", cfg.Server.Address)
	}
	if !cfg.Peer.Secure {
		t.Error("Expected peer.secure true")
	}
}
