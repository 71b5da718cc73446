package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with an invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("CHIKKA_CONFIG")
	defer os.Setenv("CHIKKA_CONFIG", originalEnv)

	os.Setenv("CHIKKA_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_InvalidAuthMode verifies run rejects an unknown auth mode
// before reaching external dependencies.
func TestRun_InvalidAuthMode(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
chikka:
  shortcode: "29290639"
  client_id: "client"
  secret_key: "secret"

auth:
  mode: "telepathy"

database:
  path: "` + filepath.Join(tmpDir, "test.db") + `"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	originalEnv := os.Getenv("CHIKKA_CONFIG")
	defer os.Setenv("CHIKKA_CONFIG", originalEnv)
	os.Setenv("CHIKKA_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with unknown auth mode")
	}
}

// TestGetConfigPath verifies environment override of the config path.
func TestGetConfigPath(t *testing.T) {
	originalEnv := os.Getenv("CHIKKA_CONFIG")
	defer os.Setenv("CHIKKA_CONFIG", originalEnv)

	os.Setenv("CHIKKA_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	os.Setenv("CHIKKA_CONFIG", "/etc/chikka/config.yaml")
	if got := getConfigPath(); got != "/etc/chikka/config.yaml" {
		t.Errorf("getConfigPath() = %q, want override", got)
	}
}
