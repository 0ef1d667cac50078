package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultsApplyForKeysUnsetInFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	writeConfig(t, dir, `
sites:
  - id: PICK-01
    host: 10.0.0.1
    port: 502
    offset: 0
    default: EMPTY
rds:
  host: http://10.0.0.5:8080
  user: bridge
  pass: secret
`)

	cfg, err := Load(WithConfigPaths("bridge.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Errorf("PollInterval = %v, want 500ms default", cfg.PollInterval)
	}
	if cfg.RDS.Language != "en" {
		t.Errorf("RDS.Language = %q, want default %q", cfg.RDS.Language, "en")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want default %q", cfg.Log.Level, "info")
	}
}

func TestLoad_EnvOverridesNestedKeyWithDoubleUnderscore(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeConfig(t, dir, `
sites:
  - id: PICK-01
    host: 10.0.0.1
    port: 502
    offset: 0
    default: EMPTY
rds:
  host: http://10.0.0.5:8080
  user: bridge
  pass: secret
`)

	t.Setenv("BRIDGE_RDS__HOST", "http://override:9999")
	t.Setenv("BRIDGE_POLL_INTERVAL", "750ms")

	cfg, err := Load(WithConfigPaths("bridge.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RDS.Host != "http://override:9999" {
		t.Errorf("RDS.Host = %q, want env override", cfg.RDS.Host)
	}
	if cfg.PollInterval != 750*time.Millisecond {
		t.Errorf("PollInterval = %v, want 750ms from single-underscore leaf key BRIDGE_POLL_INTERVAL", cfg.PollInterval)
	}
}

func TestLoad_FailsFastOnMissingRequiredField(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeConfig(t, dir, `
sites:
  - id: PICK-01
    host: 10.0.0.1
    port: 502
    offset: 0
    default: EMPTY
rds:
  user: bridge
  pass: secret
`)

	if _, err := Load(WithConfigPaths("bridge.yaml")); err == nil {
		t.Fatal("Load() error = nil, want error for missing rds.host")
	}
}

func TestLoad_FailsFastOnInvalidSiteDefault(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeConfig(t, dir, `
sites:
  - id: PICK-01
    host: 10.0.0.1
    port: 502
    offset: 0
    default: MAYBE
rds:
  host: http://10.0.0.5:8080
  user: bridge
  pass: secret
`)

	if _, err := Load(WithConfigPaths("bridge.yaml")); err == nil {
		t.Fatal("Load() error = nil, want error for invalid site default")
	}
}

func TestLoad_MissingFileIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	t.Setenv("BRIDGE_RDS__HOST", "http://10.0.0.5:8080")
	t.Setenv("BRIDGE_RDS__USER", "bridge")
	t.Setenv("BRIDGE_RDS__PASS", "secret")
	t.Setenv("BRIDGE_SITES", "")

	// With no sites defined anywhere, validation still fails, but it must
	// fail on the missing sites rule, not on a file-not-found error.
	_, err := Load(WithConfigPaths("nonexistent.yaml"))
	if err == nil {
		t.Fatal("Load() error = nil, want validation error for empty sites")
	}
}

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	path := filepath.Join(dir, "bridge.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}
