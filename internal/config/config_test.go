package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zsprackett/usagebar/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("/nonexistent/path/config.json")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PollInterval != "600s" {
		t.Errorf("poll interval: got %q want 600s", cfg.PollInterval)
	}
	if cfg.AlertThreshold != 0.9 {
		t.Errorf("alert threshold: got %v want 0.9", cfg.AlertThreshold)
	}
	if cfg.Webserver.Enabled {
		t.Error("webserver should be disabled by default")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	os.WriteFile(path, []byte(`{"logLevel":"debug","webserver":{"enabled":true,"port":9000}}`), 0644)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("got %q want debug", cfg.LogLevel)
	}
	if !cfg.Webserver.Enabled || cfg.Webserver.Port != 9000 {
		t.Errorf("webserver: got %+v", cfg.Webserver)
	}
	// Unset fields keep their defaults.
	if cfg.Webserver.Host != "127.0.0.1" {
		t.Errorf("host: got %q", cfg.Webserver.Host)
	}
}

func TestLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(`{not json`), 0644)
	if _, err := config.Load(path); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestDurations(t *testing.T) {
	cfg := config.Defaults()
	d, err := cfg.Durations()
	if err != nil {
		t.Fatal(err)
	}
	if d.PollInterval != 600*time.Second || d.Timeout != 30*time.Second || d.StallTimeout != 10*time.Second {
		t.Errorf("got %+v", d)
	}
}

func TestDurations_InvalidFallsBack(t *testing.T) {
	cfg := config.Defaults()
	cfg.Timeout = "soon"
	cfg.StallTimeout = "-5s"
	d, err := cfg.Durations()
	if err == nil {
		t.Error("expected error for invalid durations")
	}
	if d.Timeout != 30*time.Second {
		t.Errorf("timeout: got %s", d.Timeout)
	}
	if d.StallTimeout != 10*time.Second {
		t.Errorf("stall timeout: got %s", d.StallTimeout)
	}
}

func TestEnsureJWTSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")
	cfg := config.Defaults()
	if err := config.EnsureJWTSecret(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if len(cfg.Webserver.Auth.JWTSecret) != 64 {
		t.Fatalf("expected 64 hex chars, got %q", cfg.Webserver.Auth.JWTSecret)
	}

	loaded, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Webserver.Auth.JWTSecret != cfg.Webserver.Auth.JWTSecret {
		t.Error("secret was not persisted")
	}

	before := cfg.Webserver.Auth.JWTSecret
	if err := config.EnsureJWTSecret(path, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Webserver.Auth.JWTSecret != before {
		t.Error("existing secret should be kept")
	}
}
