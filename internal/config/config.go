package config

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type NotificationsConfig struct {
	Enabled bool   `json:"enabled"`
	Webhook string `json:"webhook"`
	NtfyURL string `json:"ntfy"`
}

type AuthConfig struct {
	JWTSecret string `json:"jwtSecret"` // empty disables auth
	TokenTTL  string `json:"tokenTTL"`
}

type WebserverConfig struct {
	Enabled bool       `json:"enabled"`
	Port    int        `json:"port"`
	Host    string     `json:"host"`
	Auth    AuthConfig `json:"auth"`
}

type Config struct {
	LogDir         string              `json:"logDir"`
	LogLevel       string              `json:"logLevel"`
	PollInterval   string              `json:"pollInterval"`
	Timeout        string              `json:"timeout"`
	StallTimeout   string              `json:"stallTimeout"`
	AlertThreshold float64             `json:"alertThreshold"`
	Notifications  NotificationsConfig `json:"notifications"`
	Webserver      WebserverConfig     `json:"webserver"`
}

// Durations is the parsed form of the duration strings in Config.
type Durations struct {
	PollInterval time.Duration
	Timeout      time.Duration
	StallTimeout time.Duration
	TokenTTL     time.Duration
}

func Defaults() Config {
	home, _ := os.UserHomeDir()
	return Config{
		LogDir:         filepath.Join(home, ".usagebar", "logs"),
		LogLevel:       "info",
		PollInterval:   "600s",
		Timeout:        "30s",
		StallTimeout:   "10s",
		AlertThreshold: 0.9,
		Webserver: WebserverConfig{
			Enabled: false,
			Port:    8787,
			Host:    "127.0.0.1",
			Auth:    AuthConfig{TokenTTL: "720h"},
		},
	}
}

func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".usagebar", "config.json")
}

func DBPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".usagebar", "state.db")
}

func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes cfg as indented JSON, creating the parent directory.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0600)
}

// EnsureJWTSecret generates and persists a web API signing secret if cfg has
// none. Setting a secret turns on authentication for the web API.
func EnsureJWTSecret(path string, cfg *Config) error {
	if cfg.Webserver.Auth.JWTSecret != "" {
		return nil
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return err
	}
	cfg.Webserver.Auth.JWTSecret = hex.EncodeToString(b)
	return Save(path, *cfg)
}

// Durations parses the duration fields. Fields that are empty, invalid or not
// positive keep their default and are reported in the returned error.
func (c Config) Durations() (Durations, error) {
	def := Defaults()
	var errs []error
	parse := func(name, value, fallback string) time.Duration {
		d, err := time.ParseDuration(value)
		if err == nil && d > 0 {
			return d
		}
		if value != "" {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", name, value))
		}
		d, _ = time.ParseDuration(fallback)
		return d
	}
	d := Durations{
		PollInterval: parse("pollInterval", c.PollInterval, def.PollInterval),
		Timeout:      parse("timeout", c.Timeout, def.Timeout),
		StallTimeout: parse("stallTimeout", c.StallTimeout, def.StallTimeout),
		TokenTTL:     parse("webserver.auth.tokenTTL", c.Webserver.Auth.TokenTTL, def.Webserver.Auth.TokenTTL),
	}
	return d, errors.Join(errs...)
}
