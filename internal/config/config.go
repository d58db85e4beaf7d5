package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ServerConfig is the on-disk TOML shape for the API server. Durations
// are plain integers so the file stays editable without suffix rules.
type ServerConfig struct {
	Addr        string   `toml:"addr"`
	ServiceID   string   `toml:"service_id"`
	CorsOrigins []string `toml:"cors_origins"`
	APIToken    string   `toml:"api_token"`

	PairingCodeTTLSeconds       int `toml:"pairing_code_ttl_seconds"`
	ReconnectWindowSeconds      int `toml:"reconnect_window_seconds"`
	SweepIntervalMillis         int `toml:"sweep_interval_ms"`
	PairingMaxAttempts          int `toml:"pairing_max_attempts"`
	PairingAttemptWindowSeconds int `toml:"pairing_attempt_window_seconds"`

	StorePath string `toml:"store_path"`
}

func LoadServerConfig(path string) (ServerConfig, error) {
	var cfg ServerConfig
	if err := loadToml(path, &cfg); err != nil {
		return ServerConfig{}, err
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ServiceID == "" {
		cfg.ServiceID = "metabridge-api"
	}
	if err := ValidateServerConfig(cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateServerConfig(cfg ServerConfig) error {
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("server config missing addr")
	}
	if strings.TrimSpace(cfg.ServiceID) == "" {
		return fmt.Errorf("server config missing service_id")
	}
	for _, bound := range []struct {
		name  string
		value int
	}{
		{"pairing_code_ttl_seconds", cfg.PairingCodeTTLSeconds},
		{"reconnect_window_seconds", cfg.ReconnectWindowSeconds},
		{"sweep_interval_ms", cfg.SweepIntervalMillis},
		{"pairing_max_attempts", cfg.PairingMaxAttempts},
		{"pairing_attempt_window_seconds", cfg.PairingAttemptWindowSeconds},
	} {
		if bound.value < 0 {
			return fmt.Errorf("server config %s must not be negative", bound.name)
		}
	}
	return nil
}

// Durations exposed as helpers so the conversion stays in one place.

func (c ServerConfig) PairingCodeTTL() time.Duration {
	return time.Duration(c.PairingCodeTTLSeconds) * time.Second
}

func (c ServerConfig) ReconnectWindow() time.Duration {
	return time.Duration(c.ReconnectWindowSeconds) * time.Second
}

func (c ServerConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMillis) * time.Millisecond
}

func (c ServerConfig) PairingAttemptWindow() time.Duration {
	return time.Duration(c.PairingAttemptWindowSeconds) * time.Second
}
