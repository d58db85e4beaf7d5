package main

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/alex2liv/metabridge-API/internal/bridge"
)

// fileConfig mirrors the TOML template in internal/config. Fields are
// overlaid onto the runtime defaults only when the file defines them,
// so a partial file never zeroes out a default.
type fileConfig struct {
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

func loadServiceConfig(path string) (bridge.ServiceConfig, error) {
	cfg := bridge.DefaultServiceConfig()
	if path == "" {
		return cfg, nil
	}

	var fc fileConfig
	meta, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return bridge.ServiceConfig{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	if meta.IsDefined("addr") {
		cfg.ListenAddr = fc.Addr
	}
	if meta.IsDefined("service_id") {
		cfg.ServiceID = fc.ServiceID
	}
	if meta.IsDefined("cors_origins") {
		cfg.CORSOrigins = fc.CorsOrigins
	}
	if meta.IsDefined("api_token") {
		cfg.APIToken = fc.APIToken
	}
	if meta.IsDefined("pairing_code_ttl_seconds") {
		cfg.PairingCodeTTL = time.Duration(fc.PairingCodeTTLSeconds) * time.Second
	}
	if meta.IsDefined("reconnect_window_seconds") {
		cfg.ReconnectWindow = time.Duration(fc.ReconnectWindowSeconds) * time.Second
	}
	if meta.IsDefined("sweep_interval_ms") {
		cfg.SweepInterval = time.Duration(fc.SweepIntervalMillis) * time.Millisecond
	}
	if meta.IsDefined("pairing_max_attempts") {
		cfg.PairingMaxAttempts = fc.PairingMaxAttempts
	}
	if meta.IsDefined("pairing_attempt_window_seconds") {
		cfg.PairingAttemptWindow = time.Duration(fc.PairingAttemptWindowSeconds) * time.Second
	}
	if meta.IsDefined("store_path") {
		cfg.StorePath = fc.StorePath
	}

	return cfg.WithDefaults(), nil
}
