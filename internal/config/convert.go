package config

import (
	"github.com/alex2liv/metabridge-API/internal/bridge"
)

// ToServiceConfig maps file settings onto runtime defaults; zero file
// values fall through to bridge.DefaultServiceConfig.
func ToServiceConfig(cfg ServerConfig) bridge.ServiceConfig {
	return bridge.ServiceConfig{
		ListenAddr:           cfg.Addr,
		ServiceID:            cfg.ServiceID,
		CORSOrigins:          cfg.CorsOrigins,
		APIToken:             cfg.APIToken,
		PairingCodeTTL:       cfg.PairingCodeTTL(),
		ReconnectWindow:      cfg.ReconnectWindow(),
		SweepInterval:        cfg.SweepInterval(),
		PairingMaxAttempts:   cfg.PairingMaxAttempts,
		PairingAttemptWindow: cfg.PairingAttemptWindow(),
		StorePath:            cfg.StorePath,
	}.WithDefaults()
}
