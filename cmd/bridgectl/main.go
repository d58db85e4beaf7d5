package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/alex2liv/metabridge-API/internal/bridge"
	"github.com/alex2liv/metabridge-API/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	addr := flag.String("addr", "", "listen address override")
	flag.Parse()

	observability.InitLogger("bridgectl")

	cfg, err := loadServiceConfig(*configPath)
	if err != nil {
		log.Error().Err(err).Msg("configuration rejected")
		os.Exit(1)
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}

	svc, err := bridge.NewService(cfg)
	if err != nil {
		log.Error().Err(err).Msg("service startup failed")
		os.Exit(1)
	}

	if err := bridge.NewServer(svc).Run(); err != nil {
		log.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}
