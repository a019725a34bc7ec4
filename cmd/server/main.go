package main

import (
	"os"

	"github.com/thereayou/teamchat/internal/config"
	"github.com/thereayou/teamchat/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.L().Fatal().Err(err).Msg("config load failed")
	}

	log.Init(log.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty, ServiceName: "teamchat"})

	srv, err := NewServer(cfg)
	if err != nil {
		log.L().Fatal().Err(err).Msg("server init failed")
	}

	if err := srv.Run(); err != nil {
		log.L().Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
}
