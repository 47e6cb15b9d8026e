package main

import (
	"fmt"

	"github.com/concordhq/concord/internal/config"
)

func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	config.LoadFromEnv(cfg)
	return cfg, nil
}

func controlAddr(cfg *config.Config) string {
	if cfg.Daemon.HTTPAddr != "" {
		return cfg.Daemon.HTTPAddr
	}
	return ":8080"
}
