package config

import (
	"github.com/caarlos0/env"
)

// Override bus settings with the FRCCAN_* environment variables that are set
func ApplyEnv(cfg *Config) error {
	return env.Parse(&cfg.Bus)
}
