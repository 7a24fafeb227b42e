package main

import (
	"github.com/rhesis-ai/rhesis-backend/cfgmng"
)

// cliConfig is read from recyclectl.yaml in the config directory, with
// RHESIS_SERVER and RHESIS_TOKEN taking precedence over the file
type cliConfig struct {
	Server string `mapstructure:"server"`
	Token  string `mapstructure:"token"`
}

func loadCLIConfig(path string) (*cliConfig, error) {
	return cfgmng.LoadConfig[cliConfig](path, "recyclectl",
		cfgmng.WithEnvPrefix("RHESIS"),
		cfgmng.WithDefaults(map[string]any{
			"server": "http://localhost:8080",
			"token":  "",
		}),
		cfgmng.Optional(),
	)
}
