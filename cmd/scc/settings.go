package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scc/internal/config"
)

// loadSettings reads scc.toml (from --config or found upwards) and applies
// flag overrides.
func loadSettings(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Root().PersistentFlags()
	path, err := flags.GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	var cfg config.Config
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, _, err = config.LoadNear(".")
	}
	if err != nil {
		return config.Config{}, err
	}
	if flags.Changed("ptr-size") {
		ptr, err := flags.GetInt("ptr-size")
		if err != nil {
			return config.Config{}, err
		}
		cfg.Target.PtrSize = ptr
		if err := cfg.Validate(); err != nil {
			return config.Config{}, fmt.Errorf("--ptr-size: %w", err)
		}
	}
	return cfg, nil
}
