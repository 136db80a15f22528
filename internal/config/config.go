// Package config loads scc.toml, the per-project settings file. The file is
// searched from the working directory upwards; command-line flags override
// what it sets.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"scc/internal/types"
)

// FileName is the settings file looked up by Find.
const FileName = "scc.toml"

// Config mirrors scc.toml.
type Config struct {
	Target TargetConfig `toml:"target"`
	Limits LimitsConfig `toml:"limits"`
	Trace  TraceConfig  `toml:"trace"`
	Output OutputConfig `toml:"output"`
}

// TargetConfig selects the data model.
type TargetConfig struct {
	PtrSize int `toml:"ptr_size"`
}

// LimitsConfig caps table sizes per unit; zero means unbounded.
type LimitsConfig struct {
	Types int `toml:"types"`
	Nodes int `toml:"nodes"`
	Vars  int `toml:"vars"`
}

// TraceConfig provides defaults for the --trace flags.
type TraceConfig struct {
	Level     string `toml:"level"`
	Mode      string `toml:"mode"`
	Output    string `toml:"output"`
	RingSize  int    `toml:"ring_size"`
	Heartbeat string `toml:"heartbeat"`
}

// OutputConfig controls where spilled snapshots go.
type OutputConfig struct {
	Dir      string `toml:"dir"`
	Snapshot bool   `toml:"snapshot"`
}

// Default returns the settings used without scc.toml.
func Default() Config {
	return Config{
		Target: TargetConfig{PtrSize: 8},
		Trace:  TraceConfig{Level: "off", Mode: "stream", RingSize: 4096},
		Output: OutputConfig{Dir: "out"},
	}
}

// TypesTarget returns the data model for the configured pointer size.
func (c Config) TypesTarget() types.Target {
	tg, ok := types.TargetByPtrSize(c.Target.PtrSize)
	if !ok {
		return types.LP64()
	}
	return tg
}

// TypeLimits returns the per-unit type table limits.
func (c Config) TypeLimits() types.Limits {
	return types.Limits{Types: c.Limits.Types}
}

// HeartbeatInterval parses Trace.Heartbeat; empty means disabled.
func (c Config) HeartbeatInterval() (time.Duration, error) {
	if c.Trace.Heartbeat == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Trace.Heartbeat)
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if _, ok := types.TargetByPtrSize(c.Target.PtrSize); !ok {
		errs = append(errs, fmt.Errorf("target.ptr_size: unsupported pointer size %d (expected 4 or 8)", c.Target.PtrSize))
	}
	if c.Limits.Types < 0 || c.Limits.Nodes < 0 || c.Limits.Vars < 0 {
		errs = append(errs, errors.New("limits: values must not be negative"))
	}
	if c.Trace.RingSize < 0 {
		errs = append(errs, errors.New("trace.ring_size: must not be negative"))
	}
	if _, err := c.HeartbeatInterval(); err != nil {
		errs = append(errs, fmt.Errorf("trace.heartbeat: %w", err))
	}
	return errors.Join(errs...)
}

// Find looks for scc.toml in startDir and its parents.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

// Load reads path over the defaults. Relative output directories are
// resolved against the file's directory.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.Output.Dir != "" && !filepath.IsAbs(cfg.Output.Dir) {
		cfg.Output.Dir = filepath.Join(filepath.Dir(path), cfg.Output.Dir)
	}
	return cfg, nil
}

// LoadNear finds and loads scc.toml starting at startDir. Without a file
// the defaults are returned and path is empty.
func LoadNear(startDir string) (cfg Config, path string, err error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, "", err
	}
	if !ok {
		return Default(), "", nil
	}
	cfg, err = Load(path)
	return cfg, path, err
}
