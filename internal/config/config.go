// Package config loads runtime settings from upon.toml.
//
// Precedence is defaults, then the file, then command-line flags (applied by
// the caller after Load).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"upon/internal/engine"
	"upon/internal/logging"
)

// FileName is the config file looked up by Discover.
const FileName = "upon.toml"

type Config struct {
	MaxCycles    int    `toml:"max_cycles"`
	MaxInstances int    `toml:"max_instances"`
	Workers      int    `toml:"workers"`
	LogLevel     string `toml:"log_level"`
	// TracePath, when set, receives the canonical trace of every run.
	TracePath string `toml:"trace_path"`
	// StoreDir is the base directory of the run store; "" disables it.
	StoreDir string `toml:"store_dir"`
}

// Default returns the built-in settings. Workers 0 means one per CPU.
func Default() Config {
	return Config{
		MaxCycles:    engine.DefaultMaxCycles,
		MaxInstances: engine.DefaultMaxInstances,
		LogLevel:     "info",
		StoreDir:     ".",
	}
}

// Load decodes path over the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("load config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Discover loads dir/upon.toml when it exists and returns the defaults
// otherwise. The returned path is empty when no file was found.
func Discover(dir string) (Config, string, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), "", nil
		}
		return Config{}, "", err
	}
	cfg, err := Load(path)
	return cfg, path, err
}

func (c Config) Validate() error {
	var errs []error
	if c.MaxCycles < 0 {
		errs = append(errs, errors.New("max_cycles must be >= 0"))
	}
	if c.MaxInstances < 0 {
		errs = append(errs, errors.New("max_instances must be >= 0"))
	}
	if c.Workers < 0 {
		errs = append(errs, errors.New("workers must be >= 0"))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

// Options translates the config into orchestrator options.
func (c Config) Options() []engine.Option {
	opts := []engine.Option{
		engine.WithMaxCycles(c.MaxCycles),
		engine.WithMaxInstances(c.MaxInstances),
	}
	if c.Workers > 0 {
		opts = append(opts, engine.WithWorkers(c.Workers))
	}
	return opts
}
