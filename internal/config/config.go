// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package config loads elab settings from defaults, elab.yaml, ELAB_*
// environment variables and command-line flags, in that order of precedence.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	// EnvPrefix is the prefix for environment overrides.
	EnvPrefix = "ELAB_"

	DefaultModule   = "Main"
	DefaultOutput   = "text"
	DefaultLogLevel = "warn"
	DefaultDebounce = 300 * time.Millisecond
)

// Output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// Config holds all elab settings.
type Config struct {
	// DB is the sqlite module store path. Empty uses an in-memory store.
	DB       string `koanf:"db"`
	Module   string `koanf:"module"`
	NoStdlib bool   `koanf:"no_stdlib"`
	Output   string `koanf:"output"`
	Color    bool   `koanf:"color"`
	LogLevel string `koanf:"log_level"`
	Watch    Watch  `koanf:"watch"`

	// FileUsed is the config file that was read, if any.
	FileUsed string `koanf:"-"`
}

// Watch configures watch mode.
type Watch struct {
	Debounce time.Duration `koanf:"debounce"`
	Exclude  []string      `koanf:"exclude"`
}

// findConfigFile finds the config file to use.
// Priority: explicit path > elab.yaml > elab.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"elab.yaml", "elab.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// envKey maps ELAB_WATCH_DEBOUNCE to watch.debounce and ELAB_LOG_LEVEL to log_level.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if rest, ok := strings.CutPrefix(key, "watch_"); ok {
		return "watch." + rest
	}
	return key
}

// flagKey maps a flag name to its config key.
func flagKey(name string) string {
	switch name {
	case "debounce":
		return "watch.debounce"
	case "exclude":
		return "watch.exclude"
	}
	return strings.ReplaceAll(name, "-", "_")
}

// Load loads configuration. Flags that were not explicitly set are ignored.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]any{
		"db":             "",
		"module":         DefaultModule,
		"no_stdlib":      false,
		"output":         DefaultOutput,
		"color":          true,
		"log_level":      DefaultLogLevel,
		"watch.debounce": DefaultDebounce.String(),
		"watch.exclude":  []string{},
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// 3. Environment
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return flagKey(f.Name), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.FileUsed = used

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Output {
	case OutputText, OutputJSON, OutputYAML:
	default:
		return fmt.Errorf("invalid output format %q (want text, json or yaml)", c.Output)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.Module == "" {
		return fmt.Errorf("module name must not be empty")
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
