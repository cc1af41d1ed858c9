// Package config loads gm4's ambient TOML configuration file (SPEC_FULL.md
// §4.11), layered underneath CLI flags the same way the teacher's config
// package layers defaults underneath debugger/execution flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config holds every tunable gm4 carries outside of per-invocation CLI
// flags (SPEC_FULL.md §4.11).
type Config struct {
	Limits struct {
		NestingLimit       int `toml:"nesting_limit"`
		MaxDebugArgLength  int `toml:"max_debug_arg_length"` // 0 = unbounded
	} `toml:"limits"`

	Dialect struct {
		GNUExtensions    bool `toml:"gnu_extensions"`
		DiscardComments  bool `toml:"discard_comments"`
		Interactive      bool `toml:"interactive"`
	} `toml:"dialect"`

	Output struct {
		SyncLines      bool `toml:"sync_lines"`
		PrefixBuiltins bool `toml:"prefix_builtins"`
	} `toml:"output"`

	Diversion struct {
		MemoryCapBytes int64 `toml:"memory_cap_bytes"`
	} `toml:"diversion"`

	Debug struct {
		Flags      string `toml:"flags"`
		OutputFile string `toml:"output_file"`
	} `toml:"debug"`
}

// DefaultConfig returns gm4's built-in defaults, used when no config file
// is present and as the base that a present file's values are merged onto.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Limits.NestingLimit = 1024
	cfg.Limits.MaxDebugArgLength = 0

	cfg.Dialect.GNUExtensions = true
	cfg.Dialect.DiscardComments = false
	cfg.Dialect.Interactive = false

	cfg.Output.SyncLines = false
	cfg.Output.PrefixBuiltins = false

	cfg.Diversion.MemoryCapBytes = 512 * 1024

	cfg.Debug.Flags = ""
	cfg.Debug.OutputFile = ""

	return cfg
}

// GetConfigPath returns the platform-specific config file path
// ($XDG_CONFIG_HOME/gm4/gm4.toml on Unix, matching the teacher's
// per-OS config-directory convention).
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "gm4")

	case "darwin", "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "gm4")
			break
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gm4.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "gm4")

	default:
		return "gm4.toml"
	}

	if err := os.MkdirAll(configDir, 0750); err != nil {
		return "gm4.toml"
	}

	return filepath.Join(configDir, "gm4.toml")
}

// Load loads configuration from the default config file, returning
// defaults unchanged if no file exists.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from the specified file.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save saves configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo saves configuration to the specified file.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path) // #nosec G304 -- user config file path
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close config file: %w", closeErr)
		}
	}()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}
