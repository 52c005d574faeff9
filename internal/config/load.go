package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/BurntSushi/toml"
)

// Application directory name and config file name.
const (
	appName        = "datasourcer-go"
	configFileName = "config.toml"
)

// Environment variable names for overrides.
const (
	EnvConfig  = "DSCER_CONFIG"
	EnvDataDir = "DSCER_DATA_DIR"
	EnvSpecDir = "DSCER_SPEC_DIR"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // DSCER_CONFIG: override config file path
	DataDir    string // DSCER_DATA_DIR: destination root override
	SpecDir    string // DSCER_SPEC_DIR: spec directory override
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. This does not modify the Config; Resolve applies the fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		DataDir:    os.Getenv(EnvDataDir),
		SpecDir:    os.Getenv(EnvSpecDir),
	}
}

// Resolved is the effective configuration after the override chain, with
// derived values (parsed sizes and durations) ready for use.
type Resolved struct {
	Config

	ChunkBytes     int64
	RequestTimeout time.Duration
}

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal, with "did you mean?"
// suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns a
// Config populated with all default values, supporting zero-config runs.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> environment variables -> CLI flags.
// It returns a fully resolved and validated configuration; data_dir must
// be set by one of the layers.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	if env.DataDir != "" {
		cfg.DataDir = env.DataDir
	}

	if env.SpecDir != "" {
		cfg.SpecDir = env.SpecDir
	}

	if cli.DataDir != "" {
		cfg.DataDir = cli.DataDir
	}

	if cli.SpecDir != "" {
		cfg.SpecDir = cli.SpecDir
	}

	if cfg.DataDir == "" {
		return nil, errors.New("data_dir is required: set it in the config file, DSCER_DATA_DIR, or --data-dir")
	}

	// Relative destination paths would resolve differently depending on
	// cwd at each run; pin them down once here.
	absData, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("resolving data_dir: %w", err)
	}

	cfg.DataDir = absData

	chunkBytes, err := ParseSize(cfg.Transfers.ChunkSize)
	if err != nil {
		return nil, fmt.Errorf("chunk_size: %w", err)
	}

	timeout, err := time.ParseDuration(cfg.Transfers.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("request_timeout: %w", err)
	}

	return &Resolved{
		Config:         *cfg,
		ChunkBytes:     chunkBytes,
		RequestTimeout: timeout,
	}, nil
}

// DefaultConfigPath returns the platform-specific default config file path.
// On Linux it respects XDG_CONFIG_HOME; macOS uses ~/Library/Application
// Support per Apple guidelines.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appName, configFileName)
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName, configFileName)
		}

		return filepath.Join(home, ".config", appName, configFileName)
	}
}
