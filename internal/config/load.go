package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
)

// CLIOverrides holds values parsed from CLI flags, the highest-precedence
// layer in the four-layer chain.
type CLIOverrides struct {
	ConfigPath      string
	SD              string
	SnapshotBytes   string
	SnapshotRecords int
	SnapshotAgeMs   int64
	StaleGraceMs    int64
	PruneQuarantine int64
}

// Load reads and parses a TOML config file onto DefaultConfig, validates
// it, and returns the resulting Config. Unset keys keep their defaults
// because decode targets an already-populated struct.
func Load(path string, logger *slog.Logger) (*Config, error) {
	logger.Debug("loading config file", "path", path)

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	logger.Debug("config file parsed successfully", "path", path)

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns a
// Config populated with all default values. This supports the zero-config
// first-run experience: ncstorage works against a fresh SD without any
// config file.
func LoadOrDefault(path string, logger *slog.Logger) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Debug("config file not found, using defaults", "path", path)

		return DefaultConfig(), nil
	}

	return Load(path, logger)
}

// Resolve loads configuration and applies the four-layer override chain:
// defaults -> config file -> environment variables -> CLI flags. It returns
// the fully resolved Config together with the SD path to open.
func Resolve(env EnvOverrides, cli CLIOverrides, logger *slog.Logger) (*Config, string, error) {
	cfgPath := ResolveConfigPath(env, cli, logger)

	cfg, err := LoadOrDefault(cfgPath, logger)
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}

	ApplyEnvOverrides(cfg, env)
	applyCLIOverrides(cfg, cli)

	if err := Validate(cfg); err != nil {
		return nil, "", fmt.Errorf("config validation: %w", err)
	}

	sd := env.SD
	if cli.SD != "" {
		sd = cli.SD
	}

	logger.Debug("config resolved", "sd", sd)

	return cfg, sd, nil
}

func applyCLIOverrides(cfg *Config, cli CLIOverrides) {
	if cli.SnapshotBytes != "" {
		cfg.Snapshot.Bytes = cli.SnapshotBytes
	}

	if cli.SnapshotRecords != 0 {
		cfg.Snapshot.Records = cli.SnapshotRecords
	}

	if cli.SnapshotAgeMs != 0 {
		cfg.Snapshot.AgeMs = cli.SnapshotAgeMs
	}

	if cli.StaleGraceMs != 0 {
		cfg.Stale.GraceMs = cli.StaleGraceMs
	}

	if cli.PruneQuarantine != 0 {
		cfg.Prune.QuarantineMs = cli.PruneQuarantine
	}
}

// ResolveConfigPath determines the config file path using the three-layer
// priority: CLI flag > environment variable > platform default.
func ResolveConfigPath(env EnvOverrides, cli CLIOverrides, logger *slog.Logger) string {
	cfgPath := DefaultConfigPath()
	source := "default"

	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
		source = "env"
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
		source = "cli"
	}

	logger.Debug("config path resolved", "path", cfgPath, "source", source)

	return cfgPath
}
