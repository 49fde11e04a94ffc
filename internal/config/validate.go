package config

import (
	"errors"
	"fmt"
)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateSnapshot(&cfg.Snapshot)...)
	errs = append(errs, validateStale(&cfg.Stale)...)
	errs = append(errs, validatePrune(&cfg.Prune)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	return errors.Join(errs...)
}

func validateSnapshot(s *SnapshotConfig) []error {
	var errs []error

	if _, err := ParseSize(s.Bytes); err != nil {
		errs = append(errs, fmt.Errorf("snapshot.bytes: %w", err))
	}

	if s.Records <= 0 {
		errs = append(errs, fmt.Errorf("snapshot.records: must be > 0, got %d", s.Records))
	}

	if s.AgeMs <= 0 {
		errs = append(errs, fmt.Errorf("snapshot.age_ms: must be > 0, got %d", s.AgeMs))
	}

	return errs
}

func validateStale(s *StaleConfig) []error {
	if s.GraceMs < 0 {
		return []error{fmt.Errorf("stale.grace_ms: must be >= 0, got %d", s.GraceMs)}
	}

	return nil
}

func validatePrune(p *PruneConfig) []error {
	if p.QuarantineMs < 0 {
		return []error{fmt.Errorf("prune.quarantine_ms: must be >= 0, got %d", p.QuarantineMs)}
	}

	return nil
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if !validLogLevels[l.LogLevel] {
		errs = append(errs, fmt.Errorf("logging.log_level: must be one of debug, info, warn, error; got %q", l.LogLevel))
	}

	if !validLogFormats[l.LogFormat] {
		errs = append(errs, fmt.Errorf("logging.log_format: must be one of auto, text, json; got %q", l.LogFormat))
	}

	return errs
}
