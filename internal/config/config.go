// Package config implements the four-layer configuration chain for the
// storage engine: built-in defaults, an optional TOML file, environment
// variables, and CLI flags, in that order of increasing precedence.
package config

// Config holds every tunable of the storage engine. Zero value is never
// used directly; DefaultConfig returns a populated instance that Load
// overlays with file contents.
type Config struct {
	Snapshot SnapshotConfig `toml:"snapshot"`
	Stale    StaleConfig    `toml:"stale"`
	Prune    PruneConfig    `toml:"prune"`
	Sync     SyncConfig     `toml:"sync"`
	Logging  LoggingConfig  `toml:"logging"`
}

// SnapshotConfig controls when the Snapshot & Compaction component
// materializes a new snapshot for a note (spec §4.I).
type SnapshotConfig struct {
	// Bytes is the human-readable size string (e.g. "1MiB") above which a
	// note's log is eligible for snapshotting.
	Bytes string `toml:"bytes"`
	// Records is the record-count threshold.
	Records int `toml:"records"`
	// AgeMs is the since-last-snapshot wall-clock threshold, in milliseconds.
	AgeMs int64 `toml:"age_ms"`
}

// StaleConfig controls the Stale-Sync Detector's grace period (spec §4.H).
type StaleConfig struct {
	GraceMs int64 `toml:"grace_ms"`
}

// PruneConfig controls log-segment pruning (spec §4.I).
type PruneConfig struct {
	QuarantineMs int64 `toml:"quarantine_ms"`
}

// SyncConfig controls the periodic sync cycle (spec §5).
type SyncConfig struct {
	PollInterval string `toml:"poll_interval"`
}

// LoggingConfig controls the slog handler built in cmd root setup.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// ParseSize is the exported entry point used by validation and by callers
// translating a config value into a byte threshold.
func ParseSize(s string) (int64, error) {
	return parseSize(s)
}
