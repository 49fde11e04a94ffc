package config

// Default values for configuration options. These represent the "layer 0"
// of the four-layer override chain, matching the numeric defaults named in
// spec §4.H/§4.I, and work without any config file present.
const (
	defaultSnapshotBytes   = "1MiB"
	defaultSnapshotRecords = 10_000
	defaultSnapshotAgeMs   = 24 * 60 * 60 * 1000
	defaultStaleGraceMs    = 30_000
	defaultPruneQuarantine = 7 * 24 * 60 * 60 * 1000
	defaultPollInterval    = "2s"
	defaultLogLevel        = "info"
	defaultLogFormat       = "auto"
)

// DefaultConfig returns a Config populated with all default values. This is
// used both as the starting point for TOML decoding (so unset fields retain
// defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Snapshot: SnapshotConfig{
			Bytes:   defaultSnapshotBytes,
			Records: defaultSnapshotRecords,
			AgeMs:   defaultSnapshotAgeMs,
		},
		Stale: StaleConfig{
			GraceMs: defaultStaleGraceMs,
		},
		Prune: PruneConfig{
			QuarantineMs: defaultPruneQuarantine,
		},
		Sync: SyncConfig{
			PollInterval: defaultPollInterval,
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
	}
}
