package config

import (
	"os"
	"strconv"
)

// Environment variable names, per spec §6.
const (
	EnvConfig          = "NC_STORAGE_CONFIG"
	EnvSD              = "NC_STORAGE_SD"
	EnvSnapshotBytes   = "NC_STORAGE_SNAPSHOT_BYTES"
	EnvSnapshotRecords = "NC_STORAGE_SNAPSHOT_RECORDS"
	EnvSnapshotAgeMs   = "NC_STORAGE_SNAPSHOT_AGE_MS"
	EnvStaleGraceMs    = "NC_STORAGE_STALE_GRACE_MS"
	EnvPruneQuarantine = "NC_STORAGE_PRUNE_QUARANTINE_MS"
)

// EnvOverrides holds values derived from environment variables. These are
// resolved once by ReadEnvOverrides and applied by ApplyEnvOverrides;
// fields left at their zero value were not set in the environment.
type EnvOverrides struct {
	ConfigPath      string
	SD              string
	SnapshotBytes   string
	SnapshotRecords int
	SnapshotAgeMs   int64
	StaleGraceMs    int64
	PruneQuarantine int64
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. This does not modify a Config; callers apply the relevant fields
// via ApplyEnvOverrides.
func ReadEnvOverrides() EnvOverrides {
	eo := EnvOverrides{
		ConfigPath:    os.Getenv(EnvConfig),
		SD:            os.Getenv(EnvSD),
		SnapshotBytes: os.Getenv(EnvSnapshotBytes),
	}

	if v, err := strconv.Atoi(os.Getenv(EnvSnapshotRecords)); err == nil {
		eo.SnapshotRecords = v
	}

	if v, err := strconv.ParseInt(os.Getenv(EnvSnapshotAgeMs), 10, 64); err == nil {
		eo.SnapshotAgeMs = v
	}

	if v, err := strconv.ParseInt(os.Getenv(EnvStaleGraceMs), 10, 64); err == nil {
		eo.StaleGraceMs = v
	}

	if v, err := strconv.ParseInt(os.Getenv(EnvPruneQuarantine), 10, 64); err == nil {
		eo.PruneQuarantine = v
	}

	return eo
}

// ApplyEnvOverrides overlays non-zero EnvOverrides fields onto cfg, per the
// four-layer precedence (defaults -> file -> env -> CLI).
func ApplyEnvOverrides(cfg *Config, eo EnvOverrides) {
	if eo.SnapshotBytes != "" {
		cfg.Snapshot.Bytes = eo.SnapshotBytes
	}

	if eo.SnapshotRecords != 0 {
		cfg.Snapshot.Records = eo.SnapshotRecords
	}

	if eo.SnapshotAgeMs != 0 {
		cfg.Snapshot.AgeMs = eo.SnapshotAgeMs
	}

	if eo.StaleGraceMs != 0 {
		cfg.Stale.GraceMs = eo.StaleGraceMs
	}

	if eo.PruneQuarantine != 0 {
		cfg.Prune.QuarantineMs = eo.PruneQuarantine
	}
}
