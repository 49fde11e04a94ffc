package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadEnvOverrides_AllSet(t *testing.T) {
	t.Setenv(EnvConfig, "/custom/config.toml")
	t.Setenv(EnvSD, "/custom/sd")
	t.Setenv(EnvSnapshotBytes, "2MiB")
	t.Setenv(EnvSnapshotRecords, "5000")
	t.Setenv(EnvSnapshotAgeMs, "1000")
	t.Setenv(EnvStaleGraceMs, "2000")
	t.Setenv(EnvPruneQuarantine, "3000")

	overrides := ReadEnvOverrides()
	assert.Equal(t, "/custom/config.toml", overrides.ConfigPath)
	assert.Equal(t, "/custom/sd", overrides.SD)
	assert.Equal(t, "2MiB", overrides.SnapshotBytes)
	assert.Equal(t, 5000, overrides.SnapshotRecords)
	assert.Equal(t, int64(1000), overrides.SnapshotAgeMs)
	assert.Equal(t, int64(2000), overrides.StaleGraceMs)
	assert.Equal(t, int64(3000), overrides.PruneQuarantine)
}

func TestReadEnvOverrides_NoneSet(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvSD, "")

	overrides := ReadEnvOverrides()
	assert.Empty(t, overrides.ConfigPath)
	assert.Empty(t, overrides.SD)
	assert.Zero(t, overrides.SnapshotRecords)
}

func TestApplyEnvOverrides_OnlySetFieldsApplied(t *testing.T) {
	cfg := DefaultConfig()
	baseRecords := cfg.Snapshot.Records

	ApplyEnvOverrides(cfg, EnvOverrides{StaleGraceMs: 9999})

	assert.Equal(t, int64(9999), cfg.Stale.GraceMs)
	assert.Equal(t, baseRecords, cfg.Snapshot.Records)
}

func TestEnvVarConstants(t *testing.T) {
	assert.Equal(t, "NC_STORAGE_CONFIG", EnvConfig)
	assert.Equal(t, "NC_STORAGE_SD", EnvSD)
}
