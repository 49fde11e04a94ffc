package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogger returns a debug-level logger that writes to stderr, ensuring
// all config debug output appears in test output for CI visibility.
func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	err := os.WriteFile(path, []byte(content), 0o600)
	require.NoError(t, err)

	return path
}

func TestLoad_ValidFullConfig(t *testing.T) {
	tomlContent := `
[snapshot]
bytes = "2MiB"
records = 5000
age_ms = 3600000

[stale]
grace_ms = 60000

[prune]
quarantine_ms = 86400000

[sync]
poll_interval = "5s"

[logging]
log_level = "debug"
log_format = "json"
`

	path := writeTestConfig(t, tomlContent)
	cfg, err := Load(path, testLogger(t))
	require.NoError(t, err)

	assert.Equal(t, "2MiB", cfg.Snapshot.Bytes)
	assert.Equal(t, 5000, cfg.Snapshot.Records)
	assert.Equal(t, int64(3600000), cfg.Snapshot.AgeMs)
	assert.Equal(t, int64(60000), cfg.Stale.GraceMs)
	assert.Equal(t, int64(86400000), cfg.Prune.QuarantineMs)
	assert.Equal(t, "5s", cfg.Sync.PollInterval)
	assert.Equal(t, "debug", cfg.Logging.LogLevel)
	assert.Equal(t, "json", cfg.Logging.LogFormat)
}

func TestLoad_MinimalConfig_UsesDefaults(t *testing.T) {
	path := writeTestConfig(t, "")
	cfg, err := Load(path, testLogger(t))
	require.NoError(t, err)

	assert.Equal(t, defaultSnapshotBytes, cfg.Snapshot.Bytes)
	assert.Equal(t, defaultSnapshotRecords, cfg.Snapshot.Records)
	assert.Equal(t, "info", cfg.Logging.LogLevel)
	assert.Equal(t, "2s", cfg.Sync.PollInterval)
}

func TestLoad_MalformedTOML(t *testing.T) {
	path := writeTestConfig(t, `[snapshot
not valid toml`)
	_, err := Load(path, testLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.toml", testLogger(t))
	require.Error(t, err)
}

func TestLoad_ValidationError(t *testing.T) {
	path := writeTestConfig(t, "[snapshot]\nrecords = 0\n")
	_, err := Load(path, testLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLoadOrDefault_FileExists(t *testing.T) {
	path := writeTestConfig(t, "[logging]\nlog_level = \"debug\"\n")
	cfg, err := LoadOrDefault(path, testLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.LogLevel)
}

func TestLoadOrDefault_FileNotFound(t *testing.T) {
	cfg, err := LoadOrDefault("/nonexistent/path/config.toml", testLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logging.LogLevel)
	assert.Equal(t, defaultSnapshotRecords, cfg.Snapshot.Records)
}

func TestLoad_PartialConfig_UsesDefaults(t *testing.T) {
	path := writeTestConfig(t, "[logging]\nlog_level = \"warn\"\n")
	cfg, err := Load(path, testLogger(t))
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Logging.LogLevel)
	assert.Equal(t, defaultSnapshotRecords, cfg.Snapshot.Records)
	assert.Equal(t, "2s", cfg.Sync.PollInterval)
}

func TestResolve_DefaultsOnly(t *testing.T) {
	path := writeTestConfig(t, "")
	cfg, sd, err := Resolve(EnvOverrides{ConfigPath: path}, CLIOverrides{}, testLogger(t))
	require.NoError(t, err)
	assert.Empty(t, sd)
	assert.Equal(t, defaultSnapshotRecords, cfg.Snapshot.Records)
}

func TestResolve_CLISDOverridesEnv(t *testing.T) {
	path := writeTestConfig(t, "")
	_, sd, err := Resolve(
		EnvOverrides{ConfigPath: path, SD: "/env/sd"},
		CLIOverrides{SD: "/cli/sd"},
		testLogger(t),
	)
	require.NoError(t, err)
	assert.Equal(t, "/cli/sd", sd)
}

func TestResolve_CLIOverridesLayerOnTopOfFile(t *testing.T) {
	path := writeTestConfig(t, "[snapshot]\nrecords = 2000\n")
	cfg, _, err := Resolve(
		EnvOverrides{ConfigPath: path},
		CLIOverrides{SnapshotRecords: 3000},
		testLogger(t),
	)
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Snapshot.Records)
}

func TestResolve_InvalidConfigFile(t *testing.T) {
	path := writeTestConfig(t, `[invalid toml`)
	_, _, err := Resolve(EnvOverrides{ConfigPath: path}, CLIOverrides{}, testLogger(t))
	require.Error(t, err)
}

func TestResolveConfigPath_Precedence(t *testing.T) {
	logger := testLogger(t)

	assert.Equal(t, DefaultConfigPath(), ResolveConfigPath(EnvOverrides{}, CLIOverrides{}, logger))
	assert.Equal(t, "/env/path", ResolveConfigPath(EnvOverrides{ConfigPath: "/env/path"}, CLIOverrides{}, logger))
	assert.Equal(t, "/cli/path", ResolveConfigPath(
		EnvOverrides{ConfigPath: "/env/path"},
		CLIOverrides{ConfigPath: "/cli/path"},
		logger,
	))
}
