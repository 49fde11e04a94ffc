package sdmigrate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/drewcsillag/notecove/internal/fsadapter"
)

func TestCheckVersionFreshSD(t *testing.T) {
	dir := t.TempDir()
	fs := fsadapter.NewLocal()

	_, err := CheckVersion(fs, dir, CurrentAppVersion)

	var verr *VersionError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, KindTooOld, verr.Kind)
}

func TestCheckVersionLocked(t *testing.T) {
	dir := t.TempDir()
	fs := fsadapter.NewLocal()

	require.NoError(t, fs.WriteFile(LockPath(fs, dir), []byte(`{"timestamp":"2024-01-01T00:00:00Z"}`)))

	_, err := CheckVersion(fs, dir, CurrentAppVersion)

	var verr *VersionError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, KindLocked, verr.Kind)
}

func TestCheckVersionTooNew(t *testing.T) {
	dir := t.TempDir()
	fs := fsadapter.NewLocal()

	require.NoError(t, WriteVersion(fs, dir, 99))

	_, err := CheckVersion(fs, dir, CurrentAppVersion)

	var verr *VersionError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, KindTooNew, verr.Kind)
}

func TestMigrateAppliesChainAndUnlocks(t *testing.T) {
	dir := t.TempDir()
	fs := fsadapter.NewLocal()

	require.NoError(t, Migrate(fs, dir, CurrentAppVersion, DefaultMigrations))

	version, err := ReadVersion(fs, dir)
	require.NoError(t, err)
	require.Equal(t, CurrentAppVersion, version)

	locked, err := Locked(fs, dir)
	require.NoError(t, err)
	require.False(t, locked)

	for _, d := range skeletonDirs {
		exists, err := fs.Exists(fs.JoinPath(dir, d))
		require.NoError(t, err)
		require.True(t, exists, "expected %s to exist", d)
	}

	version, err = CheckVersion(fs, dir, CurrentAppVersion)
	require.NoError(t, err)
	require.Equal(t, CurrentAppVersion, version)
}

func TestMigrateLeavesLockOnFailure(t *testing.T) {
	dir := t.TempDir()
	fs := fsadapter.NewLocal()

	boom := errors.New("boom")
	bad := []Migration{{From: 0, Apply: func(fsadapter.FS, string) error { return boom }}}

	err := Migrate(fs, dir, CurrentAppVersion, bad)
	require.ErrorIs(t, err, boom)

	locked, err := Locked(fs, dir)
	require.NoError(t, err)
	require.True(t, locked, "a failed migration must leave the lock in place")
}

func TestMigrateNoOpWhenAlreadyCurrent(t *testing.T) {
	dir := t.TempDir()
	fs := fsadapter.NewLocal()

	require.NoError(t, WriteVersion(fs, dir, CurrentAppVersion))
	require.NoError(t, Migrate(fs, dir, CurrentAppVersion, DefaultMigrations))
}
