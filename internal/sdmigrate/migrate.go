// Package sdmigrate implements the SD Version & Migration Gate (spec.md
// §4.J): it refuses to open a storage directory whose on-disk format
// differs from the app's, and serializes migrations across instances via
// a lock file. Grounded on the teacher's config.Holder/SIGHUP reload
// discipline for "one place everyone reads the current value from", and
// on fsadapter's ready-flag write for the lock file's all-or-nothing
// semantics.
package sdmigrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/drewcsillag/notecove/internal/fsadapter"
)

// CurrentAppVersion is the on-disk format version this build of the
// engine writes and expects. Bump it, and append a Migration to
// DefaultMigrations, whenever the on-disk layout changes.
const CurrentAppVersion = 1

const (
	versionFileName = "SD_VERSION"
	lockFileName    = ".migration-lock"
)

// Kind discriminates the three refuse-to-open outcomes spec.md §4.J and
// §6 name.
type Kind string

const (
	KindLocked Kind = "locked"
	KindTooOld Kind = "too-old"
	KindTooNew Kind = "too-new"
)

// VersionError reports why open_sd refused to proceed.
type VersionError struct {
	Kind       Kind
	SDVersion  int
	AppVersion int
}

func (e *VersionError) Error() string {
	switch e.Kind {
	case KindLocked:
		return "sdmigrate: storage directory locked for migration"
	case KindTooNew:
		return fmt.Sprintf("sdmigrate: storage directory version %d is newer than this app (%d)", e.SDVersion, e.AppVersion)
	case KindTooOld:
		return fmt.Sprintf("sdmigrate: storage directory version %d requires migration to %d", e.SDVersion, e.AppVersion)
	default:
		return "sdmigrate: version error"
	}
}

// lockFile is the JSON body written to .migration-lock.
type lockFile struct {
	Timestamp string `json:"timestamp"`
}

func versionPath(fs fsadapter.FS, sdPath string) string {
	return fs.JoinPath(sdPath, versionFileName)
}

// LockPath returns the path of the migration lock file within sdPath.
func LockPath(fs fsadapter.FS, sdPath string) string {
	return fs.JoinPath(sdPath, lockFileName)
}

// ReadVersion reads SD_VERSION, treating a missing or unparsable file as
// version 0 (spec.md §4.J).
func ReadVersion(fs fsadapter.FS, sdPath string) (int, error) {
	exists, err := fs.Exists(versionPath(fs, sdPath))
	if err != nil {
		return 0, fmt.Errorf("sdmigrate: checking SD_VERSION: %w", err)
	}

	if !exists {
		return 0, nil
	}

	data, err := fs.ReadFile(versionPath(fs, sdPath))
	if err != nil {
		return 0, fmt.Errorf("sdmigrate: reading SD_VERSION: %w", err)
	}

	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, nil
	}

	return v, nil
}

// WriteVersion writes SD_VERSION as newline-terminated ASCII decimal.
func WriteVersion(fs fsadapter.FS, sdPath string, version int) error {
	data := []byte(strconv.Itoa(version) + "\n")
	if err := fs.WriteFile(versionPath(fs, sdPath), data); err != nil {
		return fmt.Errorf("sdmigrate: writing SD_VERSION: %w", err)
	}

	return nil
}

// Locked reports whether .migration-lock is present.
func Locked(fs fsadapter.FS, sdPath string) (bool, error) {
	exists, err := fs.Exists(LockPath(fs, sdPath))
	if err != nil {
		return false, fmt.Errorf("sdmigrate: checking lock: %w", err)
	}

	return exists, nil
}

// CheckVersion is the read-only half of open_sd's version gate: it
// returns the current SD version, or a *VersionError if the directory
// should not be opened (locked, too-new, or too-old). It performs no
// writes, so a caller that only wants to inspect an SD never risks
// starting a migration by accident.
func CheckVersion(fs fsadapter.FS, sdPath string, appVersion int) (int, error) {
	locked, err := Locked(fs, sdPath)
	if err != nil {
		return 0, err
	}

	if locked {
		return 0, &VersionError{Kind: KindLocked, AppVersion: appVersion}
	}

	version, err := ReadVersion(fs, sdPath)
	if err != nil {
		return 0, err
	}

	switch {
	case version > appVersion:
		return version, &VersionError{Kind: KindTooNew, SDVersion: version, AppVersion: appVersion}
	case version < appVersion:
		return version, &VersionError{Kind: KindTooOld, SDVersion: version, AppVersion: appVersion}
	default:
		return version, nil
	}
}

// Migration upgrades a storage directory from From to From+1. Apply must
// be idempotent and resumable: it may be invoked again, from the same
// starting version, after a prior attempt failed partway through.
type Migration struct {
	From  int
	Apply func(fs fsadapter.FS, sdPath string) error
}

// ErrNoMigrationPath is returned when the registered migrations do not
// form an unbroken chain from the SD's current version to appVersion.
var ErrNoMigrationPath = errors.New("sdmigrate: no migration registered for this version gap")

// nowISO8601 is overridable in tests; production callers get wall time.
var nowISO8601 = func() string { return time.Now().UTC().Format(time.RFC3339) }

// Migrate runs the registered migration chain while holding
// .migration-lock: it creates the lock, applies each migration v -> v+1
// in increasing order, writes the new SD_VERSION once the chain
// completes, then deletes the lock. A failure at any step leaves the
// lock in place so a human can diagnose it (spec.md §4.J); the caller
// must not retry automatically.
func Migrate(fs fsadapter.FS, sdPath string, appVersion int, migrations []Migration) error {
	locked, err := Locked(fs, sdPath)
	if err != nil {
		return err
	}

	if locked {
		return &VersionError{Kind: KindLocked, AppVersion: appVersion}
	}

	version, err := ReadVersion(fs, sdPath)
	if err != nil {
		return err
	}

	if version > appVersion {
		return &VersionError{Kind: KindTooNew, SDVersion: version, AppVersion: appVersion}
	}

	if version == appVersion {
		return nil
	}

	byFrom := make(map[int]Migration, len(migrations))
	for _, m := range migrations {
		byFrom[m.From] = m
	}

	lockBody, err := json.Marshal(lockFile{Timestamp: nowISO8601()})
	if err != nil {
		return fmt.Errorf("sdmigrate: encoding lock: %w", err)
	}

	if err := fs.WriteFile(LockPath(fs, sdPath), lockBody); err != nil {
		return fmt.Errorf("sdmigrate: creating lock: %w", err)
	}

	for v := version; v < appVersion; v++ {
		m, ok := byFrom[v]
		if !ok {
			return fmt.Errorf("%w: version %d", ErrNoMigrationPath, v)
		}

		if err := m.Apply(fs, sdPath); err != nil {
			return fmt.Errorf("sdmigrate: migration %d -> %d: %w", v, v+1, err)
		}
	}

	if err := WriteVersion(fs, sdPath, appVersion); err != nil {
		return err
	}

	if err := fs.DeleteFile(LockPath(fs, sdPath)); err != nil {
		return fmt.Errorf("sdmigrate: removing lock: %w", err)
	}

	return nil
}

// skeletonDirs is the directory layout spec.md §3 requires under a fresh
// or legacy (version 0) storage directory.
var skeletonDirs = []string{"notes", "folders", "activity", "deletions"}

// DefaultMigrations is the registered migration chain this build ships.
// The only migration today is 0 -> 1, which creates the top-level
// directory skeleton for a brand-new SD (or one left over from before
// SD_VERSION existed); it is idempotent because Mkdir is idempotent.
var DefaultMigrations = []Migration{
	{
		From: 0,
		Apply: func(fs fsadapter.FS, sdPath string) error {
			for _, d := range skeletonDirs {
				if err := fs.Mkdir(fs.JoinPath(sdPath, d)); err != nil {
					return fmt.Errorf("creating %s: %w", d, err)
				}
			}

			return nil
		},
	},
}
