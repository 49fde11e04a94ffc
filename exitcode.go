package main

import (
	"errors"

	"github.com/drewcsillag/notecove/internal/sdmigrate"
)

// errFormatIssues is returned by a command (fsck) that completed without
// a Go error but found problems that should still exit non-zero.
var errFormatIssues = errors.New("format problems found")

// Exit codes per spec.md §6: 0 success, 2 format error, 3 migration
// required, 4 migration locked.
const (
	exitSuccess          = 0
	exitFormatError      = 2
	exitMigrationNeeded  = 3
	exitMigrationLocked  = 4
)

// exitCodeFor maps a command's returned error onto the CLI's documented
// exit code contract. A *sdmigrate.VersionError carries enough detail to
// distinguish "too old, run migrate" from "locked, another process is
// migrating" from any other format problem.
func exitCodeFor(err error) int {
	if errors.Is(err, errFormatIssues) {
		return exitFormatError
	}

	var verr *sdmigrate.VersionError
	if errors.As(err, &verr) {
		switch verr.Kind {
		case sdmigrate.KindTooOld:
			return exitMigrationNeeded
		case sdmigrate.KindLocked:
			return exitMigrationLocked
		default:
			return exitFormatError
		}
	}

	return 1
}
