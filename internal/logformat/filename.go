package logformat

import (
	"strconv"
	"strings"

	"github.com/drewcsillag/notecove/internal/noteid"
)

// Kind classifies a filename parsed by ParseFilename.
type Kind int

const (
	// KindUnknown is returned for names that match no grammar; the
	// engine ignores them.
	KindUnknown Kind = iota
	KindLog
	KindSnapshot
	KindActivityOrDeletion
)

// ParsedFilename is the result of successfully parsing a log, snapshot,
// or activity/deletion log filename.
type ParsedFilename struct {
	Kind       Kind
	ProfileID  noteid.ID
	InstanceID noteid.ID
	CreatedMs  int64 // valid for KindLog and KindSnapshot only
}

// LogFilename formats the `{profileId}_{instanceId}_{createdMs}.crdtlog`
// name an instance writes for its own log file.
func LogFilename(profileID, instanceID noteid.ID, createdMs int64) string {
	return profileID.String() + "_" + instanceID.String() + "_" + strconv.FormatInt(createdMs, 10) + ".crdtlog"
}

// SnapshotFilename formats `{profileId}_{instanceId}_{createdMs}.snap`.
func SnapshotFilename(profileID, instanceID noteid.ID, createdMs int64) string {
	return profileID.String() + "_" + instanceID.String() + "_" + strconv.FormatInt(createdMs, 10) + ".snap"
}

// ActivityFilename formats `{profileId}_{instanceId}.log`, used for both
// the activity log and the deletion log.
func ActivityFilename(profileID, instanceID noteid.ID) string {
	return profileID.String() + "_" + instanceID.String() + ".log"
}

// ParseFilename classifies name per spec.md §4.C's grammar. It returns
// ok == false for anything that does not match; callers must not treat
// that as an error, only as "ignore this entry" (unknown names are
// ignored by the engine).
//
// Field widths, not a '_'-split, disambiguate the stem: the compact UUID
// alphabet (base64url) includes '_', so a profileId or instanceId can
// itself contain the separator byte. Every id field is exactly
// noteid.CompactLen bytes wide, which makes fixed-width slicing
// unambiguous.
func ParseFilename(name string) (ParsedFilename, bool) {
	switch {
	case strings.HasSuffix(name, ".crdtlog"):
		return parseThreePart(strings.TrimSuffix(name, ".crdtlog"), KindLog)
	case strings.HasSuffix(name, ".snap"):
		return parseThreePart(strings.TrimSuffix(name, ".snap"), KindSnapshot)
	case strings.HasSuffix(name, ".log"):
		return parseLogName(strings.TrimSuffix(name, ".log"))
	default:
		return ParsedFilename{}, false
	}
}

const idLen = noteid.CompactLen

// parseThreePart parses `{profileId}_{instanceId}_{createdMs}`.
func parseThreePart(stem string, kind Kind) (ParsedFilename, bool) {
	if len(stem) < idLen+1+idLen+1+1 {
		return ParsedFilename{}, false
	}

	if stem[idLen] != '_' {
		return ParsedFilename{}, false
	}

	profileID, err := noteid.Parse(stem[0:idLen])
	if err != nil {
		return ParsedFilename{}, false
	}

	rest := stem[idLen+1:]
	if rest[idLen] != '_' {
		return ParsedFilename{}, false
	}

	instanceID, err := noteid.Parse(rest[0:idLen])
	if err != nil {
		return ParsedFilename{}, false
	}

	createdMs, err := strconv.ParseInt(rest[idLen+1:], 10, 64)
	if err != nil {
		return ParsedFilename{}, false
	}

	return ParsedFilename{Kind: kind, ProfileID: profileID, InstanceID: instanceID, CreatedMs: createdMs}, true
}

// parseLogName handles both the current `{profileId}_{instanceId}.log`
// grammar and the legacy `{instanceId}.log` grammar, which is accepted on
// read but never produced on write (spec.md §4.C).
func parseLogName(stem string) (ParsedFilename, bool) {
	if len(stem) == idLen {
		instanceID, err := noteid.Parse(stem)
		if err != nil {
			return ParsedFilename{}, false
		}

		return ParsedFilename{Kind: KindActivityOrDeletion, InstanceID: instanceID}, true
	}

	if len(stem) == idLen+1+idLen && stem[idLen] == '_' {
		profileID, err := noteid.Parse(stem[0:idLen])
		if err != nil {
			return ParsedFilename{}, false
		}

		instanceID, err := noteid.Parse(stem[idLen+1:])
		if err != nil {
			return ParsedFilename{}, false
		}

		return ParsedFilename{Kind: KindActivityOrDeletion, ProfileID: profileID, InstanceID: instanceID}, true
	}

	return ParsedFilename{}, false
}
