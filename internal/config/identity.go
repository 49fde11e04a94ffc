package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/drewcsillag/notecove/internal/noteid"
)

const identityFileName = "identity.json"

// identityFile is the on-disk shape of identity.json: the pair of
// identifiers spec.md §3 says must be "stable for the life of the
// installation". Unlike the per-SD search index filename, one identity
// file covers every storage directory this installation ever opens.
type identityFile struct {
	ProfileID  noteid.ID `json:"profileId"`
	InstanceID noteid.ID `json:"instanceId"`
}

// LoadOrCreateIdentity returns this installation's stable (profileId,
// instanceId) pair, reading it from identity.json under dir if present
// and creating it (with two freshly generated IDs) on first run. dir is
// normally config.DefaultConfigDir(); a caller with no writable config
// directory (dir == "") gets a fresh one-off pair every call, since
// there is nowhere to persist it — callers that need durability across
// invocations (the watch daemon, above all) should ensure dir is set.
func LoadOrCreateIdentity(dir string) (profileID, instanceID noteid.ID, err error) {
	if dir == "" {
		return noteid.New(), noteid.New(), nil
	}

	path := filepath.Join(dir, identityFileName)

	data, err := os.ReadFile(path)
	if err == nil {
		var idf identityFile
		if jsonErr := json.Unmarshal(data, &idf); jsonErr == nil && !idf.ProfileID.IsNil() && !idf.InstanceID.IsNil() {
			return idf.ProfileID, idf.InstanceID, nil
		}
		// Fall through to regenerate: a corrupt or half-written
		// identity.json must not block the CLI from working.
	} else if !os.IsNotExist(err) {
		return noteid.ID{}, noteid.ID{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	idf := identityFile{ProfileID: noteid.New(), InstanceID: noteid.New()}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return noteid.ID{}, noteid.ID{}, fmt.Errorf("config: creating %s: %w", dir, err)
	}

	encoded, err := json.MarshalIndent(idf, "", "  ")
	if err != nil {
		return noteid.ID{}, noteid.ID{}, fmt.Errorf("config: encoding identity: %w", err)
	}

	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return noteid.ID{}, noteid.ID{}, fmt.Errorf("config: writing %s: %w", path, err)
	}

	return idf.ProfileID, idf.InstanceID, nil
}
