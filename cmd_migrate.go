package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/drewcsillag/notecove/internal/fsadapter"
	"github.com/drewcsillag/notecove/internal/sdmigrate"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate [storage-directory]",
		Short: "Upgrade a storage directory to the current on-disk format version",
		Long: `migrate acquires the storage directory's migration lock, applies
every registered migration between the SD's current version and the
version this build of ncstorage requires, then writes the new version
and releases the lock. It deliberately skips the version gate other
commands apply in PersistentPreRunE, since that gate is precisely what
sends a user to migrate in the first place.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd)
		},
	}

	return cmd
}

func runMigrate(cmd *cobra.Command) error {
	cc := mustCLIContext(cmd.Context())

	if cc.SDPath == "" {
		return fmt.Errorf("no storage directory specified (pass it as an argument, --sd, or set NC_STORAGE_SD)")
	}

	fs := fsadapter.NewLocal()

	current, err := sdmigrate.ReadVersion(fs, cc.SDPath)
	if err != nil {
		return fmt.Errorf("reading current version: %w", err)
	}

	if current == sdmigrate.CurrentAppVersion {
		cc.Statusf("%s is already at version %d, nothing to do\n", cc.SDPath, current)
		return nil
	}

	cc.Statusf("Migrating %s from version %d to %d...\n", cc.SDPath, current, sdmigrate.CurrentAppVersion)

	if err := sdmigrate.Migrate(fs, cc.SDPath, sdmigrate.CurrentAppVersion, sdmigrate.DefaultMigrations); err != nil {
		var verr *sdmigrate.VersionError
		if errors.As(err, &verr) && verr.Kind == sdmigrate.KindLocked {
			return fmt.Errorf("another process is migrating %s: %w", cc.SDPath, err)
		}

		return fmt.Errorf("migrating: %w", err)
	}

	cc.Statusf("Migrated %s to version %d\n", cc.SDPath, sdmigrate.CurrentAppVersion)

	return nil
}
