package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/drewcsillag/notecove/internal/config"
)

func newPauseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pause [storage-directory]",
		Short: "Tell a running watch daemon to stop syncing this storage directory",
		Long: `pause drops a control file next to the storage directory's PID
file and signals a running "ncstorage watch" daemon (if any) with SIGHUP
so it notices immediately instead of waiting for its next poll tick.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPause(cmd)
		},
	}

	return cmd
}

func runPause(cmd *cobra.Command) error {
	cc := mustCLIContext(cmd.Context())

	if cc.SDPath == "" {
		return fmt.Errorf("no storage directory specified (pass it as an argument, --sd, or set NC_STORAGE_SD)")
	}

	path := config.PausePath(cc.SDPath)
	if path == "" {
		return fmt.Errorf("could not determine pause file path (no home directory?)")
	}

	if err := os.WriteFile(path, []byte{}, 0o644); err != nil {
		return fmt.Errorf("writing pause file: %w", err)
	}

	cc.Statusf("Paused %s\n", cc.SDPath)

	if err := sendSIGHUP(config.PIDFilePath(cc.SDPath)); err != nil {
		cc.Logger.Debug("pause: no running watch daemon to notify", "error", err)
	}

	return nil
}
