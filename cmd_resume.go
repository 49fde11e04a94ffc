package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/drewcsillag/notecove/internal/config"
)

func newResumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume [storage-directory]",
		Short: "Tell a running watch daemon to resume syncing this storage directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResume(cmd)
		},
	}

	return cmd
}

func runResume(cmd *cobra.Command) error {
	cc := mustCLIContext(cmd.Context())

	if cc.SDPath == "" {
		return fmt.Errorf("no storage directory specified (pass it as an argument, --sd, or set NC_STORAGE_SD)")
	}

	path := config.PausePath(cc.SDPath)
	if path == "" {
		return fmt.Errorf("could not determine pause file path (no home directory?)")
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing pause file: %w", err)
	}

	cc.Statusf("Resumed %s\n", cc.SDPath)

	if err := sendSIGHUP(config.PIDFilePath(cc.SDPath)); err != nil {
		cc.Logger.Debug("resume: no running watch daemon to notify", "error", err)
	}

	return nil
}
