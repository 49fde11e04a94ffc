package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/drewcsillag/notecove/internal/noteid"
)

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot <storage-directory> <note-id>",
		Short: "Force an immediate snapshot capture for one note",
		Long: `snapshot bypasses the usual byte/record/age thresholds and captures
a snapshot of a note's current state right now, then runs the usual
pruning pass. That pass counts the prune quarantine from this capture, so
it deletes log segments only when the quarantine is zero.`,
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{openAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(cmd, args[1])
		},
	}

	return cmd
}

func runSnapshot(cmd *cobra.Command, noteArg string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	id, err := noteid.Parse(noteArg)
	if err != nil {
		return fmt.Errorf("parsing note id: %w", err)
	}

	if _, _, err := cc.Handle.LoadNote(ctx, id); err != nil {
		return fmt.Errorf("loading note: %w", err)
	}

	name, err := cc.Handle.Store().SnapshotNow(id)
	if err != nil {
		return fmt.Errorf("capturing snapshot: %w", err)
	}

	cc.Statusf("Captured %s\n", name)

	return nil
}
