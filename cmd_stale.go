package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/drewcsillag/notecove/internal/fsadapter"
	"github.com/drewcsillag/notecove/internal/noteid"
	"github.com/drewcsillag/notecove/internal/staledetect"
)

func newStaleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stale",
		Short: "List or resolve unresolved stale-sync gaps",
	}

	cmd.AddCommand(newStaleListCmd())
	cmd.AddCommand(newStaleSkipCmd())
	cmd.AddCommand(newStaleRetryCmd())

	return cmd
}

func newStaleListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "list [storage-directory]",
		Short:       "List every unresolved stale-sync gap across all notes",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{openAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStaleList(cmd)
		},
	}

	return cmd
}

func runStaleList(cmd *cobra.Command) error {
	cc := mustCLIContext(cmd.Context())

	ids, err := listNoteIDs(fsadapter.NewLocal(), cc.SDPath)
	if err != nil {
		return fmt.Errorf("listing notes: %w", err)
	}

	for _, id := range ids {
		if _, _, err := cc.Handle.LoadNote(cmd.Context(), id); err != nil {
			cc.Logger.Warn("stale list: could not load note", "note", id.String(), "error", err)
		}
	}

	entries, err := cc.Handle.ListStale(ids)
	if err != nil {
		return fmt.Errorf("listing stale-sync gaps: %w", err)
	}

	if cc.Flags.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(entries)
	}

	printStaleTable(entries)

	return nil
}

func printStaleTable(entries []staledetect.StaleEntry) {
	if len(entries) == 0 {
		fmt.Println("No unresolved stale-sync gaps")
		return
	}

	headers := []string{"NOTE", "SOURCE INSTANCE", "EXPECTED", "OBSERVED", "GAP", "DETECTED"}
	table := make([][]string, len(entries))

	for i, e := range entries {
		table[i] = []string{
			e.NoteID.String(),
			e.SourceInstanceID.String(),
			fmt.Sprintf("%d", e.ExpectedSequence),
			fmt.Sprintf("%d", e.HighestSequenceObserved),
			fmt.Sprintf("%d", e.Gap),
			formatAge(e.DetectedAt),
		}
	}

	printTable(os.Stdout, headers, table)
}

func newStaleSkipCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "skip <storage-directory> <note-id> <source-instance-id>",
		Short:       "Permanently accept a stale-sync gap as unrecoverable for one note/peer pair",
		Args:        cobra.ExactArgs(3),
		Annotations: map[string]string{openAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStaleSkip(cmd, args[1], args[2])
		},
	}

	return cmd
}

func runStaleSkip(cmd *cobra.Command, noteArg, sourceArg string) error {
	cc := mustCLIContext(cmd.Context())

	noteID, sourceID, err := parseStaleArgs(noteArg, sourceArg)
	if err != nil {
		return err
	}

	if _, _, err := cc.Handle.LoadNote(cmd.Context(), noteID); err != nil {
		return fmt.Errorf("loading note: %w", err)
	}

	if err := cc.Handle.SkipStale(noteID, sourceID); err != nil {
		return fmt.Errorf("skipping stale-sync gap: %w", err)
	}

	cc.Statusf("Skipped stale-sync gap for %s from %s\n", noteID, sourceID)

	return nil
}

func newStaleRetryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "retry <storage-directory> <note-id> <source-instance-id>",
		Short:       "Clear a previously skipped stale-sync gap and try syncing it again",
		Args:        cobra.ExactArgs(3),
		Annotations: map[string]string{openAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStaleRetry(cmd, args[1], args[2])
		},
	}

	return cmd
}

func runStaleRetry(cmd *cobra.Command, noteArg, sourceArg string) error {
	cc := mustCLIContext(cmd.Context())

	noteID, sourceID, err := parseStaleArgs(noteArg, sourceArg)
	if err != nil {
		return err
	}

	if _, _, err := cc.Handle.LoadNote(cmd.Context(), noteID); err != nil {
		return fmt.Errorf("loading note: %w", err)
	}

	if err := cc.Handle.RetryStale(cmd.Context(), noteID, sourceID); err != nil {
		return fmt.Errorf("retrying stale-sync gap: %w", err)
	}

	cc.Statusf("Retried stale-sync gap for %s from %s\n", noteID, sourceID)

	return nil
}

func parseStaleArgs(noteArg, sourceArg string) (noteid.ID, noteid.ID, error) {
	noteID, err := noteid.Parse(noteArg)
	if err != nil {
		return noteid.ID{}, noteid.ID{}, fmt.Errorf("parsing note id: %w", err)
	}

	sourceID, err := noteid.Parse(sourceArg)
	if err != nil {
		return noteid.ID{}, noteid.ID{}, fmt.Errorf("parsing source instance id: %w", err)
	}

	return noteID, sourceID, nil
}
