package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/drewcsillag/notecove/internal/fsadapter"
	"github.com/drewcsillag/notecove/internal/fsck"
	"github.com/drewcsillag/notecove/internal/noteid"
)

func newFsckCmd() *cobra.Command {
	var noteArg string

	cmd := &cobra.Command{
		Use:   "fsck [storage-directory]",
		Short: "Check a storage directory's logs and snapshots for corruption",
		Long: `fsck reads every log file and snapshot under a storage directory and
reports corrupt records, sequence gaps, and unreadable snapshots without
writing anything back. It deliberately skips the version gate other
commands apply, since a corrupt-format SD is exactly what fsck exists to
diagnose.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFsck(cmd, noteArg)
		},
	}

	cmd.Flags().StringVar(&noteArg, "note", "", "limit the sweep to a single note id")

	return cmd
}

func runFsck(cmd *cobra.Command, noteArg string) error {
	cc := mustCLIContext(cmd.Context())

	if cc.SDPath == "" {
		return fmt.Errorf("no storage directory specified (pass it as an argument, --sd, or set NC_STORAGE_SD)")
	}

	var noteID *noteid.ID

	if noteArg != "" {
		id, err := noteid.Parse(noteArg)
		if err != nil {
			return fmt.Errorf("parsing --note: %w", err)
		}

		noteID = &id
	}

	cc.Statusf("Checking %s...\n", cc.SDPath)

	report, err := fsck.Run(fsadapter.NewLocal(), cc.SDPath, noteID)
	if err != nil {
		return fmt.Errorf("running fsck: %w", err)
	}

	if cc.Flags.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printFsckReport(report)
	}

	if !report.Clean() {
		return errFormatIssues
	}

	return nil
}

func printFsckReport(report *fsck.Report) {
	fmt.Printf("Scanned %d note(s), found %d issue(s)\n", report.NotesScanned, len(report.Issues))

	if len(report.Issues) == 0 {
		return
	}

	headers := []string{"NOTE", "KIND", "FILE", "DETAIL"}
	table := make([][]string, len(report.Issues))

	for i, issue := range report.Issues {
		table[i] = []string{issue.NoteID.Compact, string(issue.Kind), issue.File, issue.Detail}
	}

	printTable(os.Stdout, headers, table)
}
