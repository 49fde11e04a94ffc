package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// statusf prints a status message to stderr unless quiet mode is set.
func statusf(quiet bool, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// Statusf prints a status message to stderr unless quiet mode is set.
// Method form of statusf — avoids threading `quiet bool` through call chains.
func (cc *CLIContext) Statusf(format string, args ...any) {
	statusf(cc.Flags.Quiet, format, args...)
}

// formatSize returns a human-readable size string (e.g. "1.2 MB") via
// go-humanize. No command currently prints byte counts with it.
func formatSize(bytes int64) string {
	return humanize.Bytes(uint64(bytes))
}

// formatTime returns a compact absolute timestamp for display: "Jan _2
// 15:04" for times in the current year, "Jan _2  2006" otherwise. The
// relative form ("3 days ago") is formatAge's job.
func formatTime(t time.Time) string {
	now := time.Now()

	if t.Year() == now.Year() {
		return t.Format("Jan _2 15:04")
	}

	return t.Format("Jan _2  2006")
}

// formatAge returns a relative duration string (e.g. "3 days ago"),
// used for stale-sync gap detection timestamps where "how long has this
// been stale" matters more than the absolute clock time.
func formatAge(t time.Time) string {
	return humanize.Time(t)
}

// printTable writes aligned columns to the given writer.
// headers and each row must have the same length.
func printTable(w io.Writer, headers []string, rows [][]string) {
	// Compute column widths.
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	// Print header.
	printRow(w, headers, widths)

	// Print rows.
	for _, row := range rows {
		printRow(w, row, widths)
	}
}

// printRow writes a single padded row.
func printRow(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
	}

	fmt.Fprintln(w, strings.Join(parts, "  "))
}
