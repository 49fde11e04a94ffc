// Package diagnostics implements export_diagnostics (spec.md §6): a
// single gzip'd tarball containing every on-disk artifact for a storage
// directory (logs, snapshots, activity and deletion logs, the SD_VERSION
// file) plus a JSON snapshot of whatever in-memory state the caller wants
// captured, so a bug report can be attached and inspected offline without
// needing access to the reporter's machine.
//
// No example repo in the pack bundles arbitrary directory trees into an
// archive; this is built directly on the standard library's archive/tar
// and compress/gzip, which is the idiomatic and only reasonable choice
// for this concern (see DESIGN.md).
package diagnostics

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/drewcsillag/notecove/internal/fsadapter"
)

// StateDump is the JSON side-car written into the archive as
// "state_dump.json": a snapshot of whatever in-memory facts the caller
// (normally internal/sdapi) deems useful for a bug report.
type StateDump struct {
	GeneratedAt  time.Time       `json:"generatedAt"`
	SDVersion    int             `json:"sdVersion"`
	ProfileID    string          `json:"profileId"`
	InstanceID   string          `json:"instanceId"`
	StaleEntries json.RawMessage `json:"staleEntries,omitempty"`
	ExtraNotes   string          `json:"extraNotes,omitempty"`
}

// ExportFS is the entry point internal/sdapi calls: it checks that fs is
// backed by the real filesystem (a tar archive's member names must map to
// real paths) and then delegates to Export.
func ExportFS(fs fsadapter.FS, sdPath, outPath string, dump StateDump) error {
	if err := verifyLocal(fs); err != nil {
		return err
	}

	return Export(sdPath, outPath, dump)
}

// Export writes a gzip'd tar archive to outPath containing every file
// under sdPath and a state_dump.json entry built from dump. It only
// supports the local filesystem, since a tar archive member's Name must
// map to a real path to be read back with standard tools.
func Export(sdPath, outPath string, dump StateDump) error {
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("diagnostics: creating %s: %w", outPath, err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	if err := addTree(tw, sdPath); err != nil {
		_ = tw.Close()
		_ = gz.Close()

		return err
	}

	payload, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		_ = tw.Close()
		_ = gz.Close()

		return fmt.Errorf("diagnostics: encoding state dump: %w", err)
	}

	if err := writeTarEntry(tw, "state_dump.json", payload); err != nil {
		_ = tw.Close()
		_ = gz.Close()

		return err
	}

	if err := tw.Close(); err != nil {
		_ = gz.Close()

		return fmt.Errorf("diagnostics: closing tar writer: %w", err)
	}

	if err := gz.Close(); err != nil {
		return fmt.Errorf("diagnostics: closing gzip writer: %w", err)
	}

	return out.Close()
}

func addTree(tw *tar.Writer, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("diagnostics: walking %s: %w", path, err)
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("diagnostics: computing relative path for %s: %w", path, err)
		}

		if rel == "." {
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return fmt.Errorf("diagnostics: building tar header for %s: %w", path, err)
		}

		hdr.Name = filepath.ToSlash(rel)

		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("diagnostics: writing tar header for %s: %w", path, err)
		}

		if info.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("diagnostics: opening %s: %w", path, err)
		}
		defer f.Close()

		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("diagnostics: copying %s into archive: %w", path, err)
		}

		return nil
	})
}

func writeTarEntry(tw *tar.Writer, name string, payload []byte) error {
	hdr := &tar.Header{
		Name:    name,
		Mode:    0o644,
		Size:    int64(len(payload)),
		ModTime: time.Now(),
	}

	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("diagnostics: writing header for %s: %w", name, err)
	}

	if _, err := tw.Write(payload); err != nil {
		return fmt.Errorf("diagnostics: writing %s: %w", name, err)
	}

	return nil
}

// verifyLocal is a guard used by callers that accept an fsadapter.FS but
// can only honor Export's local-filesystem requirement; it returns an
// error rather than silently mishandling a non-local adapter.
func verifyLocal(fs fsadapter.FS) error {
	if _, ok := fs.(fsadapter.Local); !ok {
		return fmt.Errorf("diagnostics: export requires a local filesystem adapter")
	}

	return nil
}
