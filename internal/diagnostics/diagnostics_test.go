package diagnostics

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/drewcsillag/notecove/internal/fsadapter"
)

func TestExportFSBundlesTreeAndStateDump(t *testing.T) {
	sdPath := t.TempDir()
	fs := fsadapter.NewLocal()

	require.NoError(t, fs.Mkdir(fs.JoinPath(sdPath, "notes", "n1", "logs")))
	require.NoError(t, fs.WriteFile(fs.JoinPath(sdPath, "notes", "n1", "logs", "f.crdtlog"), []byte("record-bytes")))
	require.NoError(t, fs.WriteFile(fs.JoinPath(sdPath, "SD_VERSION"), []byte("1\n")))

	outPath := filepath.Join(t.TempDir(), "diag.tar.gz")

	dump := StateDump{
		GeneratedAt: time.Unix(0, 0),
		SDVersion:   1,
		ProfileID:   "profile",
		InstanceID:  "instance",
		ExtraNotes:  "test export",
	}

	require.NoError(t, ExportFS(fs, sdPath, outPath, dump))

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer gz.Close()

	tr := tar.NewReader(gz)

	names := map[string][]byte{}

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}

		require.NoError(t, err)

		if hdr.Typeflag == tar.TypeDir {
			continue
		}

		body, err := io.ReadAll(tr)
		require.NoError(t, err)
		names[hdr.Name] = body
	}

	require.Contains(t, names, "SD_VERSION")
	require.Equal(t, []byte("1\n"), names["SD_VERSION"])
	require.Contains(t, names, "notes/n1/logs/f.crdtlog")
	require.Equal(t, []byte("record-bytes"), names["notes/n1/logs/f.crdtlog"])
	require.Contains(t, names, "state_dump.json")

	var gotDump StateDump
	require.NoError(t, json.Unmarshal(names["state_dump.json"], &gotDump))
	require.Equal(t, 1, gotDump.SDVersion)
	require.Equal(t, "profile", gotDump.ProfileID)
	require.Equal(t, "test export", gotDump.ExtraNotes)
}

func TestExportFSRejectsNonLocalAdapter(t *testing.T) {
	err := ExportFS(fakeFS{}, "irrelevant", filepath.Join(t.TempDir(), "out.tar.gz"), StateDump{})
	require.Error(t, err)
}

// fakeFS is a minimal fsadapter.FS stand-in that is not fsadapter.Local,
// just to exercise the verifyLocal guard.
type fakeFS struct{ fsadapter.FS }
