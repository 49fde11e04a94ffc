package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/drewcsillag/notecove/internal/crdt"
	"github.com/drewcsillag/notecove/internal/fsadapter"
	"github.com/drewcsillag/notecove/internal/logformat"
	"github.com/drewcsillag/notecove/internal/logsync"
	"github.com/drewcsillag/notecove/internal/noteid"
)

func TestShouldCapture(t *testing.T) {
	th := Thresholds{Bytes: 1000, Records: 10, AgeMs: 5000}

	require.True(t, ShouldCapture(1001, 0, 0, th))
	require.True(t, ShouldCapture(0, 11, 0, th))
	require.True(t, ShouldCapture(0, 0, 5001, th))
	require.False(t, ShouldCapture(1000, 10, 5000, th))
}

func TestCaptureAndRead(t *testing.T) {
	dir := t.TempDir()
	fs := fsadapter.NewLocal()
	require.NoError(t, fs.Mkdir(dir))

	noteID := noteid.New()
	profile := noteid.New()
	instance := noteid.New()

	doc := crdt.NewDoc()
	doc.EditContent(instance.Bytes(), 1, noteid.New().Bytes(), 0, false, []byte("hello"))

	name, err := Capture(fs, dir, noteID, profile, instance, 1000, doc)
	require.NoError(t, err)

	loaded, err := Read(fs, dir, name)
	require.NoError(t, err)
	require.Equal(t, noteID, loaded.Snapshot.NoteID)
	require.Equal(t, uint64(1), loaded.Snapshot.CoveredSequences[instance.Bytes()])

	fresh := crdt.NewDoc()
	require.NoError(t, fresh.Apply(loaded.Snapshot.State))
	require.Equal(t, "hello", fresh.Title())
}

func TestReadTruncatedFailsFast(t *testing.T) {
	dir := t.TempDir()
	fs := fsadapter.NewLocal()
	require.NoError(t, fs.Mkdir(dir))

	path := fs.JoinPath(dir, "AAAAAAAAAAAAAAAAAAAAAA_BBBBBBBBBBBBBBBBBBBBBB_1.snap")
	require.NoError(t, fs.WriteFile(path, []byte{0x00, 1, 2, 3}))

	_, err := Read(fs, dir, "AAAAAAAAAAAAAAAAAAAAAA_BBBBBBBBBBBBBBBBBBBBBB_1.snap")
	require.ErrorIs(t, err, fsadapter.ErrTruncated)
}

func TestDominatesAndSelectBest(t *testing.T) {
	a := [16]byte{1}
	b := [16]byte{2}

	low := Loaded{Filename: "low", Snapshot: logformat.Snapshot{
		CreatedMs:        10,
		CoveredSequences: map[[16]byte]uint64{a: 1, b: 1},
	}}

	high := Loaded{Filename: "high", Snapshot: logformat.Snapshot{
		CreatedMs:        20,
		CoveredSequences: map[[16]byte]uint64{a: 2, b: 1},
	}}

	require.True(t, Dominates(high.Snapshot.CoveredSequences, low.Snapshot.CoveredSequences))
	require.False(t, Dominates(low.Snapshot.CoveredSequences, high.Snapshot.CoveredSequences))

	best, ok := SelectBest([]Loaded{low, high})
	require.True(t, ok)
	require.Equal(t, "high", best.Filename)
}

func TestPruneEligible(t *testing.T) {
	owner := [16]byte{9}
	other := [16]byte{8}

	files := []LogFileInfo{
		{Key: logsync.FileKey{InstanceID: owner}, LastSeq: 5, Filename: "owner.crdtlog"},
		{Key: logsync.FileKey{InstanceID: other}, LastSeq: 5, Filename: "other.crdtlog"},
	}

	covered := map[[16]byte]uint64{owner: 10, other: 10}

	observedAt := time.Now().Add(-8 * 24 * time.Hour)
	eligible := PruneEligible(files, covered, observedAt, 7*24*time.Hour, time.Now(), owner)
	require.Equal(t, []string{"owner.crdtlog"}, eligible)

	stillQuarantined := PruneEligible(files, covered, time.Now(), 7*24*time.Hour, time.Now(), owner)
	require.Nil(t, stillQuarantined)
}
