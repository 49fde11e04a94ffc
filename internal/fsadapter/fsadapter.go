// Package fsadapter is the narrow portable I/O surface the rest of the
// storage engine programs against: exists, mkdir, read, write, append,
// delete, list, stat, join, basename. Every other package in this module
// reaches the filesystem only through this interface, the same way the
// teacher's graph package gives the sync engine one narrow surface onto
// the Microsoft Graph API instead of letting callers reach for net/http
// directly.
//
// This is mostly a leaf package: the underlying operations are thin
// wrappers around os and io, and the value this package adds is the typed
// error enum (NotFound, AlreadyExists, Io, Truncated, PermissionDenied)
// and the ready-flag snapshot write protocol. The one external dependency
// it does carry, github.com/sethvargo/go-retry, implements spec.md §7's
// single-retry policy for transient Io/PermissionDenied failures on
// WriteFile/AppendFile (see retry.go).
package fsadapter

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Sentinel errors for the failure taxonomy every caller checks with
// errors.Is(err, fsadapter.ErrNotFound) and friends.
var (
	ErrNotFound         = errors.New("fsadapter: not found")
	ErrAlreadyExists    = errors.New("fsadapter: already exists")
	ErrIo               = errors.New("fsadapter: io error")
	ErrTruncated        = errors.New("fsadapter: truncated")
	ErrPermissionDenied = errors.New("fsadapter: permission denied")
)

// Error wraps a sentinel with the path that failed, for errors.Is()
// checks at call sites and enough context to log file+offset.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("fsadapter: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func classify(op, path string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, os.ErrNotExist):
		return &Error{Op: op, Path: path, Err: ErrNotFound}
	case errors.Is(err, os.ErrExist):
		return &Error{Op: op, Path: path, Err: ErrAlreadyExists}
	case errors.Is(err, os.ErrPermission):
		return &Error{Op: op, Path: path, Err: ErrPermissionDenied}
	default:
		return &Error{Op: op, Path: path, Err: fmt.Errorf("%w: %v", ErrIo, err)}
	}
}

// Stat is the subset of os.FileInfo the engine ever inspects.
type Stat struct {
	Size    int64
	MtimeMs int64
	CtimeMs int64
	IsDir   bool
}

// FS is the filesystem surface the engine depends on. The default
// implementation, Local, talks to the OS filesystem directly; tests may
// substitute an in-memory fake (see fsadaptertest, if one is ever
// needed) without this package knowing the difference.
type FS interface {
	Exists(path string) (bool, error)
	Mkdir(path string) error
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	AppendFile(path string, data []byte) error
	DeleteFile(path string) error
	ListFiles(dir string) ([]string, error)
	Stat(path string) (Stat, error)
	JoinPath(elem ...string) string
	Basename(path string) string
}

// Local implements FS against the real OS filesystem.
type Local struct{}

// NewLocal returns an FS backed by the OS filesystem.
func NewLocal() Local {
	return Local{}
}

func (Local) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}

	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	return false, classify("exists", path, err)
}

// Mkdir creates path and any missing parents. It is idempotent: an
// already-existing directory is not an error.
func (Local) Mkdir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return classify("mkdir", path, err)
	}

	return nil
}

func (Local) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, classify("readFile", path, err)
	}

	return data, nil
}

// WriteFile replaces-or-creates path with data, returning only once the OS
// has accepted the write. It writes to a temp file in the same directory
// and renames into place so a reader never observes a partial file.
//
// spec.md §7 allows the engine at most one retry for a transient Io or
// PermissionDenied failure (a network-mounted share hiccuping mid-sync is
// the common case); retryTransient wraps the whole write-then-rename
// sequence so a failure partway through is retried as a unit.
func (Local) WriteFile(path string, data []byte) error {
	return retryTransient(func() error {
		dir := filepath.Dir(path)

		tmp, err := os.CreateTemp(dir, ".tmp-*")
		if err != nil {
			return classify("writeFile", path, err)
		}

		tmpName := tmp.Name()

		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			os.Remove(tmpName)

			return classify("writeFile", path, err)
		}

		if err := tmp.Close(); err != nil {
			os.Remove(tmpName)

			return classify("writeFile", path, err)
		}

		if err := os.Rename(tmpName, path); err != nil {
			os.Remove(tmpName)

			return classify("writeFile", path, err)
		}

		return nil
	})
}

// AppendFile atomically appends data to path, creating it if absent. It
// opens in O_APPEND mode, which the OS guarantees serializes concurrent
// appends from a single process; cross-instance writer isolation (spec
// invariant 2) is enforced at the log writer layer, not here.
func (Local) AppendFile(path string, data []byte) error {
	return retryTransient(func() error {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return classify("appendFile", path, err)
		}
		defer f.Close()

		if _, err := f.Write(data); err != nil {
			return classify("appendFile", path, err)
		}

		return nil
	})
}

func (Local) DeleteFile(path string) error {
	if err := os.Remove(path); err != nil {
		return classify("deleteFile", path, err)
	}

	return nil
}

// ListFiles returns the direct children of dir, names only (no path
// prefix), in no particular order.
func (Local) ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, classify("listFiles", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	return names, nil
}

func (Local) Stat(path string) (Stat, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Stat{}, classify("stat", path, err)
	}

	msec := info.ModTime().UnixMilli()

	return Stat{
		Size:    info.Size(),
		MtimeMs: msec,
		CtimeMs: msec, // os.FileInfo has no portable ctime; mtime is the best available proxy.
		IsDir:   info.IsDir(),
	}, nil
}

func (Local) JoinPath(elem ...string) string {
	return filepath.Join(elem...)
}

func (Local) Basename(path string) string {
	return filepath.Base(path)
}

// File is a subset of *os.File used by the ready-flag write protocol,
// which needs explicit control over flush timing that WriteFile's
// temp-then-rename approach does not expose.
type File interface {
	io.WriterAt
	Sync() error
	Close() error
}

// CreateReadyFlagFile opens path for the ready-flag protocol (spec.md §4.A:
// snapshots are written with a leading flag byte 0x00, flushed, then
// overwritten with 0x01 and flushed again). Callers write the full
// snapshot body via WriteAt at offset 0 with the flag byte already set to
// 0x00, Sync, then WriteAt a single 0x01 byte at offset 0 and Sync again.
func CreateReadyFlagFile(path string) (File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o644)
	if err != nil {
		return nil, classify("createReadyFlagFile", path, err)
	}

	return f, nil
}

// OpenReadyFlagFile opens an existing ready-flag file for reading the
// flag byte before trusting the rest of its contents.
func OpenReadyFlagFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, classify("openReadyFlagFile", path, err)
	}

	return f, nil
}

var _ FS = Local{}
