package config

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"runtime"
)

// Platform identifiers.
const (
	platformLinux  = "linux"
	platformDarwin = "darwin"
)

// Application directory name used across all platforms.
const appName = "ncstorage"

// Config file name.
const configFileName = "config.toml"

// DefaultConfigDir returns the platform-specific directory for config files.
// On Linux, respects XDG_CONFIG_HOME (defaults to ~/.config/ncstorage).
// On macOS, uses ~/Library/Application Support/ncstorage per Apple guidelines.
// Other platforms fall back to ~/.config/ncstorage.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxConfigDir(home)
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".config", appName)
	}
}

// linuxConfigDir returns the XDG-compliant config directory for Linux.
func linuxConfigDir(home string) string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(home, ".config", appName)
}

// DefaultDataDir returns the platform-specific directory for application
// data, namely the derived search index database (internal/searchindex).
// On Linux, respects XDG_DATA_HOME (defaults to ~/.local/share/ncstorage).
// On macOS, uses ~/Library/Application Support/ncstorage (macOS convention
// collapses config and data into one directory).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxDataDir(home)
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".local", "share", appName)
	}
}

// linuxDataDir returns the XDG-compliant data directory for Linux.
func linuxDataDir(home string) string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(home, ".local", "share", appName)
}

// DefaultConfigPath returns the full path to the default config file. This
// is used as the fallback when neither NC_STORAGE_CONFIG nor --config is
// specified.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, configFileName)
}

// perSDFile derives a file under DefaultDataDir that is unique to one
// storage directory, the same sha256-of-path naming internal/sdapi uses
// for the search index database — two different SDs never collide even
// though both use the same data directory.
func perSDFile(sdPath, suffix string) string {
	dir := DefaultDataDir()
	if dir == "" {
		return ""
	}

	sum := sha256.Sum256([]byte(sdPath))

	return filepath.Join(dir, hex.EncodeToString(sum[:8])+suffix)
}

// PIDFilePath returns the PID/lock file `ncstorage watch <sd>` acquires
// for sdPath, so only one watch daemon runs against a given storage
// directory per machine at a time.
func PIDFilePath(sdPath string) string {
	return perSDFile(sdPath, ".pid")
}

// PausePath returns the control file `ncstorage pause`/`ncstorage resume`
// toggle for sdPath. Its presence tells a running watch daemon (and any
// future invocation) to skip sync cycles for this storage directory.
func PausePath(sdPath string) string {
	return perSDFile(sdPath, ".paused")
}
