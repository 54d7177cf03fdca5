// Package storage provides the engine's on-disk persistence: where
// generated bitbase files and a saved transposition table snapshot live,
// and a small BadgerDB-backed key/value store for engine configuration
// that should survive a process restart (e.g. the UCI front-end's last
// "setoption" values).
package storage

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "gambit"

// GetDataDir returns the platform-specific data directory for the engine.
//   - macOS: ~/Library/Application Support/gambit/
//   - Linux: ~/.local/share/gambit/ (or $XDG_DATA_HOME/gambit)
//   - Windows: %APPDATA%/gambit/
func GetDataDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		baseDir = filepath.Join(homeDir, "Library", "Application Support")

	case "windows":
		baseDir = os.Getenv("APPDATA")
		if baseDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			baseDir = filepath.Join(homeDir, "AppData", "Roaming")
		}

	default:
		baseDir = os.Getenv("XDG_DATA_HOME")
		if baseDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			baseDir = filepath.Join(homeDir, ".local", "share")
		}
	}

	dataDir := filepath.Join(baseDir, appName)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", err
	}
	return dataDir, nil
}

// GetBitbaseDir returns the "bitbases" directory under the data directory,
// creating it if needed, as a place for "*.gbb" files. No other package
// calls it; bitbases are loaded only from an explicitly set BitbasePath.
func GetBitbaseDir() (string, error) {
	dataDir, err := GetDataDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(dataDir, "bitbases")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// GetDatabaseDir returns the directory for the BadgerDB config store.
func GetDatabaseDir() (string, error) {
	dataDir, err := GetDataDir()
	if err != nil {
		return "", err
	}
	dbDir := filepath.Join(dataDir, "db")
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return "", err
	}
	return dbDir, nil
}

// GetTTSnapshotPath returns the default path ("hash.tt" in the data
// directory) for a TranspositionTable.SaveTo/LoadFrom snapshot.
func GetTTSnapshotPath() (string, error) {
	dataDir, err := GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "hash.tt"), nil
}
