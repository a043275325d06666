package config

import (
	"os"
	"path/filepath"
	"strings"
)

// DatabaseFile is the name of the ledger database inside the data directory.
const DatabaseFile = "quest.db"

// DataDir is where the ledger lives by default: $XDG_DATA_HOME/spice-quest,
// falling back to ~/.local/share/spice-quest.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "spice-quest")
	}
	return filepath.Join("~", ".local", "share", "spice-quest")
}

// DefaultDatabasePath is the unexpanded default for database.path.
func DefaultDatabasePath() string {
	return filepath.Join(DataDir(), DatabaseFile)
}

// ExpandPath resolves a leading ~ to the home directory and then expands
// $VAR references. Paths are returned unchanged when the home directory
// cannot be determined.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = home + strings.TrimPrefix(path, "~")
		}
	}
	return os.ExpandEnv(path)
}
