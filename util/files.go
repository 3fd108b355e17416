package util

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// GetHome returns the base directory for trainbox data files.
// Checks TRAINBOX_HOME env var first, then falls back to ~/.trainbox.
func GetHome() string {
	if v := os.Getenv("TRAINBOX_HOME"); v != "" {
		return ExpandTilde(v)
	}
	currentUser, err := user.Current()
	if err != nil {
		return ""
	}
	return filepath.Join(currentUser.HomeDir, ".trainbox")
}

// ExpandTilde expands a leading "~/" in a path to the user's home directory.
// Returns the path unchanged if it doesn't start with "~/" or if the home
// directory cannot be determined.
func ExpandTilde(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		return path
	}
	return filepath.Join(homeDir, path[2:])
}
