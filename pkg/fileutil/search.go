package fileutil

import (
	"os"
	"path/filepath"
)

// ConfigDirs are searched in order by FindConfig. Relative entries are
// resolved against the working directory.
var ConfigDirs = []string{".", "config", "/etc/updatehook"}

// FindConfig returns the first regular file named filename in ConfigDirs,
// or "" if there is none.
func FindConfig(filename string) string {
	for _, dir := range ConfigDirs {
		if path := filepath.Join(dir, filename); FileExists(path) {
			return path
		}
	}
	return ""
}

// FileExists checks if a file exists and is not a directory.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
