package common

import (
	"os"
	"path/filepath"
)

// ConfigDir returns the application configuration directory, creating it
// if necessary.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", WrapError(err, "failed to get home directory")
	}
	dir := filepath.Join(home, ".config", ConfigDirName)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", WrapError(err, "failed to create config directory")
	}
	return dir, nil
}

// FileExists reports whether a regular file exists at path.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
