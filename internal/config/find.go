package config

import (
	"errors"
	"os"
	"path/filepath"
)

// ErrNotFound is returned by Find when no configuration file exists above
// the start directory.
var ErrNotFound = errors.New("config file not found")

// Find recursively looks upwards for notetaker.toml and returns its absolute path.
func Find(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		candidate := filepath.Join(dir, FileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}

	return "", ErrNotFound
}
