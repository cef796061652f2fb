package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// ArchiveFilename is the default SQLite archive name inside the neurosim
// directory.
const ArchiveFilename = "runs.db"

// GlobalNeurosimPath returns the path to the global .neurosim directory.
// On Unix: ~/.neurosim
// On Windows: %USERPROFILE%\.neurosim
func GlobalNeurosimPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".neurosim"), nil
}

// DefaultArchivePath returns ~/.neurosim/runs.db.
func DefaultArchivePath() (string, error) {
	dir, err := GlobalNeurosimPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ArchiveFilename), nil
}

// ensureParentDir creates the directory that will hold path.
func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory %s: %w", dir, err)
	}
	return nil
}
