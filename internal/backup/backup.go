// Package backup exports archived runs to portable backup files and
// imports them back into a run archive.
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nvandessel/neurosim/internal/store"
)

// Bundle is the payload of a backup file.
type Bundle struct {
	Version   int         `json:"version"`
	CreatedAt time.Time   `json:"created_at"`
	Runs      []store.Run `json:"runs"`
}

// DefaultBackupDir returns the default backup directory (~/.neurosim/backups/).
func DefaultBackupDir() (string, error) {
	dir, err := store.GlobalNeurosimPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "backups"), nil
}

// GenerateBackupPath creates a timestamped backup filename in dir.
func GenerateBackupPath(dir string, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s%s%s", filePrefix, now.UTC().Format(timestampLayout), fileSuffix))
}

const (
	filePrefix      = "neurosim-runs-"
	fileSuffix      = ".json.gz"
	timestampLayout = "20060102-150405"
)

// Export writes every run matching opts to a backup file at outputPath.
// Runs are stored newest first.
func Export(ctx context.Context, rs store.RunStore, outputPath string, opts store.ListOptions) (*Bundle, error) {
	rows, err := rs.ListRuns(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	bundle := &Bundle{
		Version:   FormatVersion,
		CreatedAt: time.Now().UTC(),
		Runs:      make([]store.Run, 0, len(rows)),
	}
	for _, row := range rows {
		run, err := rs.GetRun(ctx, row.ID)
		if err != nil {
			return nil, fmt.Errorf("reading run %s: %w", row.ID, err)
		}
		bundle.Runs = append(bundle.Runs, *run)
	}

	if err := Write(outputPath, bundle); err != nil {
		return nil, err
	}
	return bundle, nil
}

// ImportMode controls how import handles runs the archive already has.
type ImportMode string

const (
	// ImportMerge skips runs whose id is already archived (default).
	ImportMerge ImportMode = "merge"
	// ImportReplace overwrites archived runs with the backup's copy.
	ImportReplace ImportMode = "replace"
)

// ImportResult counts what an import did.
type ImportResult struct {
	Restored int `json:"restored"`
	Skipped  int `json:"skipped"`
}

// Import reads the backup at inputPath, verifying its checksum, and saves
// its runs into rs.
func Import(ctx context.Context, rs store.RunStore, inputPath string, mode ImportMode) (*ImportResult, error) {
	bundle, err := Read(inputPath)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	for _, run := range bundle.Runs {
		if run.Report == nil {
			return nil, fmt.Errorf("backup %s holds a run without a report", inputPath)
		}
		if mode != ImportReplace {
			_, err := rs.GetRun(ctx, run.Report.RunID)
			if err == nil {
				result.Skipped++
				continue
			}
			if !errors.Is(err, store.ErrRunNotFound) {
				return nil, fmt.Errorf("checking run %s: %w", run.Report.RunID, err)
			}
		}
		if err := rs.SaveRun(ctx, run); err != nil {
			return nil, fmt.Errorf("restoring run %s: %w", run.Report.RunID, err)
		}
		result.Restored++
	}
	return result, nil
}

// ParseImportMode maps a mode name to an ImportMode. Empty means merge.
func ParseImportMode(s string) (ImportMode, error) {
	switch ImportMode(s) {
	case "", ImportMerge:
		return ImportMerge, nil
	case ImportReplace:
		return ImportReplace, nil
	}
	return "", fmt.Errorf("unknown import mode %q (must be merge or replace)", s)
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return nil
}
