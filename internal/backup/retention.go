package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// BackupInfo describes one backup file in a directory.
type BackupInfo struct {
	Path      string
	Size      int64
	CreatedAt time.Time
}

// Retention limits the backups kept in a directory. A backup survives if
// any set limit keeps it; with no limit set the newest DefaultMaxCount
// survive.
type Retention struct {
	// MaxCount keeps the newest MaxCount backups.
	MaxCount int

	// MaxAge keeps backups created within MaxAge of Now.
	MaxAge time.Duration

	// MaxTotalBytes keeps the newest backups whose sizes sum to at most
	// MaxTotalBytes. The newest backup always fits.
	MaxTotalBytes int64

	// Now defaults to time.Now.
	Now func() time.Time
}

// DefaultMaxCount is the count limit used when no limit is set.
const DefaultMaxCount = 10

// ParseRetention builds a Retention from config values such as
// (5, "30d", "200MB"). Zero and empty values leave a limit unset.
func ParseRetention(maxCount int, maxAge, maxTotalSize string) (Retention, error) {
	r := Retention{MaxCount: maxCount}
	if maxAge != "" {
		d, err := ParseDuration(maxAge)
		if err != nil {
			return Retention{}, err
		}
		r.MaxAge = d
	}
	if maxTotalSize != "" {
		n, err := humanize.ParseBytes(maxTotalSize)
		if err != nil {
			return Retention{}, fmt.Errorf("invalid size %q: %w", maxTotalSize, err)
		}
		r.MaxTotalBytes = int64(n)
	}
	return r, nil
}

// Keep returns the backups that survive, in input order. backups must be
// sorted newest first.
func (r Retention) Keep(backups []BackupInfo) []BackupInfo {
	maxCount := r.MaxCount
	if maxCount <= 0 && r.MaxAge <= 0 && r.MaxTotalBytes <= 0 {
		maxCount = DefaultMaxCount
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	cutoff := now().Add(-r.MaxAge)

	var kept []BackupInfo
	var total int64
	sizeOpen := true
	for i, b := range backups {
		keep := maxCount > 0 && i < maxCount
		if r.MaxAge > 0 && b.CreatedAt.After(cutoff) {
			keep = true
		}
		if r.MaxTotalBytes > 0 && sizeOpen {
			if i == 0 || total+b.Size <= r.MaxTotalBytes {
				total += b.Size
				keep = true
			} else {
				sizeOpen = false
			}
		}
		if keep {
			kept = append(kept, b)
		}
	}
	return kept
}

// ListBackups scans dir for backup files and returns them sorted newest-first.
func ListBackups(dir string) ([]BackupInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var backups []BackupInfo
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		bi := BackupInfo{
			Path:      filepath.Join(dir, name),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		if t, err := time.Parse(timestampLayout, stamp); err == nil {
			bi.CreatedAt = t
		}
		backups = append(backups, bi)
	}

	slices.SortFunc(backups, func(a, b BackupInfo) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(filepath.Base(b.Path), filepath.Base(a.Path))
	})
	return backups, nil
}

// ApplyRetention deletes the backups in dir that r does not keep.
func ApplyRetention(dir string, r Retention) (deleted []string, err error) {
	backups, err := ListBackups(dir)
	if err != nil {
		return nil, err
	}

	keepSet := make(map[string]bool)
	for _, b := range r.Keep(backups) {
		keepSet[b.Path] = true
	}
	for _, b := range backups {
		if keepSet[b.Path] {
			continue
		}
		if err := os.Remove(b.Path); err != nil {
			return deleted, fmt.Errorf("removing %s: %w", filepath.Base(b.Path), err)
		}
		deleted = append(deleted, b.Path)
	}
	return deleted, nil
}

// ParseDuration parses duration strings like "30d", "2w" or "720h".
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration string")
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	num, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}
	switch s[len(s)-1] {
	case 'd':
		return time.Duration(num) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(num) * 7 * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("unknown duration suffix %q in %q", s[len(s)-1:], s)
}
