package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sync"
)

// FileRunStore implements RunStore on a JSON Lines file, one run per line.
// Runs are cached in memory and written back on Sync or Close.
// Thread-safe for concurrent access.
type FileRunStore struct {
	mu    sync.RWMutex
	path  string
	runs  map[string]Run
	order []string
	dirty bool

	// LoadErrors records lines that could not be decoded. They are skipped
	// and dropped from the file on the next write.
	LoadErrors []LoadError
}

// LoadError represents a malformed line in the archive file.
type LoadError struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Content string `json:"content"`
	Error   string `json:"error"`
}

// NewFileRunStore opens the archive file at path, creating its directory
// if needed. A missing file is an empty archive.
func NewFileRunStore(path string) (*FileRunStore, error) {
	if err := ensureParentDir(path); err != nil {
		return nil, err
	}
	s := &FileRunStore{
		path: path,
		runs: make(map[string]Run),
	}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("failed to load runs: %w", err)
	}
	return s, nil
}

func (s *FileRunStore) load() error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var run Run
		err := json.Unmarshal(line, &run)
		if err == nil {
			err = validateRun(run)
		}
		if err != nil {
			s.LoadErrors = append(s.LoadErrors, LoadError{
				File:    s.path,
				Line:    lineNum,
				Content: truncateForError(string(line)),
				Error:   err.Error(),
			})
			continue
		}
		s.put(run)
	}
	return scanner.Err()
}

func (s *FileRunStore) put(run Run) {
	id := run.Report.RunID
	if _, ok := s.runs[id]; !ok {
		s.order = append(s.order, id)
	}
	s.runs[id] = run
}

// SaveRun stores run, replacing any run with the same id.
func (s *FileRunStore) SaveRun(ctx context.Context, run Run) error {
	if err := validateRun(run); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(run)
	s.dirty = true
	return nil
}

// GetRun returns the run with the given id.
func (s *FileRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return &run, nil
}

// ListRuns returns summaries of the stored runs.
func (s *FileRunStore) ListRuns(ctx context.Context, opts ListOptions) ([]RunSummary, error) {
	s.mu.RLock()
	rows := make([]RunSummary, 0, len(s.order))
	for _, id := range s.order {
		rows = append(rows, Summarize(s.runs[id]))
	}
	s.mu.RUnlock()
	return filterSummaries(rows, opts), nil
}

// DeleteRun removes the run with the given id.
func (s *FileRunStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	delete(s.runs, id)
	s.order = slices.DeleteFunc(s.order, func(o string) bool { return o == id })
	s.dirty = true
	return nil
}

// Sync writes the cached runs to disk if anything changed.
func (s *FileRunStore) Sync(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}
	if err := s.write(); err != nil {
		return fmt.Errorf("failed to write runs: %w", err)
	}
	s.dirty = false
	return nil
}

// write replaces the file through a temporary sibling.
func (s *FileRunStore) write() error {
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	encoder := json.NewEncoder(w)
	for _, id := range s.order {
		if err := encoder.Encode(s.runs[id]); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Close syncs the store.
func (s *FileRunStore) Close() error {
	return s.Sync(context.Background())
}

// truncateForError truncates a string for error reporting to avoid huge messages.
func truncateForError(s string) string {
	const maxLen = 100
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
