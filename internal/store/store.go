// Package store defines the RunStore interface for archiving finished
// simulation runs and querying them later.
package store

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/nvandessel/neurosim/internal/constants"
	"github.com/nvandessel/neurosim/internal/report"
)

// ErrRunNotFound is returned when no archived run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// Run is an archived simulation: the report plus where its graph came from.
type Run struct {
	GraphPath string         `json:"graph_path"`
	Report    *report.Report `json:"report"`
}

// RunSummary is the listing row for an archived run.
type RunSummary struct {
	ID          string              `json:"id"`
	StartedAt   time.Time           `json:"started_at"`
	GraphPath   string              `json:"graph_path"`
	Fingerprint string              `json:"topology_fingerprint"`
	Nodes       int                 `json:"nodes"`
	Edges       int                 `json:"edges"`
	Workers     int                 `json:"workers"`
	Seed        uint64              `json:"seed"`
	ClockMode   constants.ClockMode `json:"clock_mode"`
	Elapsed     int                 `json:"elapsed"`
	Rounds      int                 `json:"rounds"`
	Stopped     bool                `json:"stopped"`
	WallTime    time.Duration       `json:"wall_time_ns"`
}

// Summarize builds the listing row of a run.
func Summarize(run Run) RunSummary {
	r := run.Report
	return RunSummary{
		ID:          r.RunID,
		StartedAt:   r.StartedAt,
		GraphPath:   run.GraphPath,
		Fingerprint: r.Fingerprint,
		Nodes:       r.Neurons + r.Nerves,
		Edges:       r.Edges,
		Workers:     r.Workers,
		Seed:        r.Seed,
		ClockMode:   r.ClockMode,
		Elapsed:     r.Elapsed,
		Rounds:      r.Performance.Rounds,
		Stopped:     r.Stopped,
		WallTime:    r.Performance.WallTime,
	}
}

// ListOptions filters and bounds a run listing.
type ListOptions struct {
	// Fingerprint keeps only runs of this topology. Empty keeps all.
	Fingerprint string

	// Limit caps the number of rows. Zero or less means no cap.
	Limit int
}

// RunStore archives runs. Listings are newest first.
type RunStore interface {
	SaveRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, opts ListOptions) ([]RunSummary, error)
	DeleteRun(ctx context.Context, id string) error
	Close() error
}

// Open returns the archive at path. ":memory:" gives a process-local
// archive; a path ending in .jsonl gives a JSON Lines file; anything else is
// a SQLite database.
func Open(path string) (RunStore, error) {
	switch {
	case path == MemoryPath:
		return NewMemoryRunStore(), nil
	case strings.HasSuffix(path, ".jsonl"):
		return NewFileRunStore(path)
	default:
		return NewSQLiteRunStore(path)
	}
}

// MemoryPath selects the in-memory archive in Open.
const MemoryPath = ":memory:"

// filterSummaries applies opts to rows and sorts them newest first.
func filterSummaries(rows []RunSummary, opts ListOptions) []RunSummary {
	if opts.Fingerprint != "" {
		rows = slices.DeleteFunc(rows, func(s RunSummary) bool { return s.Fingerprint != opts.Fingerprint })
	}
	slices.SortStableFunc(rows, func(a, b RunSummary) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
	}
	return rows
}

func validateRun(run Run) error {
	if run.Report == nil {
		return errors.New("run has no report")
	}
	if run.Report.RunID == "" {
		return errors.New("run ID is required")
	}
	return nil
}
