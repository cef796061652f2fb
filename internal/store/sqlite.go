package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/neurosim/internal/constants"
	"github.com/nvandessel/neurosim/internal/report"
)

// timeLayout sorts lexically in time order for UTC timestamps.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRunStore implements RunStore on a SQLite database file.
type SQLiteRunStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteRunStore opens or creates the archive database at dbPath.
func NewSQLiteRunStore(dbPath string) (*SQLiteRunStore, error) {
	if err := ensureParentDir(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRunStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteRunStore) Path() string { return s.dbPath }

// SaveRun stores run, replacing any run with the same id.
func (s *SQLiteRunStore) SaveRun(ctx context.Context, run Run) error {
	if err := validateRun(run); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := report.WriteJSON(&buf, run.Report); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	sum := Summarize(run)

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (
			id, started_at, graph_path, fingerprint, nodes, edges, workers, seed,
			clock_mode, elapsed, rounds, stopped, wall_time_ns, report
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.ID,
		sum.StartedAt.UTC().Format(timeLayout),
		nullString(sum.GraphPath),
		sum.Fingerprint,
		sum.Nodes,
		sum.Edges,
		sum.Workers,
		strconv.FormatUint(sum.Seed, 10),
		sum.ClockMode.String(),
		sum.Elapsed,
		sum.Rounds,
		sum.Stopped,
		int64(sum.WallTime),
		buf.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", sum.ID, err)
	}
	return nil
}

// GetRun returns the run with the given id.
func (s *SQLiteRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var graphPath sql.NullString
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT graph_path, report FROM runs WHERE id = ?`, id).
		Scan(&graphPath, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", id, err)
	}

	rep, err := report.ReadJSON(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", id, err)
	}
	return &Run{GraphPath: graphPath.String, Report: rep}, nil
}

// ListRuns returns summaries of the stored runs, newest first.
func (s *SQLiteRunStore) ListRuns(ctx context.Context, opts ListOptions) ([]RunSummary, error) {
	query := `
		SELECT id, started_at, graph_path, fingerprint, nodes, edges, workers, seed,
			clock_mode, elapsed, rounds, stopped, wall_time_ns
		FROM runs`
	var args []any
	if opts.Fingerprint != "" {
		query += ` WHERE fingerprint = ?`
		args = append(args, opts.Fingerprint)
	}
	query += ` ORDER BY started_at DESC, id ASC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			sum       RunSummary
			startedAt string
			graphPath sql.NullString
			seed      string
			mode      string
			wallTime  int64
		)
		if err := rows.Scan(&sum.ID, &startedAt, &graphPath, &sum.Fingerprint, &sum.Nodes,
			&sum.Edges, &sum.Workers, &seed, &mode, &sum.Elapsed, &sum.Rounds,
			&sum.Stopped, &wallTime); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if sum.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, fmt.Errorf("run %s: bad started_at %q: %w", sum.ID, startedAt, err)
		}
		if sum.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
			return nil, fmt.Errorf("run %s: bad seed %q: %w", sum.ID, seed, err)
		}
		sum.GraphPath = graphPath.String
		sum.ClockMode = constants.ClockMode(mode)
		sum.WallTime = time.Duration(wallTime)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// DeleteRun removes the run with the given id.
func (s *SQLiteRunStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteRunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
