package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// timeLayout is fixed-width so that started_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrRunNotFound is returned when a run ID has no recorded run.
var ErrRunNotFound = errors.New("run not found")

// Run is a recorded batch summary.
type Run struct {
	ID        string        `json:"id"`
	Kind      string        `json:"kind"`
	Variant   string        `json:"variant"`
	Manifest  string        `json:"manifest"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
	Errored   int           `json:"errored"`
	Total     int           `json:"total"`
}

// OK reports whether every example in the run passed.
func (r Run) OK() bool {
	return r.Passed == r.Total
}

// ExampleRow is a recorded per-example outcome.
type ExampleRow struct {
	Index     int           `json:"index"`
	File      string        `json:"file"`
	ResultDir string        `json:"result_dir"`
	AplanDir  string        `json:"aplan_dir"`
	Status    string        `json:"status"`
	Missing   []string      `json:"missing"`
	Extra     []string      `json:"extra"`
	Differing []string      `json:"differing"`
	Detail    string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}

// Runs returns up to limit recorded runs, newest first.
// A limit of zero or less returns every run.
//
// Returns an empty slice (not nil) if nothing was recorded.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, variant, manifest, started_at, duration_ns, passed, failed, errored, total
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Run returns a single recorded run, or ErrRunNotFound.
func (s *Store) Run(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, variant, manifest, started_at, duration_ns, passed, failed, errored, total
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// Examples returns the per-example rows of a run in manifest order.
func (s *Store) Examples(ctx context.Context, runID string) ([]ExampleRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, source_file, result_dir, aplan_dir, status, missing, extra, differing, detail, duration_ns
		FROM example_reports
		WHERE run_id = ?
		ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query examples: %w", err)
	}
	defer rows.Close()

	examples := []ExampleRow{}
	for rows.Next() {
		var (
			ex                        ExampleRow
			missing, extra, differing string
			duration                  int64
		)
		if err := rows.Scan(&ex.Index, &ex.File, &ex.ResultDir, &ex.AplanDir, &ex.Status,
			&missing, &extra, &differing, &ex.Detail, &duration); err != nil {
			return nil, fmt.Errorf("scan example: %w", err)
		}
		if ex.Missing, err = unmarshalPaths(missing); err != nil {
			return nil, err
		}
		if ex.Extra, err = unmarshalPaths(extra); err != nil {
			return nil, err
		}
		if ex.Differing, err = unmarshalPaths(differing); err != nil {
			return nil, err
		}
		ex.Duration = time.Duration(duration)
		examples = append(examples, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate examples: %w", err)
	}
	return examples, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run       Run
		startedAt string
		duration  int64
	)
	if err := row.Scan(&run.ID, &run.Kind, &run.Variant, &run.Manifest, &startedAt, &duration,
		&run.Passed, &run.Failed, &run.Errored, &run.Total); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	t, err := time.Parse(timeLayout, startedAt)
	if err != nil {
		return Run{}, fmt.Errorf("parse started_at %q: %w", startedAt, err)
	}
	run.StartedAt = t
	run.Duration = time.Duration(duration)
	return run, nil
}
