package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/aplan/internal/harness"
)

// Record stores a finished batch and its per-example reports in one
// transaction. Recording a RunID that already exists is a no-op.
//
// Record implements harness.Recorder.
func (s *Store) Record(ctx context.Context, report *harness.BatchReport) error {
	if report == nil {
		return fmt.Errorf("record run: report is nil")
	}
	if report.RunID == "" {
		return fmt.Errorf("record run: run id is empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: begin: %w", err)
	}
	defer tx.Rollback()

	counts := report.Counts()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, kind, variant, manifest, started_at, duration_ns, passed, failed, errored, total)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		report.RunID,
		string(report.Kind),
		report.Variant.String(),
		report.Manifest,
		report.StartedAt.UTC().Format(timeLayout),
		int64(report.Duration),
		counts.Passed,
		counts.Failed,
		counts.Errored,
		counts.Total,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	if inserted == 0 {
		return nil
	}

	for _, ex := range report.Examples {
		if err := insertExample(ctx, tx, report.RunID, ex); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record run: commit: %w", err)
	}
	return nil
}

func insertExample(ctx context.Context, tx *sql.Tx, runID string, ex harness.ExampleReport) error {
	missing, err := marshalPaths(ex.Missing)
	if err != nil {
		return err
	}
	extra, err := marshalPaths(ex.Extra)
	if err != nil {
		return err
	}
	differing, err := marshalPaths(ex.Differing)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO example_reports
		(run_id, idx, source_file, result_dir, aplan_dir, status, missing, extra, differing, detail, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		ex.Index,
		ex.Example.File,
		ex.Example.ResultDir,
		ex.Example.AplanDir,
		string(ex.Status),
		missing,
		extra,
		differing,
		ex.Detail,
		int64(ex.Duration),
	)
	if err != nil {
		return fmt.Errorf("record example %d: %w", ex.Index, err)
	}
	return nil
}

// marshalPaths stores a path set as a JSON array; nil becomes [].
func marshalPaths(paths []string) (string, error) {
	if paths == nil {
		paths = []string{}
	}
	data, err := json.Marshal(paths)
	if err != nil {
		return "", fmt.Errorf("marshal paths: %w", err)
	}
	return string(data), nil
}

func unmarshalPaths(data string) ([]string, error) {
	var paths []string
	if err := json.Unmarshal([]byte(data), &paths); err != nil {
		return nil, fmt.Errorf("unmarshal paths: %w", err)
	}
	if paths == nil {
		paths = []string{}
	}
	return paths, nil
}
