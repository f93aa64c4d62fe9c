package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/roach88/aplan/internal/harness"
	"github.com/roach88/aplan/internal/manifest"
	"github.com/roach88/aplan/internal/translate"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testReport(id string, started time.Time) *harness.BatchReport {
	return &harness.BatchReport{
		RunID:     id,
		Kind:      harness.KindTest,
		Variant:   translate.SV,
		Manifest:  "examples/tests.json",
		StartedAt: started,
		Duration:  3 * time.Second,
		Examples: []harness.ExampleReport{
			{
				Index:     0,
				Example:   manifest.Example{File: "a.sv", ResultDir: "a/result", AplanDir: "a/aplan"},
				Status:    harness.StatusPass,
				Missing:   []string{},
				Extra:     []string{},
				Differing: []string{},
				Duration:  time.Second,
			},
			{
				Index:     1,
				Example:   manifest.Example{File: "b.sv", ResultDir: "b/result", AplanDir: "b/aplan"},
				Status:    harness.StatusFail,
				Missing:   []string{"foo.txt"},
				Extra:     []string{},
				Differing: []string{"b.act", "b.env_descript"},
				Duration:  time.Second,
			},
			{
				Index:    2,
				Example:  manifest.Example{File: "c.sv", ResultDir: "c/result", AplanDir: "c/aplan"},
				Status:   harness.StatusError,
				Detail:   "translate c.sv: malformed source",
				Duration: time.Second,
			},
		},
	}
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() #%d failed: %v", i+1, err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("Close() #%d failed: %v", i+1, err)
		}
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"runs", "example_reports"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_KeepsRecordedRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := s1.Record(context.Background(), testReport("run-1", epoch)); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	if _, err := s2.Run(context.Background(), "run-1"); err != nil {
		t.Errorf("run lost after reopen: %v", err)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestPragmas(t *testing.T) {
	s := openTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
		{"user_version", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.verifyPragma(tt.name, tt.expected); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestMigration_StatusIndex(t *testing.T) {
	s := openTestStore(t)

	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='index' AND name='idx_example_reports_status'",
	).Scan(&name)
	if err != nil {
		t.Errorf("status index missing: %v", err)
	}
}

func TestRecord_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	report := testReport("run-1", epoch.Add(1500*time.Millisecond))

	if err := s.Record(ctx, report); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}

	run, err := s.Run(ctx, "run-1")
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	want := Run{
		ID:        "run-1",
		Kind:      "test",
		Variant:   "sv",
		Manifest:  "examples/tests.json",
		StartedAt: epoch.Add(1500 * time.Millisecond),
		Duration:  3 * time.Second,
		Passed:    1,
		Failed:    1,
		Errored:   1,
		Total:     3,
	}
	if !reflect.DeepEqual(run, want) {
		t.Errorf("Run() = %+v, want %+v", run, want)
	}
	if run.OK() {
		t.Error("run with failures reported OK")
	}

	examples, err := s.Examples(ctx, "run-1")
	if err != nil {
		t.Fatalf("Examples() failed: %v", err)
	}
	if len(examples) != 3 {
		t.Fatalf("got %d examples, want 3", len(examples))
	}
	for i, ex := range examples {
		if ex.Index != i {
			t.Errorf("examples[%d].Index = %d", i, ex.Index)
		}
	}
	if examples[1].File != "b.sv" || examples[1].Status != "FAIL" {
		t.Errorf("examples[1] = %+v", examples[1])
	}
	if !reflect.DeepEqual(examples[1].Missing, []string{"foo.txt"}) {
		t.Errorf("missing = %v", examples[1].Missing)
	}
	if !reflect.DeepEqual(examples[1].Differing, []string{"b.act", "b.env_descript"}) {
		t.Errorf("differing = %v", examples[1].Differing)
	}
	if examples[2].Missing == nil || len(examples[2].Missing) != 0 {
		t.Errorf("nil path set should read back as empty, got %#v", examples[2].Missing)
	}
	if examples[2].Detail != "translate c.sv: malformed source" {
		t.Errorf("detail = %q", examples[2].Detail)
	}
}

func TestRecord_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	report := testReport("run-1", epoch)

	for i := 0; i < 2; i++ {
		if err := s.Record(ctx, report); err != nil {
			t.Fatalf("Record() #%d failed: %v", i+1, err)
		}
	}

	var runs, examples int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&runs); err != nil {
		t.Fatal(err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM example_reports").Scan(&examples); err != nil {
		t.Fatal(err)
	}
	if runs != 1 || examples != 3 {
		t.Errorf("got %d runs and %d examples, want 1 and 3", runs, examples)
	}
}

func TestRecord_RejectsInvalidReports(t *testing.T) {
	s := openTestStore(t)

	if err := s.Record(context.Background(), nil); err == nil {
		t.Error("expected error for nil report")
	}
	if err := s.Record(context.Background(), testReport("", epoch)); err == nil {
		t.Error("expected error for empty run id")
	}
}

func TestRecord_EmptyBatch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	report := &harness.BatchReport{RunID: "empty", Kind: harness.KindRegenerate, Variant: translate.VHDL, StartedAt: epoch}

	if err := s.Record(ctx, report); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}
	run, err := s.Run(ctx, "empty")
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if !run.OK() || run.Total != 0 || run.Kind != "regenerate" || run.Variant != "vhdl" {
		t.Errorf("Run() = %+v", run)
	}
}

func TestRuns_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Whole and fractional seconds must still sort chronologically.
	starts := map[string]time.Time{
		"run-a": epoch.Add(time.Second),
		"run-b": epoch.Add(1500 * time.Millisecond),
		"run-c": epoch.Add(2 * time.Second),
	}
	for _, id := range []string{"run-c", "run-a", "run-b"} {
		if err := s.Record(ctx, testReport(id, starts[id])); err != nil {
			t.Fatalf("Record(%s) failed: %v", id, err)
		}
	}

	runs, err := s.Runs(ctx, 0)
	if err != nil {
		t.Fatalf("Runs() failed: %v", err)
	}
	var ids []string
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	if want := []string{"run-c", "run-b", "run-a"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("Runs() order = %v, want %v", ids, want)
	}

	limited, err := s.Runs(ctx, 2)
	if err != nil {
		t.Fatalf("Runs(2) failed: %v", err)
	}
	if len(limited) != 2 || limited[0].ID != "run-c" {
		t.Errorf("Runs(2) = %+v", limited)
	}
}

func TestRuns_Empty(t *testing.T) {
	s := openTestStore(t)

	runs, err := s.Runs(context.Background(), 10)
	if err != nil {
		t.Fatalf("Runs() failed: %v", err)
	}
	if runs == nil || len(runs) != 0 {
		t.Errorf("Runs() = %#v, want empty slice", runs)
	}
}

func TestRun_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Run(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Run() error = %v, want ErrRunNotFound", err)
	}
}

func TestExamples_UnknownRun(t *testing.T) {
	s := openTestStore(t)

	examples, err := s.Examples(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Examples() failed: %v", err)
	}
	if len(examples) != 0 {
		t.Errorf("Examples() = %+v, want none", examples)
	}
}

func TestStore_ImplementsRecorder(t *testing.T) {
	var _ harness.Recorder = (*Store)(nil)
}
