package harness

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/aplan/internal/artifact"
	"github.com/roach88/aplan/internal/manifest"
)

// exampleFunc handles one manifest entry. logger carries the batch's
// run_id and kind.
type exampleFunc func(ctx context.Context, logger *slog.Logger, index int, ex manifest.Example) ExampleReport

// RunTests loads the manifest, then translates every example into its
// result_dir and compares it against its aplan_dir.
//
// A manifest that cannot be loaded is returned as an error and nothing
// runs. Otherwise the report has one entry per manifest entry.
func (s *Session) RunTests(ctx context.Context, manifestPath string) (*BatchReport, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	examples, err := manifest.LoadWithOptions(manifestPath, s.tool.opts.Manifest)
	if err != nil {
		return nil, err
	}
	return s.runBatch(ctx, KindTest, manifestPath, examples, s.testExample), nil
}

// Regenerate loads the manifest and replaces every example's aplan_dir
// with a fresh translation. It always writes; there is no dry run.
func (s *Session) Regenerate(ctx context.Context, manifestPath string) (*BatchReport, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	examples, err := manifest.LoadWithOptions(manifestPath, s.tool.opts.Manifest)
	if err != nil {
		return nil, err
	}
	return s.runBatch(ctx, KindRegenerate, manifestPath, examples, s.regenerateExample), nil
}

// RegenerateFile replaces the reference tree of a single source. An empty
// aplanDir means DefaultReferenceDir(sourceFile). Failures are returned
// as errors.
func (s *Session) RegenerateFile(ctx context.Context, sourceFile, aplanDir string) (*ExampleReport, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if aplanDir == "" {
		aplanDir = DefaultReferenceDir(sourceFile)
	}

	ex := manifest.Example{File: sourceFile, AplanDir: aplanDir}
	s.logger.Info("single regeneration started", "source", sourceFile, "aplan", aplanDir)

	report := s.regenerateExample(ctx, s.logger, 0, ex)
	if report.Err != nil {
		s.logger.Error("single regeneration failed", "source", sourceFile, "error", report.Err)
		return &report, report.Err
	}
	s.logger.Info("single regeneration finished", "source", sourceFile, "duration", report.Duration)
	return &report, nil
}

// runBatch executes fn for every example on a bounded pool. Results are
// stored by manifest index, never by completion order.
func (s *Session) runBatch(ctx context.Context, kind Kind, manifestPath string, examples []manifest.Example, fn exampleFunc) *BatchReport {
	opts := s.tool.opts
	report := &BatchReport{
		RunID:     opts.RunIDs.Generate(),
		Kind:      kind,
		Variant:   s.variant,
		Manifest:  manifestPath,
		StartedAt: opts.Now(),
		Examples:  make([]ExampleReport, len(examples)),
	}
	logger := s.logger.With("run_id", report.RunID, "kind", string(kind))
	logger.Info("batch started", "manifest", manifestPath, "examples", len(examples), "workers", opts.Workers)

	var g errgroup.Group
	g.SetLimit(opts.Workers)
	for i, ex := range examples {
		if err := ctx.Err(); err != nil {
			report.Examples[i] = newExampleReport(i, ex).withError(fmt.Errorf("not started: %w", err))
			continue
		}
		i, ex := i, ex // per-iteration copies; go.mod targets Go 1.21 loop semantics
		g.Go(func() error {
			report.Examples[i] = s.runExample(ctx, logger, i, ex, fn)
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = opts.Now().Sub(report.StartedAt)
	s.logSummary(logger, report)

	if opts.Recorder != nil {
		if err := opts.Recorder.Record(context.WithoutCancel(ctx), report); err != nil {
			logger.Warn("recording batch failed", "error", err)
		}
	}
	return report
}

// runExample wraps fn with logging and panic isolation.
func (s *Session) runExample(ctx context.Context, logger *slog.Logger, index int, ex manifest.Example, fn exampleFunc) (report ExampleReport) {
	number := index + 1
	logger.Info("example started", "number", number, "source", ex.File)

	defer func() {
		if r := recover(); r != nil {
			report = newExampleReport(index, ex).withError(fmt.Errorf("example %d panicked: %v", number, r))
		}
		switch report.Status {
		case StatusPass:
			logger.Info("example finished", "number", number, "status", report.Status, "duration", report.Duration)
		case StatusFail:
			logger.Error("example found differences", "number", number,
				"missing", report.Missing, "extra", report.Extra, "differing", report.Differing)
		default:
			logger.Error("example finished with error", "number", number, "error", report.Detail)
		}
	}()

	return fn(ctx, logger, index, ex)
}

func (s *Session) logSummary(logger *slog.Logger, report *BatchReport) {
	counts := report.Counts()
	if report.Passed() {
		logger.Info("batch succeeded", "passed", counts.Passed, "duration", report.Duration)
		return
	}

	failed := make([]string, 0, len(report.Failed()))
	for _, ex := range report.Failed() {
		failed = append(failed, fmt.Sprintf("%d:%s", ex.Index+1, ex.Example.File))
	}
	logger.Error("batch failed",
		"passed", counts.Passed,
		"failed", counts.Failed,
		"errored", counts.Errored,
		"examples", failed,
		"duration", report.Duration,
	)
}

// testExample translates into result_dir and compares with aplan_dir.
func (s *Session) testExample(ctx context.Context, logger *slog.Logger, index int, ex manifest.Example) ExampleReport {
	now := s.tool.opts.Now
	started := now()
	report := newExampleReport(index, ex)
	finish := func(r ExampleReport) ExampleReport {
		r.Duration = now().Sub(started)
		return r
	}

	tree, err := s.translateSource(ctx, ex.File)
	if err != nil {
		return finish(report.withError(err))
	}

	if err := tree.WriteDir(ex.ResultDir); err != nil {
		return finish(report.withError(err))
	}
	if !s.tool.opts.KeepResults {
		defer func() {
			if err := os.RemoveAll(ex.ResultDir); err != nil {
				logger.Warn("removing result directory failed", "result", ex.ResultDir, "error", err)
			}
		}()
	}

	generated, err := artifact.ReadDir(ex.ResultDir)
	if err != nil {
		return finish(report.withError(err))
	}

	reference, err := artifact.ReadDir(ex.AplanDir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return finish(report.withError(err))
		}
		logger.Warn("reference directory missing", "number", index+1, "aplan", ex.AplanDir)
		reference = artifact.New()
	}

	cmp := s.tool.opts.Comparator
	result := cmp.Compare(generated, reference)
	diffs, err := cmp.Diffs(result, generated, reference)
	if err != nil {
		return finish(report.withError(err))
	}
	return finish(report.withComparison(result, diffs))
}

// regenerateExample translates and atomically replaces aplan_dir.
func (s *Session) regenerateExample(ctx context.Context, logger *slog.Logger, index int, ex manifest.Example) ExampleReport {
	now := s.tool.opts.Now
	started := now()
	report := newExampleReport(index, ex)

	tree, err := s.translateSource(ctx, ex.File)
	if err == nil {
		logger.Debug("replacing reference", "number", index+1, "aplan", ex.AplanDir, "files", tree.Len())
		err = tree.WriteDir(ex.AplanDir)
	}
	if err != nil {
		report = report.withError(err)
	} else {
		report.Status = StatusPass
	}
	report.Duration = now().Sub(started)
	return report
}
