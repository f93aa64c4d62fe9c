package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/roach88/aplan/internal/artifact"
	"github.com/roach88/aplan/internal/compare"
	"github.com/roach88/aplan/internal/manifest"
	"github.com/roach88/aplan/internal/translate"
)

var (
	// ErrNotConfigured is returned by operations invoked before a source
	// variant was selected.
	ErrNotConfigured = errors.New("source variant not configured")

	// ErrAlreadyConfigured is returned when Configure is asked to switch a
	// Tool to a different variant.
	ErrAlreadyConfigured = errors.New("source variant already configured")
)

// DefaultResultDirName is the conventional output directory, relative to
// the working directory, used when a single translation names none.
const DefaultResultDirName = "result"

// DefaultReferenceDirName is the reference directory placed next to a
// source file by single-file regeneration.
const DefaultReferenceDirName = "aplan"

// DefaultResultDir returns where Start writes when no result path is given.
// The location does not depend on the source file.
func DefaultResultDir(sourceFile string) string {
	return DefaultResultDirName
}

// DefaultReferenceDir returns the reference directory single-file
// regeneration writes to: an "aplan" directory beside the source.
func DefaultReferenceDir(sourceFile string) string {
	return filepath.Join(filepath.Dir(sourceFile), DefaultReferenceDirName)
}

// Recorder receives every finished batch, e.g. to persist run history.
type Recorder interface {
	Record(ctx context.Context, report *BatchReport) error
}

// Options configures a Tool. The zero value is usable.
type Options struct {
	// Workers bounds concurrent examples within a batch. Values below 1
	// mean sequential execution.
	Workers int

	// Comparator judges generated trees against references.
	Comparator compare.Comparator

	// KeepResults leaves each example's result_dir in place after a test.
	// By default it is removed once compared.
	KeepResults bool

	// Logger receives progress logs. Nil discards them.
	Logger *slog.Logger

	// Manifest controls how RunTests and Regenerate load manifests.
	Manifest manifest.Options

	// Recorder, when set, is handed each finished BatchReport.
	Recorder Recorder

	// RunIDs generates batch run IDs. Nil means UUIDv7.
	RunIDs RunIDGenerator

	// Now is the clock used for timestamps and durations. Nil means time.Now.
	Now func() time.Time
}

// Tool is the translation orchestrator. It is unconfigured until Configure
// selects a source variant; that choice is permanent for the Tool.
type Tool struct {
	registry *translate.Registry
	opts     Options

	mu      sync.Mutex
	session *Session
}

// New creates an unconfigured Tool backed by registry.
func New(registry *translate.Registry, opts Options) *Tool {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.RunIDs == nil {
		opts.RunIDs = UUIDv7Generator{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tool{registry: registry, opts: opts}
}

// Configure selects the source variant and resolves its translator.
// Calling it again with the same variant returns the existing Session;
// a different variant fails with ErrAlreadyConfigured.
func (t *Tool) Configure(v translate.Variant) (*Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session != nil {
		if t.session.variant == v {
			return t.session, nil
		}
		return nil, fmt.Errorf("%w: %s (requested %s)", ErrAlreadyConfigured, t.session.variant, v)
	}

	if t.registry == nil {
		return nil, &translate.UnsupportedVariantError{Variant: v}
	}
	tr, err := t.registry.Resolve(v)
	if err != nil {
		return nil, err
	}

	t.session = &Session{
		tool:       t,
		variant:    v,
		translator: tr,
		logger:     t.opts.Logger.With("variant", v.String()),
	}
	return t.session, nil
}

// Session returns the configured session, or ErrNotConfigured.
func (t *Tool) Session() (*Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return nil, ErrNotConfigured
	}
	return t.session, nil
}

// Session carries the configured state of a Tool. Obtain one from
// Tool.Configure; a zero Session rejects every operation with
// ErrNotConfigured.
type Session struct {
	tool       *Tool
	variant    translate.Variant
	translator translate.Translator
	logger     *slog.Logger
}

// Variant returns the configured source variant.
func (s *Session) Variant() translate.Variant {
	return s.variant
}

func (s *Session) check() error {
	if s == nil || s.tool == nil || s.translator == nil {
		return ErrNotConfigured
	}
	return nil
}

// translateSource validates the source and runs the translator.
// A panicking translator is reported as a TranslationError.
func (s *Session) translateSource(ctx context.Context, sourceFile string) (tree artifact.Tree, err error) {
	if err := translate.CheckSource(sourceFile, s.variant); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			tree = nil
			err = &translate.TranslationError{Source: sourceFile, Detail: fmt.Sprintf("translator panicked: %v", r)}
		}
	}()

	tree, err = s.translator.Translate(ctx, sourceFile)
	if err != nil {
		var trErr *translate.TranslationError
		var fsErr *artifact.FilesystemError
		if errors.As(err, &trErr) || errors.As(err, &fsErr) || ctx.Err() != nil {
			return nil, err
		}
		return nil, &translate.TranslationError{Source: sourceFile, Err: err}
	}
	if tree == nil {
		tree = artifact.New()
	}
	return tree, nil
}

// Start translates sourceFile and writes the tree to resultPath, or to
// DefaultResultDir when resultPath is empty. Any failure is returned.
func (s *Session) Start(ctx context.Context, sourceFile, resultPath string) (artifact.Tree, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if resultPath == "" {
		resultPath = DefaultResultDir(sourceFile)
	}

	now := s.tool.opts.Now
	started := now()
	s.logger.Info("translation started", "source", sourceFile, "result", resultPath)

	tree, err := s.translateSource(ctx, sourceFile)
	if err != nil {
		s.logger.Error("translation failed", "source", sourceFile, "error", err)
		return nil, err
	}
	if err := tree.WriteDir(resultPath); err != nil {
		s.logger.Error("writing result failed", "result", resultPath, "error", err)
		return nil, err
	}

	s.logger.Info("translation finished",
		"source", sourceFile,
		"files", tree.Len(),
		"duration", now().Sub(started),
	)
	return tree, nil
}
