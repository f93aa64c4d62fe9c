// Package testutil provides deterministic collaborators for harness tests:
// a fake clock and a fake HDL translator.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/roach88/aplan/internal/artifact"
	"github.com/roach88/aplan/internal/translate"
)

// MalformedMarker makes FakeTranslator reject a source containing it.
const MalformedMarker = "SYNTAX ERROR"

// FakeTranslator is a deterministic stand-in for a real HDL translator.
//
// For a source "dir/name.sv" it emits:
//
//	name.act          the source content, verbatim
//	name.env_descript "source: name.sv\nlines: N\n"
//
// Sources containing MalformedMarker fail with a *translate.TranslationError.
// The translator also records call counts and peak concurrency.
type FakeTranslator struct {
	// Delay, when set, is slept before translating each source.
	Delay func(sourceFile string) time.Duration

	calls     atomic.Int64
	active    atomic.Int64
	maxActive atomic.Int64

	mu      sync.Mutex
	sources []string
}

// Translate implements translate.Translator.
func (f *FakeTranslator) Translate(ctx context.Context, sourceFile string) (artifact.Tree, error) {
	f.calls.Add(1)
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		peak := f.maxActive.Load()
		if n <= peak || f.maxActive.CompareAndSwap(peak, n) {
			break
		}
	}

	f.mu.Lock()
	f.sources = append(f.sources, sourceFile)
	f.mu.Unlock()

	if f.Delay != nil {
		select {
		case <-time.After(f.Delay(sourceFile)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	content, err := os.ReadFile(sourceFile)
	if err != nil {
		return nil, &translate.TranslationError{Source: sourceFile, Err: err}
	}
	if bytes.Contains(content, []byte(MalformedMarker)) {
		return nil, &translate.TranslationError{Source: sourceFile, Detail: "malformed source"}
	}

	return Expected(sourceFile, content), nil
}

// Calls returns how many translations were requested.
func (f *FakeTranslator) Calls() int {
	return int(f.calls.Load())
}

// MaxConcurrent returns the highest number of overlapping translations seen.
func (f *FakeTranslator) MaxConcurrent() int {
	return int(f.maxActive.Load())
}

// Sources returns the translated sources in call order.
func (f *FakeTranslator) Sources() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sources...)
}

// Expected returns the tree FakeTranslator produces for a source.
func Expected(sourceFile string, content []byte) artifact.Tree {
	base := filepath.Base(sourceFile)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	lines := bytes.Count(content, []byte("\n"))
	if len(content) > 0 && !bytes.HasSuffix(content, []byte("\n")) {
		lines++
	}
	return artifact.Tree{
		stem + ".act":          append([]byte(nil), content...),
		stem + ".env_descript": []byte(fmt.Sprintf("source: %s\nlines: %d\n", base, lines)),
	}
}

// WriteSource writes an HDL source file below dir and returns its path.
func WriteSource(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("create source dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

// ManifestEntry mirrors one manifest record for test fixtures.
type ManifestEntry struct {
	File      string `json:"file,omitempty"`
	ResultDir string `json:"result_dir,omitempty"`
	AplanDir  string `json:"aplan_dir,omitempty"`
}

// WriteManifest writes entries as a JSON manifest at path.
func WriteManifest(t testing.TB, path string, entries ...ManifestEntry) string {
	t.Helper()
	if entries == nil {
		entries = []ManifestEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		t.Fatalf("marshal manifest: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}
