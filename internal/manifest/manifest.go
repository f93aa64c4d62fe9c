package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// Example is one manifest entry.
type Example struct {
	// File is the HDL source to translate.
	File string `json:"file" yaml:"file"`

	// ResultDir receives freshly generated artifacts during a test run.
	ResultDir string `json:"result_dir" yaml:"result_dir"`

	// AplanDir holds the reference (golden) artifact tree.
	AplanDir string `json:"aplan_dir" yaml:"aplan_dir"`
}

// Field names as they appear in manifest files.
const (
	FieldFile      = "file"
	FieldResultDir = "result_dir"
	FieldAplanDir  = "aplan_dir"
)

// ManifestError reports a manifest that cannot be trusted.
// Index is the position of the first invalid entry, or -1 when the file as a
// whole could not be read or parsed.
type ManifestError struct {
	Path  string
	Index int
	Field string // missing field, when Index >= 0
	Err   error
}

func (e *ManifestError) Error() string {
	switch {
	case e.Index >= 0 && e.Field != "":
		return fmt.Sprintf("manifest %s: entry %d: %s is required", e.Path, e.Index, e.Field)
	case e.Index >= 0:
		return fmt.Sprintf("manifest %s: entry %d: %v", e.Path, e.Index, e.Err)
	default:
		return fmt.Sprintf("manifest %s: %v", e.Path, e.Err)
	}
}

func (e *ManifestError) Unwrap() error {
	return e.Err
}

// Options tunes how a manifest is loaded.
type Options struct {
	// BaseDir resolves relative entry paths. Empty means the manifest's
	// own directory.
	BaseDir string

	// DefaultResultDir, when set, fills in entries that omit result_dir
	// with a directory of that name beside the entry's source file.
	// When empty, result_dir is required.
	DefaultResultDir string
}

// Load reads a manifest in batch mode: file, result_dir and aplan_dir are
// all required for every entry.
func Load(path string) ([]Example, error) {
	return LoadWithOptions(path, Options{})
}

// LoadWithOptions reads and validates a manifest.
func LoadWithOptions(path string, opts Options) ([]Example, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ManifestError{Path: path, Index: -1, Err: fmt.Errorf("failed to read manifest: %w", err)}
	}

	if strings.EqualFold(filepath.Ext(path), ".cue") {
		data, err = cueToJSON(path, data)
		if err != nil {
			return nil, &ManifestError{Path: path, Index: -1, Err: err}
		}
	}

	examples, err := decode(data)
	if err != nil {
		return nil, &ManifestError{Path: path, Index: -1, Err: err}
	}

	if err := validate(examples, opts); err != nil {
		err.Path = path
		return nil, err
	}

	base := opts.BaseDir
	if base == "" {
		base = filepath.Dir(path)
	}
	for i := range examples {
		examples[i].File = resolve(base, examples[i].File)
		examples[i].ResultDir = resolve(base, examples[i].ResultDir)
		examples[i].AplanDir = resolve(base, examples[i].AplanDir)
	}
	if err := checkOverlap(examples); err != nil {
		err.Path = path
		return nil, err
	}

	return examples, nil
}

// decode parses YAML or JSON, rejecting unknown keys.
func decode(data []byte) ([]Example, error) {
	var examples []Example
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&examples); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("manifest is empty")
		}
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if examples == nil {
		examples = []Example{}
	}
	return examples, nil
}

// cueToJSON evaluates a CUE manifest and exports its example list as JSON.
func cueToJSON(path string, data []byte) ([]byte, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile CUE manifest: %w", err)
	}

	if v.IncompleteKind() != cue.ListKind {
		v = v.LookupPath(cue.ParsePath("examples"))
		if !v.Exists() {
			return nil, errors.New("CUE manifest must be a list or define an examples list")
		}
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("CUE manifest is not concrete: %w", err)
	}

	out, err := v.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to export CUE manifest: %w", err)
	}
	return out, nil
}

// validate returns the first structurally invalid entry.
func validate(examples []Example, opts Options) *ManifestError {
	for i := range examples {
		ex := &examples[i]
		if strings.TrimSpace(ex.File) == "" {
			return &ManifestError{Index: i, Field: FieldFile}
		}
		if strings.TrimSpace(ex.ResultDir) == "" {
			if opts.DefaultResultDir == "" {
				return &ManifestError{Index: i, Field: FieldResultDir}
			}
			ex.ResultDir = filepath.Join(filepath.Dir(ex.File), opts.DefaultResultDir)
		}
		if strings.TrimSpace(ex.AplanDir) == "" {
			return &ManifestError{Index: i, Field: FieldAplanDir}
		}
		if filepath.Clean(ex.ResultDir) == filepath.Clean(ex.AplanDir) {
			return &ManifestError{Index: i, Err: errors.New("result_dir and aplan_dir must differ")}
		}
	}
	return nil
}

// checkOverlap rejects directories claimed by more than one entry, since
// entries may be translated concurrently.
func checkOverlap(examples []Example) *ManifestError {
	owners := make(map[string]int, 2*len(examples))
	for i, ex := range examples {
		for _, dir := range []struct{ field, path string }{
			{FieldResultDir, ex.ResultDir},
			{FieldAplanDir, ex.AplanDir},
		} {
			key := filepath.Clean(dir.path)
			if j, taken := owners[key]; taken {
				return &ManifestError{Index: i, Err: fmt.Errorf("%s %q is already used by entry %d", dir.field, dir.path, j)}
			}
			owners[key] = i
		}
	}
	return nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
