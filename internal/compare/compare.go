// Package compare aligns a generated artifact tree with its reference tree
// and reports what is missing, extra, or different.
//
// Comparison is path-by-path in sorted order so that diagnostics are
// reproducible. Exact mode compares bytes. Normalized mode first applies
// Unicode NFC, converts CRLF to LF, strips trailing whitespace on every line
// and ignores trailing blank lines; use it only when the translator is known
// to differ in cosmetic whitespace between platforms.
package compare

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/aplan/internal/artifact"
)

// Mode selects how file contents are judged equal.
type Mode int

const (
	// Exact requires byte-identical content.
	Exact Mode = iota
	// Normalized ignores Unicode normalization form, line endings and
	// trailing whitespace.
	Normalized
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case Exact:
		return "exact"
	case Normalized:
		return "normalized"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts "exact" or "normalized" to a Mode. Empty means Exact.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exact":
		return Exact, nil
	case "normalized", "normalised":
		return Normalized, nil
	default:
		return Exact, fmt.Errorf("unknown compare mode %q (expected exact or normalized)", s)
	}
}

// AplanExtensions are the artifact kinds a translation emits.
var AplanExtensions = []string{".act", ".behp", ".env_descript", ".evt_descript"}

// Result lists the differences between two trees, each sorted by path.
type Result struct {
	Missing   []string `json:"missing"`   // in reference, not generated
	Extra     []string `json:"extra"`     // generated, not in reference
	Differing []string `json:"differing"` // in both, content differs
}

// Empty reports whether the trees matched.
func (r Result) Empty() bool {
	return len(r.Missing) == 0 && len(r.Extra) == 0 && len(r.Differing) == 0
}

// Comparator compares artifact trees.
// The zero value compares every file byte for byte.
type Comparator struct {
	Mode Mode

	// Extensions restricts comparison to files with these extensions.
	// Empty means every file participates.
	Extensions []string
}

// Compare reports how generated differs from reference.
// Result slices are never nil.
func (c Comparator) Compare(generated, reference artifact.Tree) Result {
	gen := generated.Filter(c.Extensions)
	ref := reference.Filter(c.Extensions)

	result := Result{
		Missing:   []string{},
		Extra:     []string{},
		Differing: []string{},
	}

	for _, p := range ref.Paths() {
		genContent, ok := gen[p]
		if !ok {
			result.Missing = append(result.Missing, p)
			continue
		}
		if !c.Equal(genContent, ref[p]) {
			result.Differing = append(result.Differing, p)
		}
	}
	for _, p := range gen.Paths() {
		if _, ok := ref[p]; !ok {
			result.Extra = append(result.Extra, p)
		}
	}

	return result
}

// Equal applies the comparator's equality mode to two file contents.
func (c Comparator) Equal(a, b []byte) bool {
	if c.Mode == Normalized {
		return bytes.Equal(normalize(a), normalize(b))
	}
	return bytes.Equal(a, b)
}

// UnifiedDiff renders a unified diff from reference to generated content.
// In Normalized mode the normalized forms are diffed.
func (c Comparator) UnifiedDiff(path string, generated, reference []byte) (string, error) {
	if c.Mode == Normalized {
		generated = normalize(generated)
		reference = normalize(reference)
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(reference)),
		B:        difflib.SplitLines(string(generated)),
		FromFile: "reference/" + path,
		ToFile:   "generated/" + path,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("diff %s: %w", path, err)
	}
	return text, nil
}

// Diffs renders unified diffs for every differing path in r.
func (c Comparator) Diffs(r Result, generated, reference artifact.Tree) (map[string]string, error) {
	if len(r.Differing) == 0 {
		return nil, nil
	}
	diffs := make(map[string]string, len(r.Differing))
	for _, p := range r.Differing {
		text, err := c.UnifiedDiff(p, generated[p], reference[p])
		if err != nil {
			return nil, err
		}
		diffs[p] = text
	}
	return diffs, nil
}

func normalize(content []byte) []byte {
	content = norm.NFC.Bytes(content)
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))

	lines := bytes.Split(content, []byte("\n"))
	for i, line := range lines {
		lines[i] = bytes.TrimRight(line, " \t\r")
	}
	for len(lines) > 0 && len(lines[len(lines)-1]) == 0 {
		lines = lines[:len(lines)-1]
	}
	return bytes.Join(lines, []byte("\n"))
}
