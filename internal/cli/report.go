package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/aplan/internal/harness"
)

// writeBatchText renders a batch report for humans: one line per example
// in manifest order, the differences or error beneath failures, then a
// summary line.
func writeBatchText(w io.Writer, report *harness.BatchReport) {
	if len(report.Examples) == 0 {
		fmt.Fprintln(w, "No examples in manifest.")
	}
	for _, ex := range report.Examples {
		writeExampleText(w, report.Kind, ex)
	}

	c := report.Counts()
	fmt.Fprintf(w, "\n%s %s (%s): %d passed, %d failed, %d errored of %d\n",
		report.Kind, report.RunID, report.Variant, c.Passed, c.Failed, c.Errored, c.Total)
}

func writeExampleText(w io.Writer, kind harness.Kind, ex harness.ExampleReport) {
	mark := "✓"
	if !ex.Passed() {
		mark = "✗"
	}
	line := fmt.Sprintf("%s %d %s", mark, ex.Index+1, ex.Example.File)
	if kind == harness.KindRegenerate {
		line += " -> " + ex.Example.AplanDir
	}
	fmt.Fprintln(w, line)

	if ex.Status == harness.StatusError {
		fmt.Fprintf(w, "    error: %s\n", ex.Detail)
		return
	}
	writePaths(w, "missing", ex.Missing)
	writePaths(w, "extra", ex.Extra)
	writePaths(w, "differing", ex.Differing)
	for _, p := range ex.Differing {
		diff, ok := ex.Diffs[p]
		if !ok {
			continue
		}
		for _, l := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
			fmt.Fprintf(w, "      %s\n", l)
		}
	}
}

func writePaths(w io.Writer, label string, paths []string) {
	if len(paths) == 0 {
		return
	}
	fmt.Fprintf(w, "    %s: %s\n", label, strings.Join(paths, ", "))
}
