package translate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/roach88/aplan/internal/artifact"
)

// Placeholders substituted in a CommandTranslator's argument list.
const (
	PlaceholderSource = "{source}"
	PlaceholderOut    = "{out}"
)

// CommandTranslator runs an external translator executable.
//
// Args is the full argv; "{source}" is replaced with the source file path
// and "{out}" with a fresh empty directory the executable must populate.
// If no argument mentions "{out}", the output directory is appended as the
// last argument. Everything left in the output directory becomes the tree.
type CommandTranslator struct {
	Variant Variant
	Args    []string
	Env     []string // extra KEY=VALUE entries appended to the process env
	Dir     string   // working directory; empty means the current one
}

// Translate implements Translator.
func (c *CommandTranslator) Translate(ctx context.Context, sourceFile string) (artifact.Tree, error) {
	if len(c.Args) == 0 {
		return nil, &TranslationError{Source: sourceFile, Detail: "translator command is empty"}
	}
	if err := CheckSource(sourceFile, c.Variant); err != nil {
		return nil, err
	}

	outDir, err := os.MkdirTemp("", "aplan-translate-")
	if err != nil {
		return nil, &artifact.FilesystemError{Op: "write", Path: os.TempDir(), Err: err}
	}
	defer os.RemoveAll(outDir)

	argv := c.expandArgs(sourceFile, outDir)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TranslationError{
			Source: sourceFile,
			Detail: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}

	tree, err := artifact.ReadDir(outDir)
	if err != nil {
		return nil, err
	}
	if tree.Len() == 0 {
		return nil, &TranslationError{Source: sourceFile, Detail: "translator produced no artifacts"}
	}
	return tree, nil
}

func (c *CommandTranslator) expandArgs(sourceFile, outDir string) []string {
	argv := make([]string, 0, len(c.Args)+1)
	sawOut := false
	for _, arg := range c.Args {
		if strings.Contains(arg, PlaceholderOut) {
			sawOut = true
		}
		arg = strings.ReplaceAll(arg, PlaceholderSource, sourceFile)
		arg = strings.ReplaceAll(arg, PlaceholderOut, outDir)
		argv = append(argv, arg)
	}
	if !sawOut {
		argv = append(argv, outDir)
	}
	return argv
}

// CheckSource verifies that sourceFile exists, is a regular file, and
// carries the extension of variant v.
func CheckSource(sourceFile string, v Variant) error {
	info, err := os.Stat(sourceFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &TranslationError{Source: sourceFile, Detail: "source file does not exist", Err: err}
		}
		return &TranslationError{Source: sourceFile, Err: err}
	}
	if info.IsDir() {
		return &TranslationError{Source: sourceFile, Detail: "source is a directory"}
	}
	if v.Valid() && !strings.EqualFold(filepath.Ext(sourceFile), v.Extension()) {
		return &TranslationError{
			Source: sourceFile,
			Detail: fmt.Sprintf("not a %s file", v.Extension()),
		}
	}
	return nil
}
