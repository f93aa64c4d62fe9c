package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Tree is a set of artifact files keyed by slash-separated relative path.
type Tree map[string][]byte

// FilesystemError reports an I/O failure while reading or writing a tree.
type FilesystemError struct {
	Op   string // "read", "write", "replace"
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}

// New returns an empty tree.
func New() Tree {
	return make(Tree)
}

// Add stores content under rel, normalizing the path to slash form.
// Returns an error if rel is absolute or escapes the tree root.
func (t Tree) Add(rel string, content []byte) error {
	key, err := cleanPath(rel)
	if err != nil {
		return err
	}
	t[key] = content
	return nil
}

// Paths returns all relative paths in ascending order.
func (t Tree) Paths() []string {
	paths := make([]string, 0, len(t))
	for p := range t {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Len returns the number of files in the tree.
func (t Tree) Len() int {
	return len(t)
}

// Filter returns a new tree holding only files whose extension is listed.
// An empty extension list returns a shallow copy of t.
func (t Tree) Filter(exts []string) Tree {
	out := make(Tree, len(t))
	if len(exts) == 0 {
		for p, c := range t {
			out[p] = c
		}
		return out
	}

	allowed := make(map[string]bool, len(exts))
	for _, ext := range exts {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = true
	}
	for p, c := range t {
		if allowed[path.Ext(p)] {
			out[p] = c
		}
	}
	return out
}

// ReadDir builds a tree from every regular file below root. Symlinks to
// regular files are read; symlinked directories, dangling links and other
// special files are skipped.
// A missing root yields a *FilesystemError wrapping fs.ErrNotExist.
func ReadDir(root string) (Tree, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &FilesystemError{Op: "read", Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &FilesystemError{Op: "read", Path: root, Err: errors.New("not a directory")}
	}

	// A symlinked root is followed; links below it are not.
	base, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, &FilesystemError{Op: "read", Path: root, Err: err}
	}

	tree := New()
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !readable(p, d) {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		return tree.Add(rel, content)
	})
	if err != nil {
		return nil, &FilesystemError{Op: "read", Path: root, Err: err}
	}
	return tree, nil
}

// readable reports whether a walked entry holds file content.
func readable(p string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// WriteDir persists the tree so that root contains exactly its files.
//
// The tree is staged next to root and renamed into place. Whatever was at
// root before is removed only once the new content is in position; if the
// swap fails the previous content is restored. A replaced root keeps its
// permissions, and a new one is created 0755.
func (t Tree) WriteDir(root string) error {
	root = filepath.Clean(root)
	parent := filepath.Dir(root)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return &FilesystemError{Op: "write", Path: root, Err: err}
	}

	staging, err := os.MkdirTemp(parent, "."+filepath.Base(root)+".staging-")
	if err != nil {
		return &FilesystemError{Op: "write", Path: root, Err: err}
	}
	// Removing a path that was renamed away is a no-op.
	defer os.RemoveAll(staging)

	mode := fs.FileMode(0755)
	if info, err := os.Stat(root); err == nil && info.IsDir() {
		mode = info.Mode().Perm()
	}
	if err := os.Chmod(staging, mode); err != nil {
		return &FilesystemError{Op: "write", Path: root, Err: err}
	}

	if err := t.writeFiles(staging); err != nil {
		return &FilesystemError{Op: "write", Path: root, Err: err}
	}

	return replaceDir(staging, root)
}

func (t Tree) writeFiles(dir string) error {
	for _, rel := range t.Paths() {
		key, err := cleanPath(rel)
		if err != nil {
			return err
		}
		dst := filepath.Join(dir, filepath.FromSlash(key))
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(dst, t[rel], 0644); err != nil {
			return err
		}
	}
	return nil
}

// replaceDir moves staging to root, displacing any existing root.
func replaceDir(staging, root string) error {
	var backup string
	if _, err := os.Lstat(root); err == nil {
		backup = staging + ".old"
		if err := os.Rename(root, backup); err != nil {
			return &FilesystemError{Op: "replace", Path: root, Err: err}
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return &FilesystemError{Op: "replace", Path: root, Err: err}
	}

	if err := os.Rename(staging, root); err != nil {
		if backup != "" {
			if rbErr := os.Rename(backup, root); rbErr != nil {
				err = errors.Join(err, fmt.Errorf("restore previous content: %w", rbErr))
			}
		}
		return &FilesystemError{Op: "replace", Path: root, Err: err}
	}

	if backup != "" {
		if err := os.RemoveAll(backup); err != nil {
			return &FilesystemError{Op: "replace", Path: backup, Err: err}
		}
	}
	return nil
}

// cleanPath converts rel to a canonical slash path confined to the root.
func cleanPath(rel string) (string, error) {
	slashed := filepath.ToSlash(rel)
	if slashed == "" || path.IsAbs(slashed) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("invalid artifact path %q", rel)
	}
	cleaned := path.Clean(slashed)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("artifact path %q escapes the tree root", rel)
	}
	return cleaned, nil
}
