package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathDenied is matched (via errors.Is) by every PathDeniedError.
var ErrPathDenied = errors.New("path access denied")

// PathDeniedError reports a path argument that resolves outside the working directory.
type PathDeniedError struct {
	Path string
}

func (e *PathDeniedError) Error() string {
	return fmt.Sprintf("Path access denied: %s is outside the project directory.", e.Path)
}

func (e *PathDeniedError) Is(target error) bool { return target == ErrPathDenied }

// evalSymlinks and lstat are package-level so tests can force resolution errors.
var (
	evalSymlinks = filepath.EvalSymlinks
	lstat        = os.Lstat
)

// PathGuard confines path arguments to a fixed root directory. The root is
// canonicalized once at construction and never changes afterwards.
type PathGuard struct {
	root string
}

// NewPathGuard returns a guard rooted at workDir. workDir is made absolute and,
// when it exists, has its symlinks resolved.
func NewPathGuard(workDir string) (*PathGuard, error) {
	if workDir == "" {
		return nil, errors.New("path guard: working directory must not be empty")
	}
	abs, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("path guard: %w", err)
	}
	root := filepath.Clean(abs)
	if resolved, err := evalSymlinks(root); err == nil {
		root = resolved
	}
	return &PathGuard{root: root}, nil
}

// Root returns the canonical working directory.
func (g *PathGuard) Root() string { return g.root }

// Resolve maps target (relative to the root, or absolute) to a clean absolute
// path inside the root. Both the lexical path and its symlink-resolved form
// must stay inside; otherwise a *PathDeniedError is returned.
func (g *PathGuard) Resolve(target string) (string, error) {
	candidate := target
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(g.root, candidate)
	}
	candidate = filepath.Clean(candidate)
	if !Within(g.root, candidate) {
		return "", &PathDeniedError{Path: target}
	}
	resolved, err := resolveExisting(candidate)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", target, err)
	}
	if !Within(g.root, resolved) {
		return "", &PathDeniedError{Path: target}
	}
	return candidate, nil
}

// Within reports whether path equals root or is a descendant of it. Both must
// be clean absolute paths. The check is component-wise, so "/a/work-dir-evil"
// is not within "/a/work-dir".
func Within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}

// resolveExisting evaluates symlinks on the deepest existing ancestor of p and
// re-attaches the not-yet-existing remainder.
func resolveExisting(p string) (string, error) {
	existing := p
	var rest []string
	for {
		if _, err := lstat(existing); err == nil {
			break
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return p, nil
		}
		rest = append([]string{filepath.Base(existing)}, rest...)
		existing = parent
	}
	resolved, err := evalSymlinks(existing)
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{resolved}, rest...)...), nil
}
