package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideDirectory is returned for paths outside the configured directory.
var ErrOutsideDirectory = errors.New("path is outside the configured directory")

// pathGuard confines file access to one directory tree. A guard with no
// directory allows every path.
type pathGuard struct {
	dir string
}

func newPathGuard(dir string) (*pathGuard, error) {
	if dir == "" {
		return &pathGuard{}, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve directory %s: %w", dir, err)
	}
	return &pathGuard{dir: filepath.Clean(abs)}, nil
}

// resolve returns the absolute form of path. Relative paths are taken from
// the configured directory.
func (g *pathGuard) resolve(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if path == "" {
		return "", errors.New("path cannot be empty")
	}
	if g.dir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(g.dir, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if g.dir == "" {
		return abs, nil
	}
	if !within(abs, g.dir) {
		return "", fmt.Errorf("%w: %s", ErrOutsideDirectory, path)
	}

	// Symlinks must not lead out of the tree either.
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return abs, nil
		}
		return "", fmt.Errorf("resolve path: %w", err)
	}
	realDir := g.dir
	if r, err := filepath.EvalSymlinks(g.dir); err == nil {
		realDir = r
	}
	if !within(resolved, realDir) && !within(resolved, g.dir) {
		return "", fmt.Errorf("%w: %s", ErrOutsideDirectory, path)
	}
	return abs, nil
}

func within(path, dir string) bool {
	if path == dir {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(dir, string(filepath.Separator))+string(filepath.Separator))
}
