package walker

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Entry represents a local directory or file found during the walk.
// Err is set when the entry could not be read; the walk continues past it.
type Entry struct {
	Path    string // Absolute path
	RelPath string // Slash separated path relative to root, "." for the root itself
	Dir     bool
	Size    int64
	Err     error
}

// Walker walks local files with exclude pattern support
type Walker struct {
	root     string
	excludes []string
}

// NewWalker creates a new file walker
func NewWalker(root string, excludes []string) (*Walker, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("get absolute path: %w", err)
	}

	// WalkDir does not descend into a symlinked root
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	// Validate root exists and is a directory
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", absRoot)
	}

	for _, pattern := range excludes {
		if !doublestar.ValidatePattern(strings.TrimSuffix(pattern, "/")) {
			return nil, fmt.Errorf("invalid exclude pattern: %q", pattern)
		}
	}

	return &Walker{
		root:     absRoot,
		excludes: excludes,
	}, nil
}

// Root returns the absolute root directory with symlinks resolved
func (w *Walker) Root() string {
	return w.root
}

// Walk walks the tree in lexical order. A directory is always reported
// before its contents. Only a failure to read the root itself is returned as an error.
func (w *Walker) Walk() ([]Entry, error) {
	var entries []Entry

	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == w.root {
				return err
			}
			entries = append(entries, Entry{
				Path:    path,
				RelPath: w.relPath(path),
				Err:     err,
			})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		relPath := w.relPath(path)

		if d.IsDir() {
			if path != w.root && w.isExcluded(relPath) {
				return filepath.SkipDir
			}
			entries = append(entries, Entry{Path: path, RelPath: relPath, Dir: true})
			return nil
		}

		if w.isExcluded(relPath) {
			return nil
		}

		var info fs.FileInfo
		if d.Type()&fs.ModeSymlink != 0 {
			// Follow links to files, never into directories
			info, err = os.Stat(path)
			if err == nil && info.IsDir() {
				return nil
			}
		} else {
			info, err = d.Info()
		}
		if err != nil {
			entries = append(entries, Entry{
				Path:    path,
				RelPath: relPath,
				Err:     fmt.Errorf("get file info: %w", err),
			})
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		entries = append(entries, Entry{
			Path:    path,
			RelPath: relPath,
			Size:    info.Size(),
		})

		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}

	return entries, nil
}

func (w *Walker) relPath(path string) string {
	relPath, err := filepath.Rel(w.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(relPath)
}

// isExcluded checks if a path matches any exclude pattern
func (w *Walker) isExcluded(path string) bool {
	for _, pattern := range w.excludes {
		// Handle directory patterns (ending with /)
		if strings.HasSuffix(pattern, "/") {
			dirPattern := strings.TrimSuffix(pattern, "/")
			// Check if the path or any parent directory matches
			parts := strings.Split(path, "/")
			for i := 1; i <= len(parts); i++ {
				subPath := strings.Join(parts[:i], "/")
				if matched, _ := doublestar.Match(dirPattern, subPath); matched {
					return true
				}
			}
		} else {
			if matched, _ := doublestar.Match(pattern, path); matched {
				return true
			}
		}
	}
	return false
}

// RemotePath joins a remote collection path and a slash separated relative path
func RemotePath(root, relPath string) string {
	root = strings.TrimSuffix(root, "/")
	if relPath == "" || relPath == "." {
		return root
	}
	if root == "" {
		return relPath
	}
	return root + "/" + relPath
}
