package walker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func relPaths(entries []Entry) []string {
	var paths []string
	for _, e := range entries {
		paths = append(paths, e.RelPath)
	}
	return paths
}

func TestNewWalker(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	tests := []struct {
		name     string
		root     string
		excludes []string
		wantErr  bool
	}{
		{name: "existing directory", root: dir},
		{name: "missing directory", root: filepath.Join(dir, "missing"), wantErr: true},
		{name: "root is a file", root: file, wantErr: true},
		{name: "invalid pattern", root: dir, excludes: []string{"[abc"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWalker(tt.root, tt.excludes)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestWalkOrder(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"b.txt":         "bbbb",
		"a.txt":         "a",
		"sub/c.txt":     "cc",
		"sub/deep/d.md": "ddd",
	})

	w, err := NewWalker(root, nil)
	require.NoError(t, err)

	entries, err := w.Walk()
	require.NoError(t, err)

	assert.Equal(t, []string{".", "a.txt", "b.txt", "sub", "sub/c.txt", "sub/deep", "sub/deep/d.md"}, relPaths(entries))

	for _, e := range entries {
		assert.NoError(t, e.Err)
		if e.RelPath == "b.txt" {
			assert.False(t, e.Dir)
			assert.Equal(t, int64(4), e.Size)
			assert.Equal(t, filepath.Join(w.Root(), "b.txt"), e.Path)
		}
		if e.RelPath == "sub" {
			assert.True(t, e.Dir)
		}
	}
}

func TestWalkSymlinkedRoot(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real")
	writeTree(t, target, map[string]string{"a.txt": "a", "sub/b.txt": "bb"})
	link := filepath.Join(dir, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	w, err := NewWalker(link, nil)
	require.NoError(t, err)

	entries, err := w.Walk()
	require.NoError(t, err)
	assert.Equal(t, []string{".", "a.txt", "sub", "sub/b.txt"}, relPaths(entries))
}

func TestWalkExcludes(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"keep.txt":        "k",
		"skip.log":        "s",
		"cache/data.bin":  "d",
		"nested/x.log":    "x",
		"nested/keep.txt": "k",
	})

	w, err := NewWalker(root, []string{"**/*.log", "cache/"})
	require.NoError(t, err)

	entries, err := w.Walk()
	require.NoError(t, err)

	assert.Equal(t, []string{".", "keep.txt", "nested", "nested/keep.txt"}, relPaths(entries))
}

func TestWalkUnreadableDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"ok.txt":          "ok",
		"locked/file.txt": "hidden",
	})
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	w, err := NewWalker(root, nil)
	require.NoError(t, err)

	entries, err := w.Walk()
	require.NoError(t, err)

	var failed []string
	for _, e := range entries {
		if e.Err != nil {
			failed = append(failed, e.RelPath)
		}
	}
	assert.Equal(t, []string{"locked"}, failed)
}

func TestRemotePath(t *testing.T) {
	tests := []struct {
		name    string
		root    string
		relPath string
		want    string
	}{
		{name: "file under root", root: "/zone/home/project", relPath: "a/b.txt", want: "/zone/home/project/a/b.txt"},
		{name: "root with trailing slash", root: "/zone/home/project/", relPath: "b.txt", want: "/zone/home/project/b.txt"},
		{name: "root itself", root: "/zone/home/project", relPath: ".", want: "/zone/home/project"},
		{name: "empty root", root: "", relPath: "b.txt", want: "b.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RemotePath(tt.root, tt.relPath))
		})
	}
}

func TestIsExcludedPatterns(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		patterns []string
		want     bool
	}{
		{name: "hidden file at root", path: ".hidden", patterns: []string{".*"}, want: true},
		// ".*" only matches files starting with . at root
		{name: "hidden file in subdirectory", path: "dir1/.gitignore", patterns: []string{".*"}, want: false},
		{name: "hidden file in subdirectory with wildcard pattern", path: "dir1/.gitignore", patterns: []string{"**/.*"}, want: true},
		{name: "specific directory pattern", path: "dir1/file.txt", patterns: []string{"dir1/**"}, want: true},
		{name: "all txt files pattern", path: "dir1/file.txt", patterns: []string{"**/*.txt"}, want: true},
		{name: "directory pattern matches nested file", path: "build/out/app.bin", patterns: []string{"build/"}, want: true},
		{name: "directory pattern matches the directory", path: "build", patterns: []string{"build/"}, want: true},
		{name: "directory pattern does not match prefix", path: "builder/app.bin", patterns: []string{"build/"}, want: false},
		{name: "no patterns", path: "a.txt", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &Walker{excludes: tt.patterns}
			if got := w.isExcluded(tt.path); got != tt.want {
				t.Errorf("isExcluded(%q) with %v = %v, want %v", tt.path, tt.patterns, got, tt.want)
			}
		})
	}
}
