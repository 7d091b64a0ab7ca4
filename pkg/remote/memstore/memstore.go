// Package memstore is an in-memory remote.Store for tests.
package memstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/yuya-takeyama/strict-dir-sync/pkg/checksum"
	"github.com/yuya-takeyama/strict-dir-sync/pkg/remote"
)

type object struct {
	data     []byte
	checksum string
}

// Store keeps objects in memory. Failure hooks can be set to inject errors for a path.
type Store struct {
	mu          sync.Mutex
	objects     map[string]object
	collections map[string]bool

	// Each hook runs before the operation; a non-nil error aborts it
	StatErr     func(path string) error
	UploadErr   func(remotePath string) error
	ChecksumErr func(path string) error

	// ShortWrite truncates uploads of the matching path to n bytes when it returns n >= 0
	ShortWrite func(remotePath string) int

	// CorruptChecksum replaces the checksum reported for the matching path
	CorruptChecksum func(path string) (string, bool)

	uploads []string
}

func New() *Store {
	return &Store{
		objects:     make(map[string]object),
		collections: make(map[string]bool),
	}
}

// Put stores data directly, bypassing upload hooks
func (s *Store) Put(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(path, data)
}

// PutWithChecksum stores data with an explicit checksum, e.g. "" for objects without one
func (s *Store) PutWithChecksum(path string, data []byte, sum string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = object{data: append([]byte(nil), data...), checksum: sum}
}

func (s *Store) put(path string, data []byte) {
	sum, _ := checksum.CalculateSHA256(strings.NewReader(string(data)))
	s.objects[path] = object{data: append([]byte(nil), data...), checksum: sum}
}

// Uploads returns the remote paths passed to Upload, in call order
func (s *Store) Uploads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.uploads...)
}

// Collections returns created collections in sorted order
func (s *Store) Collections() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var paths []string
	for p := range s.collections {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Data returns the stored bytes of an object
func (s *Store) Data(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[path]
	return obj.data, ok
}

func (s *Store) List(ctx context.Context, path string) ([]remote.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := strings.TrimSuffix(path, "/") + "/"
	var items []remote.ObjectInfo
	for p, obj := range s.objects {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		items = append(items, remote.ObjectInfo{
			Path:     strings.TrimPrefix(p, prefix),
			Size:     int64(len(obj.data)),
			Checksum: obj.checksum,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Path < items[j].Path })
	return items, nil
}

func (s *Store) Stat(ctx context.Context, path string) (*remote.ObjectInfo, error) {
	if s.StatErr != nil {
		if err := s.StatErr(path); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[path]
	if !ok {
		return nil, fmt.Errorf("stat %s: %w", path, remote.ErrNotFound)
	}
	return &remote.ObjectInfo{
		Path:     path,
		Size:     int64(len(obj.data)),
		Checksum: s.reported(path, obj),
	}, nil
}

func (s *Store) Upload(ctx context.Context, localPath, remotePath string) (int64, error) {
	s.mu.Lock()
	s.uploads = append(s.uploads, remotePath)
	s.mu.Unlock()

	if s.UploadErr != nil {
		if err := s.UploadErr(remotePath); err != nil {
			return 0, err
		}
	}

	file, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return 0, fmt.Errorf("read file: %w", err)
	}

	if s.ShortWrite != nil {
		if n := s.ShortWrite(remotePath); n >= 0 && n < len(data) {
			data = data[:n]
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(remotePath, data)
	return int64(len(data)), nil
}

func (s *Store) Checksum(ctx context.Context, path string) (string, error) {
	if s.ChecksumErr != nil {
		if err := s.ChecksumErr(path); err != nil {
			return "", err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[path]
	if !ok {
		return "", fmt.Errorf("checksum %s: %w", path, remote.ErrNotFound)
	}
	sum := s.reported(path, obj)
	if sum == "" {
		// Compute on demand, like a catalog that checksums lazily
		sum, _ = checksum.CalculateSHA256(strings.NewReader(string(obj.data)))
	}
	return sum, nil
}

func (s *Store) reported(path string, obj object) string {
	if s.CorruptChecksum != nil {
		if sum, ok := s.CorruptChecksum(path); ok {
			return sum
		}
	}
	return obj.checksum
}

func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[path]
	return ok || s.collections[path], nil
}

func (s *Store) MakeCollection(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[path] = true
	return nil
}

var (
	_ remote.Store           = (*Store)(nil)
	_ remote.CollectionMaker = (*Store)(nil)
)
