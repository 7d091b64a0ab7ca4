package syncer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuya-takeyama/strict-dir-sync/pkg/logger"
	"github.com/yuya-takeyama/strict-dir-sync/pkg/planner"
	"github.com/yuya-takeyama/strict-dir-sync/pkg/remote/memstore"
	"github.com/yuya-takeyama/strict-dir-sync/pkg/report"
)

const destination = "/zone/home/alice"

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "proj")
	require.NoError(t, os.MkdirAll(root, 0o755))
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func run(t *testing.T, cfg Config, store *memstore.Store) *report.Result {
	t.Helper()
	if cfg.Destination == "" {
		cfg.Destination = destination
	}
	if cfg.Mode == "" {
		cfg.Mode = planner.ModeSize
	}
	result, err := New(cfg, store, logger.NewNull()).Run(context.Background())
	require.NoError(t, err)
	return result
}

func kinds(result *report.Result) map[string]report.Kind {
	got := make(map[string]report.Kind)
	for _, o := range result.Outcomes {
		got[o.Path] = o.Kind
	}
	return got
}

func assertSummaryConsistent(t *testing.T, result *report.Result) {
	t.Helper()
	s := result.Summary
	assert.Equal(t, len(result.Outcomes), s.Skipped+s.Uploaded+s.Failed)

	var total int64
	for _, o := range result.Uploaded() {
		total += o.Bytes
	}
	assert.Equal(t, total, s.TotalUploadedBytes)
}

func TestRemoteRoot(t *testing.T) {
	tests := []struct {
		source      string
		destination string
		want        string
	}{
		{"/data/proj", "/zone/home/alice", "/zone/home/alice/proj"},
		{"/data/proj/", "/zone/home/alice/", "/zone/home/alice/proj"},
		{"relative/dir", "/zone", "/zone/dir"},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			assert.Equal(t, tt.want, RemoteRoot(tt.source, tt.destination))
		})
	}
}

func TestRunSameSizeChange(t *testing.T) {
	tests := []struct {
		name      string
		mode      planner.Mode
		wantA     report.Kind
		wantBytes int64
	}{
		// Equal sizes hide the content change in size mode
		{name: "size mode", mode: planner.ModeSize, wantA: report.KindSkipped, wantBytes: 5},
		{name: "checksum mode", mode: planner.ModeChecksum, wantA: report.KindUploaded, wantBytes: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := writeTree(t, map[string]string{"a.txt": "hello", "b.txt": "world"})
			store := memstore.New()
			store.Put(destination+"/proj/a.txt", []byte("HELLO"))

			result := run(t, Config{Source: source, Mode: tt.mode}, store)

			assert.Equal(t, map[string]report.Kind{
				destination + "/proj/a.txt": tt.wantA,
				destination + "/proj/b.txt": report.KindUploaded,
			}, kinds(result))
			assert.Equal(t, tt.wantBytes, result.Summary.TotalUploadedBytes)
			assertSummaryConsistent(t, result)
		})
	}
}

func TestRunFreshDestination(t *testing.T) {
	source := writeTree(t, map[string]string{
		"a.txt":          "aaa",
		"sub/b.txt":      "bbbb",
		"sub/deep/c.txt": "cc",
	})
	store := memstore.New()

	result := run(t, Config{Source: source, Mode: planner.ModeChecksum, PostCheck: true}, store)

	assert.Equal(t, report.Summary{Uploaded: 3, TotalUploadedBytes: 9}, result.Summary)
	assert.Equal(t, []string{
		destination + "/proj/a.txt",
		destination + "/proj/sub/b.txt",
		destination + "/proj/sub/deep/c.txt",
	}, store.Uploads())
	assert.ElementsMatch(t, []string{
		destination + "/proj",
		destination + "/proj/sub",
		destination + "/proj/sub/deep",
	}, store.Collections())

	data, ok := store.Data(destination + "/proj/sub/b.txt")
	require.True(t, ok)
	assert.Equal(t, "bbbb", string(data))
}

func TestRunPostCheckMismatch(t *testing.T) {
	source := writeTree(t, map[string]string{"a.txt": "good", "b.txt": "corrupted"})
	store := memstore.New()
	store.CorruptChecksum = func(path string) (string, bool) {
		if path == destination+"/proj/b.txt" {
			return "0000000000000000000000000000000000000000000000000000000000000000", true
		}
		return "", false
	}

	result := run(t, Config{Source: source, Mode: planner.ModeSize, PostCheck: true}, store)

	assert.Equal(t, report.Summary{Uploaded: 1, Failed: 1, TotalUploadedBytes: 4}, result.Summary)
	failed := result.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, report.KindVerificationFailed, failed[0].Kind)
	assert.Equal(t, report.ErrVerificationMismatch, failed[0].ErrorKind)
	assert.Equal(t, filepath.Join(source, "b.txt"), failed[0].Source)
}

func TestRunWithoutPostCheckTrustsUpload(t *testing.T) {
	source := writeTree(t, map[string]string{"a.txt": "data"})
	store := memstore.New()
	store.ChecksumErr = func(string) error { return errors.New("must not be called") }

	result := run(t, Config{Source: source, Mode: planner.ModeSize}, store)

	assert.Equal(t, report.Summary{Uploaded: 1, TotalUploadedBytes: 4}, result.Summary)
}

func TestRunFailureIsolation(t *testing.T) {
	source := writeTree(t, map[string]string{"a.txt": "a", "b.txt": "bb", "c.txt": "ccc", "d.txt": "dddd"})
	store := memstore.New()
	store.UploadErr = func(path string) error {
		if path == destination+"/proj/b.txt" {
			return errors.New("connection reset by peer")
		}
		return nil
	}
	store.ShortWrite = func(path string) int {
		if path == destination+"/proj/d.txt" {
			return 1
		}
		return -1
	}

	result := run(t, Config{Source: source}, store)

	assert.Equal(t, report.Summary{Uploaded: 2, Failed: 2, TotalUploadedBytes: 4}, result.Summary)
	byPath := make(map[string]report.Outcome)
	for _, o := range result.Outcomes {
		byPath[o.Path] = o
	}
	assert.Equal(t, report.ErrRemoteUnreachable, byPath[destination+"/proj/b.txt"].ErrorKind)
	assert.Equal(t, report.ErrPartialTransfer, byPath[destination+"/proj/d.txt"].ErrorKind)
	assert.Equal(t, report.KindUploaded, byPath[destination+"/proj/c.txt"].Kind)
	assertSummaryConsistent(t, result)
}

func TestRunStatFailure(t *testing.T) {
	source := writeTree(t, map[string]string{"a.txt": "a", "b.txt": "b"})
	store := memstore.New()
	store.StatErr = func(path string) error {
		if path == destination+"/proj/a.txt" {
			return errors.New("i/o timeout")
		}
		return nil
	}

	result := run(t, Config{Source: source}, store)

	assert.Equal(t, report.Summary{Uploaded: 1, Failed: 1, TotalUploadedBytes: 1}, result.Summary)
	assert.Equal(t, report.ErrRemoteUnreachable, result.Failed()[0].ErrorKind)
	assert.Equal(t, []string{destination + "/proj/b.txt"}, store.Uploads())
}

func TestRunIsIdempotent(t *testing.T) {
	for _, mode := range []planner.Mode{planner.ModeSize, planner.ModeChecksum} {
		t.Run(string(mode), func(t *testing.T) {
			source := writeTree(t, map[string]string{"a.txt": "one", "sub/b.txt": "two"})
			store := memstore.New()

			first := run(t, Config{Source: source, Mode: mode, PostCheck: true}, store)
			require.Equal(t, 2, first.Summary.Uploaded)

			second := run(t, Config{Source: source, Mode: mode, PostCheck: true}, store)
			assert.Equal(t, report.Summary{Skipped: 2}, second.Summary)
			assert.Len(t, store.Uploads(), 2)
		})
	}
}

func TestRunChecksumModeRemoteChecksum(t *testing.T) {
	tests := []struct {
		name  string
		setup func(s *memstore.Store)
		want  report.Kind
	}{
		{
			name: "computed on demand when missing",
			setup: func(s *memstore.Store) {
				s.PutWithChecksum(destination+"/proj/a.txt", []byte("same"), "")
			},
			want: report.KindSkipped,
		},
		{
			name: "unavailable forces upload",
			setup: func(s *memstore.Store) {
				s.PutWithChecksum(destination+"/proj/a.txt", []byte("same"), "")
				s.ChecksumErr = func(string) error { return errors.New("checksum not supported") }
			},
			want: report.KindUploaded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := writeTree(t, map[string]string{"a.txt": "same"})
			store := memstore.New()
			tt.setup(store)

			result := run(t, Config{Source: source, Mode: planner.ModeChecksum}, store)

			require.Len(t, result.Outcomes, 1)
			assert.Equal(t, tt.want, result.Outcomes[0].Kind)
		})
	}
}

func TestRunEmptySource(t *testing.T) {
	source := writeTree(t, nil)
	store := memstore.New()

	result := run(t, Config{Source: source}, store)

	assert.Empty(t, result.Outcomes)
	assert.Equal(t, report.Summary{}, result.Summary)
	assert.Equal(t, []string{destination + "/proj"}, store.Collections())
}

func TestRunInvalidSource(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	tests := []struct {
		name   string
		source string
	}{
		{"missing", filepath.Join(t.TempDir(), "missing")},
		{"not a directory", file},
		{"empty", ""},
		{"filesystem root", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memstore.New()
			result, err := New(Config{Source: tt.source, Destination: destination, Mode: planner.ModeSize}, store, logger.NewNull()).
				Run(context.Background())

			assert.ErrorIs(t, err, ErrInvalidSource)
			assert.Nil(t, result)
			assert.Empty(t, store.Uploads())
			assert.Empty(t, store.Collections())
		})
	}
}

func TestRunSymlinkedSource(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real")
	require.NoError(t, os.MkdirAll(target, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "a.txt"), []byte("0123456789"), 0o644))
	link := filepath.Join(dir, "data")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	store := memstore.New()
	result := run(t, Config{Source: link, Mode: planner.ModeSize}, store)

	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, report.KindUploaded, result.Outcomes[0].Kind)
	assert.Equal(t, destination+"/data/a.txt", result.Outcomes[0].Path)
	assert.Equal(t, int64(10), result.Summary.TotalUploadedBytes)
	assert.Equal(t, link, result.Source)
}

func TestRunInvalidMode(t *testing.T) {
	source := writeTree(t, map[string]string{"a.txt": "a"})
	_, err := New(Config{Source: source, Destination: destination, Mode: "mtime"}, memstore.New(), logger.NewNull()).
		Run(context.Background())
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestRunUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}

	source := writeTree(t, map[string]string{"a.txt": "a", "secret.txt": "s"})
	secret := filepath.Join(source, "secret.txt")
	require.NoError(t, os.Chmod(secret, 0o000))
	t.Cleanup(func() { _ = os.Chmod(secret, 0o644) })

	store := memstore.New()
	// Same size remotely; size mode alone would skip it
	store.Put(destination+"/proj/secret.txt", []byte("s"))

	result := run(t, Config{Source: source}, store)

	assert.Equal(t, report.Summary{Uploaded: 1, Failed: 1, TotalUploadedBytes: 1}, result.Summary)
	assert.Equal(t, report.ErrPathResolution, result.Failed()[0].ErrorKind)
}

func TestRunExcludes(t *testing.T) {
	source := writeTree(t, map[string]string{
		"keep.txt":       "k",
		"debug.log":      "l",
		"cache/blob.bin": "b",
	})
	store := memstore.New()

	result := run(t, Config{Source: source, Excludes: []string{"**/*.log", "cache/"}}, store)

	assert.Equal(t, []string{destination + "/proj/keep.txt"}, store.Uploads())
	assert.Equal(t, 1, result.Summary.Uploaded)
	assert.NotContains(t, store.Collections(), destination+"/proj/cache")
}

func TestRunForce(t *testing.T) {
	source := writeTree(t, map[string]string{"a.txt": "same"})
	store := memstore.New()
	store.Put(destination+"/proj/a.txt", []byte("same"))

	result := run(t, Config{Source: source, Force: true}, store)

	require.Len(t, result.Uploaded(), 1)
	assert.Equal(t, planner.ReasonForced, result.Uploaded()[0].Reason)
}

func TestRunDryRun(t *testing.T) {
	source := writeTree(t, map[string]string{"a.txt": "abc"})
	store := memstore.New()

	result := run(t, Config{Source: source, DryRun: true, PostCheck: true}, store)

	assert.Equal(t, report.Summary{Uploaded: 1, TotalUploadedBytes: 3}, result.Summary)
	assert.Empty(t, store.Uploads())
	assert.Empty(t, store.Collections())
}

func TestRunCancelled(t *testing.T) {
	source := writeTree(t, map[string]string{"a.txt": "a", "b.txt": "b"})
	store := memstore.New()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := New(Config{Source: source, Destination: destination, Mode: planner.ModeSize}, store, logger.NewNull()).Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Empty(t, result.Outcomes)
	assert.Empty(t, store.Uploads())
}

func TestRunRecordsTiming(t *testing.T) {
	source := writeTree(t, map[string]string{"a.txt": "a"})
	s := New(Config{Source: source, Destination: destination, Mode: planner.ModeSize}, memstore.New(), logger.NewNull())

	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	calls := 0
	s.now = func() time.Time {
		calls++
		return start.Add(time.Duration(calls-1) * 2 * time.Second)
	}

	result, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, start, result.StartedAt)
	assert.Equal(t, 2*time.Second, result.Duration)
	assert.Equal(t, destination, result.Destination)
}
