// Package syncer drives one sync run: walk the local tree, compare each file with
// its remote counterpart, upload and verify as needed, and record the outcome.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuya-takeyama/strict-dir-sync/pkg/executor"
	"github.com/yuya-takeyama/strict-dir-sync/pkg/logger"
	"github.com/yuya-takeyama/strict-dir-sync/pkg/planner"
	"github.com/yuya-takeyama/strict-dir-sync/pkg/remote"
	"github.com/yuya-takeyama/strict-dir-sync/pkg/report"
	"github.com/yuya-takeyama/strict-dir-sync/pkg/walker"
)

var (
	ErrInvalidSource = errors.New("invalid source directory")
	ErrInvalidMode   = errors.New("invalid verification mode")
)

type Config struct {
	Source      string
	Destination string
	Mode        planner.Mode
	PostCheck   bool
	Excludes    []string
	// Force uploads every file without comparing
	Force  bool
	DryRun bool
}

type Syncer struct {
	cfg      Config
	store    remote.Store
	logger   logger.Logger
	executor *executor.Executor
	verifier *executor.Verifier
	now      func() time.Time
}

func New(cfg Config, store remote.Store, log logger.Logger) *Syncer {
	return &Syncer{
		cfg:      cfg,
		store:    store,
		logger:   log,
		executor: executor.NewExecutor(store, log, cfg.DryRun),
		verifier: executor.NewVerifier(store, log),
		now:      time.Now,
	}
}

// RemoteRoot returns the collection that mirrors source under destination
func RemoteRoot(source, destination string) string {
	base := filepath.Base(filepath.Clean(source))
	return strings.TrimSuffix(destination, "/") + "/" + base
}

func (s *Syncer) validate() error {
	if s.cfg.Source == "" {
		return fmt.Errorf("%w: source is empty", ErrInvalidSource)
	}
	info, err := os.Stat(s.cfg.Source)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidSource, s.cfg.Source)
	}
	abs, err := filepath.Abs(s.cfg.Source)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	if filepath.Dir(abs) == abs {
		return fmt.Errorf("%w: %s is a filesystem root", ErrInvalidSource, s.cfg.Source)
	}

	switch s.cfg.Mode {
	case planner.ModeSize, planner.ModeChecksum:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, s.cfg.Mode)
	}
	return nil
}

// Run processes every file under the source once. Per-file failures become
// outcomes; only invalid configuration or an unreadable source root is returned
// as an error. When ctx is cancelled the partial result is returned with ctx.Err().
func (s *Syncer) Run(ctx context.Context) (*report.Result, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	w, err := walker.NewWalker(s.cfg.Source, s.cfg.Excludes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}

	// The remote root is named after the source as given, even when it is a symlink
	source, err := filepath.Abs(s.cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}

	startedAt := s.now()
	remoteRoot := RemoteRoot(source, s.cfg.Destination)
	agg := report.NewAggregator()

	s.logger.Info("sync starting for %s to %s (verification: %s, post-check: %t)",
		source, remoteRoot, s.cfg.Mode, s.cfg.PostCheck)

	entries, err := w.Walk()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}

	var runErr error
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			s.logger.Info("sync cancelled after %d files", agg.Len())
			runErr = err
			break
		}

		remotePath := walker.RemotePath(remoteRoot, entry.RelPath)

		if entry.Err != nil {
			s.logger.Error("resolve", entry.Path, entry.Err)
			agg.Record(report.UploadFailed(entry.Path, remotePath, report.ErrPathResolution, entry.Err))
			continue
		}

		if entry.Dir {
			s.ensureCollection(ctx, remotePath)
			continue
		}

		agg.Record(s.syncFile(ctx, entry, remotePath))
	}

	result := agg.Finish(source, s.cfg.Destination, startedAt, s.now().Sub(startedAt))
	s.logger.Info("sync complete for %s: %d skipped, %d uploaded, %d failed",
		source, result.Summary.Skipped, result.Summary.Uploaded, result.Summary.Failed)

	return result, runErr
}

func (s *Syncer) ensureCollection(ctx context.Context, path string) {
	maker, ok := s.store.(remote.CollectionMaker)
	if !ok || s.cfg.DryRun {
		return
	}
	if err := maker.MakeCollection(ctx, path); err != nil {
		s.logger.Error("make collection", path, err)
		return
	}
	s.logger.Debug("collection ready: %s", path)
}

// syncFile runs compare, upload and verify for one file and returns its outcome
func (s *Syncer) syncFile(ctx context.Context, entry walker.Entry, remotePath string) report.Outcome {
	local := planner.NewLocalFile(entry.RelPath, entry.Path, entry.Size)

	if err := checkReadable(local.AbsPath); err != nil {
		s.logger.Error("read", local.AbsPath, err)
		return report.UploadFailed(local.AbsPath, remotePath, report.ErrPathResolution, err)
	}

	decision := planner.Result{Decision: planner.DecisionUpload, Reason: planner.ReasonForced}
	if !s.cfg.Force {
		obj, err := s.stat(ctx, remotePath)
		if err != nil {
			s.logger.Error("stat", remotePath, err)
			return report.UploadFailed(local.AbsPath, remotePath, report.ErrRemoteUnreachable, err)
		}
		decision = planner.Decide(local, obj, s.cfg.Mode)
	}

	if decision.Decision == planner.DecisionSkip {
		s.logger.Skip(remotePath, decision.Reason)
		return report.Skipped(local.AbsPath, remotePath, decision.Reason)
	}

	n, err := s.executor.Upload(ctx, local, remotePath)
	if err != nil {
		return report.UploadFailed(local.AbsPath, remotePath, executor.Classify(err), err)
	}

	if s.cfg.PostCheck && !s.cfg.DryRun {
		if ok, err := s.verifier.Verify(ctx, local, remotePath); !ok {
			return report.VerificationFailed(local.AbsPath, remotePath, err)
		}
	}

	return report.Uploaded(local.AbsPath, remotePath, n, decision.Reason)
}

// stat returns nil, nil when the object does not exist
func (s *Syncer) stat(ctx context.Context, remotePath string) (*remote.ObjectInfo, error) {
	obj, err := s.store.Stat(ctx, remotePath)
	if errors.Is(err, remote.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if s.cfg.Mode == planner.ModeChecksum && obj.Checksum == "" {
		sum, err := s.store.Checksum(ctx, remotePath)
		if err != nil {
			// An empty checksum makes the comparator upload
			s.logger.Debug("remote checksum unavailable for %s: %v", remotePath, err)
		} else {
			obj.Checksum = sum
		}
	}
	return obj, nil
}

func checkReadable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}
