package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/spf13/cobra"

	"github.com/yuya-takeyama/strict-dir-sync/internal/config"
	"github.com/yuya-takeyama/strict-dir-sync/internal/notify"
	"github.com/yuya-takeyama/strict-dir-sync/pkg/logger"
	"github.com/yuya-takeyama/strict-dir-sync/pkg/remote"
	"github.com/yuya-takeyama/strict-dir-sync/pkg/remote/miniostore"
	"github.com/yuya-takeyama/strict-dir-sync/pkg/remote/s3store"
	"github.com/yuya-takeyama/strict-dir-sync/pkg/report"
	"github.com/yuya-takeyama/strict-dir-sync/pkg/syncer"
)

func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		cfg.Source = args[0]
	}
	if len(args) > 1 {
		cfg.Destination = args[1]
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	mode, err := cfg.Mode()
	if err != nil {
		return err
	}

	logOpts := logger.Options{Level: cfg.LogLevel, Quiet: cfg.Quiet}
	if cfg.LogFile != "" {
		logOpts.File = &logger.FileConfig{Path: cfg.LogFile, MaxBackups: 5, MaxAgeDays: 30}
	}
	log, err := logger.New(logOpts)
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}

	var notifier notify.Notifier
	if cfg.SNSTopic != "" {
		notifier, err = notify.NewSNSNotifier(ctx, cfg.SNSTopic, cfg.Profile, cfg.Region)
		if err != nil {
			return err
		}
	}

	s := syncer.New(syncer.Config{
		Source:      cfg.Source,
		Destination: cfg.Destination,
		Mode:        mode,
		PostCheck:   cfg.PostCheck,
		Excludes:    cfg.Excludes,
		Force:       cfg.Force,
		DryRun:      cfg.DryRun,
	}, store, log)

	job := func() error {
		return runOnce(ctx, cmd, cfg, s, notifier, log)
	}

	if cfg.Every > 0 {
		return schedule(ctx, cfg.Every, job, log)
	}
	return job()
}

// runOnce performs one sync and its reporting. It fails when any file failed.
func runOnce(ctx context.Context, cmd *cobra.Command, cfg *config.Config, s *syncer.Syncer, notifier notify.Notifier, log logger.Logger) error {
	result, err := s.Run(ctx)
	if result == nil {
		return err
	}

	var logPath string
	if !cfg.DryRun {
		path, writeErr := report.WriteJSON(cfg.ReportDir, result, time.Now())
		if writeErr != nil {
			log.Error("report", cfg.ReportDir, writeErr)
		} else {
			logPath = path
		}
	}

	if !cfg.Quiet || result.Summary.Failed > 0 {
		report.PrintSummary(cmd.OutOrStdout(), result, logPath)
	}

	if notifier != nil {
		if notifyErr := notifier.NotifyResult(ctx, result); notifyErr != nil {
			log.Error("notify", cfg.SNSTopic, notifyErr)
		}
	}

	if err != nil {
		return err
	}
	if result.Summary.Failed > 0 {
		return fmt.Errorf("%d files failed", result.Summary.Failed)
	}
	return nil
}

// schedule repeats job every interval until ctx is cancelled. Runs never overlap.
func schedule(ctx context.Context, every time.Duration, job func() error, log logger.Logger) error {
	scheduler := gocron.NewScheduler(time.Local)
	scheduler.SingletonModeAll()

	_, err := scheduler.Every(every).Do(func() {
		if err := job(); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("sync", "scheduled run", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sync: %w", err)
	}

	log.Info("running sync every %s", every)
	scheduler.StartAsync()
	<-ctx.Done()
	scheduler.Stop()
	return nil
}

func newStore(ctx context.Context, cfg *config.Config) (remote.Store, error) {
	switch cfg.Backend {
	case config.BackendMinio:
		return miniostore.New(miniostore.Options{
			Endpoint:  cfg.Endpoint,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		})
	case config.BackendS3:
		return s3store.New(ctx, s3store.Options{
			Bucket:   cfg.Bucket,
			Profile:  cfg.Profile,
			Region:   cfg.Region,
			Endpoint: cfg.Endpoint,
		})
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", config.ErrInvalidConfig, cfg.Backend)
	}
}

func runCheckConnection(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	if cfg.Bucket == "" {
		return fmt.Errorf("%w: bucket is required", config.ErrInvalidConfig)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}

	pinger, ok := store.(remote.Pinger)
	if !ok {
		return fmt.Errorf("backend %s cannot check connections", cfg.Backend)
	}
	if err := pinger.Ping(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Connection failed: %v\n", err)
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Connection to %s bucket %s succeeded\n", cfg.Backend, cfg.Bucket)
	return nil
}
