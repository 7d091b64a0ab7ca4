package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger receives per-file events from a sync run
type Logger interface {
	Upload(localPath, remotePath string)
	Skip(remotePath, reason string)
	Verify(remotePath string, ok bool)
	Error(operation, path string, err error)
	Info(format string, args ...interface{})
	Debug(format string, args ...interface{})
}

// FileConfig configures the rotated log file
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Compress   bool
}

type Options struct {
	Level string
	// Quiet suppresses everything except uploads and errors on the console
	Quiet bool
	// Out defaults to os.Stderr
	Out  io.Writer
	File *FileConfig
}

type SyncLogger struct {
	entry  *log.Logger
	quiet  bool
	closer io.Closer
}

func New(opts Options) (*SyncLogger, error) {
	l := log.New()
	l.SetFormatter(&log.TextFormatter{FullTimestamp: true, DisableColors: true})

	level := log.InfoLevel
	if opts.Level != "" {
		parsed, err := log.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}
	if opts.Quiet && level > log.WarnLevel {
		level = log.WarnLevel
	}
	l.SetLevel(level)

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	s := &SyncLogger{entry: l, quiet: opts.Quiet}
	if opts.File != nil && opts.File.Path != "" {
		fw, err := newFileWriter(*opts.File)
		if err != nil {
			return nil, err
		}
		out = io.MultiWriter(out, fw)
		s.closer = fw
	}
	l.SetOutput(out)

	return s, nil
}

func newFileWriter(cfg FileConfig) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 100
	}
	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    maxSize,
		MaxAge:     cfg.MaxAgeDays,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	}, nil
}

// Close releases the log file, if any
func (s *SyncLogger) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func (s *SyncLogger) Upload(localPath, remotePath string) {
	// Uploads stay visible in quiet mode
	s.entry.WithField("source", localPath).Log(s.visibleLevel(), fmt.Sprintf("upload: %s", remotePath))
}

func (s *SyncLogger) Skip(remotePath, reason string) {
	s.entry.WithField("reason", reason).Info(fmt.Sprintf("skip: %s", remotePath))
}

func (s *SyncLogger) Verify(remotePath string, ok bool) {
	if ok {
		s.entry.Info(fmt.Sprintf("verified: %s", remotePath))
		return
	}
	s.entry.Warn(fmt.Sprintf("verification failed: %s", remotePath))
}

func (s *SyncLogger) Error(operation, path string, err error) {
	s.entry.WithField("operation", operation).Error(fmt.Sprintf("%s: %s", path, err))
}

func (s *SyncLogger) Info(format string, args ...interface{}) {
	s.entry.Infof(format, args...)
}

func (s *SyncLogger) Debug(format string, args ...interface{}) {
	s.entry.Debugf(format, args...)
}

func (s *SyncLogger) visibleLevel() log.Level {
	if s.quiet {
		return log.WarnLevel
	}
	return log.InfoLevel
}

type NullLogger struct{}

func NewNull() *NullLogger { return &NullLogger{} }

func (l *NullLogger) Upload(localPath, remotePath string)      {}
func (l *NullLogger) Skip(remotePath, reason string)           {}
func (l *NullLogger) Verify(remotePath string, ok bool)        {}
func (l *NullLogger) Error(operation, path string, err error)  {}
func (l *NullLogger) Info(format string, args ...interface{})  {}
func (l *NullLogger) Debug(format string, args ...interface{}) {}

var (
	_ Logger = (*SyncLogger)(nil)
	_ Logger = (*NullLogger)(nil)
)
