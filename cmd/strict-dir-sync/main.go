package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

var configFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "strict-dir-sync [flags] <LocalPath> <Destination>",
		Short: "Mirror a local directory into an object store, uploading only new or changed files",
		Long: `strict-dir-sync uploads a local directory tree into a bucket path, skipping files
whose remote copy already matches by size or SHA-256 checksum. Uploads can be verified
after transfer, and every run writes a sync_log_<timestamp>.json report.

Destination is a path inside --bucket or an s3://bucket/prefix URI.`,
		Version:      fmt.Sprintf("%s (commit: %s, built at: %s by %s)", version, commit, date, builtBy),
		Args:         cobra.RangeArgs(0, 2),
		SilenceUsage: true,
		RunE:         runSync,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Path to a YAML config file")
	pf.String("backend", "s3", "Remote store backend (s3 or minio)")
	pf.String("bucket", "", "Destination bucket")
	pf.String("profile", "", "AWS profile to use")
	pf.String("region", "", "AWS region (uses default if not specified)")
	pf.String("endpoint", "", "Custom S3-compatible endpoint")

	f := rootCmd.Flags()
	f.String("verification", "size", "How to compare existing files (size or checksum)")
	f.Bool("post-check", false, "Verify every upload by comparing SHA-256 checksums")
	f.StringSlice("exclude", nil, "Exclude patterns (multiple allowed)")
	f.Bool("force", false, "Upload every file without comparing")
	f.Bool("dryrun", false, "Shows operations without executing")
	f.Bool("quiet", false, "Suppress non-error output")
	f.String("report-dir", ".", "Directory for sync_log_<timestamp>.json reports")
	f.String("log-file", "", "Also write logs to this file (rotated)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.Duration("every", 0, "Repeat the sync at this interval instead of running once")
	f.String("sns-topic", "", "SNS topic ARN notified when files fail")

	rootCmd.AddCommand(newCheckConnectionCmd())
	return rootCmd
}

func newCheckConnectionCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "check-connection",
		Short:        "Check that the destination bucket is reachable",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         runCheckConnection,
	}
}
