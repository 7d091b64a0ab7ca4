package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// LogFileTimeFormat is the timestamp layout used in report file names
const LogFileTimeFormat = "20060102150405"

type fileError struct {
	Path      string    `json:"path"`
	Source    string    `json:"source,omitempty"`
	Kind      Kind      `json:"kind"`
	ErrorKind ErrorKind `json:"error_kind"`
	Error     string    `json:"error,omitempty"`
}

type logFile struct {
	Succeeded                 []string    `json:"succeeded"`
	Skipped                   []string    `json:"skipped"`
	Failed                    []string    `json:"failed"`
	CumulativeFilesizeInBytes int64       `json:"cumulative_filesize_in_bytes"`
	Summary                   Summary     `json:"summary"`
	Source                    string      `json:"source"`
	Destination               string      `json:"destination"`
	StartedAt                 time.Time   `json:"started_at"`
	DurationSeconds           float64     `json:"duration_seconds"`
	Errors                    []fileError `json:"errors"`
}

// LogFileName returns the report file name for a run finished at now
func LogFileName(now time.Time) string {
	return fmt.Sprintf("sync_log_%s.json", now.Format(LogFileTimeFormat))
}

func newLogFile(result *Result) logFile {
	lf := logFile{
		Succeeded:                 []string{},
		Skipped:                   []string{},
		Failed:                    []string{},
		CumulativeFilesizeInBytes: result.Summary.TotalUploadedBytes,
		Summary:                   result.Summary,
		Source:                    result.Source,
		Destination:               result.Destination,
		StartedAt:                 result.StartedAt,
		DurationSeconds:           result.Duration.Seconds(),
		Errors:                    []fileError{},
	}

	for _, o := range result.Outcomes {
		switch o.Kind {
		case KindSkipped:
			lf.Skipped = append(lf.Skipped, o.Path)
		case KindUploaded:
			lf.Succeeded = append(lf.Succeeded, o.Path)
		case KindUploadFailed, KindVerificationFailed:
			// Failed entries name the local file
			name := o.Source
			if name == "" {
				name = o.Path
			}
			lf.Failed = append(lf.Failed, name)
			lf.Errors = append(lf.Errors, fileError{
				Path:      o.Path,
				Source:    o.Source,
				Kind:      o.Kind,
				ErrorKind: o.ErrorKind,
				Error:     o.Error,
			})
		}
	}
	return lf
}

// Encode writes the JSON report for result to w
func Encode(w io.Writer, result *Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(newLogFile(result)); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// WriteJSON writes the report into dir and returns the file path
func WriteJSON(dir string, result *Result, now time.Time) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, LogFileName(now))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}

	if err := Encode(f, result); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close report file: %w", err)
	}
	return path, nil
}

// PrintSummary prints the operator summary of a run.
// logPath may be empty when no report file was written.
func PrintSummary(w io.Writer, result *Result, logPath string) {
	s := result.Summary

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Summary ===")
	fmt.Fprintf(w, "%s was synchronized to %s\n", result.Source, result.Destination)
	fmt.Fprintf(w, "Skipped: %d files (already in a good state)\n", s.Skipped)
	fmt.Fprintf(w, "Uploaded: %d files (%s)\n", s.Uploaded, FormatBytes(s.TotalUploadedBytes))
	fmt.Fprintf(w, "Failed: %d files\n", s.Failed)
	fmt.Fprintf(w, "Duration: %s\n", result.Duration.Round(time.Millisecond))
	if logPath != "" {
		fmt.Fprintf(w, "See %s for details\n", logPath)
	}
}

// FormatBytes formats bytes in human readable format
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
