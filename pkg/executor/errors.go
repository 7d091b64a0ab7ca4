package executor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/yuya-takeyama/strict-dir-sync/pkg/remote"
	"github.com/yuya-takeyama/strict-dir-sync/pkg/report"
)

var (
	ErrShortTransfer    = errors.New("short transfer")
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// TransferError is a per-file failure with its classification
type TransferError struct {
	Kind report.ErrorKind
	Path string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Path, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// Classify maps an error from the local filesystem or the remote store to an ErrorKind
func Classify(err error) report.ErrorKind {
	if err == nil {
		return ""
	}

	var te *TransferError
	if errors.As(err, &te) {
		return te.Kind
	}

	switch {
	case errors.Is(err, ErrShortTransfer):
		return report.ErrPartialTransfer
	case errors.Is(err, ErrChecksumMismatch):
		return report.ErrVerificationMismatch
	case errors.Is(err, remote.ErrChecksumUnsupported):
		return report.ErrChecksumUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return report.ErrRemoteUnreachable
	}

	// Local open/read failures surface as *fs.PathError
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return report.ErrPathResolution
	}

	return report.ErrRemoteUnreachable
}

func newTransferError(path string, err error) *TransferError {
	return &TransferError{Kind: Classify(err), Path: path, Err: err}
}
