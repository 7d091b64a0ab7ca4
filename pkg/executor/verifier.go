package executor

import (
	"context"
	"fmt"

	"github.com/yuya-takeyama/strict-dir-sync/pkg/checksum"
	"github.com/yuya-takeyama/strict-dir-sync/pkg/logger"
	"github.com/yuya-takeyama/strict-dir-sync/pkg/planner"
	"github.com/yuya-takeyama/strict-dir-sync/pkg/remote"
	"github.com/yuya-takeyama/strict-dir-sync/pkg/report"
)

// Verifier compares a freshly read local checksum with the remote one after upload
type Verifier struct {
	store  remote.Store
	logger logger.Logger
}

func NewVerifier(store remote.Store, logger logger.Logger) *Verifier {
	return &Verifier{store: store, logger: logger}
}

// Verify reports whether remotePath holds the same content as local.
// When it returns false the error tells why: a checksum could not be obtained
// (ChecksumUnavailable) or the checksums differ (VerificationMismatch).
func (v *Verifier) Verify(ctx context.Context, local *planner.LocalFile, remotePath string) (bool, error) {
	localSum, err := local.Rechecksum()
	if err != nil {
		return v.fail(remotePath, &TransferError{
			Kind: report.ErrChecksumUnavailable,
			Path: remotePath,
			Err:  fmt.Errorf("failed to checksum %s: %w", local.AbsPath, err),
		})
	}

	remoteSum, err := v.store.Checksum(ctx, remotePath)
	if err != nil {
		return v.fail(remotePath, &TransferError{
			Kind: report.ErrChecksumUnavailable,
			Path: remotePath,
			Err:  fmt.Errorf("failed to get remote checksum: %w", err),
		})
	}

	if !checksum.CompareChecksums(localSum, remoteSum) {
		return v.fail(remotePath, &TransferError{
			Kind: report.ErrVerificationMismatch,
			Path: remotePath,
			Err:  fmt.Errorf("%w: local %s, remote %s", ErrChecksumMismatch, localSum, remoteSum),
		})
	}

	v.logger.Verify(remotePath, true)
	return true, nil
}

func (v *Verifier) fail(remotePath string, err *TransferError) (bool, error) {
	v.logger.Verify(remotePath, false)
	v.logger.Error("verify", remotePath, err)
	return false, err
}
