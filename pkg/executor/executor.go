package executor

import (
	"context"
	"fmt"

	"github.com/yuya-takeyama/strict-dir-sync/pkg/logger"
	"github.com/yuya-takeyama/strict-dir-sync/pkg/planner"
	"github.com/yuya-takeyama/strict-dir-sync/pkg/remote"
)

// Executor transfers single files to the remote store.
// Each file gets exactly one attempt.
type Executor struct {
	store  remote.Store
	logger logger.Logger
	dryRun bool
}

func NewExecutor(store remote.Store, logger logger.Logger, dryRun bool) *Executor {
	return &Executor{
		store:  store,
		logger: logger,
		dryRun: dryRun,
	}
}

// Upload creates or overwrites remotePath with the contents of local and returns
// the number of bytes transferred. Failures are returned as *TransferError.
func (e *Executor) Upload(ctx context.Context, local *planner.LocalFile, remotePath string) (int64, error) {
	e.logger.Upload(local.AbsPath, remotePath)

	if e.dryRun {
		return local.Size, nil
	}

	n, err := e.store.Upload(ctx, local.AbsPath, remotePath)
	if err != nil {
		te := newTransferError(remotePath, fmt.Errorf("failed to upload: %w", err))
		e.logger.Error("upload", remotePath, te.Err)
		return 0, te
	}

	if n != local.Size {
		te := newTransferError(remotePath, fmt.Errorf("%w: %d of %d bytes", ErrShortTransfer, n, local.Size))
		e.logger.Error("upload", remotePath, te.Err)
		return n, te
	}

	return n, nil
}
