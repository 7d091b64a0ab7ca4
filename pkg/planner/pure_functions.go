package planner

import (
	"github.com/yuya-takeyama/strict-dir-sync/pkg/checksum"
	"github.com/yuya-takeyama/strict-dir-sync/pkg/remote"
)

// Decide compares a local file with its remote counterpart. A nil remote means
// the object does not exist. In checksum mode an unavailable checksum on
// either side counts as a difference.
func Decide(local *LocalFile, obj *remote.ObjectInfo, mode Mode) Result {
	if obj == nil {
		return upload(ReasonNewFile)
	}

	switch mode {
	case ModeSize:
		if local.Size != obj.Size {
			return upload(ReasonSizeDiffers)
		}
		return skip(ReasonSizeMatches)

	case ModeChecksum:
		localSum, err := local.Checksum()
		if err != nil || localSum == "" {
			return upload(ReasonLocalChecksumUnavailable)
		}
		remoteSum := checksum.Normalize(obj.Checksum)
		if remoteSum == "" {
			return upload(ReasonRemoteChecksumUnavailable)
		}
		if !checksum.CompareChecksums(localSum, remoteSum) {
			return upload(ReasonChecksumDiffers)
		}
		return skip(ReasonChecksumMatches)

	default:
		return upload(ReasonUnknownMode)
	}
}

func upload(reason string) Result {
	return Result{Decision: DecisionUpload, Reason: reason}
}

func skip(reason string) Result {
	return Result{Decision: DecisionSkip, Reason: reason}
}
