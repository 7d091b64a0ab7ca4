package planner

import (
	"fmt"
	"strings"

	"github.com/yuya-takeyama/strict-dir-sync/pkg/checksum"
)

// Mode selects how a local file is compared with its remote counterpart.
// It is chosen once per run.
type Mode string

const (
	ModeSize     Mode = "size"
	ModeChecksum Mode = "checksum"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeSize:
		return ModeSize, nil
	case ModeChecksum:
		return ModeChecksum, nil
	default:
		return "", fmt.Errorf("unknown verification mode %q (want size or checksum)", s)
	}
}

type Decision string

const (
	DecisionSkip   Decision = "skip"
	DecisionUpload Decision = "upload"
)

const (
	ReasonNewFile                   = "new file"
	ReasonSizeDiffers               = "size differs"
	ReasonSizeMatches               = "size matches"
	ReasonChecksumDiffers           = "checksum differs"
	ReasonChecksumMatches           = "checksum matches"
	ReasonLocalChecksumUnavailable  = "local checksum unavailable"
	ReasonRemoteChecksumUnavailable = "remote checksum unavailable"
	ReasonUnknownMode               = "unknown verification mode"
	ReasonForced                    = "forced"
)

type Result struct {
	Decision Decision
	Reason   string
}

// HashFunc computes the checksum of the file at path
type HashFunc func(path string) (string, error)

// LocalFile describes one file of the local tree. Its checksum is computed
// on first request and cached, including a failed computation.
type LocalFile struct {
	RelPath string
	AbsPath string
	Size    int64

	hash   HashFunc
	summed bool
	sum    string
	sumErr error
}

func NewLocalFile(relPath, absPath string, size int64) *LocalFile {
	return NewLocalFileWithHash(relPath, absPath, size, checksum.CalculateFileSHA256)
}

func NewLocalFileWithHash(relPath, absPath string, size int64, hash HashFunc) *LocalFile {
	return &LocalFile{
		RelPath: relPath,
		AbsPath: absPath,
		Size:    size,
		hash:    hash,
	}
}

func (f *LocalFile) Checksum() (string, error) {
	if !f.summed {
		f.sum, f.sumErr = f.hash(f.AbsPath)
		f.summed = true
	}
	return f.sum, f.sumErr
}

// Rechecksum reads the file again, ignoring any cached value
func (f *LocalFile) Rechecksum() (string, error) {
	return f.hash(f.AbsPath)
}
