package checksum

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

const bufferSize = 64 * 1024 // 64KB buffer

// irodsSHA256Prefix marks SHA-256 checksums reported by iRODS-style catalogs
const irodsSHA256Prefix = "sha2:"

// CalculateFileSHA256 calculates SHA-256 checksum of a file and returns it hex encoded
func CalculateFileSHA256(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	return CalculateSHA256(file)
}

// CalculateSHA256 calculates SHA-256 checksum from reader and returns it hex encoded
func CalculateSHA256(r io.Reader) (string, error) {
	hash := sha256.New()
	buffer := make([]byte, bufferSize)

	for {
		n, err := r.Read(buffer)
		if n > 0 {
			if _, err := hash.Write(buffer[:n]); err != nil {
				return "", fmt.Errorf("write to hash: %w", err)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read: %w", err)
		}
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// Normalize converts a checksum reported by a remote store into lowercase hex SHA-256.
// Accepted forms are hex, "sha2:<base64>" and plain base64 (S3 ChecksumSHA256).
// Anything else, including composite multipart checksums, yields "".
func Normalize(remote string) string {
	remote = strings.TrimSpace(remote)
	if remote == "" {
		return ""
	}

	if strings.HasPrefix(remote, irodsSHA256Prefix) {
		return fromBase64(strings.TrimPrefix(remote, irodsSHA256Prefix))
	}

	if len(remote) == sha256.Size*2 {
		if raw, err := hex.DecodeString(remote); err == nil {
			return hex.EncodeToString(raw)
		}
	}

	return fromBase64(remote)
}

func fromBase64(s string) string {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(raw) != sha256.Size {
		return ""
	}
	return hex.EncodeToString(raw)
}

// CompareChecksums reports whether two checksums denote the same content.
// An empty side never matches.
func CompareChecksums(checksum1, checksum2 string) bool {
	a, b := Normalize(checksum1), Normalize(checksum2)
	return a != "" && a == b
}
