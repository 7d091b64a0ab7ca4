// Package miniostore implements remote.Store on an S3-compatible endpoint through minio-go.
package miniostore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yuya-takeyama/strict-dir-sync/pkg/checksum"
	"github.com/yuya-takeyama/strict-dir-sync/pkg/remote"
)

// API is the subset of *minio.Client the store uses
type API interface {
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	BucketExists(ctx context.Context, bucketName string) (bool, error)
}

type Options struct {
	// Endpoint is host[:port] or an http(s) URL
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

type Store struct {
	api    API
	bucket string
}

func New(opts Options) (*Store, error) {
	if opts.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if opts.Bucket == "" {
		return nil, errors.New("bucket is required")
	}

	host, secure, err := parseEndpoint(opts.Endpoint)
	if err != nil {
		return nil, err
	}

	creds := credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, "")
	if opts.AccessKey == "" {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvMinio{},
			&credentials.EnvAWS{},
			&credentials.FileAWSCredentials{},
		})
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  creds,
		Secure: secure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return NewWithAPI(client, opts.Bucket), nil
}

func NewWithAPI(api API, bucket string) *Store {
	return &Store{api: api, bucket: bucket}
}

func parseEndpoint(endpoint string) (host string, secure bool, err error) {
	if !strings.Contains(endpoint, "://") {
		return endpoint, true, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	switch u.Scheme {
	case "http":
		return u.Host, false, nil
	case "https":
		return u.Host, true, nil
	default:
		return "", false, fmt.Errorf("invalid endpoint %q: unsupported scheme %s", endpoint, u.Scheme)
	}
}

func objectName(path string) string {
	return strings.TrimPrefix(path, "/")
}

func (s *Store) List(ctx context.Context, path string) ([]remote.ObjectInfo, error) {
	prefix := strings.TrimSuffix(objectName(path), "/")
	if prefix != "" {
		prefix += "/"
	}

	var items []remote.ObjectInfo
	for obj := range s.api.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", translateError(obj.Err))
		}
		items = append(items, remote.ObjectInfo{
			Path:     strings.TrimPrefix(obj.Key, prefix),
			Size:     obj.Size,
			Checksum: obj.ChecksumSHA256,
		})
	}
	return items, nil
}

func (s *Store) stat(ctx context.Context, path string) (minio.ObjectInfo, error) {
	opts := minio.StatObjectOptions{}
	opts.Checksum = true

	info, err := s.api.StatObject(ctx, s.bucket, objectName(path), opts)
	if err != nil {
		return minio.ObjectInfo{}, fmt.Errorf("stat object %s: %w", path, translateError(err))
	}
	return info, nil
}

func (s *Store) Stat(ctx context.Context, path string) (*remote.ObjectInfo, error) {
	info, err := s.stat(ctx, path)
	if err != nil {
		return nil, err
	}
	return &remote.ObjectInfo{
		Path:     path,
		Size:     info.Size,
		Checksum: info.ChecksumSHA256,
	}, nil
}

func (s *Store) Upload(ctx context.Context, localPath, remotePath string) (int64, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	fi, err := file.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat file: %w", err)
	}

	info, err := s.api.PutObject(ctx, s.bucket, objectName(remotePath), file, fi.Size(), minio.PutObjectOptions{
		ContentType:  remote.ContentType(localPath),
		AutoChecksum: minio.ChecksumSHA256,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to put object: %w", translateError(err))
	}
	return info.Size, nil
}

func (s *Store) Checksum(ctx context.Context, path string) (string, error) {
	info, err := s.stat(ctx, path)
	if err != nil {
		return "", err
	}
	sum := checksum.Normalize(info.ChecksumSHA256)
	if sum == "" {
		return "", fmt.Errorf("%s: %w", path, remote.ErrChecksumUnsupported)
	}
	return sum, nil
}

func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.stat(ctx, path)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, remote.ErrNotFound) {
		return false, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	prefix := strings.TrimSuffix(objectName(path), "/") + "/"
	for obj := range s.api.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true, MaxKeys: 1}) {
		if obj.Err != nil {
			return false, fmt.Errorf("failed to list objects: %w", translateError(obj.Err))
		}
		return true, nil
	}
	return false, nil
}

func (s *Store) MakeCollection(ctx context.Context, path string) error {
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	ok, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to reach bucket %s: %w", s.bucket, translateError(err))
	}
	if !ok {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}

// translateError maps missing objects to remote.ErrNotFound and keeps other errors
func translateError(err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey", resp.Code == "NotFound", resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", remote.ErrNotFound, resp.Message)
	}
	return err
}

var (
	_ remote.Store           = (*Store)(nil)
	_ remote.CollectionMaker = (*Store)(nil)
	_ remote.Pinger          = (*Store)(nil)
)
