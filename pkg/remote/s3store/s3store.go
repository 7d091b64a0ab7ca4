// Package s3store implements remote.Store on Amazon S3 and S3-compatible endpoints.
//
// Remote paths map to object keys by dropping the leading slash. Collections
// are key prefixes, so MakeCollection is a no-op.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/yuya-takeyama/strict-dir-sync/pkg/checksum"
	"github.com/yuya-takeyama/strict-dir-sync/pkg/remote"
)

// Objects up to this size are uploaded in a single request so that S3 keeps a
// full-object SHA-256 checksum
const partSize = 64 * 1024 * 1024

// API is the subset of the S3 client the store uses
type API interface {
	s3.HeadObjectAPIClient
	s3.HeadBucketAPIClient
	s3.ListObjectsV2APIClient
	manager.UploadAPIClient
}

type Options struct {
	Bucket   string
	Profile  string
	Region   string
	Endpoint string
}

type Store struct {
	api      API
	uploader *manager.Uploader
	bucket   string
}

// New loads the AWS configuration and creates a store for the bucket
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Bucket == "" {
		return nil, errors.New("bucket is required")
	}

	var configOpts []func(*config.LoadOptions) error
	if opts.Profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(opts.Profile))
	}
	if opts.Region != "" {
		configOpts = append(configOpts, config.WithRegion(opts.Region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithAPI(client, opts.Bucket), nil
}

func NewWithAPI(api API, bucket string) *Store {
	return &Store{
		api: api,
		uploader: manager.NewUploader(api, func(u *manager.Uploader) {
			u.PartSize = partSize
		}),
		bucket: bucket,
	}
}

// Key converts a remote path into an object key
func Key(path string) string {
	return strings.TrimPrefix(path, "/")
}

func (s *Store) List(ctx context.Context, path string) ([]remote.ObjectInfo, error) {
	prefix := strings.TrimSuffix(Key(path), "/")
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if prefix != "" {
		input.Prefix = aws.String(prefix + "/")
	}

	var items []remote.ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(s.api, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil || obj.Size == nil {
				continue
			}
			items = append(items, remote.ObjectInfo{
				Path: trimS3KeyPrefix(*obj.Key, prefix),
				Size: aws.ToInt64(obj.Size),
			})
		}
	}

	return items, nil
}

func (s *Store) head(ctx context.Context, path string) (*s3.HeadObjectOutput, error) {
	resp, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(Key(path)),
		ChecksumMode: types.ChecksumModeEnabled,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("head object %s: %w", path, remote.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to head object: %w", err)
	}
	return resp, nil
}

func (s *Store) Stat(ctx context.Context, path string) (*remote.ObjectInfo, error) {
	resp, err := s.head(ctx, path)
	if err != nil {
		return nil, err
	}

	return &remote.ObjectInfo{
		Path:     path,
		Size:     aws.ToInt64(resp.ContentLength),
		Checksum: aws.ToString(resp.ChecksumSHA256),
	}, nil
}

// Upload sends the file with a SHA-256 checksum and returns the stored object size
func (s *Store) Upload(ctx context.Context, localPath, remotePath string) (int64, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	input := &s3.PutObjectInput{
		Bucket:            aws.String(s.bucket),
		Key:               aws.String(Key(remotePath)),
		Body:              file,
		ChecksumAlgorithm: types.ChecksumAlgorithmSha256,
	}
	if contentType := remote.ContentType(localPath); contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return 0, fmt.Errorf("failed to put object: %w", err)
	}

	resp, err := s.head(ctx, remotePath)
	if err != nil {
		return 0, err
	}
	return aws.ToInt64(resp.ContentLength), nil
}

// Checksum returns the hex SHA-256 S3 stored for the object. Multipart objects
// only carry a checksum of checksums and yield remote.ErrChecksumUnsupported.
func (s *Store) Checksum(ctx context.Context, path string) (string, error) {
	resp, err := s.head(ctx, path)
	if err != nil {
		return "", err
	}

	sum := checksum.Normalize(aws.ToString(resp.ChecksumSHA256))
	if sum == "" {
		return "", fmt.Errorf("%s: %w", path, remote.ErrChecksumUnsupported)
	}
	return sum, nil
}

func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.head(ctx, path)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, remote.ErrNotFound) {
		return false, err
	}

	// A collection exists when any key lives under it
	resp, err := s.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(strings.TrimSuffix(Key(path), "/") + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("failed to list objects: %w", err)
	}
	return len(resp.Contents) > 0, nil
}

func (s *Store) MakeCollection(ctx context.Context, path string) error {
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("failed to reach bucket %s: %w", s.bucket, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
		if httpErr, ok := apiErr.(interface{ HTTPStatusCode() int }); ok {
			return httpErr.HTTPStatusCode() == http.StatusNotFound
		}
	}
	return false
}

// trimS3KeyPrefix removes "prefix/" from key; keys outside the prefix are returned unchanged
func trimS3KeyPrefix(key, prefix string) string {
	if prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, prefix+"/")
}

var (
	_ remote.Store           = (*Store)(nil)
	_ remote.CollectionMaker = (*Store)(nil)
	_ remote.Pinger          = (*Store)(nil)
)
