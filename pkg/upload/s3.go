package upload

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3ClientOptions configures NewS3Client.
type S3ClientOptions struct {
	Region string

	// Endpoint overrides the service endpoint, e.g. a MinIO URL.
	Endpoint string

	// AccessKeyID and SecretAccessKey select static credentials. When
	// empty the default credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	UsePathStyle bool
}

// NewS3Client builds an S3 client from opts.
func NewS3Client(ctx context.Context, opts S3ClientOptions) (*s3.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	}), nil
}

// S3Store stores uploads in an S3 bucket under <prefix><sha256><ext>.
//
// Example usage:
//
//	client, _ := upload.NewS3Client(ctx, upload.S3ClientOptions{Region: "eu-north-1"})
//	store := upload.NewS3Store(client, "my-bucket", "uploads/", 50<<20)
//
//	r.Put("/", upload.Handler(store))
type S3Store struct {
	client  S3API
	bucket  string
	prefix  string
	maxSize int64
}

// NewS3Store creates a new S3 upload store.
//
// Parameters:
//   - client: S3 client, usually from NewS3Client
//   - bucket: S3 bucket name
//   - prefix: Key prefix for uploads (e.g., "uploads/")
//   - maxSize: Maximum file size in bytes (0 = no limit)
func NewS3Store(client S3API, bucket, prefix string, maxSize int64) *S3Store {
	return &S3Store{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		maxSize: maxSize,
	}
}

// Save implements Store. The object key is the reported path.
func (s *S3Store) Save(ctx context.Context, filename, contentType string, size int64, r io.Reader) (*File, error) {
	if s.maxSize > 0 && size > s.maxSize {
		return nil, ErrTooLarge
	}

	// The key depends on the hash, so the body is buffered before the put.
	var buf bytes.Buffer
	h := sha256.New()
	reader := r
	if s.maxSize > 0 {
		reader = io.LimitReader(r, s.maxSize+1)
	}
	n, err := io.Copy(io.MultiWriter(&buf, h), reader)
	if err != nil {
		return nil, err
	}
	if s.maxSize > 0 && n > s.maxSize {
		return nil, ErrTooLarge
	}

	key := s.prefix + hex.EncodeToString(h.Sum(nil)) + storedExt(filename)
	now := time.Now().UTC()

	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentLength: aws.Int64(n),
		Metadata: map[string]string{
			"original-filename": filename,
			"upload-id":         uuid.NewString(),
			"upload-time":       now.Format(time.RFC3339),
		},
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return nil, fmt.Errorf("s3 upload failed: %w", err)
	}

	return &File{
		Path:        key,
		Filename:    filename,
		ContentType: contentType,
		Size:        n,
		StoredAt:    now,
	}, nil
}

// Open implements Store.
func (s *S3Store) Open(ctx context.Context, path string) (*File, error) {
	if !strings.HasPrefix(path, s.prefix) || path == s.prefix {
		return nil, ErrNotFound
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("s3 get failed: %w", err)
	}

	f := &File{
		Path:        path,
		Filename:    path[strings.LastIndex(path, "/")+1:],
		ContentType: aws.ToString(out.ContentType),
		Size:        aws.ToInt64(out.ContentLength),
		Reader:      out.Body,
	}
	if fn, ok := out.Metadata["original-filename"]; ok {
		f.Filename = fn
	}
	if out.LastModified != nil {
		f.StoredAt = *out.LastModified
	}
	return f, nil
}

// Cleanup implements Store.
func (s *S3Store) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	var toDelete []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		for _, obj := range page.Contents {
			if obj.Key != nil && obj.LastModified != nil && obj.LastModified.Before(cutoff) {
				toDelete = append(toDelete, *obj.Key)
			}
		}
	}

	removed := 0
	for _, key := range toDelete {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
