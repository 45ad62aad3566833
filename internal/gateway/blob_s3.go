package gateway

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Options struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
	KeyPrefix       string
}

// S3BlobStore stores images in any S3-compatible bucket (R2, MinIO, AWS).
type S3BlobStore struct {
	client  s3API
	bucket  string
	prefix  string
	baseURL string
	logger  zerolog.Logger
}

func NewS3BlobStore(ctx context.Context, opts S3Options, logger zerolog.Logger) (*S3BlobStore, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("initializing S3 client: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3BlobStore(client, opts, logger), nil
}

func newS3BlobStore(client s3API, opts S3Options, logger zerolog.Logger) *S3BlobStore {
	return &S3BlobStore{
		client:  client,
		bucket:  opts.Bucket,
		prefix:  opts.KeyPrefix,
		baseURL: strings.TrimRight(opts.PublicBaseURL, "/"),
		logger:  logger.With().Str("component", "s3").Logger(),
	}
}

func (s *S3BlobStore) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	key := s.prefix + name

	res, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", &TransportError{Op: "s3 put", URL: s.bucket + "/" + key, Err: err}
	}
	s.logger.Debug().Str("key", key).Str("etag", aws.ToString(res.ETag)).Msg("Object stored")

	return s.baseURL + "/" + escapeKey(key), nil
}

func (s *S3BlobStore) Delete(ctx context.Context, publicURL string) error {
	escaped, ok := strings.CutPrefix(publicURL, s.baseURL+"/")
	if !ok {
		return fmt.Errorf("%q is not under %s", publicURL, s.baseURL)
	}
	key, err := url.PathUnescape(escaped)
	if err != nil {
		return fmt.Errorf("malformed object url %q: %w", publicURL, err)
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return &TransportError{Op: "s3 delete", URL: s.bucket + "/" + key, Err: err}
	}
	return nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
