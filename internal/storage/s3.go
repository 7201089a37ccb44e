package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	apperrors "sheetload/internal/errors"
)

// MaxObjectBytes bounds the size of a fetched workbook
const MaxObjectBytes = 256 << 20

type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store is an ObjectStore backed by Amazon S3 or an S3-compatible endpoint
type S3Store struct {
	client s3API
	logger *slog.Logger
}

// NewS3Store creates a store from an SDK configuration
func NewS3Store(cfg aws.Config, forcePathStyle bool, logger *slog.Logger) *S3Store {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = forcePathStyle
	})
	return newS3Store(client, logger)
}

func newS3Store(client s3API, logger *slog.Logger) *S3Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Store{client: client, logger: logger.With(slog.String("component", "s3_store"))}
}

// Fetch downloads the whole object
func (s *S3Store) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		appErr := apperrors.NewSourceUnavailableError(bucket, key, err)
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			appErr = appErr.WithContext("not_found", true)
		}
		return nil, appErr
	}
	defer out.Body.Close()

	body, err := io.ReadAll(io.LimitReader(out.Body, MaxObjectBytes+1))
	if err != nil {
		return nil, apperrors.NewSourceUnavailableError(bucket, key, fmt.Errorf("failed to read object body: %w", err))
	}
	if len(body) > MaxObjectBytes {
		return nil, apperrors.NewMalformedWorkbookError(
			fmt.Sprintf("object s3://%s/%s exceeds %d bytes", bucket, key, MaxObjectBytes), nil)
	}

	s.logger.DebugContext(ctx, "Fetched object",
		slog.String("bucket", bucket),
		slog.String("key", key),
		slog.Int("bytes", len(body)))

	return body, nil
}

// Put uploads body as a CSV object, replacing any existing object
func (s *S3Store) Put(ctx context.Context, bucket, key string, body []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(ContentTypeCSV),
	})
	if err != nil {
		return apperrors.NewSinkUnavailableError(fmt.Sprintf("cannot write s3://%s/%s", bucket, key), err).
			WithContext("bucket", bucket).
			WithContext("key", key)
	}

	s.logger.InfoContext(ctx, "Wrote object",
		slog.String("bucket", bucket),
		slog.String("key", key),
		slog.Int("bytes", len(body)))

	return nil
}
