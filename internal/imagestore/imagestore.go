// Package imagestore persists product photos in S3-compatible object
// storage and hands back the public URLs stored on the product record.
package imagestore

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/buscoapp/busco/internal/imaging"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config holds S3-compatible storage configuration. PublicBaseURL is the
// prefix clients fetch objects from (a CDN or the bucket endpoint).
type Config struct {
	Endpoint      string
	Bucket        string
	Region        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

const (
	uploadAttempts = 3
	uploadBackoff  = 500 * time.Millisecond
)

// Store uploads and removes product photos. A Store without credentials is
// disabled: uploads fail with ErrDisabled and deletes are no-ops.
type Store struct {
	cfg    Config
	client s3Client
	logger *slog.Logger
}

var ErrDisabled = fmt.Errorf("image storage not configured")

func New(cfg Config, logger *slog.Logger) *Store {
	st := &Store{cfg: cfg, logger: logger}
	if cfg.Bucket != "" && cfg.AccessKey != "" && cfg.SecretKey != "" {
		st.client = newS3Client(cfg)
	}
	return st
}

func newS3Client(cfg Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether uploads are configured.
func (s *Store) Enabled() bool {
	return s.client != nil
}

// SaveProductPhoto uploads a processed photo and its thumbnail under fresh
// object keys and returns their public URLs. Transient upload failures are
// retried with backoff.
func (s *Store) SaveProductPhoto(ctx context.Context, img *imaging.Result) (photoURL, thumbURL string, err error) {
	if s.client == nil {
		return "", "", ErrDisabled
	}

	id := uuid.NewString()
	photoKey := fmt.Sprintf("products/%s.jpg", id)
	thumbKey := fmt.Sprintf("products/%s_thumb.jpg", id)

	if err := s.upload(ctx, photoKey, img.MIME, img.Photo); err != nil {
		return "", "", fmt.Errorf("upload photo: %w", err)
	}
	if err := s.upload(ctx, thumbKey, img.MIME, img.Thumb); err != nil {
		// Keep the photo rather than aborting; thumbnails are best effort.
		s.logger.Warn("thumbnail upload failed", "key", thumbKey, "error", err)
		return s.publicURL(photoKey), "", nil
	}

	return s.publicURL(photoKey), s.publicURL(thumbKey), nil
}

func (s *Store) upload(ctx context.Context, key, mime string, data []byte) error {
	backoff := retry.WithMaxRetries(uploadAttempts-1, retry.NewFibonacci(uploadBackoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.cfg.Bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentType:   aws.String(mime),
			ContentLength: aws.Int64(int64(len(data))),
		})
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

// DeleteByURL removes a previously uploaded object given its public URL.
// URLs that do not belong to this store are ignored.
func (s *Store) DeleteByURL(ctx context.Context, url string) error {
	if s.client == nil || url == "" {
		return nil
	}
	key := s.keyFromURL(url)
	if key == "" {
		return nil
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

func (s *Store) publicURL(key string) string {
	base := strings.TrimSuffix(s.cfg.PublicBaseURL, "/")
	if base == "" {
		base = strings.TrimSuffix(s.cfg.Endpoint, "/") + "/" + s.cfg.Bucket
	}
	return base + "/" + key
}

func (s *Store) keyFromURL(url string) string {
	prefix := s.publicURL("")
	if !strings.HasPrefix(url, prefix) {
		return ""
	}
	return strings.TrimPrefix(url, prefix)
}
