// Ark - BibleOS Tenant Backup, Retention, and Reminder Orchestration
// Copyright 2026 BibleOS Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bibleos/ark

// Package storage persists backup artifacts in S3-compatible object storage.
// A custom endpoint with path-style addressing covers MinIO, R2, and other
// S3-compatible services alongside AWS itself.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sethvargo/go-retry"

	"github.com/bibleos/ark/internal/config"
	"github.com/bibleos/ark/internal/logging"
)

// ObjectStore is the narrow surface the backup subsystem needs.
type ObjectStore interface {
	// Put uploads data under key, overwriting any existing object.
	Put(ctx context.Context, key string, data []byte) error

	// Get downloads the object at key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the object at key. Deleting a missing object is not
	// an error.
	Delete(ctx context.Context, key string) error
}

// ArtifactKey derives the storage path for a backup artifact.
// Artifacts are immutable once written; the path is recorded on the backup
// record as storage_path.
func ArtifactKey(companyID, backupID string) string {
	return fmt.Sprintf("%s/%s.json", companyID, backupID)
}

// s3API is the subset of the AWS client used, split out for testability.
type s3API interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store implements ObjectStore against an S3-compatible bucket.
// Uploads are retried with exponential backoff; a lost artifact upload is
// the difference between a completed and a failed backup.
type S3Store struct {
	client   s3API
	bucket   string
	attempts uint64
	backoff  time.Duration
}

// New builds an S3Store from configuration.
func New(cfg config.StorageConfig) *S3Store {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		UsePathStyle: cfg.ForcePathStyle,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	return &S3Store{
		client:   s3.New(opts),
		bucket:   cfg.Bucket,
		attempts: cfg.UploadAttempts,
		backoff:  cfg.UploadBackoff,
	}
}

// Put uploads data under key, retrying transient failures.
func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	backoff := retry.WithMaxRetries(s.attempts-1, retry.NewExponential(s.backoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Artifact upload attempt failed")
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// Get downloads the object at key.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Delete removes the object at key.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
