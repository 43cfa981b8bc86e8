// Package s3store promotes finalized uploads into an S3-compatible bucket.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/anthanhphan/go-resumable-upload/internal/upload/config"
	"github.com/anthanhphan/go-resumable-upload/internal/upload/port"
	"github.com/anthanhphan/go-resumable-upload/pkg/resilience"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithy "github.com/aws/smithy-go"
)

// ErrObjectMissing is returned by Demote when the object is not in the bucket.
var ErrObjectMissing = errors.New("object missing")

// ObjectAPI is the subset of *s3.Client the store needs.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store implements port.PermanentStore on top of S3.
type Store struct {
	client  ObjectAPI
	bucket  string
	prefix  string
	breaker *resilience.CircuitBreaker
}

var _ port.PermanentStore = (*Store)(nil)

var loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

// New builds a Store from configuration. onStateChange may be nil.
func New(ctx context.Context, cfg config.S3Config, onStateChange func(name string, from, to resilience.CircuitBreakerState)) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	if cfg.Region == "" {
		return nil, errors.New("s3: region is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load config: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "s3:" + cfg.Bucket,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
		OnStateChange:    onStateChange,
		IsFailure:        isBackendFailure,
	})
	return NewWithClient(client, cfg.Bucket, cfg.Prefix, breaker), nil
}

// NewWithClient wires an existing client. A nil breaker gets a default one.
func NewWithClient(client ObjectAPI, bucket, prefix string, breaker *resilience.CircuitBreaker) *Store {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:      "s3:" + bucket,
			IsFailure: isBackendFailure,
		})
	}
	return &Store{
		client:  client,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		breaker: breaker,
	}
}

// Location returns the object key for a storage name.
func (s *Store) Location(storageName string) string {
	shard := storageName
	if len(shard) > 2 {
		shard = shard[:2]
	}
	return path.Join(s.prefix, shard, storageName)
}

// Promote uploads the staged file and removes it locally once the put succeeded.
func (s *Store) Promote(ctx context.Context, stagingPath, location string) error {
	f, err := os.Open(stagingPath)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("promote %s: %w", stagingPath, port.ErrStagingMissing)
	}
	if err != nil {
		return fmt.Errorf("promote %s: %w", stagingPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("promote %s: %w", stagingPath, err)
	}

	err = s.breaker.Execute(ctx, func(ctx context.Context) error {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(location),
			Body:          f,
			ContentLength: aws.Int64(info.Size()),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", location, err)
	}

	if err := os.Remove(stagingPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warnw("Failed to remove promoted staging file", "path", stagingPath, "error", err)
	}
	return nil
}

// Demote downloads the object back into the staging path and deletes it from the bucket.
func (s *Store) Demote(ctx context.Context, location, stagingPath string) error {
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(location),
		})
		if err != nil {
			if isNotFound(err) {
				return ErrObjectMissing
			}
			return err
		}
		defer out.Body.Close()
		return writeFile(stagingPath, out.Body)
	})
	if err != nil {
		return fmt.Errorf("get object %s: %w", location, err)
	}

	err = s.breaker.Execute(ctx, func(ctx context.Context) error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(location),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", location, err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, location string) error {
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(location),
		})
		if err != nil && isNotFound(err) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", location, err)
	}
	return nil
}

func writeFile(dst string, r io.Reader) error {
	tmp := dst + ".demote"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() == http.StatusNotFound
	}
	return false
}

// A missing object is an answer, not an outage.
func isBackendFailure(err error) bool {
	return !errors.Is(err, ErrObjectMissing)
}
