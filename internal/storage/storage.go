// Package storage provides S3-compatible object storage for session resource attachments.
// It issues presigned URLs so clients upload and download directly against the bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"studysphere/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrDisabled is returned by New when S3 is not configured.
var ErrDisabled = errors.New("object storage is not configured")

const signingRegion = "us-east-1"

// Service defines the interface for storage operations
type Service interface {
	// GeneratePresignedUploadURL creates a time-limited presigned URL for uploading a file
	GeneratePresignedUploadURL(ctx context.Context, key string, contentType string, ttl time.Duration) (string, error)

	// GeneratePresignedDownloadURL creates a time-limited presigned URL for downloading a file
	GeneratePresignedDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	DeleteFile(ctx context.Context, key string) error
	EnsureBucketExists(ctx context.Context) error
	Health(ctx context.Context) error
}

type service struct {
	client          *s3.Client
	publicPresigner *s3.PresignClient
	bucketName      string
	logger          *slog.Logger
}

// newClient builds a path-style client for endpointURL, as MinIO requires.
func newClient(ctx context.Context, endpointURL string, cfg config.S3Config) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(signingRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpointURL)
		o.UsePathStyle = true
	}), nil
}

// New creates a storage service for a MinIO or S3 endpoint.
func New(ctx context.Context, cfg config.S3Config, logger *slog.Logger) (Service, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}

	protocol := "http"
	if cfg.UseSSL {
		protocol = "https"
	}

	publicEndpoint := cfg.PublicEndpoint
	if publicEndpoint == "" {
		publicEndpoint = cfg.Endpoint
	}
	logger.Info("storage configured", "endpoint", cfg.Endpoint, "public_endpoint", publicEndpoint, "bucket", cfg.Bucket)

	client, err := newClient(ctx, fmt.Sprintf("%s://%s", protocol, cfg.Endpoint), cfg)
	if err != nil {
		return nil, err
	}
	publicClient := client
	if publicEndpoint != cfg.Endpoint {
		if publicClient, err = newClient(ctx, fmt.Sprintf("%s://%s", protocol, publicEndpoint), cfg); err != nil {
			return nil, err
		}
	}

	s := &service{
		client:          client,
		publicPresigner: s3.NewPresignClient(publicClient),
		bucketName:      cfg.Bucket,
		logger:          logger,
	}

	if err := s.EnsureBucketExists(ctx); err != nil {
		logger.Warn("failed to ensure bucket exists", "bucket", cfg.Bucket, "error", err)
	}

	return s, nil
}

// EnsureBucketExists creates the bucket if it doesn't already exist
func (s *service) EnsureBucketExists(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucketName)})
	if err == nil {
		return nil
	}

	if _, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucketName)}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	s.logger.Info("created bucket", "bucket", s.bucketName)
	return nil
}

func (s *service) GeneratePresignedUploadURL(ctx context.Context, key string, contentType string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", fmt.Errorf("file key cannot be empty")
	}
	if contentType == "" {
		return "", fmt.Errorf("content type cannot be empty")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("TTL must be positive")
	}

	req, err := s.publicPresigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned upload URL for key %s: %w", key, err)
	}
	return req.URL, nil
}

func (s *service) GeneratePresignedDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", fmt.Errorf("file key cannot be empty")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("TTL must be positive")
	}

	req, err := s.publicPresigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned download URL for key %s: %w", key, err)
	}
	return req.URL, nil
}

func (s *service) DeleteFile(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("file key cannot be empty")
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("failed to delete file %s: %w", key, err)
	}
	return nil
}

func (s *service) Health(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucketName)}); err != nil {
		return fmt.Errorf("storage health check failed: %w", err)
	}
	return nil
}
