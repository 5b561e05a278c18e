package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

const (
	// FolderPasses is the S3 prefix for signed wallet pass bundles.
	FolderPasses = "passes"
	// FolderAssets is the S3 prefix for badge template assets (logos etc.).
	FolderAssets = "assets"
)

// S3Config holds S3 client configuration.
type S3Config struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	PassesBucket         string
	AssetsBucket         string
	PresignExpireMinutes int
}

// S3 stores wallet passes and badge assets and issues pre-signed download URLs.
type S3 struct {
	client *s3.Client
	cfg    S3Config
	logger *zap.Logger
}

// NewS3 creates an S3 client using static credentials when provided, the
// default credential chain otherwise.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
	} else {
		logger.Warn("S3 client using default credential chain")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3{client: s3.NewFromConfig(awsCfg), cfg: cfg, logger: logger}, nil
}

// PassKey returns the S3 object key: passes/{event_id}/{registration_id}.pkpass.
func PassKey(eventID, registrationID string) string {
	return path.Join(FolderPasses, eventID, registrationID+".pkpass")
}

// AssetKey returns the S3 object key: assets/{template_id}/{filename}.
func AssetKey(templateID, filename string) string {
	return path.Join(FolderAssets, templateID, path.Base(filename))
}

// PassesBucket returns the configured wallet pass bucket.
func (s *S3) PassesBucket() string { return s.cfg.PassesBucket }

// AssetsBucket returns the configured badge asset bucket.
func (s *S3) AssetsBucket() string { return s.cfg.AssetsBucket }

// Put uploads a small object. Passes and badge assets are at most a few
// hundred KB, so no multipart handling is needed.
func (s *S3) Put(ctx context.Context, bucket, key, contentType string, body []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		Body:        bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("put object %s/%s: %w", bucket, key, err)
	}
	s.logger.Debug("s3 object stored", zap.String("bucket", bucket), zap.String("key", key))
	return nil
}

// PresignDownload returns a pre-signed GET URL for the object.
func (s *S3) PresignDownload(ctx context.Context, bucket, key string) (string, error) {
	presignClient := s3.NewPresignClient(s.client)
	req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
	})
	if err != nil {
		return "", fmt.Errorf("presign get %s/%s: %w", bucket, key, err)
	}
	return req.URL, nil
}
