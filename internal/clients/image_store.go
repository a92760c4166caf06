package clients

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/caraudio-league/points-engine/internal/config"
)

// objectDeleter is the part of the S3 client the store uses
type objectDeleter interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3ImageStore removes generated badge images from an S3-compatible bucket
type S3ImageStore struct {
	client        objectDeleter
	bucket        string
	publicBaseURL string
}

// NewS3ImageStore creates a store for the configured bucket. A custom endpoint selects
// an S3-compatible provider such as R2 or MinIO.
func NewS3ImageStore(ctx context.Context, cfg config.ImageStorageConfig) (*S3ImageStore, error) {
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3ImageStore(client, cfg.Bucket, cfg.PublicBaseURL), nil
}

func newS3ImageStore(client objectDeleter, bucket, publicBaseURL string) *S3ImageStore {
	return &S3ImageStore{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// DeleteImage removes the object behind a public image URL
func (s *S3ImageStore) DeleteImage(ctx context.Context, imageURL string) error {
	key, err := s.objectKey(imageURL)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// objectKey maps a public URL back to its object key. URLs under the public base URL
// are taken relative to it; other URLs use their path, without a leading bucket name.
func (s *S3ImageStore) objectKey(imageURL string) (string, error) {
	if s.publicBaseURL != "" && strings.HasPrefix(imageURL, s.publicBaseURL+"/") {
		return strings.TrimPrefix(imageURL, s.publicBaseURL+"/"), nil
	}

	u, err := url.Parse(imageURL)
	if err != nil {
		return "", fmt.Errorf("invalid image url %q: %w", imageURL, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	key = strings.TrimPrefix(key, s.bucket+"/")
	if key == "" {
		return "", fmt.Errorf("image url %q has no object key", imageURL)
	}
	return key, nil
}
