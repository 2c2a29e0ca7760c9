package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"FeedDigest/internal/config"
	"FeedDigest/internal/ports"
)

// ObjectPutter is the slice of the S3 client the archive needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads pages as text/html objects under an optional key prefix.
type S3 struct {
	client ObjectPutter
	bucket string
	prefix string
}

var _ ports.Archive = (*S3)(nil)

// NewS3 loads credentials from the default AWS chain.
func NewS3(ctx context.Context, cfg config.ArchiveConfig) (*S3, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewS3WithClient(client, cfg.S3Bucket, cfg.S3Prefix), nil
}

// NewS3WithClient builds the archive around an existing client.
func NewS3WithClient(client ObjectPutter, bucket, prefix string) *S3 {
	return &S3{client: client, bucket: bucket, prefix: prefix}
}

// Save uploads the page to bucket/prefix/FileName.
func (s *S3) Save(ctx context.Context, generatedAt time.Time, page []byte) error {
	key := path.Join(s.prefix, FileName(generatedAt))
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(page),
		ContentType: aws.String("text/html; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}
