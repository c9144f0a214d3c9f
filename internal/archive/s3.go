// Package archive uploads point-in-time snapshot documents to S3 or an
// S3-compatible object store.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/evetabi/opportunity/internal/config"
)

// ObjectPutter is the subset of *s3.Client the archiver uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver writes snapshot documents under a key prefix.
type Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
}

// New builds an S3 client from cfg. Static credentials are used when both
// keys are set; otherwise the default AWS credential chain applies.
func New(ctx context.Context, cfg config.ArchiveConfig) (*Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: bucket name is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewArchiver(client, cfg.Bucket, cfg.Prefix), nil
}

// NewArchiver wraps an existing client.
func NewArchiver(client ObjectPutter, bucket, prefix string) *Archiver {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Archiver{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object key for a snapshot taken at at.
//
//	<prefix>2026/10/16/134501.json
func (a *Archiver) Key(at time.Time) string {
	return a.prefix + at.UTC().Format("2006/01/02/150405") + ".json"
}

// PutSnapshot uploads data and returns the object key.
func (a *Archiver) PutSnapshot(ctx context.Context, data []byte, at time.Time) (string, error) {
	key := a.Key(at)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("archive: put %s: %w", key, err)
	}
	return key, nil
}
